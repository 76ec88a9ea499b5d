package models

// DashboardStats is the admin overview
type DashboardStats struct {
	UsersByRole    map[Role]int       `json:"users_by_role"`
	PostsByStatus  map[PostStatus]int `json:"posts_by_status"`
	TotalUsers     int                `json:"total_users"`
	TotalPosts     int                `json:"total_posts"`
	TotalComments  int                `json:"total_comments"`
	LatestUsers    []User             `json:"latest_users"`
	LatestPosts    []Post             `json:"latest_posts"`
	PendingReviews int                `json:"pending_reviews"`
}
