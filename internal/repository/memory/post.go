package memory

import (
	"context"
	"inkwell/internal/models"
	"inkwell/internal/repository"
	"sort"
	"strings"

	"github.com/google/uuid"
)

type postRepository struct {
	*Store
}

func (r *postRepository) view(p *models.Post) models.Post {
	out := *p
	out.Author = r.summary(p.AuthorID)
	return out
}

func (r *postRepository) slugTaken(slug string, except uuid.UUID) bool {
	for _, p := range r.posts {
		if p.Slug == slug && p.ID != except {
			return true
		}
	}
	return false
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.slugTaken(post.Slug, uuid.Nil) {
		return repository.ErrSlugExists
	}

	now := r.now()
	post.ID = uuid.New()
	post.CreatedAt = now
	post.UpdatedAt = now

	stored := *post
	stored.Author = nil
	r.posts[post.ID] = &stored
	return nil
}

func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.posts[post.ID]
	if !ok {
		return repository.ErrPostNotFound
	}
	if r.slugTaken(post.Slug, post.ID) {
		return repository.ErrSlugExists
	}

	existing.Title = post.Title
	existing.Slug = post.Slug
	existing.Excerpt = post.Excerpt
	existing.Content = post.Content
	existing.Status = post.Status
	existing.ModerationNote = post.ModerationNote
	existing.PublishedAt = post.PublishedAt
	existing.UpdatedAt = r.now()
	post.UpdatedAt = existing.UpdatedAt
	return nil
}

func (r *postRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[id]; !ok {
		return repository.ErrPostNotFound
	}
	delete(r.posts, id)
	for cid, c := range r.comments {
		if c.PostID == id {
			delete(r.comments, cid)
		}
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	out := r.view(p)
	return &out, nil
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.posts {
		if p.Slug == slug {
			out := r.view(p)
			return &out, nil
		}
	}
	return nil, repository.ErrPostNotFound
}

func (r *postRepository) List(ctx context.Context, filter repository.PostFilter) ([]models.Post, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	posts := make([]models.Post, 0)
	for _, p := range r.posts {
		if _, ok := r.liveUser(p.AuthorID); !ok {
			continue
		}
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		if filter.AuthorID != nil && p.AuthorID != *filter.AuthorID {
			continue
		}
		if filter.Search != nil {
			term := strings.ToLower(*filter.Search)
			if !strings.Contains(strings.ToLower(p.Title), term) && !strings.Contains(strings.ToLower(p.Excerpt), term) {
				continue
			}
		}
		posts = append(posts, r.view(p))
	}

	sortKey := func(p models.Post) int64 {
		if p.PublishedAt != nil {
			return p.PublishedAt.UnixNano()
		}
		return p.CreatedAt.UnixNano()
	}
	sort.SliceStable(posts, func(i, j int) bool { return sortKey(posts[i]) > sortKey(posts[j]) })

	return page(posts, filter.Limit, filter.Offset), len(posts), nil
}

func (r *postRepository) CountByStatus(ctx context.Context) (map[models.PostStatus]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[models.PostStatus]int{
		models.PostStatusDraft:     0,
		models.PostStatusPending:   0,
		models.PostStatusPublished: 0,
		models.PostStatusRejected:  0,
	}
	for _, p := range r.posts {
		counts[p.Status]++
	}
	return counts, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.slugTaken(slug, uuid.Nil), nil
}

type commentRepository struct {
	*Store
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.posts[comment.PostID]; !ok {
		return repository.ErrPostNotFound
	}

	now := r.now()
	comment.ID = uuid.New()
	comment.CreatedAt = now
	comment.UpdatedAt = now

	stored := *comment
	stored.Author = nil
	r.comments[comment.ID] = &stored
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.comments[id]
	if !ok {
		return nil, repository.ErrCommentNotFound
	}
	out := *c
	out.Author = r.summary(c.AuthorID)
	return &out, nil
}

func (r *commentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.comments[id]; !ok {
		return repository.ErrCommentNotFound
	}
	delete(r.comments, id)
	return nil
}

func (r *commentRepository) ListByPost(ctx context.Context, postID uuid.UUID, limit, offset int) ([]models.Comment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	comments := make([]models.Comment, 0)
	for _, c := range r.comments {
		if c.PostID != postID {
			continue
		}
		if _, ok := r.liveUser(c.AuthorID); !ok {
			continue
		}
		out := *c
		out.Author = r.summary(c.AuthorID)
		comments = append(comments, out)
	}
	sort.SliceStable(comments, func(i, j int) bool { return comments[i].CreatedAt.Before(comments[j].CreatedAt) })

	return page(comments, &limit, &offset), len(comments), nil
}

func (r *commentRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.comments), nil
}
