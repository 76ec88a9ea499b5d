package email

import (
	"bytes"
	"fmt"
	"html/template"
	"inkwell/internal/config"
	"log"
	"net/smtp"
	"sync"
	"time"
)

// Sender defines the interface for sending emails
type Sender interface {
	SendVerificationEmail(to, name, token string) error
	SendPasswordResetEmail(to, name, token string) error
	SendTwoFactorCode(to, name, code string, expiresAt time.Time) error
}

var (
	verificationTemplate = template.Must(template.New("verification").Parse(`
		<h2>Hello {{.Name}},</h2>
		<p>Please confirm your email address by clicking the link below:</p>
		<p><a href="{{.URL}}">Confirm Email Address</a></p>
		<p>If you did not create an account, no further action is required.</p>
	`))

	resetTemplate = template.Must(template.New("reset").Parse(`
		<h2>Hello {{.Name}},</h2>
		<p>You have requested to reset your password. Click the link below to proceed:</p>
		<p><a href="{{.URL}}">Reset Password</a></p>
		<p>If you did not request a password reset, please ignore this email.</p>
	`))

	twoFactorTemplate = template.Must(template.New("two-factor").Parse(`
		<h2>Hello {{.Name}},</h2>
		<p>Your sign-in code is <strong>{{.Code}}</strong>.</p>
		<p>It expires at {{.ExpiresAt}}.</p>
		<p>If you did not try to sign in, change your password.</p>
	`))
)

// Service implements Sender over SMTP
type Service struct {
	config config.EmailConfig
	client *smtp.Client
	mu     sync.Mutex
}

// NewService creates an SMTP sender
func NewService(cfg config.EmailConfig) *Service {
	return &Service{
		config: cfg,
		client: nil,
	}
}

// NewSender returns an SMTP sender when SMTP is configured and a logging
// sender otherwise
func NewSender(cfg config.EmailConfig) Sender {
	if cfg.SMTPHost == "" {
		log.Printf("SMTP_HOST not set, emails will be logged instead of sent")
		return LogSender{AppURL: cfg.AppURL}
	}
	return NewService(cfg)
}

// dialSMTP establishes an SMTP connection
func (s *Service) dialSMTP() (*smtp.Client, error) {
	// Reuse existing connection if it's still alive
	if s.client != nil {
		if err := s.client.Noop(); err == nil {
			return s.client, nil
		}
		// Connection is dead, close it
		s.client.Close()
		s.client = nil
	}

	addr := fmt.Sprintf("%s:%d", s.config.SMTPHost, s.config.SMTPPort)
	client, err := smtp.Dial(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial SMTP server: %w", err)
	}

	if s.config.SMTPUsername != "" {
		if err := client.Auth(smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to authenticate with SMTP server: %w", err)
		}
	}

	s.client = client
	return client, nil
}

// sendMail sends an email using a pooled SMTP connection
func (s *Service) sendMail(to string, msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := s.dialSMTP()
	if err != nil {
		return err
	}

	if err := client.Mail(s.config.FromAddress); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to add recipient %s: %w", to, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to create message writer: %w", err)
	}

	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close message writer: %w", err)
	}

	return nil
}

// Close closes the SMTP connection
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		err := s.client.Quit()
		s.client = nil
		return err
	}
	return nil
}

func (s *Service) send(to, subject string, tmpl *template.Template, data any) error {
	if s.config.SMTPHost == "" || s.config.SMTPPort == 0 || s.config.FromAddress == "" {
		return fmt.Errorf("incomplete email configuration")
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute email template: %w", err)
	}

	msg := fmt.Sprintf("To: %s\r\n"+
		"From: %s\r\n"+
		"Subject: %s\r\n"+
		"MIME-Version: 1.0\r\n"+
		"Content-Type: text/html; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", to, s.config.FromAddress, subject, body.String())

	return s.sendMail(to, []byte(msg))
}

func (s *Service) SendVerificationEmail(to, name, token string) error {
	err := s.send(to, "Confirm your email", verificationTemplate, map[string]string{
		"Name": name,
		"URL":  VerificationURL(s.config.AppURL, token),
	})
	if err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

func (s *Service) SendPasswordResetEmail(to, name, token string) error {
	err := s.send(to, "Reset your password", resetTemplate, map[string]string{
		"Name": name,
		"URL":  ResetURL(s.config.AppURL, token),
	})
	if err != nil {
		return fmt.Errorf("failed to send password reset email: %w", err)
	}
	return nil
}

func (s *Service) SendTwoFactorCode(to, name, code string, expiresAt time.Time) error {
	err := s.send(to, "Your sign-in code", twoFactorTemplate, map[string]string{
		"Name":      name,
		"Code":      code,
		"ExpiresAt": expiresAt.UTC().Format("15:04:05 MST"),
	})
	if err != nil {
		return fmt.Errorf("failed to send two-factor code: %w", err)
	}
	return nil
}

// VerificationURL builds the confirmation link for token
func VerificationURL(appURL, token string) string {
	return fmt.Sprintf("%s/auth/new-verification?token=%s", appURL, token)
}

// ResetURL builds the new-password link for token
func ResetURL(appURL, token string) string {
	return fmt.Sprintf("%s/auth/new-password?token=%s", appURL, token)
}

// LogSender writes emails to the process log. Used in development when no
// SMTP server is configured.
type LogSender struct {
	AppURL string
}

func (l LogSender) SendVerificationEmail(to, name, token string) error {
	log.Printf("Email to %s: confirm address at %s", to, VerificationURL(l.AppURL, token))
	return nil
}

func (l LogSender) SendPasswordResetEmail(to, name, token string) error {
	log.Printf("Email to %s: reset password at %s", to, ResetURL(l.AppURL, token))
	return nil
}

func (l LogSender) SendTwoFactorCode(to, name, code string, expiresAt time.Time) error {
	log.Printf("Email to %s: sign-in code %s, expires %s", to, code, expiresAt.UTC().Format(time.RFC3339))
	return nil
}
