package services

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"schoolsite/internal/config"
	"schoolsite/internal/models"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

//go:embed templates/*.html
var mailTemplates embed.FS

// CodeDelivery sends a verification code out of band.
type CodeDelivery interface {
	SendCode(ctx context.Context, email string, purpose Purpose, code string) error
}

// StatusNotifier tells a user their account status changed.
type StatusNotifier interface {
	SendAccountStatus(ctx context.Context, user *models.User) error
}

type MailService struct {
	cfg      config.SMTPConfig
	siteName string
	codeTTL  time.Duration
	dialer   *gomail.Dialer
	tmpl     *template.Template
	log      *zap.Logger
}

func NewMailService(cfg config.SMTPConfig, siteName string, codeTTL time.Duration, log *zap.Logger) *MailService {
	if !cfg.Enabled() {
		log.Warn("MailService disabled: missing SMTP environment variables")
	}
	return &MailService{
		cfg:      cfg,
		siteName: siteName,
		codeTTL:  codeTTL,
		dialer:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		tmpl:     template.Must(template.ParseFS(mailTemplates, "templates/*.html")),
		log:      log,
	}
}

func (s *MailService) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// send dials SMTP and gives up when ctx ends. The dial itself may outlive ctx
// but its result is discarded.
func (s *MailService) send(ctx context.Context, to, subject, body string) error {
	if !s.cfg.Enabled() {
		s.log.Debug("mail skipped, SMTP disabled", zap.String("to", to), zap.String("subject", subject))
		return nil
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.cfg.From)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", to, err)
		}
		s.log.Info("mail sent", zap.String("to", to), zap.String("subject", subject))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", to, ctx.Err())
	}
}

func (s *MailService) SendCode(ctx context.Context, email string, purpose Purpose, code string) error {
	name, subject := "signup_code.html", fmt.Sprintf("[%s] 회원가입 인증 코드", s.siteName)
	if purpose == PurposePasswordReset {
		name, subject = "reset_code.html", fmt.Sprintf("[%s] 비밀번호 재설정 인증 코드", s.siteName)
	}

	body, err := s.render(name, map[string]any{
		"SiteName": s.siteName,
		"Code":     code,
		"Minutes":  int(s.codeTTL.Minutes()),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, email, subject, body)
}

func (s *MailService) SendAccountStatus(ctx context.Context, user *models.User) error {
	body, err := s.render("account_status.html", map[string]any{
		"SiteName": s.siteName,
		"Name":     user.Name,
		"Status":   string(user.Status),
		"Active":   user.Status == models.StatusActive,
	})
	if err != nil {
		return err
	}
	return s.send(ctx, user.Email, fmt.Sprintf("[%s] 계정 상태 안내", s.siteName), body)
}
