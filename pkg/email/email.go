package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"embed"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strings"
	"time"

	"go.uber.org/zap"

	"bantay-backend/internal/config"
	"bantay-backend/internal/models"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"upper": strings.ToUpper,
}).ParseFS(templateFS, "templates/*.html"))

// ResetTokenTTL is how long a password reset link stays valid.
const ResetTokenTTL = 24 * time.Hour

type EmailService struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
	fromName     string
	appURL       string
	logger       *zap.Logger

	send func(ctx context.Context, to string, message []byte) error
}

type PasswordResetData struct {
	ResetLink   string
	UserEmail   string
	ExpiryHours int
}

type VerificationData struct {
	VerifyLink string
	UserEmail  string
}

type AlertEmailData struct {
	AlertID      string
	Title        string
	Message      string
	Severity     string
	AlertType    string
	ExpiresAt    string
	Immediate    []string
	Preparation  []string
	Evacuation   bool
	Centers      []models.EvacuationCenter
	AppURL       string
	Acknowledged string
}

func NewEmailService(cfg config.SMTPConfig, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &EmailService{
		smtpHost:     cfg.Host,
		smtpPort:     cfg.Port,
		smtpUsername: cfg.Username,
		smtpPassword: cfg.Password,
		fromEmail:    cfg.FromEmail,
		fromName:     cfg.FromName,
		appURL:       strings.TrimRight(cfg.AppURL, "/"),
		logger:       logger,
	}
	s.send = s.sendSMTP
	return s
}

// AlertSubject is the subject line used for alert emails.
func AlertSubject(alert *models.Alert) string {
	return fmt.Sprintf("[%s] %s", strings.ToUpper(alert.Severity), alert.Title)
}

// SendAlertEmail renders the alert template and sends it to one recipient.
func (s *EmailService) SendAlertEmail(ctx context.Context, to string, alert *models.Alert, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	data := AlertEmailData{
		AlertID:     alert.AlertID,
		Title:       alert.Title,
		Message:     alert.Message,
		Severity:    alert.Severity,
		AlertType:   alert.AlertType,
		ExpiresAt:   alert.ExpiresAt.In(loc).Format("Jan 2, 2006 3:04 PM"),
		Immediate:   alert.Instructions.Immediate,
		Preparation: alert.Instructions.Preparation,
		Evacuation:  alert.Instructions.Evacuation.Required,
		Centers:     alert.Instructions.Evacuation.Centers,
		AppURL:      s.appURL,
	}

	body, err := render("alert.html", data)
	if err != nil {
		return err
	}
	return s.deliver(ctx, to, AlertSubject(alert), body)
}

func (s *EmailService) SendPasswordResetEmail(ctx context.Context, to, resetToken string) error {
	data := PasswordResetData{
		ResetLink:   fmt.Sprintf("%s/reset-password?token=%s", s.appURL, resetToken),
		UserEmail:   to,
		ExpiryHours: int(ResetTokenTTL.Hours()),
	}

	body, err := render("password_reset.html", data)
	if err != nil {
		return err
	}
	return s.deliver(ctx, to, "Password Reset Request - BantayBarangay", body)
}

func (s *EmailService) SendVerificationEmail(ctx context.Context, to, verifyToken string) error {
	body, err := render("verify_email.html", VerificationData{
		VerifyLink: fmt.Sprintf("%s/verify-email?token=%s", s.appURL, verifyToken),
		UserEmail:  to,
	})
	if err != nil {
		return err
	}
	return s.deliver(ctx, to, "Verify Your BantayBarangay Account", body)
}

func (s *EmailService) deliver(ctx context.Context, to, subject, htmlBody string) error {
	message := s.buildEmailMessage(to, subject, htmlBody)
	if err := s.send(ctx, to, message); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	s.logger.Debug("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func render(name string, data interface{}) (string, error) {
	var body bytes.Buffer
	if err := templates.ExecuteTemplate(&body, name, data); err != nil {
		return "", fmt.Errorf("failed to execute email template %s: %w", name, err)
	}
	return body.String(), nil
}

func (s *EmailService) buildEmailMessage(to, subject, htmlBody string) []byte {
	headers := [][2]string{
		{"From", fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)},
		{"To", to},
		{"Reply-To", s.fromEmail},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	var b strings.Builder
	for _, h := range headers {
		fmt.Fprintf(&b, "%s: %s\r\n", h[0], h[1])
	}
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	return []byte(b.String())
}

// sendSMTP delivers over STARTTLS; the dial honours ctx, the session uses a fixed deadline.
func (s *EmailService) sendSMTP(ctx context.Context, to string, message []byte) error {
	addr := net.JoinHostPort(s.smtpHost, s.smtpPort)

	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, s.smtpHost)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to start SMTP session: %w", err)
	}
	defer client.Close()

	if err = client.StartTLS(&tls.Config{ServerName: s.smtpHost}); err != nil {
		return fmt.Errorf("failed to start TLS: %w", err)
	}
	if s.smtpUsername != "" {
		if err = client.Auth(smtp.PlainAuth("", s.smtpUsername, s.smtpPassword, s.smtpHost)); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	if err = client.Mail(s.fromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return client.Quit()
}
