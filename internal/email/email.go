// Package email sends transactional account emails via the Brevo HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
)

const apiURL = "https://api.brevo.com/v3/smtp/email"

var verifyTemplate = template.Must(template.New("verify").Parse(`<html><body>
<p>Hi {{.Name}},</p>
<p>Welcome to Talko. Confirm your email address to activate your account:</p>
<p><a href="{{.Link}}">Verify my email</a></p>
<p>The link expires in 24 hours. If you did not sign up, ignore this email.</p>
</body></html>`))

// Sender delivers emails through Brevo. BaseURL is the public app origin
// used to build verification links.
type Sender struct {
	apiKey      string
	senderEmail string
	senderName  string
	baseURL     string
	client      *http.Client
	log         *zap.Logger
}

func NewSender(cfg config.EmailCfg, log *zap.Logger) *Sender {
	return &Sender{
		apiKey:      cfg.APIKey,
		senderEmail: cfg.SenderEmail,
		senderName:  cfg.SenderName,
		baseURL:     cfg.BaseURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		log:         log,
	}
}

// SendVerification emails the account-activation link.
func (s *Sender) SendVerification(ctx context.Context, to, name, token string) error {
	var buf bytes.Buffer
	err := verifyTemplate.Execute(&buf, map[string]string{
		"Name": name,
		"Link": fmt.Sprintf("%s/verify-email?token=%s", s.baseURL, token),
	})
	if err != nil {
		return err
	}
	return s.send(ctx, to, "Verify your Talko account", buf.String())
}

func (s *Sender) send(ctx context.Context, to, subject, html string) error {
	payload := map[string]any{
		"sender":      map[string]string{"name": s.senderName, "email": s.senderEmail},
		"to":          []map[string]string{{"email": to}},
		"subject":     subject,
		"htmlContent": html,
	}
	var body bytes.Buffer
	if err := json.NewEncoder(&body).Encode(payload); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Warn("email send failed",
			zap.String("to", to), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("email send failed: status %d", resp.StatusCode)
	}
	s.log.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
