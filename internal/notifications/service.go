package notifications

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/oceanwatch/hazard-monitor/internal/config"
	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// maxListedPosts bounds the posts rendered into one message.
const maxListedPosts = 10

// Service sends alerts to a Teams webhook and by email.
type Service struct {
	config *config.Config
	client *resty.Client
	send   func(*gomail.Message) error
}

var _ Notifier = (*Service)(nil)

// TeamsMessage represents a Microsoft Teams message
type TeamsMessage struct {
	Type       string         `json:"@type"`
	Context    string         `json:"@context"`
	ThemeColor string         `json:"themeColor,omitempty"`
	Title      string         `json:"title"`
	Text       string         `json:"text"`
	Sections   []TeamsSection `json:"sections,omitempty"`
}

type TeamsSection struct {
	ActivityTitle    string      `json:"activityTitle,omitempty"`
	ActivitySubtitle string      `json:"activitySubtitle,omitempty"`
	ActivityText     string      `json:"activityText,omitempty"`
	Facts            []TeamsFact `json:"facts,omitempty"`
	Markdown         bool        `json:"markdown,omitempty"`
}

type TeamsFact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service
func NewService(cfg *config.Config) *Service {
	s := &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
	s.send = func(m *gomail.Message) error {
		d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		return d.DialAndSend(m)
	}
	return s
}

// Enabled reports whether any channel is configured.
func (s *Service) Enabled() bool {
	return s.config.TeamsWebhookURL != "" || s.config.NotificationEmail != ""
}

// SendAlert delivers alert on every configured channel. A failing channel
// does not stop the others; all failures are returned together.
func (s *Service) SendAlert(ctx context.Context, alert *models.Alert) error {
	var errors []string

	if s.config.TeamsWebhookURL != "" {
		if err := s.sendToTeams(ctx, alert); err != nil {
			logrus.Errorf("Failed to send Teams alert: %v", err)
			errors = append(errors, fmt.Sprintf("Teams: %v", err))
		} else {
			logrus.WithField("alert_id", alert.ID).Info("Sent alert to Teams")
		}
	}

	if s.config.NotificationEmail != "" {
		if err := s.sendEmail(alert); err != nil {
			logrus.Errorf("Failed to send email alert: %v", err)
			errors = append(errors, fmt.Sprintf("Email: %v", err))
		} else {
			logrus.WithField("alert_id", alert.ID).Info("Sent alert via email")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errors, "; "))
	}
	return nil
}

func (s *Service) sendToTeams(ctx context.Context, alert *models.Alert) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(buildTeamsMessage(alert)).
		Post(s.config.TeamsWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to send Teams message: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("Teams webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func buildTeamsMessage(alert *models.Alert) *TeamsMessage {
	message := &TeamsMessage{
		Type:       "MessageCard",
		Context:    "https://schema.org/extensions",
		ThemeColor: themeColor(alert.Type),
		Title:      alert.Title,
		Text:       alert.Message,
	}

	message.Sections = append(message.Sections, TeamsSection{
		ActivityTitle: "Summary",
		Facts: []TeamsFact{
			{Name: "Platform", Value: alert.Platform},
			{Name: "Posts", Value: fmt.Sprintf("%d", len(alert.Posts))},
			{Name: "Generated", Value: alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")},
		},
		Markdown: true,
	})

	for i, post := range alert.Posts {
		if i >= maxListedPosts {
			break
		}
		message.Sections = append(message.Sections, TeamsSection{
			ActivityTitle:    "@" + post.AuthorUsername,
			ActivitySubtitle: fmt.Sprintf("confidence %.2f | credibility %.2f | %s", post.DisasterConfidence, post.CredibilityScore, post.PostedAt.UTC().Format("Jan 2 15:04")),
			ActivityText:     truncate(post.Content, 280),
			Markdown:         true,
		})
	}

	return message
}

func themeColor(alertType string) string {
	switch alertType {
	case "critical":
		return "d13438"
	case "urgent":
		return "ff8c00"
	default:
		return "0078d4"
	}
}

func (s *Service) sendEmail(alert *models.Alert) error {
	htmlBody, err := buildEmailHTML(alert)
	if err != nil {
		return fmt.Errorf("failed to build email HTML: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.NotificationEmail)
	m.SetHeader("Subject", fmt.Sprintf("%s (%d posts)", alert.Title, len(alert.Posts)))
	m.SetBody("text/plain", buildEmailText(alert))
	m.AddAlternative("text/html", htmlBody)

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

var emailTemplate = template.Must(template.New("email").Funcs(template.FuncMap{
	"truncate": func(length int, s string) string { return truncate(s, length) },
	"limit": func(n int, posts []models.SocialMediaPost) []models.SocialMediaPost {
		if len(posts) > n {
			return posts[:n]
		}
		return posts
	},
}).Parse(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Title}}</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        .header { background-color: #d13438; color: white; padding: 20px; border-radius: 5px; }
        .post { border-left: 4px solid #d13438; padding: 10px; margin: 10px 0; background-color: #fafafa; }
        .post-meta { color: #666; font-size: 0.9em; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.Title}}</h1>
        <p>{{.Message}}</p>
        <p>{{.Platform}} | {{.CreatedAt.Format "January 2, 2006 at 3:04 PM UTC"}}</p>
    </div>

    {{range limit 10 .Posts}}
    <div class="post">
        <div class="post-meta">
            @{{.AuthorUsername}} | confidence {{printf "%.2f" .DisasterConfidence}} | credibility {{printf "%.2f" .CredibilityScore}} | {{.PostedAt.Format "Jan 2, 2006 15:04"}}
        </div>
        <p>{{truncate 280 .Content}}</p>
    </div>
    {{end}}

    <hr>
    <p><small>This alert was generated automatically by the hazard monitor.</small></p>
</body>
</html>
`))

func buildEmailHTML(alert *models.Alert) (string, error) {
	var buf bytes.Buffer
	if err := emailTemplate.Execute(&buf, alert); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func buildEmailText(alert *models.Alert) string {
	var text strings.Builder

	text.WriteString(alert.Title + "\n")
	text.WriteString(alert.Message + "\n")
	text.WriteString(fmt.Sprintf("Platform: %s | Generated: %s\n", alert.Platform, alert.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC")))

	for i, post := range alert.Posts {
		if i >= maxListedPosts {
			break
		}
		text.WriteString(fmt.Sprintf("\n%d. @%s (confidence %.2f, credibility %.2f)\n", i+1, post.AuthorUsername, post.DisasterConfidence, post.CredibilityScore))
		text.WriteString(fmt.Sprintf("   %s\n", truncate(post.Content, 280)))
	}

	text.WriteString("\n---\nThis alert was generated automatically by the hazard monitor.\n")
	return text.String()
}

func truncate(s string, length int) string {
	runes := []rune(s)
	if len(runes) <= length {
		return s
	}
	return string(runes[:length]) + "..."
}
