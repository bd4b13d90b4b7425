package models

import "time"

// Alert is an urgent notification about high-confidence disaster posts.
type Alert struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"` // "critical", "urgent", "info"
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Platform  string            `json:"platform"`
	Posts     []SocialMediaPost `json:"posts,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}
