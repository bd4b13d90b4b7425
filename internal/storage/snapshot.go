package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oceanwatch/hazard-monitor/internal/models"
)

// Snapshot is the archived record of the posts saved by one run.
type Snapshot struct {
	Platform   string                   `json:"platform"`
	StartedAt  time.Time                `json:"started_at"`
	ArchivedAt time.Time                `json:"archived_at"`
	Posts      []models.SocialMediaPost `json:"posts"`
}

// SnapshotPrefix is the blob prefix for a platform's snapshots.
func SnapshotPrefix(platform string) string {
	return fmt.Sprintf("ingest/%s/", strings.ToLower(platform))
}

// SnapshotName returns ingest/<platform>/<timestamp>.json.
func SnapshotName(platform string, at time.Time) string {
	return SnapshotPrefix(platform) + at.UTC().Format("2006-01-02T15-04-05Z") + ".json"
}

// Encode renders the snapshot as indented JSON.
func (s Snapshot) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}
