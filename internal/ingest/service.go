package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/notifications"
	"github.com/oceanwatch/hazard-monitor/internal/storage"
)

var (
	// ErrUnknownPlatform is returned for a platform with no ingestor.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrRunInProgress is returned when the platform is already running.
	ErrRunInProgress = errors.New("ingestion already running")
)

// Service runs the configured platform ingestors and keeps their status.
type Service struct {
	ingestors      []*Ingestor
	archive        storage.Archive
	notifier       notifications.Notifier
	alertThreshold float64
	status         *Status
	mu             sync.RWMutex

	runMu   sync.Mutex
	running map[string]bool
}

// Status holds the last result of every platform.
type Status struct {
	Runs       int                   `json:"runs"`
	TotalSaved int                   `json:"total_saved"`
	LastRun    time.Time             `json:"last_run"`
	Running    []string              `json:"running"`
	Platforms  map[string]*RunResult `json:"platforms"`
}

// NewService creates a service over ingestors. archive and notifier may
// be nil.
func NewService(ingestors []*Ingestor, archive storage.Archive, notifier notifications.Notifier, alertThreshold float64) *Service {
	return &Service{
		ingestors:      ingestors,
		archive:        archive,
		notifier:       notifier,
		alertThreshold: alertThreshold,
		status:         &Status{Platforms: make(map[string]*RunResult)},
		running:        make(map[string]bool),
	}
}

// Platforms lists the configured platform names in run order.
func (s *Service) Platforms() []string {
	names := make([]string, 0, len(s.ingestors))
	for _, in := range s.ingestors {
		names = append(names, in.Name())
	}
	return names
}

// RunAll runs every platform, one after another.
func (s *Service) RunAll(ctx context.Context) []*RunResult {
	logrus.Info("Starting ingestion run")

	var results []*RunResult
	for _, in := range s.ingestors {
		if ctx.Err() != nil {
			break
		}
		res, err := s.run(ctx, in)
		if err != nil {
			logrus.WithField("platform", in.Name()).Warn(err)
			continue
		}
		results = append(results, res)
	}
	return results
}

// Run runs one platform by name.
func (s *Service) Run(ctx context.Context, platform string) (*RunResult, error) {
	for _, in := range s.ingestors {
		if strings.EqualFold(in.Name(), platform) {
			return s.run(ctx, in)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, platform)
}

func (s *Service) run(ctx context.Context, in *Ingestor) (*RunResult, error) {
	if !s.begin(in.Name()) {
		return nil, fmt.Errorf("%w: %s", ErrRunInProgress, in.Name())
	}
	defer s.end(in.Name())

	res, saved := in.Run(ctx)
	s.record(in.Name(), res)

	if len(saved) > 0 {
		s.archiveSnapshot(ctx, res, saved)
		s.sendAlert(ctx, res.Platform, saved)
	}
	return res, nil
}

func (s *Service) begin(name string) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Service) end(name string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	delete(s.running, name)
}

// IsRunning reports whether platform has a run in progress.
func (s *Service) IsRunning(platform string) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running[strings.ToLower(platform)]
}

func (s *Service) record(name string, res *RunResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.Runs++
	s.status.TotalSaved += res.Saved
	s.status.LastRun = res.StartedAt
	s.status.Platforms[name] = res
}

// Status returns a copy of the current status.
func (s *Service) Status() Status {
	s.mu.RLock()
	out := Status{
		Runs:       s.status.Runs,
		TotalSaved: s.status.TotalSaved,
		LastRun:    s.status.LastRun,
		Platforms:  make(map[string]*RunResult, len(s.status.Platforms)),
	}
	for name, res := range s.status.Platforms {
		r := *res
		out.Platforms[name] = &r
	}
	s.mu.RUnlock()

	s.runMu.Lock()
	out.Running = []string{}
	for _, name := range s.Platforms() {
		if s.running[name] {
			out.Running = append(out.Running, name)
		}
	}
	s.runMu.Unlock()
	return out
}

func (s *Service) archiveSnapshot(ctx context.Context, res *RunResult, posts []models.SocialMediaPost) {
	if s.archive == nil {
		return
	}

	now := time.Now().UTC()
	data, err := storage.Snapshot{
		Platform:   res.Platform,
		StartedAt:  res.StartedAt,
		ArchivedAt: now,
		Posts:      posts,
	}.Encode()
	if err != nil {
		logrus.Errorf("Failed to encode snapshot: %v", err)
		return
	}

	if err := s.archive.Store(ctx, storage.SnapshotName(res.Platform, res.StartedAt), data); err != nil {
		logrus.WithField("platform", res.Platform).Errorf("Failed to archive snapshot: %v", err)
	}
}

func (s *Service) sendAlert(ctx context.Context, platform string, posts []models.SocialMediaPost) {
	if s.notifier == nil || !s.notifier.Enabled() {
		return
	}

	alert := buildAlert(platform, posts, s.alertThreshold)
	if alert == nil {
		return
	}
	if err := s.notifier.SendAlert(ctx, alert); err != nil {
		logrus.WithField("platform", platform).Errorf("Failed to send alert: %v", err)
	}
}

// buildAlert collects the posts at or above threshold into one alert, or
// returns nil when there are none.
func buildAlert(platform string, posts []models.SocialMediaPost, threshold float64) *models.Alert {
	var urgent []models.SocialMediaPost
	top := 0.0
	for _, p := range posts {
		if p.DisasterConfidence >= threshold {
			urgent = append(urgent, p)
			if p.DisasterConfidence > top {
				top = p.DisasterConfidence
			}
		}
	}
	if len(urgent) == 0 {
		return nil
	}

	alertType := "urgent"
	if top >= 0.9 {
		alertType = "critical"
	}
	return &models.Alert{
		ID:        uuid.NewString(),
		Type:      alertType,
		Title:     fmt.Sprintf("Disaster alert: %s", platform),
		Message:   fmt.Sprintf("%d high-confidence disaster posts (top confidence %.2f)", len(urgent), top),
		Platform:  platform,
		Posts:     urgent,
		CreatedAt: time.Now().UTC(),
	}
}
