// Package ingest fetches candidate posts from a platform, filters them
// through the disaster gate and persists each new post exactly once.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/oceanwatch/hazard-monitor/internal/classify"
	"github.com/oceanwatch/hazard-monitor/internal/credibility"
	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/normalize"
	"github.com/oceanwatch/hazard-monitor/internal/repo"
	"github.com/oceanwatch/hazard-monitor/internal/sources"
)

// Outcome is what happened to one candidate item.
type Outcome string

const (
	OutcomeSaved     Outcome = "saved"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeNoText    Outcome = "no_text"
	OutcomeRejected  Outcome = "rejected"
	OutcomeError     Outcome = "error"
)

// Classifier yields a verdict for a text and never fails.
type Classifier interface {
	Classify(ctx context.Context, text string) classify.Verdict
}

// UsageRecorder hands out per-platform call observers.
type UsageRecorder interface {
	For(platformID uint) sources.Observer
}

// Options configures one platform ingestor.
type Options struct {
	Platform     string // stored platform name, e.g. models.PlatformTwitter
	APIEndpoint  string
	RateLimit    int
	Units        []string // search keywords or account ids
	Limit        int      // items per unit
	Pause        time.Duration
	ItemEndpoint string // usage label for per-item observations
	Credibility  credibility.Table
	Threshold    float64 // minimum disaster confidence
}

// FairShare splits a total result budget over n units, never below 1.
func FairShare(total, n int) int {
	if n <= 0 {
		return total
	}
	share := total / n
	if share < 1 {
		return 1
	}
	return share
}

// Ingestor runs the pipeline for one platform.
type Ingestor struct {
	db         *gorm.DB
	source     sources.Source
	enricher   sources.Enricher // nil unless source implements it
	classifier Classifier
	observer   sources.Observer
	platform   *models.SocialMediaPlatform
	opts       Options
	now        func() time.Time
}

// NewIngestor resolves the platform identity record and returns an ingestor
// for source. Failing to resolve the platform is fatal for this ingestor.
func NewIngestor(ctx context.Context, db *gorm.DB, source sources.Source, classifier Classifier, recorder UsageRecorder, opts Options) (*Ingestor, error) {
	platform, err := repo.EnsurePlatform(ctx, db, opts.Platform, opts.APIEndpoint, opts.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise platform %s: %w", opts.Platform, err)
	}

	var observer sources.Observer = sources.NopObserver{}
	if recorder != nil {
		observer = recorder.For(platform.ID)
	}
	if opts.ItemEndpoint == "" {
		opts.ItemEndpoint = "process_" + strings.ToLower(opts.Platform)
	}

	enricher, _ := source.(sources.Enricher)

	return &Ingestor{
		db:         db,
		source:     source,
		enricher:   enricher,
		classifier: classifier,
		observer:   observer,
		platform:   platform,
		opts:       opts,
		now:        time.Now,
	}, nil
}

// Name is the source name, e.g. "twitter".
func (in *Ingestor) Name() string {
	return in.source.GetName()
}

// Platform returns the platform identity record.
func (in *Ingestor) Platform() *models.SocialMediaPlatform {
	return in.platform
}

// Run processes every unit one after another, pausing between units. A
// unit whose fetch fails is logged and abandoned. It returns the run
// summary and the posts saved by this run.
func (in *Ingestor) Run(ctx context.Context) (*RunResult, []models.SocialMediaPost) {
	res := &RunResult{Platform: in.platform.Name, StartedAt: in.now().UTC()}
	var saved []models.SocialMediaPost

	log := logrus.WithField("platform", in.Name())
	if !in.source.IsEnabled() {
		log.Debug("Source disabled - missing credentials")
		res.Duration = in.now().Sub(res.StartedAt)
		return res, nil
	}

	for i, unit := range in.opts.Units {
		if i > 0 && in.opts.Pause > 0 {
			select {
			case <-ctx.Done():
				log.Warn("Ingestion run interrupted")
				res.Canceled = true
				res.Duration = in.now().Sub(res.StartedAt)
				return res, saved
			case <-time.After(in.opts.Pause):
			}
		}

		res.Units++
		unitLog := log.WithField("unit", unit)
		unitLog.Info("Fetching candidate posts")

		items, err := in.source.Fetch(ctx, unit, in.opts.Limit, in.observer)
		if err != nil {
			unitLog.Errorf("Failed to fetch unit: %v", err)
			res.UnitsFailed++
			continue
		}
		res.Fetched += len(items)

		for _, item := range items {
			outcome, post := in.Process(ctx, item)
			res.add(outcome)
			itemsTotal.WithLabelValues(in.Name(), string(outcome)).Inc()
			if post != nil {
				saved = append(saved, *post)
			}
		}
	}

	runsTotal.WithLabelValues(in.Name()).Inc()
	res.Duration = in.now().Sub(res.StartedAt)
	log.WithFields(logrus.Fields{
		"units":      res.Units,
		"fetched":    res.Fetched,
		"saved":      res.Saved,
		"duplicates": res.Duplicates,
		"rejected":   res.Rejected,
		"errors":     res.Errors,
	}).Infof("Ingestion run completed in %v", res.Duration)
	return res, saved
}

// Process handles one candidate item and records one usage observation
// for it. Duplicates, empty texts and gate rejections are outcomes, not
// errors.
func (in *Ingestor) Process(ctx context.Context, item sources.Item) (Outcome, *models.SocialMediaPost) {
	outcome, post, err := in.process(ctx, item)

	log := logrus.WithFields(logrus.Fields{"platform": in.Name(), "post_id": item.PostID})
	switch outcome {
	case OutcomeSaved:
		in.observer.Observe(ctx, in.opts.ItemEndpoint, 1, sources.OutcomeSuccess)
		log.Infof("Saved post (confidence %.2f, credibility %.2f)", post.DisasterConfidence, post.CredibilityScore)
	case OutcomeError:
		in.observer.Observe(ctx, in.opts.ItemEndpoint, 0, sources.OutcomeFailed)
		log.Errorf("Failed to process post: %v", err)
	default:
		in.observer.Observe(ctx, in.opts.ItemEndpoint, 0, sources.OutcomeSuccess)
		log.Debugf("Skipped post: %s", outcome)
	}
	return outcome, post
}

func (in *Ingestor) process(ctx context.Context, item sources.Item) (Outcome, *models.SocialMediaPost, error) {
	postID := strings.TrimSpace(item.PostID)
	if postID == "" {
		return OutcomeError, nil, fmt.Errorf("item has no post id")
	}

	exists, err := repo.PostExists(ctx, in.db, in.platform.ID, postID)
	if err != nil {
		return OutcomeError, nil, fmt.Errorf("existence check: %w", err)
	}
	if exists {
		return OutcomeDuplicate, nil, nil
	}

	text := strings.TrimSpace(item.Text)
	if text == "" {
		return OutcomeNoText, nil, nil
	}

	verdict := in.classifier.Classify(ctx, text)
	if !verdict.IsDisasterRelated || verdict.DisasterConfidence < in.opts.Threshold {
		return OutcomeRejected, nil, nil
	}

	if in.enricher != nil {
		in.enricher.Enrich(ctx, &item, in.observer)
	}

	norm := normalize.Normalize(normalize.Input{
		Text:     item.Text,
		Entities: item.Entities,
		Geo:      item.Geo,
	})
	score := in.opts.Credibility.Score(credibility.Signals{
		Verified:   item.Author.Verified,
		Reach:      item.Audience(),
		Engagement: item.Engagement(),
	})

	post := in.buildPost(postID, item, norm, verdict, score)
	if err := repo.CreatePost(ctx, in.db, post); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return OutcomeDuplicate, nil, nil
		}
		return OutcomeError, nil, fmt.Errorf("persist: %w", err)
	}
	return OutcomeSaved, post, nil
}

func (in *Ingestor) buildPost(postID string, item sources.Item, norm normalize.Result, verdict classify.Verdict, score float64) *models.SocialMediaPost {
	post := &models.SocialMediaPost{
		PlatformID:          in.platform.ID,
		PostID:              postID,
		AuthorUsername:      item.Author.Username,
		AuthorDisplayName:   item.Author.DisplayName,
		IsVerifiedAccount:   item.Author.Verified,
		AccountFollowers:    item.Author.Followers,
		Content:             item.Text,
		OriginalLanguage:    item.Language,
		PostedAt:            item.PostedAt,
		Hashtags:            models.StringList(norm.Hashtags),
		Mentions:            models.StringList(norm.Mentions),
		URLs:                models.StringList(norm.URLs),
		HasMedia:            len(item.MediaURLs) > 0 || len(item.MediaTypes) > 0,
		MediaURLs:           models.StringList(nonNil(item.MediaURLs)),
		MediaTypes:          models.StringList(nonNil(item.MediaTypes)),
		Likes:               item.Metrics.Likes,
		Shares:              item.Metrics.Shares,
		Comments:            item.Metrics.Comments,
		Views:               item.Metrics.Views,
		IsDisasterRelated:   verdict.IsDisasterRelated,
		DisasterConfidence:  verdict.DisasterConfidence,
		Sentiment:           verdict.Sentiment,
		SentimentConfidence: verdict.SentimentConfidence,
		CredibilityScore:    score,
		LastAnalyzed:        in.now().UTC(),
	}
	if post.PostedAt.IsZero() {
		post.PostedAt = post.LastAnalyzed
	}
	if len(item.Raw) > 0 {
		post.RawData = datatypes.JSON(item.Raw)
	}
	if norm.Location != nil {
		lat, lng := norm.Location.Latitude, norm.Location.Longitude
		post.Latitude, post.Longitude = &lat, &lng
	}
	return post
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
