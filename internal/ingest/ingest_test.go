package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/oceanwatch/hazard-monitor/internal/classify"
	"github.com/oceanwatch/hazard-monitor/internal/credibility"
	"github.com/oceanwatch/hazard-monitor/internal/models"
	"github.com/oceanwatch/hazard-monitor/internal/normalize"
	"github.com/oceanwatch/hazard-monitor/internal/repo"
	"github.com/oceanwatch/hazard-monitor/internal/sources"
	"github.com/oceanwatch/hazard-monitor/internal/usage"
)

// MockSource is a mock implementation of sources.Source
type MockSource struct {
	mock.Mock
}

func (m *MockSource) GetName() string { return "twitter" }

func (m *MockSource) IsEnabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockSource) Fetch(ctx context.Context, unit string, limit int, obs sources.Observer) ([]sources.Item, error) {
	args := m.Called(ctx, unit, limit, obs)
	items, _ := args.Get(0).([]sources.Item)
	return items, args.Error(1)
}

// MockEnrichingSource is a MockSource that also implements sources.Enricher
type MockEnrichingSource struct {
	MockSource
}

func (m *MockEnrichingSource) Enrich(ctx context.Context, item *sources.Item, obs sources.Observer) {
	m.Called(ctx, item, obs)
}

// MockClassifier is a mock implementation of Classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, text string) classify.Verdict {
	args := m.Called(ctx, text)
	return args.Get(0).(classify.Verdict)
}

// MockArchive is a mock implementation of storage.Archive
type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) Store(ctx context.Context, name string, data []byte) error {
	args := m.Called(ctx, name, data)
	return args.Error(0)
}

func (m *MockArchive) List(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	return args.Get(0).([]string), args.Error(1)
}

// MockNotifier is a mock implementation of notifications.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendAlert(ctx context.Context, alert *models.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockNotifier) Enabled() bool { return true }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := repo.OpenSQLite(filepath.Join(t.TempDir(), "ingest.db"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, repo.AutoMigrate(db))
	return db
}

func testOptions(units ...string) Options {
	return Options{
		Platform:    models.PlatformTwitter,
		APIEndpoint: "https://api.twitter.com/2/",
		RateLimit:   300,
		Units:       units,
		Limit:       50,
		Credibility: credibility.TwitterTable(),
		Threshold:   0.3,
	}
}

func tsunamiItem() sources.Item {
	return sources.Item{
		PostID:   "abc",
		Text:     "Tsunami warning issued for coast! #tsunami #emergency",
		Language: "en",
		PostedAt: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Author:   sources.Author{Username: "coastguard", Verified: true, Followers: 150000},
		Metrics:  sources.Metrics{Likes: 40, Shares: 5, Comments: 2},
		Raw:      []byte(`{"id":"abc","text":"Tsunami warning issued for coast! #tsunami #emergency"}`),
	}
}

func disaster(confidence float64) classify.Verdict {
	return classify.Verdict{IsDisasterRelated: true, DisasterConfidence: confidence, Sentiment: "negative", SentimentConfidence: 0.7}
}

func TestFairShare(t *testing.T) {
	tests := []struct {
		total, n, expected int
	}{
		{500, 10, 50},
		{500, 3, 166},
		{5, 10, 1},
		{100, 0, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, FairShare(tt.total, tt.n))
	}
}

func TestNewIngestor_EnsuresPlatformOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	first, err := NewIngestor(ctx, db, &MockSource{}, &MockClassifier{}, nil, testOptions("tsunami"))
	require.NoError(t, err)
	second, err := NewIngestor(ctx, db, &MockSource{}, &MockClassifier{}, nil, testOptions("tsunami"))
	require.NoError(t, err)

	assert.Equal(t, first.Platform().ID, second.Platform().ID)
	assert.Equal(t, models.PlatformTwitter, first.Platform().Name)
}

func TestNewIngestor_PlatformFailureIsFatal(t *testing.T) {
	db := newTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	_, err = NewIngestor(context.Background(), db, &MockSource{}, &MockClassifier{}, nil, testOptions("tsunami"))
	assert.Error(t, err)
}

func TestIngestor_TsunamiScenarioIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	source := &MockSource{}
	source.On("IsEnabled").Return(true)
	source.On("Fetch", mock.Anything, "tsunami", 50, mock.Anything).Return([]sources.Item{tsunamiItem()}, nil)

	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, "Tsunami warning issued for coast! #tsunami #emergency").Return(disaster(0.8)).Once()

	in, err := NewIngestor(ctx, db, source, classifier, usage.NewTracker(db), testOptions("tsunami"))
	require.NoError(t, err)

	savedBefore := testutil.ToFloat64(itemsTotal.WithLabelValues("twitter", string(OutcomeSaved)))

	res, saved := in.Run(ctx)
	assert.Equal(t, 1, res.Units)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.Saved)
	require.Len(t, saved, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(itemsTotal.WithLabelValues("twitter", string(OutcomeSaved)))-savedBefore)

	posts, err := repo.ListPosts(ctx, db, repo.PostFilter{PlatformID: in.Platform().ID})
	require.NoError(t, err)
	require.Len(t, posts, 1)
	post := posts[0]
	assert.Equal(t, "abc", post.PostID)
	assert.Equal(t, []string{"tsunami", "emergency"}, []string(post.Hashtags))
	assert.Equal(t, []string{}, []string(post.Mentions))
	assert.InDelta(t, 0.8, post.DisasterConfidence, 1e-9)
	assert.True(t, post.IsDisasterRelated)
	assert.Equal(t, "negative", post.Sentiment)
	// 0.5 base + 0.2 verified + 0.15 followers + 0.05 engagement
	assert.InDelta(t, 0.9, post.CredibilityScore, 1e-9)
	assert.Equal(t, "coastguard", post.AuthorUsername)
	assert.Equal(t, 5, post.Shares)
	assert.False(t, post.HasMedia)
	assert.Nil(t, post.Latitude)
	assert.JSONEq(t, string(tsunamiItem().Raw), string(post.RawData))

	// Same id again: no new record and no re-analysis.
	res, saved = in.Run(ctx)
	assert.Equal(t, 0, res.Saved)
	assert.Equal(t, 1, res.Duplicates)
	assert.Empty(t, saved)

	n, err := repo.CountPosts(ctx, db, in.Platform().ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	classifier.AssertExpectations(t)

	// One per-item observation per candidate, both successful.
	rows, err := repo.ListUsage(ctx, db, in.Platform().ID, "")
	require.NoError(t, err)
	requests, successful, retrieved := 0, 0, 0
	for _, r := range rows {
		assert.Equal(t, "process_twitter", r.Endpoint)
		requests += r.RequestsMade
		successful += r.SuccessfulRequests
		retrieved += r.DataRetrieved
	}
	assert.Equal(t, 2, requests)
	assert.Equal(t, 2, successful)
	assert.Equal(t, 1, retrieved)
}

func TestIngestor_EnrichesOnlyNewAdmittedItems(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	sunset := sources.Item{PostID: "m2", Text: "Sunset over the bay", PostedAt: time.Now().UTC()}
	source := &MockEnrichingSource{}
	source.On("IsEnabled").Return(true)
	source.On("Fetch", mock.Anything, "me", 50, mock.Anything).Return([]sources.Item{tsunamiItem(), sunset}, nil)
	source.On("Enrich", mock.Anything, mock.MatchedBy(func(it *sources.Item) bool { return it.PostID == "abc" }), mock.Anything).
		Run(func(args mock.Arguments) {
			args.Get(1).(*sources.Item).Metrics = sources.Metrics{Likes: 500, Shares: 7}
		}).Once()

	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, tsunamiItem().Text).Return(disaster(0.8)).Once()
	classifier.On("Classify", mock.Anything, sunset.Text).Return(classify.Default())

	in, err := NewIngestor(ctx, db, source, classifier, nil, testOptions("me"))
	require.NoError(t, err)

	res, saved := in.Run(ctx)
	assert.Equal(t, 1, res.Saved)
	assert.Equal(t, 1, res.Rejected)
	require.Len(t, saved, 1)
	assert.Equal(t, 7, saved[0].Shares)
	// 0.5 base + 0.2 verified + 0.15 followers + 0.1 enriched engagement
	assert.InDelta(t, 0.95, saved[0].CredibilityScore, 1e-9)

	// Second run: the stored post is a duplicate and is not enriched again.
	res, _ = in.Run(ctx)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, 1, res.Rejected)

	source.AssertNumberOfCalls(t, "Enrich", 1)
	classifier.AssertExpectations(t)
}

func TestIngestor_GateLaw(t *testing.T) {
	tests := []struct {
		name    string
		verdict classify.Verdict
		saved   bool
	}{
		{name: "Low confidence", verdict: disaster(0.2), saved: false},
		{name: "Just under threshold", verdict: disaster(0.299), saved: false},
		{name: "Not disaster related", verdict: classify.Verdict{IsDisasterRelated: false, DisasterConfidence: 0.95, Sentiment: "neutral"}, saved: false},
		{name: "Classifier gave nothing", verdict: classify.Default(), saved: false},
		{name: "At threshold", verdict: disaster(0.3), saved: true},
		{name: "High confidence", verdict: disaster(0.8), saved: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newTestDB(t)
			ctx := context.Background()

			classifier := &MockClassifier{}
			classifier.On("Classify", mock.Anything, mock.Anything).Return(tt.verdict)

			in, err := NewIngestor(ctx, db, &MockSource{}, classifier, nil, testOptions())
			require.NoError(t, err)

			outcome, post := in.Process(ctx, tsunamiItem())
			n, err := repo.CountPosts(ctx, db, in.Platform().ID)
			require.NoError(t, err)

			if tt.saved {
				assert.Equal(t, OutcomeSaved, outcome)
				assert.NotNil(t, post)
				assert.EqualValues(t, 1, n)
			} else {
				assert.Equal(t, OutcomeRejected, outcome)
				assert.Nil(t, post)
				assert.EqualValues(t, 0, n)
			}
		})
	}
}

func TestIngestor_SkipsItemsWithoutText(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	classifier := &MockClassifier{}
	in, err := NewIngestor(ctx, db, &MockSource{}, classifier, nil, testOptions())
	require.NoError(t, err)

	item := tsunamiItem()
	item.Text = "   "
	outcome, post := in.Process(ctx, item)
	assert.Equal(t, OutcomeNoText, outcome)
	assert.Nil(t, post)
	classifier.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)

	item.PostID = ""
	outcome, _ = in.Process(ctx, item)
	assert.Equal(t, OutcomeError, outcome)
}

func TestIngestor_StructuredEntitiesAndGeo(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(disaster(0.9))
	in, err := NewIngestor(ctx, db, &MockSource{}, classifier, nil, testOptions())
	require.NoError(t, err)

	item := tsunamiItem()
	item.Entities = &normalize.Entities{
		Hashtags: []normalize.Hashtag{{Tag: "Tsunami"}},
		Mentions: []normalize.Mention{{Username: "ndma"}},
		URLs:     []normalize.URL{{URL: "https://t.co/x", ExpandedURL: "https://example.org/alert"}},
	}
	item.Geo = &normalize.Geo{Coordinates: &normalize.Coordinates{Type: "Point", Coordinates: []float64{80.2707, 13.0827}}}
	item.MediaURLs = []string{"https://pbs.example/1.jpg"}
	item.MediaTypes = []string{"photo"}

	outcome, post := in.Process(ctx, item)
	require.Equal(t, OutcomeSaved, outcome)
	assert.Equal(t, []string{"Tsunami"}, []string(post.Hashtags), "structured entities win over text matching")
	assert.Equal(t, []string{"ndma"}, []string(post.Mentions))
	assert.Equal(t, []string{"https://example.org/alert"}, []string(post.URLs))
	require.NotNil(t, post.Latitude)
	assert.InDelta(t, 13.0827, *post.Latitude, 1e-9)
	assert.InDelta(t, 80.2707, *post.Longitude, 1e-9)
	assert.True(t, post.HasMedia)
}

func TestIngestor_FailedUnitIsAbandoned(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	source := &MockSource{}
	source.On("IsEnabled").Return(true)
	source.On("Fetch", mock.Anything, "flood", 25, mock.Anything).Return(nil, sources.ErrRateLimited)
	source.On("Fetch", mock.Anything, "tsunami", 25, mock.Anything).Return([]sources.Item{tsunamiItem()}, nil)

	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(disaster(0.8))

	opts := testOptions("flood", "tsunami")
	opts.Limit = 25
	opts.Pause = time.Millisecond
	in, err := NewIngestor(ctx, db, source, classifier, nil, opts)
	require.NoError(t, err)

	res, _ := in.Run(ctx)
	assert.Equal(t, 2, res.Units)
	assert.Equal(t, 1, res.UnitsFailed)
	assert.Equal(t, 1, res.Saved)
	source.AssertExpectations(t)
}

func TestIngestor_PersistenceErrorContinues(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(disaster(0.8))
	in, err := NewIngestor(ctx, db, &MockSource{}, classifier, nil, testOptions())
	require.NoError(t, err)

	require.NoError(t, db.Migrator().DropTable(&models.SocialMediaPost{}))
	outcome, post := in.Process(ctx, tsunamiItem())
	assert.Equal(t, OutcomeError, outcome)
	assert.Nil(t, post)
}

func TestIngestor_DisabledSource(t *testing.T) {
	db := newTestDB(t)
	source := &MockSource{}
	source.On("IsEnabled").Return(false)

	in, err := NewIngestor(context.Background(), db, source, &MockClassifier{}, nil, testOptions("tsunami"))
	require.NoError(t, err)

	res, saved := in.Run(context.Background())
	assert.Equal(t, 0, res.Units)
	assert.Nil(t, saved)
	source.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestor_PauseHonoursCancellation(t *testing.T) {
	db := newTestDB(t)
	source := &MockSource{}
	source.On("IsEnabled").Return(true)
	source.On("Fetch", mock.Anything, "flood", 50, mock.Anything).Return([]sources.Item{}, nil)

	opts := testOptions("flood", "tsunami")
	opts.Pause = time.Hour
	in, err := NewIngestor(context.Background(), db, source, &MockClassifier{}, nil, opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res, _ := in.Run(ctx)
	assert.Less(t, time.Since(start), time.Minute)
	assert.True(t, res.Canceled)
	assert.Equal(t, 1, res.Units)
	source.AssertNotCalled(t, "Fetch", mock.Anything, "tsunami", mock.Anything, mock.Anything)
}

func newTestService(t *testing.T, db *gorm.DB, archive *MockArchive, notifier *MockNotifier, confidence float64) *Service {
	t.Helper()
	source := &MockSource{}
	source.On("IsEnabled").Return(true)
	source.On("Fetch", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return([]sources.Item{tsunamiItem()}, nil)

	classifier := &MockClassifier{}
	classifier.On("Classify", mock.Anything, mock.Anything).Return(disaster(confidence))

	in, err := NewIngestor(context.Background(), db, source, classifier, nil, testOptions("tsunami"))
	require.NoError(t, err)
	return NewService([]*Ingestor{in}, archive, notifier, 0.8)
}

func TestService_RunArchivesAndAlerts(t *testing.T) {
	db := newTestDB(t)
	archive := &MockArchive{}
	archive.On("Store", mock.Anything, mock.MatchedBy(func(name string) bool {
		return strings.HasPrefix(name, "ingest/twitter/") && strings.HasSuffix(name, ".json")
	}), mock.Anything).Return(nil).Once()

	notifier := &MockNotifier{}
	notifier.On("SendAlert", mock.Anything, mock.MatchedBy(func(a *models.Alert) bool {
		return a.Platform == models.PlatformTwitter && len(a.Posts) == 1 && a.Type == "critical"
	})).Return(nil).Once()

	svc := newTestService(t, db, archive, notifier, 0.95)
	assert.Equal(t, []string{"twitter"}, svc.Platforms())

	res, err := svc.Run(context.Background(), "Twitter")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)

	archive.AssertExpectations(t)
	notifier.AssertExpectations(t)

	status := svc.Status()
	assert.Equal(t, 1, status.Runs)
	assert.Equal(t, 1, status.TotalSaved)
	assert.Equal(t, 1, status.Platforms["twitter"].Saved)
	assert.Empty(t, status.Running)

	// Nothing new on the second run: no archive, no alert.
	results := svc.RunAll(context.Background())
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].Duplicates)
	archive.AssertNumberOfCalls(t, "Store", 1)
	notifier.AssertNumberOfCalls(t, "SendAlert", 1)
}

func TestService_BelowAlertThreshold(t *testing.T) {
	db := newTestDB(t)
	archive := &MockArchive{}
	archive.On("Store", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("blob unavailable"))
	notifier := &MockNotifier{}

	svc := newTestService(t, db, archive, notifier, 0.5)
	res, err := svc.Run(context.Background(), "twitter")
	require.NoError(t, err, "archive failures never fail the run")
	assert.Equal(t, 1, res.Saved)
	notifier.AssertNotCalled(t, "SendAlert", mock.Anything, mock.Anything)
}

func TestService_RunErrors(t *testing.T) {
	db := newTestDB(t)
	svc := newTestService(t, db, nil, nil, 0.8)

	_, err := svc.Run(context.Background(), "myspace")
	assert.ErrorIs(t, err, ErrUnknownPlatform)

	require.True(t, svc.begin("twitter"))
	assert.True(t, svc.IsRunning("Twitter"))
	assert.Equal(t, []string{"twitter"}, svc.Status().Running)

	_, err = svc.Run(context.Background(), "twitter")
	assert.ErrorIs(t, err, ErrRunInProgress)
	assert.Empty(t, svc.RunAll(context.Background()))

	svc.end("twitter")
	assert.False(t, svc.IsRunning("twitter"))
}

func TestBuildAlert(t *testing.T) {
	posts := []models.SocialMediaPost{
		{PostID: "a", DisasterConfidence: 0.85},
		{PostID: "b", DisasterConfidence: 0.4},
	}

	alert := buildAlert(models.PlatformInstagram, posts, 0.8)
	require.NotNil(t, alert)
	assert.Equal(t, "urgent", alert.Type)
	require.Len(t, alert.Posts, 1)
	assert.Equal(t, "a", alert.Posts[0].PostID)
	assert.NotEmpty(t, alert.ID)

	assert.Nil(t, buildAlert(models.PlatformInstagram, posts, 0.9))
}
