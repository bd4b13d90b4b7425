package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/oceanwatch/hazard-monitor/internal/normalize"
)

// Usage endpoint labels for Twitter calls
const (
	EndpointSearchRecent = "search_recent_tweets"
	EndpointTrendsPlace  = "trends_place"
)

const (
	twitterPageMin = 10
	twitterPageMax = 100
)

// disasterTrendTerms select trending topics worth surfacing.
var disasterTrendTerms = []string{
	"hurricane", "tsunami", "flood", "storm", "earthquake",
	"disaster", "emergency", "evacuation", "rescue",
}

// TwitterOptions configures a TwitterSource.
type TwitterOptions struct {
	BearerToken  string
	BaseURL      string // API v2 root, e.g. https://api.twitter.com/2
	TrendsURL    string // API v1.1 root, e.g. https://api.twitter.com/1.1
	SearchWindow time.Duration
}

// TwitterSource searches recent tweets through the Twitter API v2.
type TwitterSource struct {
	bearerToken  string
	baseURL      string
	trendsURL    string
	searchWindow time.Duration
	client       *resty.Client
	now          func() time.Time
}

type twitterSearchResponse struct {
	Data     []json.RawMessage `json:"data"`
	Includes struct {
		Users []twitterUser  `json:"users"`
		Media []twitterMedia `json:"media"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type twitterTweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	AuthorID      string `json:"author_id"`
	CreatedAt     string `json:"created_at"`
	Lang          string `json:"lang"`
	PublicMetrics struct {
		RetweetCount    int `json:"retweet_count"`
		LikeCount       int `json:"like_count"`
		ReplyCount      int `json:"reply_count"`
		ImpressionCount int `json:"impression_count"`
	} `json:"public_metrics"`
	Entities         *normalize.Entities `json:"entities"`
	Geo              *normalize.Geo      `json:"geo"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
	Attachments struct {
		MediaKeys []string `json:"media_keys"`
	} `json:"attachments"`
}

type twitterUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Name          string `json:"name"`
	Verified      bool   `json:"verified"`
	PublicMetrics struct {
		FollowersCount int `json:"followers_count"`
	} `json:"public_metrics"`
}

type twitterMedia struct {
	MediaKey        string `json:"media_key"`
	Type            string `json:"type"`
	URL             string `json:"url"`
	PreviewImageURL string `json:"preview_image_url"`
}

// Trend is a trending topic.
type Trend struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	TweetVolume int    `json:"tweet_volume"`
}

// NewTwitterSource creates a new Twitter source
func NewTwitterSource(opts TwitterOptions) *TwitterSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.twitter.com/2"
	}
	if opts.TrendsURL == "" {
		opts.TrendsURL = "https://api.twitter.com/1.1"
	}
	if opts.SearchWindow <= 0 {
		opts.SearchWindow = 24 * time.Hour
	}
	return &TwitterSource{
		bearerToken:  opts.BearerToken,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		trendsURL:    strings.TrimRight(opts.TrendsURL, "/"),
		searchWindow: opts.SearchWindow,
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "Hazard-Monitor/1.0"),
		now: time.Now,
	}
}

func (t *TwitterSource) GetName() string {
	return "twitter"
}

func (t *TwitterSource) IsEnabled() bool {
	return t.bearerToken != ""
}

// SearchQuery is the query sent for a keyword: originals only, English.
func SearchQuery(keyword string) string {
	return keyword + " -is:retweet lang:en"
}

// Fetch returns up to limit original tweets matching keyword within the
// search window, following pagination tokens. Each page request is one
// observation.
func (t *TwitterSource) Fetch(ctx context.Context, keyword string, limit int, obs Observer) ([]Item, error) {
	if !t.IsEnabled() {
		return nil, ErrDisabled
	}
	if obs == nil {
		obs = NopObserver{}
	}

	startTime := t.now().UTC().Add(-t.searchWindow).Format(time.RFC3339)

	var items []Item
	fetched := 0
	nextToken := ""
	for fetched < limit {
		page, err := t.searchPage(ctx, keyword, startTime, pageSize(limit-fetched), nextToken, obs)
		if err != nil {
			return nil, err
		}

		fetched += len(page.Data)
		items = append(items, t.parsePage(page)...)

		nextToken = page.Meta.NextToken
		if nextToken == "" || len(page.Data) == 0 {
			break
		}
	}

	if len(items) > limit {
		items = items[:limit]
	}
	logrus.WithFields(logrus.Fields{"platform": "twitter", "unit": keyword}).
		Debugf("Twitter returned %d tweets (%d after retweet filter)", fetched, len(items))
	return items, nil
}

func pageSize(remaining int) int {
	if remaining < twitterPageMin {
		return twitterPageMin
	}
	if remaining > twitterPageMax {
		return twitterPageMax
	}
	return remaining
}

func (t *TwitterSource) searchPage(ctx context.Context, keyword, startTime string, size int, nextToken string, obs Observer) (*twitterSearchResponse, error) {
	params := map[string]string{
		"query":        SearchQuery(keyword),
		"start_time":   startTime,
		"max_results":  strconv.Itoa(size),
		"tweet.fields": "author_id,created_at,public_metrics,lang,geo,context_annotations,entities,referenced_tweets,attachments",
		"user.fields":  "username,name,verified,public_metrics",
		"media.fields": "type,url,preview_image_url",
		"expansions":   "author_id,geo.place_id,attachments.media_keys",
	}
	if nextToken != "" {
		params["next_token"] = nextToken
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetAuthToken(t.bearerToken).
		SetQueryParams(params).
		Get(t.baseURL + "/tweets/search/recent")
	if err != nil {
		obs.Observe(ctx, EndpointSearchRecent, 0, OutcomeFailed)
		return nil, err
	}

	// Handle rate limiting (429) - fail fast, the caller moves to the next keyword
	if resp.StatusCode() == http.StatusTooManyRequests {
		obs.Observe(ctx, EndpointSearchRecent, 0, OutcomeRateLimited)
		fields := logrus.Fields{"platform": "twitter", "unit": keyword}
		if reset := resp.Header().Get("x-rate-limit-reset"); reset != "" {
			fields["rate_limit_reset"] = reset
		}
		logrus.WithFields(fields).Warn("Twitter API rate limit hit")
		return nil, ErrRateLimited
	}

	if resp.StatusCode() != http.StatusOK {
		obs.Observe(ctx, EndpointSearchRecent, 0, OutcomeFailed)
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var page twitterSearchResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		obs.Observe(ctx, EndpointSearchRecent, 0, OutcomeFailed)
		return nil, fmt.Errorf("failed to parse Twitter response: %w", err)
	}

	obs.Observe(ctx, EndpointSearchRecent, len(page.Data), OutcomeSuccess)
	return &page, nil
}

func (t *TwitterSource) parsePage(page *twitterSearchResponse) []Item {
	users := make(map[string]twitterUser, len(page.Includes.Users))
	for _, u := range page.Includes.Users {
		users[u.ID] = u
	}
	media := make(map[string]twitterMedia, len(page.Includes.Media))
	for _, m := range page.Includes.Media {
		media[m.MediaKey] = m
	}

	items := make([]Item, 0, len(page.Data))
	for _, raw := range page.Data {
		var tweet twitterTweet
		if err := json.Unmarshal(raw, &tweet); err != nil || tweet.ID == "" {
			logrus.WithError(err).Debug("Skipping undecodable tweet")
			continue
		}
		// Skip retweets to avoid duplicates
		if isRetweet(tweet) {
			continue
		}

		postedAt, err := time.Parse(time.RFC3339, tweet.CreatedAt)
		if err != nil {
			postedAt = t.now().UTC()
		}

		item := Item{
			PostID:   tweet.ID,
			Text:     tweet.Text,
			Language: tweet.Lang,
			PostedAt: postedAt,
			Metrics: Metrics{
				Likes:    tweet.PublicMetrics.LikeCount,
				Shares:   tweet.PublicMetrics.RetweetCount,
				Comments: tweet.PublicMetrics.ReplyCount,
				Views:    tweet.PublicMetrics.ImpressionCount,
			},
			Entities: tweet.Entities,
			Geo:      tweet.Geo,
			Raw:      raw,
		}
		if u, ok := users[tweet.AuthorID]; ok {
			item.Author = Author{
				Username:    u.Username,
				DisplayName: u.Name,
				Verified:    u.Verified,
				Followers:   u.PublicMetrics.FollowersCount,
			}
		}
		for _, key := range tweet.Attachments.MediaKeys {
			m, ok := media[key]
			if !ok {
				continue
			}
			if link := firstNonEmpty(m.URL, m.PreviewImageURL); link != "" {
				item.MediaURLs = append(item.MediaURLs, link)
			}
			item.MediaTypes = append(item.MediaTypes, m.Type)
		}

		items = append(items, item)
	}
	return items
}

func isRetweet(tweet twitterTweet) bool {
	for _, ref := range tweet.ReferencedTweets {
		if ref.Type == "retweeted" {
			return true
		}
	}
	return false
}

// Trends returns the trending topics for a WOEID that mention a disaster
// term.
func (t *TwitterSource) Trends(ctx context.Context, woeid int, obs Observer) ([]Trend, error) {
	if !t.IsEnabled() {
		return nil, ErrDisabled
	}
	if obs == nil {
		obs = NopObserver{}
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetAuthToken(t.bearerToken).
		SetQueryParam("id", strconv.Itoa(woeid)).
		Get(t.trendsURL + "/trends/place.json")
	if err != nil {
		obs.Observe(ctx, EndpointTrendsPlace, 0, OutcomeFailed)
		return nil, err
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		obs.Observe(ctx, EndpointTrendsPlace, 0, OutcomeRateLimited)
		return nil, ErrRateLimited
	}
	if resp.StatusCode() != http.StatusOK {
		obs.Observe(ctx, EndpointTrendsPlace, 0, OutcomeFailed)
		return nil, &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	var places []struct {
		Trends []Trend `json:"trends"`
	}
	if err := json.Unmarshal(resp.Body(), &places); err != nil {
		obs.Observe(ctx, EndpointTrendsPlace, 0, OutcomeFailed)
		return nil, fmt.Errorf("failed to parse Twitter trends: %w", err)
	}

	out := []Trend{}
	for _, place := range places {
		for _, trend := range place.Trends {
			if isDisasterTrend(trend.Name) {
				out = append(out, trend)
			}
		}
	}
	obs.Observe(ctx, EndpointTrendsPlace, len(out), OutcomeSuccess)
	return out, nil
}

func isDisasterTrend(name string) bool {
	low := strings.ToLower(name)
	for _, term := range disasterTrendTerms {
		if strings.Contains(low, term) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
