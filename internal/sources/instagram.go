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
)

// Usage endpoint labels for Instagram calls
const (
	EndpointUserProfile   = "user_profile"
	EndpointUserMedia     = "user_media"
	EndpointMediaInsights = "media_insights"
)

const instagramPageMax = 25

// InstagramOptions configures an InstagramSource.
type InstagramOptions struct {
	AccessToken string
	BaseURL     string // Graph API root, e.g. https://graph.instagram.com
}

// InstagramSource reads recent media of Instagram accounts through the
// Graph API.
type InstagramSource struct {
	accessToken string
	baseURL     string
	client      *resty.Client
	now         func() time.Time
}

type instagramProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	AccountType string `json:"account_type"`
	MediaCount  int    `json:"media_count"`
}

type instagramMediaPage struct {
	Data   []json.RawMessage `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

type instagramMedia struct {
	ID           string `json:"id"`
	Caption      string `json:"caption"`
	MediaType    string `json:"media_type"`
	MediaURL     string `json:"media_url"`
	Permalink    string `json:"permalink"`
	ThumbnailURL string `json:"thumbnail_url"`
	Timestamp    string `json:"timestamp"`
}

type instagramInsights struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value int `json:"value"`
		} `json:"values"`
	} `json:"data"`
}

// InstagramStatus is the result of an API status probe.
type InstagramStatus struct {
	Status      string `json:"status"`
	UserID      string `json:"user_id,omitempty"`
	Username    string `json:"username,omitempty"`
	AccountType string `json:"account_type,omitempty"`
	MediaCount  int    `json:"media_count,omitempty"`
	Message     string `json:"message,omitempty"`
}

// NewInstagramSource creates a new Instagram source
func NewInstagramSource(opts InstagramOptions) *InstagramSource {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://graph.instagram.com"
	}
	return &InstagramSource{
		accessToken: opts.AccessToken,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", "Hazard-Monitor/1.0"),
		now: time.Now,
	}
}

func (s *InstagramSource) GetName() string {
	return "instagram"
}

func (s *InstagramSource) IsEnabled() bool {
	return s.accessToken != ""
}

// Fetch returns up to limit recent media of account ("me" for the token
// owner). The unit is abandoned when the profile cannot be read. Items
// come back without engagement counters; see Enrich.
func (s *InstagramSource) Fetch(ctx context.Context, account string, limit int, obs Observer) ([]Item, error) {
	if !s.IsEnabled() {
		return nil, ErrDisabled
	}
	if obs == nil {
		obs = NopObserver{}
	}

	var profile instagramProfile
	if err := s.get(ctx, EndpointUserProfile, "/"+account, map[string]string{
		"fields": "id,username,account_type,media_count",
	}, &profile, obs, func(any) int { return 1 }); err != nil {
		return nil, fmt.Errorf("user profile %s: %w", account, err)
	}

	author := Author{
		Username:    profile.Username,
		DisplayName: profile.Username,
		Verified:    strings.EqualFold(profile.AccountType, "BUSINESS"),
	}

	var items []Item
	after := ""
	for len(items) < limit {
		size := limit - len(items)
		if size > instagramPageMax {
			size = instagramPageMax
		}
		params := map[string]string{
			"fields": "id,caption,media_type,media_url,permalink,thumbnail_url,timestamp",
			"limit":  strconv.Itoa(size),
		}
		if after != "" {
			params["after"] = after
		}

		var page instagramMediaPage
		if err := s.get(ctx, EndpointUserMedia, "/"+account+"/media", params, &page, obs, func(v any) int {
			return len(v.(*instagramMediaPage).Data)
		}); err != nil {
			return nil, fmt.Errorf("user media %s: %w", account, err)
		}

		for _, raw := range page.Data {
			if len(items) >= limit {
				break
			}
			var media instagramMedia
			if err := json.Unmarshal(raw, &media); err != nil || media.ID == "" {
				logrus.WithError(err).Debug("Skipping undecodable media")
				continue
			}
			items = append(items, s.toItem(media, raw, author))
		}

		after = page.Paging.Cursors.After
		if after == "" || page.Paging.Next == "" || len(page.Data) == 0 {
			break
		}
	}

	logrus.WithFields(logrus.Fields{"platform": "instagram", "unit": account}).
		Debugf("Instagram returned %d media", len(items))
	return items, nil
}

var _ Enricher = (*InstagramSource)(nil)

func (s *InstagramSource) toItem(media instagramMedia, raw json.RawMessage, author Author) Item {
	postedAt, err := time.Parse("2006-01-02T15:04:05-0700", media.Timestamp)
	if err != nil {
		if postedAt, err = time.Parse(time.RFC3339, media.Timestamp); err != nil {
			postedAt = s.now().UTC()
		}
	}

	item := Item{
		PostID:   media.ID,
		Text:     media.Caption,
		Language: "en",
		PostedAt: postedAt,
		Author:   author,
		Raw:      raw,
	}
	for _, link := range []string{media.MediaURL, media.ThumbnailURL} {
		if link != "" {
			item.MediaURLs = append(item.MediaURLs, link)
		}
	}
	if media.MediaType != "" {
		item.MediaTypes = append(item.MediaTypes, strings.ToLower(media.MediaType))
	}

	return item
}

// Enrich reads the media insights of item into its metrics. Insights are
// only available to business accounts, so a failure is logged and leaves
// the counters at zero.
func (s *InstagramSource) Enrich(ctx context.Context, item *Item, obs Observer) {
	if obs == nil {
		obs = NopObserver{}
	}
	insights, err := s.insights(ctx, item.PostID, obs)
	if err != nil {
		logrus.WithFields(logrus.Fields{"platform": "instagram", "post_id": item.PostID}).
			Debugf("Insights unavailable: %v", err)
		return
	}
	item.Metrics = Metrics{
		Likes: insights["engagement"],
		Views: insights["impressions"],
		Reach: insights["reach"],
	}
	if item.Metrics.Reach == 0 {
		item.Metrics.Reach = insights["impressions"]
	}
}

func (s *InstagramSource) insights(ctx context.Context, mediaID string, obs Observer) (map[string]int, error) {
	var resp instagramInsights
	if err := s.get(ctx, EndpointMediaInsights, "/"+mediaID+"/insights", map[string]string{
		"metric": "engagement,impressions,reach,saves",
	}, &resp, obs, func(v any) int { return len(v.(*instagramInsights).Data) }); err != nil {
		return nil, err
	}

	out := make(map[string]int, len(resp.Data))
	for _, metric := range resp.Data {
		if len(metric.Values) > 0 {
			out[metric.Name] = metric.Values[0].Value
		}
	}
	return out, nil
}

// Status probes the API with the token owner's profile.
func (s *InstagramSource) Status(ctx context.Context, obs Observer) InstagramStatus {
	if !s.IsEnabled() {
		return InstagramStatus{Status: "error", Message: ErrDisabled.Error()}
	}
	if obs == nil {
		obs = NopObserver{}
	}

	var profile instagramProfile
	if err := s.get(ctx, EndpointUserProfile, "/me", map[string]string{
		"fields": "id,username,account_type,media_count",
	}, &profile, obs, func(any) int { return 1 }); err != nil {
		return InstagramStatus{Status: "error", Message: err.Error()}
	}
	return InstagramStatus{
		Status:      "active",
		UserID:      profile.ID,
		Username:    profile.Username,
		AccountType: profile.AccountType,
		MediaCount:  profile.MediaCount,
	}
}

// get performs one Graph API call, decodes the body into out and records
// one observation. count reports the items retrieved from a decoded out.
func (s *InstagramSource) get(ctx context.Context, endpoint, path string, params map[string]string, out any, obs Observer, count func(any) int) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("access_token", s.accessToken).
		Get(s.baseURL + path)
	if err != nil {
		obs.Observe(ctx, endpoint, 0, OutcomeFailed)
		return err
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		obs.Observe(ctx, endpoint, 0, OutcomeRateLimited)
		logrus.WithFields(logrus.Fields{"platform": "instagram", "endpoint": endpoint}).Warn("Instagram API rate limit hit")
		return ErrRateLimited
	}

	if resp.StatusCode() != http.StatusOK {
		obs.Observe(ctx, endpoint, 0, OutcomeFailed)
		return &APIError{StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		obs.Observe(ctx, endpoint, 0, OutcomeFailed)
		return fmt.Errorf("failed to parse Instagram response: %w", err)
	}

	obs.Observe(ctx, endpoint, count(out), OutcomeSuccess)
	return nil
}
