package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// HTTPPipeline sends text to a remote ML service.
type HTTPPipeline struct {
	url    string
	client *resty.Client
}

// NewHTTPPipeline creates a pipeline posting to url.
func NewHTTPPipeline(url string, timeout time.Duration) *HTTPPipeline {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPPipeline{
		url: url,
		client: resty.New().
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json").
			SetHeader("User-Agent", "Hazard-Monitor/1.0"),
	}
}

// Classify posts {"text": text} and decodes the pipeline result.
func (p *HTTPPipeline) Classify(ctx context.Context, text string) (*Result, error) {
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"text": text}).
		Post(p.url)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	if len(resp.Body()) == 0 {
		return nil, nil
	}

	var res Result
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		return nil, fmt.Errorf("failed to parse classifier response: %w", err)
	}
	return &res, nil
}
