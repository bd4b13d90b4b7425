// Package classify turns post text into disaster and sentiment verdicts
// using an external ML pipeline.
package classify

import (
	"context"
	"math"
	"strings"

	"github.com/sirupsen/logrus"
)

// Sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

// Verdict is the adapter output for one text.
type Verdict struct {
	IsDisasterRelated   bool    `json:"is_disaster_related"`
	DisasterConfidence  float64 `json:"disaster_confidence"`
	Sentiment           string  `json:"sentiment"`
	SentimentConfidence float64 `json:"sentiment_confidence"`
}

// Default is the verdict used when the pipeline gives nothing usable.
func Default() Verdict {
	return Verdict{Sentiment: SentimentNeutral}
}

// DisasterClassification is the disaster half of a pipeline result.
type DisasterClassification struct {
	IsDisaster bool    `json:"is_disaster"`
	Confidence float64 `json:"confidence"`
}

// SentimentAnalysis is the sentiment half of a pipeline result.
type SentimentAnalysis struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// Result is what a pipeline returns. Either half may be missing.
type Result struct {
	Disaster  *DisasterClassification `json:"disaster_classification"`
	Sentiment *SentimentAnalysis      `json:"sentiment_analysis"`
}

// Pipeline is the classification capability. A nil result with a nil
// error means the pipeline had nothing to say.
type Pipeline interface {
	Classify(ctx context.Context, text string) (*Result, error)
}

// Adapter calls a Pipeline once per text and never fails.
type Adapter struct {
	pipeline Pipeline
}

// NewAdapter wraps p.
func NewAdapter(p Pipeline) *Adapter {
	return &Adapter{pipeline: p}
}

// Classify returns the verdict for text. Pipeline errors and empty results
// yield Default(); confidences are clamped to [0,1].
func (a *Adapter) Classify(ctx context.Context, text string) Verdict {
	v := Default()
	if a == nil || a.pipeline == nil {
		return v
	}

	res, err := a.pipeline.Classify(ctx, text)
	if err != nil {
		logrus.WithError(err).Warn("Classification failed, treating text as not disaster-related")
		return v
	}
	if res == nil {
		return v
	}

	if d := res.Disaster; d != nil {
		v.IsDisasterRelated = d.IsDisaster
		v.DisasterConfidence = clamp(d.Confidence)
	}
	if s := res.Sentiment; s != nil {
		if label := strings.ToLower(strings.TrimSpace(s.Sentiment)); label != "" {
			v.Sentiment = label
		}
		v.SentimentConfidence = clamp(s.Confidence)
	}
	return v
}

func clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
