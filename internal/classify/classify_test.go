package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) Classify(ctx context.Context, text string) (*Result, error) {
	args := m.Called(ctx, text)
	res, _ := args.Get(0).(*Result)
	return res, args.Error(1)
}

func TestAdapter_Classify(t *testing.T) {
	tests := []struct {
		name     string
		result   *Result
		err      error
		expected Verdict
	}{
		{
			name: "Full result",
			result: &Result{
				Disaster:  &DisasterClassification{IsDisaster: true, Confidence: 0.8},
				Sentiment: &SentimentAnalysis{Sentiment: "Negative", Confidence: 0.7},
			},
			expected: Verdict{IsDisasterRelated: true, DisasterConfidence: 0.8, Sentiment: "negative", SentimentConfidence: 0.7},
		},
		{
			name:     "Pipeline error",
			err:      errors.New("connection refused"),
			expected: Default(),
		},
		{
			name:     "Empty result",
			expected: Default(),
		},
		{
			name:     "Only disaster half",
			result:   &Result{Disaster: &DisasterClassification{IsDisaster: true, Confidence: 0.4}},
			expected: Verdict{IsDisasterRelated: true, DisasterConfidence: 0.4, Sentiment: SentimentNeutral},
		},
		{
			name: "Out of range confidences are clamped",
			result: &Result{
				Disaster:  &DisasterClassification{IsDisaster: true, Confidence: 1.7},
				Sentiment: &SentimentAnalysis{Sentiment: "", Confidence: -0.2},
			},
			expected: Verdict{IsDisasterRelated: true, DisasterConfidence: 1, Sentiment: SentimentNeutral, SentimentConfidence: 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pipeline := &MockPipeline{}
			pipeline.On("Classify", mock.Anything, "some text").Return(tt.result, tt.err).Once()

			v := NewAdapter(pipeline).Classify(context.Background(), "some text")
			assert.Equal(t, tt.expected, v)
			pipeline.AssertExpectations(t)
		})
	}
}

func TestAdapter_NilPipeline(t *testing.T) {
	assert.Equal(t, Default(), NewAdapter(nil).Classify(context.Background(), "tsunami"))
	assert.Equal(t, Verdict{Sentiment: "neutral"}, Default())
}

func TestHTTPPipeline_Classify(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "High waves at Marina", body["text"])

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"disaster_classification": {"is_disaster": true, "confidence": 0.91},
			"sentiment_analysis": {"sentiment": "negative", "confidence": 0.66}}`)
	}))
	defer server.Close()

	res, err := NewHTTPPipeline(server.URL, time.Second).Classify(context.Background(), "High waves at Marina")
	require.NoError(t, err)
	require.NotNil(t, res.Disaster)
	assert.True(t, res.Disaster.IsDisaster)
	assert.InDelta(t, 0.91, res.Disaster.Confidence, 1e-9)
	require.NotNil(t, res.Sentiment)
	assert.Equal(t, "negative", res.Sentiment.Sentiment)
}

func TestHTTPPipeline_FailureBecomesDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	pipeline := NewHTTPPipeline(server.URL, time.Second)
	_, err := pipeline.Classify(context.Background(), "flood")
	assert.Error(t, err)

	assert.Equal(t, Default(), NewAdapter(pipeline).Classify(context.Background(), "flood"))
}

func TestKeywordPipeline_Classify(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		isDisaster    bool
		minConfidence float64
		sentiment     string
	}{
		{
			name:          "Tsunami warning",
			text:          "Tsunami warning issued for coast! #tsunami #emergency",
			isDisaster:    true,
			minConfidence: 0.5,
			sentiment:     SentimentNegative,
		},
		{
			name:      "Unrelated",
			text:      "Beautiful sunset at the beach today",
			sentiment: SentimentNeutral,
		},
		{
			name:      "Off topic mention",
			text:      "The new tsunami movie trailer is out",
			sentiment: SentimentNeutral,
		},
		{
			name:          "Rescue update",
			text:          "All fishermen rescued and safe after the cyclone",
			isDisaster:    true,
			minConfidence: 0.4,
			sentiment:     SentimentPositive,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := KeywordPipeline{}.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.isDisaster, res.Disaster.IsDisaster)
			assert.GreaterOrEqual(t, res.Disaster.Confidence, tt.minConfidence)
			assert.LessOrEqual(t, res.Disaster.Confidence, 1.0)
			assert.Equal(t, tt.sentiment, res.Sentiment.Sentiment)
		})
	}
}

func TestKeywordPipeline_WholeTerms(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		isDisaster bool
		confidence float64
	}{
		{name: "Substring is not a term", text: "Team brainstorm about the flyer"},
		{name: "Overlapping terms count once", text: "Coastal flooding along the promenade", isDisaster: true, confidence: 0.4},
		{name: "Plural", text: "Storms battering the harbour", isDisaster: true, confidence: 0.4},
		{name: "Repeated term counts once", text: "tsunami tsunami tsunami", isDisaster: true, confidence: 0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := KeywordPipeline{}.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			require.NotNil(t, res)
			assert.Equal(t, tt.isDisaster, res.Disaster.IsDisaster)
			assert.InDelta(t, tt.confidence, res.Disaster.Confidence, 1e-9)
		})
	}
}

func TestKeywordPipeline_EmptyText(t *testing.T) {
	res, err := KeywordPipeline{}.Classify(context.Background(), "   ")
	require.NoError(t, err)
	assert.Nil(t, res)
}
