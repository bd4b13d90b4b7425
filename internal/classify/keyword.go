package classify

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// Hazard terms matched by the keyword pipeline
var hazardTerms = []string{
	"tsunami", "tidal wave", "hurricane", "typhoon", "cyclone", "storm surge",
	"coastal flooding", "flooding", "flood", "high waves", "rogue wave", "dangerous waves",
	"oil spill", "marine pollution", "red tide", "algae bloom", "coastal erosion",
	"beach erosion", "drowning", "water rescue", "shipwreck", "maritime accident",
	"evacuation", "evacuate", "earthquake", "storm", "emergency", "disaster",
}

// Terms that usually mean the text is about something else
var offTopicTerms = []string{
	"movie", "film", "trailer", "album", "song", "lyrics", "video game", "gameplay",
}

var (
	positiveWords = []string{"safe", "rescued", "relief", "recovered", "help", "thank", "support", "restored", "calm", "clear"}
	negativeWords = []string{"danger", "dead", "death", "destroyed", "damage", "panic", "fear", "injured", "missing", "warning", "trapped", "collapse"}
)

var (
	hazardPattern   = termPattern(hazardTerms)
	offTopicPattern = termPattern(offTopicTerms)
	positivePattern = termPattern(positiveWords)
	negativePattern = termPattern(negativeWords)
)

// termPattern matches whole terms with an optional plural s. Longer terms
// come first so that "coastal flooding" is not also read as "flooding".
func termPattern(terms []string) *regexp.Regexp {
	sorted := append([]string(nil), terms...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, len(sorted))
	for i, term := range sorted {
		quoted[i] = regexp.QuoteMeta(term)
	}
	return regexp.MustCompile(`\b(` + strings.Join(quoted, "|") + `)s?\b`)
}

// KeywordPipeline is an offline pipeline based on term matching. It is used
// when no ML service is configured.
type KeywordPipeline struct{}

// Classify never fails.
func (KeywordPipeline) Classify(_ context.Context, text string) (*Result, error) {
	content := strings.ToLower(text)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	matches := countTerms(content, hazardPattern)
	offTopic := countTerms(content, offTopicPattern)

	disaster := &DisasterClassification{}
	if matches > 0 {
		disaster.Confidence = math.Min(0.4+0.15*float64(matches-1), 0.95)
		if offTopic > 0 {
			disaster.Confidence /= 2
		}
		disaster.IsDisaster = offTopic == 0
	}

	return &Result{
		Disaster:  disaster,
		Sentiment: keywordSentiment(content),
	}, nil
}

func keywordSentiment(content string) *SentimentAnalysis {
	positiveCount := countTerms(content, positivePattern)
	negativeCount := countTerms(content, negativePattern)

	total := positiveCount + negativeCount
	if total == 0 || positiveCount == negativeCount {
		return &SentimentAnalysis{Sentiment: SentimentNeutral, Confidence: 0.5}
	}

	confidence := math.Abs(float64(positiveCount-negativeCount)) / float64(total)
	if positiveCount > negativeCount {
		return &SentimentAnalysis{Sentiment: SentimentPositive, Confidence: confidence}
	}
	return &SentimentAnalysis{Sentiment: SentimentNegative, Confidence: confidence}
}

// countTerms counts the distinct terms of re found in content.
func countTerms(content string, re *regexp.Regexp) int {
	seen := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(content, -1) {
		seen[m[1]] = true
	}
	return len(seen)
}
