// Package credibility computes a bounded trust score for an ingested post
// from account and engagement signals.
package credibility

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BaseScore is the score of a post with no applicable bonuses.
const BaseScore = 0.5

// Tier awards Bonus when a signal is strictly greater than Threshold.
type Tier struct {
	Threshold int
	Bonus     float64
}

// Table holds the platform-specific bonuses. Within Reach and Engagement
// only the highest matching tier applies; the tables add to each other.
type Table struct {
	VerifiedBonus float64
	Reach         []Tier // followers, or reach/impressions
	Engagement    []Tier // likes+shares+comments, or platform engagement
}

// Signals are the inputs for one post.
type Signals struct {
	Verified   bool // verified or business account
	Reach      int
	Engagement int
}

// TwitterTable returns the default Twitter tiers.
func TwitterTable() Table {
	return Table{
		VerifiedBonus: 0.2,
		Reach: []Tier{
			{Threshold: 1000000, Bonus: 0.2},
			{Threshold: 100000, Bonus: 0.15},
			{Threshold: 10000, Bonus: 0.1},
			{Threshold: 1000, Bonus: 0.05},
		},
		Engagement: []Tier{
			{Threshold: 100, Bonus: 0.1},
			{Threshold: 10, Bonus: 0.05},
		},
	}
}

// InstagramTable returns the default Instagram tiers.
func InstagramTable() Table {
	return Table{
		VerifiedBonus: 0.2,
		Reach: []Tier{
			{Threshold: 10000, Bonus: 0.15},
			{Threshold: 1000, Bonus: 0.1},
		},
		Engagement: []Tier{
			{Threshold: 1000, Bonus: 0.2},
			{Threshold: 100, Bonus: 0.15},
			{Threshold: 10, Bonus: 0.1},
		},
	}
}

// Score returns clamp(BaseScore + bonuses, 0, 1).
func (t Table) Score(s Signals) float64 {
	score := BaseScore

	if s.Verified {
		score += t.VerifiedBonus
	}
	score += highestTier(t.Reach, s.Reach)
	score += highestTier(t.Engagement, s.Engagement)

	return clamp(score)
}

// highestTier returns the bonus of the largest threshold exceeded by value,
// independent of the order tiers are listed in.
func highestTier(tiers []Tier, value int) float64 {
	var (
		bonus float64
		best  = -1
		found bool
	)
	for _, tier := range tiers {
		if value > tier.Threshold && (!found || tier.Threshold > best) {
			best = tier.Threshold
			bonus = tier.Bonus
			found = true
		}
	}
	return bonus
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ParseTiers parses "threshold:bonus,threshold:bonus" into tiers sorted by
// descending threshold.
func ParseTiers(value string) ([]Tier, error) {
	var tiers []Tier
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		threshold, bonus, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("tier %q must be threshold:bonus", part)
		}
		th, err := strconv.Atoi(strings.TrimSpace(threshold))
		if err != nil {
			return nil, fmt.Errorf("tier %q: invalid threshold: %w", part, err)
		}
		b, err := strconv.ParseFloat(strings.TrimSpace(bonus), 64)
		if err != nil {
			return nil, fmt.Errorf("tier %q: invalid bonus: %w", part, err)
		}
		tiers = append(tiers, Tier{Threshold: th, Bonus: b})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("no tiers in %q", value)
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Threshold > tiers[j].Threshold })
	return tiers, nil
}
