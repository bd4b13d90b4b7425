// Package normalize extracts hashtags, mentions, URLs and a geo point from a
// platform payload into the canonical post shape. It never fails: fields it
// cannot read come back empty.
package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"
)

var (
	// Letters with their combining marks, digits and underscore, in any script.
	hashtagPattern = regexp.MustCompile(`#([\p{L}\p{M}\p{N}_]+)`)
	mentionPattern = regexp.MustCompile(`@([\p{L}\p{M}\p{N}_]+)`)
)

// Entities is structured entity metadata, in payload order.
type Entities struct {
	Hashtags []Hashtag `json:"hashtags"`
	Mentions []Mention `json:"mentions"`
	URLs     []URL     `json:"urls"`
}

type Hashtag struct {
	Tag string `json:"tag"`
}

type Mention struct {
	Username string `json:"username"`
}

type URL struct {
	URL         string `json:"url"`
	ExpandedURL string `json:"expanded_url"`
}

// Geo is the platform geo block.
type Geo struct {
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	PlaceID     string       `json:"place_id,omitempty"`
}

// Coordinates is a GeoJSON point, ordered (longitude, latitude).
type Coordinates struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// Point is a WGS84 location.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Input is what the normalizer reads from one post. Entities is nil for
// free-text platforms, in which case tags are matched in Text.
type Input struct {
	Text     string
	Entities *Entities
	Geo      *Geo
}

// Result holds the canonical fields. Slices are never nil.
type Result struct {
	Hashtags []string
	Mentions []string
	URLs     []string
	Location *Point
}

// Normalize returns the canonical fields for in.
func Normalize(in Input) Result {
	res := Result{
		Hashtags: []string{},
		Mentions: []string{},
		URLs:     []string{},
	}

	if in.Entities != nil {
		for _, h := range in.Entities.Hashtags {
			if h.Tag != "" {
				res.Hashtags = append(res.Hashtags, h.Tag)
			}
		}
		for _, m := range in.Entities.Mentions {
			if m.Username != "" {
				res.Mentions = append(res.Mentions, m.Username)
			}
		}
		for _, u := range in.Entities.URLs {
			if link := firstNonEmpty(u.ExpandedURL, u.URL); link != "" {
				res.URLs = append(res.URLs, link)
			}
		}
	} else {
		res.Hashtags = ExtractHashtags(in.Text)
		res.Mentions = ExtractMentions(in.Text)
	}

	res.Location = Location(in.Geo)
	return res
}

// FromJSON normalizes an undecoded payload. It accepts "text" or "caption"
// for the body and the entities/geo blocks in their platform shape. A
// payload that does not decode yields an empty result.
func FromJSON(raw []byte) Result {
	var payload struct {
		Text     string          `json:"text"`
		Caption  string          `json:"caption"`
		Entities json.RawMessage `json:"entities"`
		Geo      json.RawMessage `json:"geo"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Normalize(Input{})
	}

	in := Input{Text: firstNonEmpty(payload.Text, payload.Caption)}

	var entities Entities
	if len(payload.Entities) > 0 && json.Unmarshal(payload.Entities, &entities) == nil {
		in.Entities = &entities
	}
	var geo Geo
	if len(payload.Geo) > 0 && json.Unmarshal(payload.Geo, &geo) == nil {
		in.Geo = &geo
	}

	return Normalize(in)
}

// ExtractHashtags returns the #word tokens of text without the marker.
func ExtractHashtags(text string) []string {
	return submatches(hashtagPattern, text)
}

// ExtractMentions returns the @word tokens of text without the marker.
func ExtractMentions(text string) []string {
	return submatches(mentionPattern, text)
}

func submatches(re *regexp.Regexp, text string) []string {
	out := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out = append(out, m[1])
	}
	return out
}

// Location builds a point from a (longitude, latitude) pair. A place
// reference alone leaves the location unset.
func Location(geo *Geo) *Point {
	if geo == nil || geo.Coordinates == nil || len(geo.Coordinates.Coordinates) != 2 {
		return nil
	}
	lng, lat := geo.Coordinates.Coordinates[0], geo.Coordinates.Coordinates[1]
	if !valid(lat, 90) || !valid(lng, 180) {
		return nil
	}
	return &Point{Latitude: lat, Longitude: lng}
}

func valid(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && math.Abs(v) <= limit
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
