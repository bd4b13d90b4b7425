package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_FreeText(t *testing.T) {
	res := Normalize(Input{Text: "Tsunami warning issued for coast! #tsunami #emergency cc @coastguard"})

	assert.Equal(t, []string{"tsunami", "emergency"}, res.Hashtags)
	assert.Equal(t, []string{"coastguard"}, res.Mentions)
	assert.Empty(t, res.URLs)
	assert.NotNil(t, res.URLs)
	assert.Nil(t, res.Location)
}

func TestExtract_NonASCII(t *testing.T) {
	assert.Equal(t, []string{"maremoto", "Perú", "सुनामी"}, ExtractHashtags("Alerta #maremoto en #Perú y #सुनामी"))
	assert.Equal(t, []string{"José", "防災_2"}, ExtractMentions("cc @José, @防災_2!"))
}

func TestNormalize_StructuredEntitiesWin(t *testing.T) {
	res := Normalize(Input{
		Text: "#ignored @ignored",
		Entities: &Entities{
			Hashtags: []Hashtag{{Tag: "StormSurge"}, {Tag: ""}, {Tag: "flood"}},
			Mentions: []Mention{{Username: "noaa"}},
			URLs: []URL{
				{URL: "https://t.co/a", ExpandedURL: "https://example.org/alert"},
				{URL: "https://t.co/b"},
			},
		},
	})

	assert.Equal(t, []string{"StormSurge", "flood"}, res.Hashtags)
	assert.Equal(t, []string{"noaa"}, res.Mentions)
	assert.Equal(t, []string{"https://example.org/alert", "https://t.co/b"}, res.URLs)
}

func TestLocation(t *testing.T) {
	point := func(coords ...float64) *Geo {
		return &Geo{Coordinates: &Coordinates{Type: "Point", Coordinates: coords}}
	}

	tests := []struct {
		name     string
		geo      *Geo
		expected *Point
	}{
		{name: "No geo", geo: nil, expected: nil},
		{name: "Place only", geo: &Geo{PlaceID: "01a9a39529b27f36"}, expected: nil},
		{name: "Longitude first", geo: point(-80.19, 25.76), expected: &Point{Latitude: 25.76, Longitude: -80.19}},
		{name: "Wrong arity", geo: point(1), expected: nil},
		{name: "Latitude out of range", geo: point(10, 95), expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Location(tt.geo))
		})
	}
}

func TestFromJSON(t *testing.T) {
	res := FromJSON([]byte(`{"id":"abc","text":"Tsunami warning issued for coast! #tsunami #emergency"}`))
	assert.Equal(t, []string{"tsunami", "emergency"}, res.Hashtags)

	res = FromJSON([]byte(`{"caption":"Flooding @ the pier #flood","geo":{"coordinates":{"type":"Point","coordinates":[139.69,35.68]}}}`))
	assert.Equal(t, []string{"flood"}, res.Hashtags)
	require.NotNil(t, res.Location)
	assert.Equal(t, 35.68, res.Location.Latitude)
}

func TestFromJSON_MalformedNeverPanics(t *testing.T) {
	payloads := []string{
		``,
		`null`,
		`[]`,
		`{"text": 12}`,
		`{"entities": "nope", "geo": [1,2]}`,
		`{"geo":{"coordinates":{"coordinates":"x"}}}`,
		`{"entities":{"hashtags":[{"tag":5}]}}`,
		`{not json`,
	}

	for _, p := range payloads {
		t.Run(p, func(t *testing.T) {
			var res Result
			assert.NotPanics(t, func() { res = FromJSON([]byte(p)) })
			assert.NotNil(t, res.Hashtags)
			assert.NotNil(t, res.Mentions)
			assert.NotNil(t, res.URLs)
			assert.Nil(t, res.Location)
		})
	}
}
