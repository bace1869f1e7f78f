package model

import (
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Audio feature names understood by the scorer.
const (
	FeatureEnergy       = "energy"
	FeatureDanceability = "danceability"
	FeatureValence      = "valence"
	FeatureAcousticness = "acousticness"
)

// AudioFeatures maps feature names to values in [0, 1].
type AudioFeatures map[string]float64

// UnmarshalJSON keeps numeric values and numeric strings and drops every
// other entry. A non-object decodes to nil.
func (f *AudioFeatures) UnmarshalJSON(data []byte) error {
	*f = nil
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	out := make(AudioFeatures, len(raw))
	for k, v := range raw {
		if x, ok := coerceNumber(v); ok {
			out[k] = x
		}
	}
	*f = out
	return nil
}

// Clean returns the finite features clamped to [0, 1].
func (f AudioFeatures) Clean() AudioFeatures {
	out := make(AudioFeatures, len(f))
	for k, v := range f {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = Clamp01(v)
	}
	return out
}

// MeanFeatures averages each feature over the vectors that carry it.
func MeanFeatures(vectors []AudioFeatures) AudioFeatures {
	return WeightedMeanFeatures(vectors, nil)
}

// WeightedMeanFeatures averages each feature over the vectors that carry it,
// weighting vectors[i] by weights[i]. Missing or non-positive weights count
// as 1.
func WeightedMeanFeatures(vectors []AudioFeatures, weights []float64) AudioFeatures {
	sums := AudioFeatures{}
	totals := map[string]float64{}
	for i, v := range vectors {
		w := 1.0
		if i < len(weights) && weights[i] > 0 && !math.IsInf(weights[i], 0) {
			w = weights[i]
		}
		for k, x := range v.Clean() {
			sums[k] += w * x
			totals[k] += w
		}
	}
	for k := range sums {
		sums[k] /= totals[k]
	}
	return sums
}

// GenreWeight is one entry of a user's ranked genre list.
type GenreWeight struct {
	Genre  string  `json:"genre"`
	Weight float64 `json:"weight"`
}

// UnmarshalJSON accepts {"genre": "house", "weight": 0.8}, {"name": ...}
// or a bare string (weight 1).
func (g *GenreWeight) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		g.Genre, g.Weight = strings.TrimSpace(v), 1
	case map[string]any:
		g.Genre = coerceName(v["genre"])
		if g.Genre == "" {
			g.Genre = coerceName(v["name"])
		}
		if w, ok := coerceNumber(v["weight"]); ok {
			g.Weight = w
		}
	}
	return nil
}

// UserTasteProfile aggregates the taste signals for one user. Every map may
// be nil.
type UserTasteProfile struct {
	UserID                  string             `json:"user_id"`
	TopGenres               []GenreWeight      `json:"top_genres,omitempty"`
	AudioFeaturePreferences AudioFeatures      `json:"audio_feature_preferences,omitempty"`
	VenuePreferences        map[string]float64 `json:"venue_preferences,omitempty"`
	TimePreferences         map[string]float64 `json:"time_preferences,omitempty"`
	ArtistAffinities        map[string]float64 `json:"artist_affinities,omitempty"`
}

// genreList decodes top_genres from an array of GenreWeight shapes or from
// a comma separated string.
type genreList []GenreWeight

func (l *genreList) UnmarshalJSON(data []byte) error {
	*l = nil
	var items []GenreWeight
	if err := json.Unmarshal(data, &items); err == nil {
		for _, g := range items {
			if g.Genre != "" {
				*l = append(*l, g)
			}
		}
		return nil
	}
	var names StringList
	_ = json.Unmarshal(data, &names)
	for _, n := range names {
		*l = append(*l, GenreWeight{Genre: n, Weight: 1})
	}
	return nil
}

type profileWire struct {
	UserID                  any           `json:"user_id"`
	TopGenres               genreList     `json:"top_genres"`
	AudioFeaturePreferences AudioFeatures `json:"audio_feature_preferences"`
	VenuePreferences        AudioFeatures `json:"venue_preferences"`
	TimePreferences         AudioFeatures `json:"time_preferences"`
	ArtistAffinities        AudioFeatures `json:"artist_affinities"`
}

// UnmarshalJSON decodes a profile whose preference maps may carry numeric
// strings or junk values; junk entries are dropped.
func (p *UserTasteProfile) UnmarshalJSON(data []byte) error {
	var w profileWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*p = UserTasteProfile{
		UserID:                  coerceName(w.UserID),
		TopGenres:               []GenreWeight(w.TopGenres),
		AudioFeaturePreferences: w.AudioFeaturePreferences,
		VenuePreferences:        map[string]float64(w.VenuePreferences),
		TimePreferences:         map[string]float64(w.TimePreferences),
		ArtistAffinities:        map[string]float64(w.ArtistAffinities),
	}
	return nil
}

// coerceNumber reads a JSON number or a numeric string. Non-finite values
// are rejected.
func coerceNumber(v any) (float64, bool) {
	var x float64
	switch t := v.(type) {
	case float64:
		x = t
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		x = f
	default:
		return 0, false
	}
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0, false
	}
	return x, true
}

// Clamp01 bounds v to [0, 1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
