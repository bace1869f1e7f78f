// Package scoring classifies catalog events as music or non-music and
// computes a 0-100 personalized match score against a user's taste profile.
//
// The scorer is a pure function of (event, profile, config). It performs no
// I/O and keeps no mutable state, so a single *Scorer may be shared by any
// number of goroutines.
package scoring

import (
	"fmt"
	"math"
	"strings"
)

// Default scoring configuration constants.
const (
	defaultBaseScore            = 40
	defaultArtistMax            = 25
	defaultGenreMax             = 20
	defaultAudioMax             = 7
	defaultVenueMax             = 4
	defaultTimeMax              = 4
	defaultMusicFloor           = 15
	defaultNonMusicMin          = 5
	defaultNonMusicMax          = 14
	defaultArtistDecay          = 0.5
	defaultGenreRankDecay       = 0.25
	defaultPartialGenreCredit   = 0.5
	defaultVenueNeutralAffinity = 0.3
	maxScoreValue               = 100
	weightTolerance             = 1e-9
)

// NonMusicMode selects how a score is drawn from the non-music band.
type NonMusicMode string

// Supported non-music modes.
const (
	// NonMusicStable hashes the event identity into the band, so repeated
	// calls for the same event agree.
	NonMusicStable NonMusicMode = "stable"
	// NonMusicRandom draws a fresh value from the band on every call.
	NonMusicRandom NonMusicMode = "random"
)

// FactorWeights holds the maximum points each factor may contribute.
type FactorWeights struct {
	Artist float64 `koanf:"artist" json:"artist"`
	Genre  float64 `koanf:"genre" json:"genre"`
	Audio  float64 `koanf:"audio" json:"audio"`
	Venue  float64 `koanf:"venue" json:"venue"`
	Time   float64 `koanf:"time" json:"time"`
}

// Sum returns the total of all factor maxima.
func (w FactorWeights) Sum() float64 {
	return w.Artist + w.Genre + w.Audio + w.Venue + w.Time
}

// Config holds every tunable of the classifier and the calculator.
type Config struct {
	BaseScore            float64       `koanf:"base_score"`
	Max                  FactorWeights `koanf:"max"`
	MusicFloor           int           `koanf:"music_floor"`
	NonMusicMin          int           `koanf:"non_music_min"`
	NonMusicMax          int           `koanf:"non_music_max"`
	NonMusicMode         NonMusicMode  `koanf:"non_music_mode"`
	MusicKeywords        []string      `koanf:"music_keywords"`
	NonMusicKeywords     []string      `koanf:"non_music_keywords"`
	ArtistDecay          float64       `koanf:"artist_decay"`
	GenreRankDecay       float64       `koanf:"genre_rank_decay"`
	PartialGenreCredit   float64       `koanf:"partial_genre_credit"`
	VenueNeutralAffinity float64       `koanf:"venue_neutral_affinity"`
}

// DefaultMusicKeywords lists the substrings that count as evidence of a
// music performance.
func DefaultMusicKeywords() []string {
	return []string{
		"dj", "concert", "festival", "electronic", "house", "techno", "edm",
		"band", "live music", "performance", "trance", "dubstep",
		"drum and bass", "disco", "hip hop", "hip-hop", "jazz", "rock",
		"metal", "punk", "indie", "orchestra", "symphony", "rave",
		"club night", "b2b", "open air",
	}
}

// DefaultNonMusicKeywords lists the substrings that count as evidence of a
// non-music attraction.
func DefaultNonMusicKeywords() []string {
	return []string{
		"admission", "general admission", "museum", "exhibition", "historic",
		"castle", "sightseeing", "tour", "gallery", "guided", "palace",
		"cathedral", "zoo", "aquarium", "cruise", "skip the line",
	}
}

// DefaultConfig returns the documented defaults. The factor maxima plus the
// base add up to exactly 100.
func DefaultConfig() Config {
	return Config{
		BaseScore: defaultBaseScore,
		Max: FactorWeights{
			Artist: defaultArtistMax,
			Genre:  defaultGenreMax,
			Audio:  defaultAudioMax,
			Venue:  defaultVenueMax,
			Time:   defaultTimeMax,
		},
		MusicFloor:           defaultMusicFloor,
		NonMusicMin:          defaultNonMusicMin,
		NonMusicMax:          defaultNonMusicMax,
		NonMusicMode:         NonMusicStable,
		MusicKeywords:        DefaultMusicKeywords(),
		NonMusicKeywords:     DefaultNonMusicKeywords(),
		ArtistDecay:          defaultArtistDecay,
		GenreRankDecay:       defaultGenreRankDecay,
		PartialGenreCredit:   defaultPartialGenreCredit,
		VenueNeutralAffinity: defaultVenueNeutralAffinity,
	}
}

// Validate reports the first inconsistency in c.
func (c Config) Validate() error {
	switch {
	case !finiteNonNegative(c.BaseScore):
		return fmt.Errorf("base_score %v must be a non-negative number: %w", c.BaseScore, ErrInvalidConfig)
	case !finiteNonNegative(c.Max.Artist, c.Max.Genre, c.Max.Audio, c.Max.Venue, c.Max.Time):
		return fmt.Errorf("factor maxima must be non-negative numbers: %w", ErrInvalidConfig)
	case c.BaseScore+c.Max.Sum() > maxScoreValue+weightTolerance:
		return fmt.Errorf("base_score + factor maxima = %v exceeds %d: %w", c.BaseScore+c.Max.Sum(), maxScoreValue, ErrInvalidConfig)
	case c.NonMusicMin < 0 || c.NonMusicMin > c.NonMusicMax:
		return fmt.Errorf("non-music band [%d, %d] is empty: %w", c.NonMusicMin, c.NonMusicMax, ErrInvalidConfig)
	case c.NonMusicMax >= c.MusicFloor:
		return fmt.Errorf("non-music max %d must sit below music floor %d: %w", c.NonMusicMax, c.MusicFloor, ErrInvalidConfig)
	case c.MusicFloor > maxScoreValue:
		return fmt.Errorf("music floor %d exceeds %d: %w", c.MusicFloor, maxScoreValue, ErrInvalidConfig)
	case c.NonMusicMode != NonMusicStable && c.NonMusicMode != NonMusicRandom:
		return fmt.Errorf("unknown non_music_mode %q: %w", c.NonMusicMode, ErrInvalidConfig)
	case len(c.MusicKeywords) == 0:
		return fmt.Errorf("music keyword list is empty: %w", ErrInvalidConfig)
	case !inUnitRange(c.ArtistDecay) || c.ArtistDecay == 1:
		return fmt.Errorf("artist_decay %v must be in [0, 1): %w", c.ArtistDecay, ErrInvalidConfig)
	case c.GenreRankDecay < 0 || math.IsNaN(c.GenreRankDecay):
		return fmt.Errorf("genre_rank_decay %v is negative: %w", c.GenreRankDecay, ErrInvalidConfig)
	case !inUnitRange(c.PartialGenreCredit):
		return fmt.Errorf("partial_genre_credit %v must be in [0, 1]: %w", c.PartialGenreCredit, ErrInvalidConfig)
	case !inUnitRange(c.VenueNeutralAffinity):
		return fmt.Errorf("venue_neutral_affinity %v must be in [0, 1]: %w", c.VenueNeutralAffinity, ErrInvalidConfig)
	}
	return nil
}

func finiteNonNegative(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return false
		}
	}
	return true
}

func inUnitRange(v float64) bool {
	return v >= 0 && v <= 1
}

// normalizeKeywords lower-cases, trims and de-duplicates a keyword list.
func normalizeKeywords(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, kw := range in {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

// Option applies a configuration option to the Scorer.
type Option func(*Config)

// WithConfig replaces the whole configuration, e.g. one loaded from file.
func WithConfig(cfg Config) Option {
	return func(c *Config) {
		*c = cfg
	}
}

// WithBaseScore sets the credit every music event starts from.
func WithBaseScore(base float64) Option {
	return func(c *Config) {
		c.BaseScore = base
	}
}

// WithFactorMax sets the maximum points for all five factors.
func WithFactorMax(w FactorWeights) Option {
	return func(c *Config) {
		c.Max = w
	}
}

// WithMusicFloor sets the minimum score of any music event.
func WithMusicFloor(floor int) Option {
	return func(c *Config) {
		c.MusicFloor = floor
	}
}

// WithNonMusicBand sets the inclusive band non-music scores are drawn from.
func WithNonMusicBand(minScore, maxScore int) Option {
	return func(c *Config) {
		c.NonMusicMin = minScore
		c.NonMusicMax = maxScore
	}
}

// WithNonMusicMode selects stable or random non-music scores.
func WithNonMusicMode(mode NonMusicMode) Option {
	return func(c *Config) {
		if mode != "" {
			c.NonMusicMode = mode
		}
	}
}

// WithMusicKeywords replaces the music keyword list.
func WithMusicKeywords(keywords []string) Option {
	return func(c *Config) {
		if len(keywords) > 0 {
			c.MusicKeywords = append([]string(nil), keywords...)
		}
	}
}

// WithNonMusicKeywords replaces the non-music keyword list.
func WithNonMusicKeywords(keywords []string) Option {
	return func(c *Config) {
		if keywords != nil {
			c.NonMusicKeywords = append([]string(nil), keywords...)
		}
	}
}

// WithArtistDecay sets the geometric decay applied to each additional
// recognised artist.
func WithArtistDecay(decay float64) Option {
	return func(c *Config) {
		c.ArtistDecay = decay
	}
}

// WithGenreRankDecay sets how fast genre credit falls with the user's rank.
func WithGenreRankDecay(decay float64) Option {
	return func(c *Config) {
		c.GenreRankDecay = decay
	}
}

// WithPartialGenreCredit sets the credit for a token-contained genre match
// such as "house" inside "deep house".
func WithPartialGenreCredit(credit float64) Option {
	return func(c *Config) {
		c.PartialGenreCredit = credit
	}
}

// WithVenueNeutralAffinity sets the affinity assumed for venue categories the
// user has no recorded preference for.
func WithVenueNeutralAffinity(affinity float64) Option {
	return func(c *Config) {
		c.VenueNeutralAffinity = affinity
	}
}
