package scoring

import "math"

// Factor names a line of the score breakdown.
type Factor string

// Breakdown factors in the order they appear in a Result.
const (
	FactorClassification Factor = "classification"
	FactorBase           Factor = "base"
	FactorArtist         Factor = "artist"
	FactorGenre          Factor = "genre"
	FactorAudio          Factor = "audio"
	FactorVenue          Factor = "venue"
	FactorTime           Factor = "time"
	FactorClip           Factor = "clip"
)

// Contribution explains how many points one factor added.
//
// Skipped is true when the factor had no data to judge (the user or event
// lacked the field) and false when data existed but did not match.
type Contribution struct {
	Factor    Factor  `json:"factor"`
	Points    float64 `json:"points"`
	MaxPoints float64 `json:"max_points"`
	Rationale string  `json:"rationale"`
	Skipped   bool    `json:"skipped,omitempty"`
}

func (c Contribution) skip(rationale string) Contribution {
	c.Points = 0
	c.Skipped = true
	c.Rationale = rationale
	return c
}

// Result is the scorer output for one (event, profile) pair.
type Result struct {
	Score          int            `json:"score"`
	IsMusicEvent   bool           `json:"is_music_event"`
	Classification Classification `json:"classification"`
	Breakdown      []Contribution `json:"breakdown"`
	MusicHits      []string       `json:"music_hits,omitempty"`
	NonMusicHits   []string       `json:"non_music_hits,omitempty"`
}

// Contribution returns the breakdown line for f, if present.
func (r Result) Contribution(f Factor) (Contribution, bool) {
	for _, c := range r.Breakdown {
		if c.Factor == f {
			return c, true
		}
	}
	return Contribution{}, false
}

// Skipped lists the factors that had no data to judge.
func (r Result) Skipped() []Factor {
	var out []Factor
	for _, c := range r.Breakdown {
		if c.Skipped {
			out = append(out, c.Factor)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
