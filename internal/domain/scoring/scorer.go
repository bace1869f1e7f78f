package scoring

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/okian/sonar/internal/domain/model"
)

// Scorer computes match scores. It is immutable after New and safe for
// concurrent use.
type Scorer struct {
	cfg     Config
	factors []func(model.Event, model.UserTasteProfile) Contribution
}

// New creates a Scorer from DefaultConfig with the given options applied.
func New(opts ...Option) (*Scorer, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.MusicKeywords = normalizeKeywords(cfg.MusicKeywords)
	cfg.NonMusicKeywords = normalizeKeywords(cfg.NonMusicKeywords)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scorer{cfg: cfg}
	s.factors = []func(model.Event, model.UserTasteProfile) Contribution{
		s.artistFactor,
		s.genreFactor,
		s.audioFactor,
		s.venueFactor,
		s.timeFactor,
	}
	return s, nil
}

// Config returns a copy of the effective configuration.
func (s *Scorer) Config() Config {
	cfg := s.cfg
	cfg.MusicKeywords = append([]string(nil), s.cfg.MusicKeywords...)
	cfg.NonMusicKeywords = append([]string(nil), s.cfg.NonMusicKeywords...)
	return cfg
}

// Score classifies ev and, for music events, sums the base credit and the
// five factor contributions. Music scores land in [MusicFloor, 100]; non-music
// scores land in [NonMusicMin, NonMusicMax]. Only an event without a name is
// rejected; any other missing field just skips the factors that need it.
func (s *Scorer) Score(ev model.Event, p model.UserTasteProfile) (Result, error) {
	if strings.TrimSpace(ev.Name) == "" {
		return Result{}, fmt.Errorf("event %q has no name: %w", ev.ID, ErrInvalidInput)
	}

	v := s.Classify(ev.Name, ev.Description)
	res := Result{
		IsMusicEvent:   v.IsMusic,
		Classification: v.Class,
		MusicHits:      v.MusicHits,
		NonMusicHits:   v.NonMusicHits,
	}

	if !v.IsMusic {
		res.Score = s.nonMusicScore(ev)
		res.Breakdown = []Contribution{{
			Factor:    FactorClassification,
			Points:    float64(res.Score),
			MaxPoints: float64(s.cfg.NonMusicMax),
			Rationale: nonMusicRationale(v),
		}}
		return res, nil
	}

	total := s.cfg.BaseScore
	res.Breakdown = make([]Contribution, 0, len(s.factors)+2)
	res.Breakdown = append(res.Breakdown, Contribution{
		Factor:    FactorBase,
		Points:    s.cfg.BaseScore,
		MaxPoints: s.cfg.BaseScore,
		Rationale: "music event matched " + strings.Join(v.MusicHits, ", "),
	})
	for _, factor := range s.factors {
		c := factor(ev, p)
		total += c.Points
		res.Breakdown = append(res.Breakdown, c)
	}

	raw := int(math.Round(total))
	res.Score = min(max(raw, s.cfg.MusicFloor), maxScoreValue)
	if res.Score != raw {
		res.Breakdown = append(res.Breakdown, Contribution{
			Factor:    FactorClip,
			Points:    float64(res.Score - raw),
			Rationale: fmt.Sprintf("clipped %d into [%d, %d]", raw, s.cfg.MusicFloor, maxScoreValue),
		})
	}
	return res, nil
}

func nonMusicRationale(v Verdict) string {
	switch {
	case v.Class == ClassAmbiguous:
		return "music and non-music evidence tied"
	case len(v.NonMusicHits) > 0:
		return "non-music event matched " + strings.Join(v.NonMusicHits, ", ")
	default:
		return "no music evidence"
	}
}

func (s *Scorer) nonMusicScore(ev model.Event) int {
	span := s.cfg.NonMusicMax - s.cfg.NonMusicMin + 1
	if s.cfg.NonMusicMode == NonMusicRandom {
		return s.cfg.NonMusicMin + rand.IntN(span)
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(ev.Key()))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(strings.ToLower(ev.Name)))
	return s.cfg.NonMusicMin + int(h.Sum32()%uint32(span))
}

// Score is a convenience wrapper that builds a Scorer for a single call.
func Score(ev model.Event, p model.UserTasteProfile, opts ...Option) (Result, error) {
	s, err := New(opts...)
	if err != nil {
		return Result{}, err
	}
	return s.Score(ev, p)
}
