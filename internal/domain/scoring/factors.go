package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/okian/sonar/internal/domain/model"
)

// Time-of-day bucket boundaries (hour of day, local to the event date).
const (
	morningStart   = 5
	afternoonStart = 12
	eveningStart   = 17
	nightStart     = 22
)

// normalizedAffinities re-keys m with model.NormalizeKey, clamping values to
// [0, 1] and keeping the highest value when two keys collide.
func normalizedAffinities(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		key := model.NormalizeKey(k)
		if key == "" {
			continue
		}
		v = model.Clamp01(v)
		if prev, ok := out[key]; !ok || v > prev {
			out[key] = v
		}
	}
	return out
}

func (s *Scorer) artistFactor(ev model.Event, p model.UserTasteProfile) Contribution {
	c := Contribution{Factor: FactorArtist, MaxPoints: s.cfg.Max.Artist}

	names := ev.ArtistNames()
	if len(names) == 0 {
		return c.skip("event lists no artists")
	}
	if len(p.ArtistAffinities) == 0 {
		return c.skip("profile has no artist affinities")
	}

	affinity := normalizedAffinities(p.ArtistAffinities)
	seen := make(map[string]struct{}, len(names))
	var (
		matched []float64
		known   []string
	)
	for _, name := range names {
		key := model.NormalizeKey(name)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		if a, ok := affinity[key]; ok {
			matched = append(matched, a)
			known = append(known, name)
		}
	}
	if len(matched) == 0 {
		c.Rationale = fmt.Sprintf("none of %d listed artists are known to the user", len(names))
		return c
	}

	// Strongest affinity counts in full, each further one decays.
	sort.Sort(sort.Reverse(sort.Float64Slice(matched)))
	sum, w := 0.0, 1.0
	for _, a := range matched {
		sum += a * w
		w *= s.cfg.ArtistDecay
	}
	c.Points = round2(c.MaxPoints * math.Min(1, sum))
	c.Rationale = fmt.Sprintf("user follows %s", strings.Join(known, ", "))
	return c
}

type rankedGenre struct {
	key    string
	weight float64
}

func (s *Scorer) genreFactor(ev model.Event, p model.UserTasteProfile) Contribution {
	c := Contribution{Factor: FactorGenre, MaxPoints: s.cfg.Max.Genre}

	eventGenres := make(map[string]struct{}, len(ev.Genres))
	for _, g := range ev.Genres {
		if key := model.NormalizeKey(g); key != "" {
			eventGenres[key] = struct{}{}
		}
	}
	if len(eventGenres) == 0 {
		return c.skip("event has no genres")
	}

	var ranked []rankedGenre
	seen := make(map[string]struct{}, len(p.TopGenres))
	for _, g := range p.TopGenres {
		key := model.NormalizeKey(g.Genre)
		if _, dup := seen[key]; dup || key == "" {
			continue
		}
		seen[key] = struct{}{}
		ranked = append(ranked, rankedGenre{key: key, weight: model.Clamp01(g.Weight)})
	}
	if len(ranked) == 0 {
		return c.skip("profile has no top genres")
	}

	var (
		sum     float64
		matched []string
	)
	for rank, g := range ranked {
		credit := s.genreCredit(g.key, eventGenres)
		if credit == 0 {
			continue
		}
		sum += credit * g.weight / (1 + s.cfg.GenreRankDecay*float64(rank))
		matched = append(matched, g.key)
	}
	if len(matched) == 0 {
		c.Rationale = "no overlap with the user's top genres"
		return c
	}
	c.Points = round2(c.MaxPoints * math.Min(1, sum))
	c.Rationale = fmt.Sprintf("matches top genres %s", strings.Join(matched, ", "))
	return c
}

// genreCredit is 1 for an exact genre match and PartialGenreCredit when one
// genre appears as whole tokens inside the other ("house" in "deep house").
func (s *Scorer) genreCredit(userGenre string, eventGenres map[string]struct{}) float64 {
	if _, ok := eventGenres[userGenre]; ok {
		return 1
	}
	for eg := range eventGenres {
		if containsTokens(eg, userGenre) || containsTokens(userGenre, eg) {
			return s.cfg.PartialGenreCredit
		}
	}
	return 0
}

func containsTokens(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

func (s *Scorer) audioFactor(ev model.Event, p model.UserTasteProfile) Contribution {
	c := Contribution{Factor: FactorAudio, MaxPoints: s.cfg.Max.Audio}

	event := ev.AudioFeatures.Clean()
	if len(event) == 0 {
		return c.skip("event has no audio features")
	}
	user := p.AudioFeaturePreferences.Clean()
	if len(user) == 0 {
		return c.skip("profile has no audio preferences")
	}

	common := make([]string, 0, len(user))
	for k := range user {
		if _, ok := event[k]; ok {
			common = append(common, k)
		}
	}
	if len(common) == 0 {
		return c.skip("no audio features in common")
	}
	// Fixed summation order keeps the float result reproducible.
	sort.Strings(common)

	var sq float64
	for _, k := range common {
		d := user[k] - event[k]
		sq += d * d
	}
	similarity := 1 - math.Sqrt(sq/float64(len(common)))
	c.Points = round2(c.MaxPoints * model.Clamp01(similarity))
	c.Rationale = fmt.Sprintf("audio similarity %.2f over %s", similarity, strings.Join(common, ", "))
	return c
}

func (s *Scorer) venueFactor(ev model.Event, p model.UserTasteProfile) Contribution {
	c := Contribution{Factor: FactorVenue, MaxPoints: s.cfg.Max.Venue}

	kind := model.NormalizeKey(ev.Venue.Kind())
	if kind == "" {
		return c.skip("venue category unknown")
	}
	if a, ok := normalizedAffinities(p.VenuePreferences)[kind]; ok {
		c.Points = round2(c.MaxPoints * a)
		c.Rationale = fmt.Sprintf("%s venue affinity %.2f", kind, a)
		return c
	}
	c.Points = round2(c.MaxPoints * s.cfg.VenueNeutralAffinity)
	c.Rationale = fmt.Sprintf("no recorded preference for %s venues", kind)
	return c
}

func (s *Scorer) timeFactor(ev model.Event, p model.UserTasteProfile) Contribution {
	c := Contribution{Factor: FactorTime, MaxPoints: s.cfg.Max.Time}

	if ev.Date.IsZero() {
		return c.skip("event date unknown")
	}
	if len(p.TimePreferences) == 0 {
		return c.skip("profile has no time preferences")
	}

	prefs := normalizedAffinities(p.TimePreferences)
	keys := TimeKeys(ev.Date)
	best, bestKey := -1.0, ""
	for _, k := range keys {
		if a, ok := prefs[k]; ok && a > best {
			best, bestKey = a, k
		}
	}
	if best < 0 {
		c.Rationale = fmt.Sprintf("no preference for %s", strings.Join(keys, "/"))
		return c
	}
	c.Points = round2(c.MaxPoints * best)
	c.Rationale = fmt.Sprintf("user likes %s events", bestKey)
	return c
}

// TimeKeys returns the preference keys an event on d can match: the weekday
// name, "weekend" or "weekday", and the time-of-day bucket when d carries a
// clock time.
func TimeKeys(d model.Date) []string {
	part := "weekday"
	if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
		part = "weekend"
	}
	keys := []string{strings.ToLower(d.Weekday().String()), part}
	if d.HasClock() {
		keys = append(keys, DayPart(d.Hour()))
	}
	return keys
}

// DayPart buckets an hour of day into morning, afternoon, evening or night.
func DayPart(hour int) string {
	switch {
	case hour >= morningStart && hour < afternoonStart:
		return "morning"
	case hour >= afternoonStart && hour < eveningStart:
		return "afternoon"
	case hour >= eveningStart && hour < nightStart:
		return "evening"
	default:
		return "night"
	}
}
