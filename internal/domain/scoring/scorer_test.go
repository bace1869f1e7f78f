package scoring_test

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	model "github.com/okian/sonar/internal/domain/model"
	scoring "github.com/okian/sonar/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func houseProfile() model.UserTasteProfile {
	return model.UserTasteProfile{
		UserID:           "u1",
		TopGenres:        []model.GenreWeight{{Genre: "house", Weight: 0.8}},
		ArtistAffinities: map[string]float64{"artistX": 0.9},
		VenuePreferences: map[string]float64{"club": 0.7},
	}
}

func houseEvent() model.Event {
	return model.Event{
		ID:      "evt-1",
		Name:    "ArtistX Live House Set",
		Artists: []model.Artist{{Name: "artistX"}},
		Genres:  model.StringList{"house"},
		Venue:   &model.Venue{Category: "club"},
	}
}

func newScorer(t *testing.T, opts ...scoring.Option) *scoring.Scorer {
	t.Helper()
	s, err := scoring.New(opts...)
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	return s
}

func TestEndToEnd(t *testing.T) {
	convey.Convey("Given a house fan and a house set by their favourite artist", t, func() {
		s := newScorer(t)

		convey.Convey("When scoring", func() {
			res, err := s.Score(houseEvent(), houseProfile())

			convey.Convey("Then the score should sit well above the base", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.IsMusicEvent, convey.ShouldBeTrue)
				convey.So(res.Classification, convey.ShouldEqual, scoring.ClassMusic)
				convey.So(res.Score, convey.ShouldEqual, 81)
			})

			convey.Convey("Then artist, genre and venue should all contribute", func() {
				artist, _ := res.Contribution(scoring.FactorArtist)
				genre, _ := res.Contribution(scoring.FactorGenre)
				venue, _ := res.Contribution(scoring.FactorVenue)
				convey.So(artist.Points, convey.ShouldAlmostEqual, 22.5)
				convey.So(genre.Points, convey.ShouldAlmostEqual, 16)
				convey.So(venue.Points, convey.ShouldAlmostEqual, 2.8)
				convey.So(res.Breakdown[0].Factor, convey.ShouldEqual, scoring.FactorBase)
			})

			convey.Convey("Then audio and time should be recorded as skipped", func() {
				convey.So(res.Skipped(), convey.ShouldResemble, []scoring.Factor{scoring.FactorAudio, scoring.FactorTime})
			})
		})
	})
}

func TestKeywordTieBreak(t *testing.T) {
	convey.Convey("Given a plain general admission ticket", t, func() {
		s := newScorer(t)
		ev := model.Event{Name: "Downtown General Admission"}

		convey.Convey("When scoring", func() {
			res, err := s.Score(ev, houseProfile())

			convey.Convey("Then it should be non-music in the low band", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.IsMusicEvent, convey.ShouldBeFalse)
				convey.So(res.Classification, convey.ShouldEqual, scoring.ClassNonMusic)
				convey.So(res.Score, convey.ShouldBeBetweenOrEqual, 5, 14)
				convey.So(res.Breakdown, convey.ShouldHaveLength, 1)
				convey.So(res.Breakdown[0].Factor, convey.ShouldEqual, scoring.FactorClassification)
			})
		})
	})

	convey.Convey("Given a general admission ticket to a jazz night", t, func() {
		s := newScorer(t)
		ev := model.Event{Name: "Jazz Night General Admission"}

		convey.Convey("When scoring", func() {
			res, err := s.Score(ev, houseProfile())

			convey.Convey("Then the music keyword should win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.IsMusicEvent, convey.ShouldBeTrue)
				convey.So(res.MusicHits, convey.ShouldResemble, []string{"jazz"})
				convey.So(res.NonMusicHits, convey.ShouldBeEmpty)
				convey.So(res.Score, convey.ShouldBeGreaterThanOrEqualTo, 15)
			})
		})
	})
}

func TestClassify(t *testing.T) {
	convey.Convey("Given the default keyword lists", t, func() {
		s := newScorer(t)

		convey.Convey("Then a museum tour is non-music", func() {
			v := s.Classify("Historic Museum Tour", "")
			convey.So(v.Class, convey.ShouldEqual, scoring.ClassNonMusic)
			convey.So(v.NonMusicHits, convey.ShouldResemble, []string{"museum", "historic", "tour"})
		})

		convey.Convey("Then a tie is ambiguous and not music", func() {
			v := s.Classify("Techno Museum", "")
			convey.So(v.Class, convey.ShouldEqual, scoring.ClassAmbiguous)
			convey.So(v.IsMusic, convey.ShouldBeFalse)
		})

		convey.Convey("Then matching is case-insensitive and includes the description", func() {
			v := s.Classify("Sunset Session", "A DJ SET on the rooftop")
			convey.So(v.IsMusic, convey.ShouldBeTrue)
		})

		convey.Convey("Then no evidence at all is non-music", func() {
			v := s.Classify("Quiet Afternoon", "")
			convey.So(v.Class, convey.ShouldEqual, scoring.ClassNonMusic)
			convey.So(v.MusicHits, convey.ShouldBeEmpty)
		})
	})

	convey.Convey("Given custom keyword lists", t, func() {
		s := newScorer(t,
			scoring.WithMusicKeywords([]string{"  Karaoke "}),
			scoring.WithNonMusicKeywords([]string{"brunch"}),
		)

		convey.Convey("Then they should replace the defaults", func() {
			convey.So(s.Classify("Karaoke Night", "").IsMusic, convey.ShouldBeTrue)
			convey.So(s.Classify("Techno Night", "").IsMusic, convey.ShouldBeFalse)
			convey.So(s.Config().MusicKeywords, convey.ShouldResemble, []string{"karaoke"})
		})
	})
}

func TestMissingData(t *testing.T) {
	convey.Convey("Given a DJ set with nothing but a name and description", t, func() {
		s := newScorer(t)
		ev := model.Event{Name: "Sunset Session", Description: "DJ set on the rooftop"}

		convey.Convey("When scoring against a full profile", func() {
			res, err := s.Score(ev, houseProfile())

			convey.Convey("Then it should score on the music path with skipped factors", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.IsMusicEvent, convey.ShouldBeTrue)
				convey.So(res.Score, convey.ShouldEqual, 40)
				skipped := res.Skipped()
				convey.So(skipped, convey.ShouldContain, scoring.FactorArtist)
				convey.So(skipped, convey.ShouldContain, scoring.FactorGenre)
				for _, c := range res.Breakdown {
					convey.So(c.Rationale, convey.ShouldNotBeBlank)
				}
			})
		})

		convey.Convey("When scoring against an empty profile", func() {
			res, err := s.Score(ev, model.UserTasteProfile{})

			convey.Convey("Then it should still be a valid score", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Score, convey.ShouldBeBetweenOrEqual, 15, 100)
			})
		})
	})

	convey.Convey("Given an event with no name", t, func() {
		s := newScorer(t)

		convey.Convey("When scoring", func() {
			_, err := s.Score(model.Event{ID: "x", Name: "   "}, houseProfile())

			convey.Convey("Then it should fail with invalid input", func() {
				convey.So(errors.Is(err, scoring.ErrInvalidInput), convey.ShouldBeTrue)
			})
		})
	})
}

func TestMalformedArtists(t *testing.T) {
	convey.Convey("Given the same event with string and record artists", t, func() {
		s := newScorer(t)
		var plain, records model.Event
		convey.So(json.Unmarshal([]byte(`{"name":"ArtistX Live House Set","artists":["artistX"],"genres":["house"]}`), &plain), convey.ShouldBeNil)
		convey.So(json.Unmarshal([]byte(`{"name":"ArtistX Live House Set","artists":[{"name":"artistX"}],"genres":["house"]}`), &records), convey.ShouldBeNil)

		convey.Convey("When scoring both", func() {
			a, errA := s.Score(plain, houseProfile())
			b, errB := s.Score(records, houseProfile())

			convey.Convey("Then the results should be identical", func() {
				convey.So(errA, convey.ShouldBeNil)
				convey.So(errB, convey.ShouldBeNil)
				convey.So(b, convey.ShouldResemble, a)
			})
		})
	})
}

func TestFactors(t *testing.T) {
	convey.Convey("Given the default scorer", t, func() {
		s := newScorer(t)
		score := func(ev model.Event, p model.UserTasteProfile, f scoring.Factor) scoring.Contribution {
			res, err := s.Score(ev, p)
			convey.So(err, convey.ShouldBeNil)
			c, ok := res.Contribution(f)
			convey.So(ok, convey.ShouldBeTrue)
			return c
		}

		convey.Convey("Then additional artists should have diminishing returns", func() {
			ev := model.Event{Name: "Techno Night", Artists: []model.Artist{{Name: "A"}, {Name: "B"}, {Name: "C"}}}
			p := model.UserTasteProfile{ArtistAffinities: map[string]float64{"a": 0.4, "b": 0.4, "c": 0.4}}
			c := score(ev, p, scoring.FactorArtist)
			// 0.4 * (1 + 0.5 + 0.25) = 0.7 of 25
			convey.So(c.Points, convey.ShouldAlmostEqual, 17.5)
		})

		convey.Convey("Then artist names should match after normalisation", func() {
			ev := model.Event{Name: "Techno Night", Artists: []model.Artist{{Name: "Artist-X"}}}
			p := model.UserTasteProfile{ArtistAffinities: map[string]float64{"ARTIST X": 1}}
			convey.So(score(ev, p, scoring.FactorArtist).Points, convey.ShouldAlmostEqual, 25)
		})

		convey.Convey("Then an unmatched artist should be zero but not skipped", func() {
			ev := model.Event{Name: "Techno Night", Artists: []model.Artist{{Name: "Nobody"}}}
			c := score(ev, houseProfile(), scoring.FactorArtist)
			convey.So(c.Points, convey.ShouldEqual, 0)
			convey.So(c.Skipped, convey.ShouldBeFalse)
		})

		convey.Convey("Then lower ranked genres should earn less", func() {
			p := model.UserTasteProfile{TopGenres: []model.GenreWeight{{Genre: "techno", Weight: 1}, {Genre: "house", Weight: 1}}}
			techno := score(model.Event{Name: "Rave", Genres: model.StringList{"techno"}}, p, scoring.FactorGenre)
			house := score(model.Event{Name: "Rave", Genres: model.StringList{"house"}}, p, scoring.FactorGenre)
			convey.So(techno.Points, convey.ShouldAlmostEqual, 20)
			convey.So(house.Points, convey.ShouldAlmostEqual, 16)
		})

		convey.Convey("Then a sub-genre should earn partial credit", func() {
			p := model.UserTasteProfile{TopGenres: []model.GenreWeight{{Genre: "house", Weight: 1}}}
			c := score(model.Event{Name: "Rave", Genres: model.StringList{"Deep House"}}, p, scoring.FactorGenre)
			convey.So(c.Points, convey.ShouldAlmostEqual, 10)
		})

		convey.Convey("Then identical audio profiles should earn full audio credit", func() {
			f := model.AudioFeatures{"energy": 0.8, "danceability": 0.7}
			c := score(model.Event{Name: "Rave", AudioFeatures: f}, model.UserTasteProfile{AudioFeaturePreferences: f}, scoring.FactorAudio)
			convey.So(c.Points, convey.ShouldAlmostEqual, 7)
		})

		convey.Convey("Then audio with no common features should be skipped", func() {
			c := score(
				model.Event{Name: "Rave", AudioFeatures: model.AudioFeatures{"energy": 0.8}},
				model.UserTasteProfile{AudioFeaturePreferences: model.AudioFeatures{"valence": 0.2}},
				scoring.FactorAudio,
			)
			convey.So(c.Skipped, convey.ShouldBeTrue)
		})

		convey.Convey("Then an unknown venue category should get neutral credit", func() {
			c := score(model.Event{Name: "Rave", Venue: &model.Venue{Category: "warehouse"}}, houseProfile(), scoring.FactorVenue)
			convey.So(c.Points, convey.ShouldAlmostEqual, 1.2)
			convey.So(c.Skipped, convey.ShouldBeFalse)
		})

		convey.Convey("Then the best matching time key should count", func() {
			// Friday 2025-06-13 22:30 UTC is a weekday night.
			ev := model.Event{Name: "Rave", Date: model.Date{Time: time.Date(2025, 6, 13, 22, 30, 0, 0, time.UTC)}}
			p := model.UserTasteProfile{TimePreferences: map[string]float64{"friday": 0.5, "night": 1, "weekend": 0.9}}
			c := score(ev, p, scoring.FactorTime)
			convey.So(c.Points, convey.ShouldAlmostEqual, 4)
		})

		convey.Convey("Then a date without a clock time should not match a time-of-day preference", func() {
			ev := model.Event{Name: "Rave", Date: model.DayOf(time.Date(2025, 6, 13, 0, 0, 0, 0, time.UTC))}
			p := model.UserTasteProfile{TimePreferences: map[string]float64{"night": 1}}
			c := score(ev, p, scoring.FactorTime)
			convey.So(c.Skipped, convey.ShouldBeFalse)
			convey.So(c.Points, convey.ShouldEqual, 0.0)
			convey.So(c.Rationale, convey.ShouldEqual, "no preference for friday/weekday")
		})
	})
}

func TestTimeKeys(t *testing.T) {
	convey.Convey("Given event start times", t, func() {
		convey.So(scoring.TimeKeys(model.Date{Time: time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC)}), convey.ShouldResemble, []string{"saturday", "weekend", "morning"})
		convey.So(scoring.TimeKeys(model.DayOf(time.Date(2025, 6, 14, 9, 0, 0, 0, time.UTC))), convey.ShouldResemble, []string{"saturday", "weekend"})
		convey.So(scoring.DayPart(12), convey.ShouldEqual, "afternoon")
		convey.So(scoring.DayPart(17), convey.ShouldEqual, "evening")
		convey.So(scoring.DayPart(3), convey.ShouldEqual, "night")
	})
}

func TestDeterminism(t *testing.T) {
	convey.Convey("Given a fixed event and profile", t, func() {
		s := newScorer(t)
		ev := houseEvent()
		ev.AudioFeatures = model.AudioFeatures{"energy": 0.9, "danceability": 0.8, "valence": 0.3}
		p := houseProfile()
		p.AudioFeaturePreferences = model.AudioFeatures{"energy": 0.7, "danceability": 0.6, "valence": 0.5}

		convey.Convey("Then repeated calls should return the same result", func() {
			first, err := s.Score(ev, p)
			convey.So(err, convey.ShouldBeNil)
			for range 50 {
				again, _ := s.Score(ev, p)
				convey.So(again, convey.ShouldResemble, first)
			}
		})

		convey.Convey("Then stable non-music scores should repeat", func() {
			tour := model.Event{ID: "t1", Name: "Castle Tour"}
			first, _ := s.Score(tour, p)
			for range 20 {
				again, _ := s.Score(tour, p)
				convey.So(again.Score, convey.ShouldEqual, first.Score)
			}
		})
	})
}

func TestRandomNonMusic(t *testing.T) {
	convey.Convey("Given random non-music mode", t, func() {
		s := newScorer(t, scoring.WithNonMusicMode(scoring.NonMusicRandom))

		convey.Convey("Then every score should stay inside the band", func() {
			for range 200 {
				res, err := s.Score(model.Event{Name: "Museum Exhibition"}, model.UserTasteProfile{})
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Score, convey.ShouldBeBetweenOrEqual, 5, 14)
			}
		})
	})
}

// randomInputs builds a reproducible spread of events and profiles.
func randomInputs(n int) ([]model.Event, []model.UserTasteProfile) {
	r := rand.New(rand.NewPCG(1, 2))
	names := []string{"Techno Rave", "House Party", "Castle Tour", "Jazz Club", "Museum Night", "Quiet Walk", "DJ Session"}
	genres := []string{"house", "techno", "jazz", "deep house", "ambient"}
	artists := []string{"a", "b", "c", "d"}

	events := make([]model.Event, n)
	profiles := make([]model.UserTasteProfile, n)
	for i := range n {
		ev := model.Event{ID: fmt.Sprintf("e%d", i), Name: names[r.IntN(len(names))]}
		for range r.IntN(3) {
			ev.Artists = append(ev.Artists, model.Artist{Name: artists[r.IntN(len(artists))]})
			ev.Genres = append(ev.Genres, genres[r.IntN(len(genres))])
		}
		if r.IntN(2) == 0 {
			ev.Venue = &model.Venue{Category: "club"}
			ev.Date = model.Date{Time: time.Date(2025, 6, 1+r.IntN(28), r.IntN(24), 0, 0, 0, time.UTC)}
			ev.AudioFeatures = model.AudioFeatures{"energy": r.Float64()*3 - 1}
		}

		p := model.UserTasteProfile{
			ArtistAffinities: map[string]float64{},
			VenuePreferences: map[string]float64{"club": r.Float64()*2 - 0.5},
			TimePreferences:  map[string]float64{"night": r.Float64(), "weekend": r.Float64()},
		}
		for _, a := range artists {
			p.ArtistAffinities[a] = r.Float64()*2 - 0.5
		}
		for _, g := range genres {
			p.TopGenres = append(p.TopGenres, model.GenreWeight{Genre: g, Weight: r.Float64() * 1.5})
		}
		p.AudioFeaturePreferences = model.AudioFeatures{"energy": r.Float64()}
		events[i], profiles[i] = ev, p
	}
	return events, profiles
}

func TestInvariants(t *testing.T) {
	convey.Convey("Given a spread of generated inputs", t, func() {
		s := newScorer(t)
		events, profiles := randomInputs(300)

		convey.Convey("Then every score should be in range and non-music should rank below music", func() {
			maxNonMusic, minMusic := -1, 101
			for i := range events {
				res, err := s.Score(events[i], profiles[i])
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Score, convey.ShouldBeBetweenOrEqual, 0, 100)
				if res.IsMusicEvent {
					minMusic = min(minMusic, res.Score)
				} else {
					maxNonMusic = max(maxNonMusic, res.Score)
				}
			}
			convey.So(maxNonMusic, convey.ShouldBeLessThan, minMusic)
		})
	})
}

func TestMonotonicity(t *testing.T) {
	convey.Convey("Given an event with two known artists", t, func() {
		s := newScorer(t)
		ev := houseEvent()
		ev.Artists = append(ev.Artists, model.Artist{Name: "artistY"})

		convey.Convey("When raising one artist affinity step by step", func() {
			prev := -1
			for _, a := range []float64{0, 0.1, 0.3, 0.5, 0.8, 1} {
				p := houseProfile()
				p.ArtistAffinities = map[string]float64{"artistX": 0.6, "artistY": a}
				res, err := s.Score(ev, p)
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Score, convey.ShouldBeGreaterThanOrEqualTo, prev)
				prev = res.Score
			}
		})

		convey.Convey("When raising a genre weight step by step", func() {
			prev := -1
			for _, w := range []float64{0, 0.2, 0.4, 0.9, 1} {
				p := houseProfile()
				p.TopGenres = []model.GenreWeight{{Genre: "techno", Weight: 1}, {Genre: "house", Weight: w}}
				res, err := s.Score(ev, p)
				convey.So(err, convey.ShouldBeNil)
				convey.So(res.Score, convey.ShouldBeGreaterThanOrEqualTo, prev)
				prev = res.Score
			}
		})
	})
}

func TestConcurrentScoring(t *testing.T) {
	convey.Convey("Given one scorer shared by many goroutines", t, func() {
		s := newScorer(t)
		want, err := s.Score(houseEvent(), houseProfile())
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then every goroutine should see the same result", func() {
			var wg sync.WaitGroup
			results := make([]int, 32)
			for i := range results {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					res, _ := s.Score(houseEvent(), houseProfile())
					results[i] = res.Score
				}(i)
			}
			wg.Wait()
			for _, got := range results {
				convey.So(got, convey.ShouldEqual, want.Score)
			}
		})
	})
}

func TestPackageScore(t *testing.T) {
	convey.Convey("Given the one-shot helper", t, func() {
		convey.Convey("Then it should honour options", func() {
			res, err := scoring.Score(houseEvent(), model.UserTasteProfile{}, scoring.WithBaseScore(30))
			convey.So(err, convey.ShouldBeNil)
			// 30 base + 1.2 neutral venue credit
			convey.So(res.Score, convey.ShouldEqual, 31)
		})

		convey.Convey("Then it should reject an invalid config", func() {
			_, err := scoring.Score(houseEvent(), model.UserTasteProfile{}, scoring.WithBaseScore(90))
			convey.So(errors.Is(err, scoring.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}

func TestConfigValidate(t *testing.T) {
	convey.Convey("Given the default config", t, func() {
		convey.So(scoring.DefaultConfig().Validate(), convey.ShouldBeNil)

		convey.Convey("Then a NaN base score should be rejected", func() {
			cfg := scoring.DefaultConfig()
			cfg.BaseScore = math.NaN()
			convey.So(errors.Is(cfg.Validate(), scoring.ErrInvalidConfig), convey.ShouldBeTrue)
		})

		convey.Convey("Then a NaN or infinite factor maximum should be rejected", func() {
			for _, bad := range []float64{math.NaN(), math.Inf(1), -1} {
				cfg := scoring.DefaultConfig()
				cfg.Max.Audio = bad
				convey.So(errors.Is(cfg.Validate(), scoring.ErrInvalidConfig), convey.ShouldBeTrue)

				cfg = scoring.DefaultConfig()
				cfg.Max.Time = bad
				convey.So(errors.Is(cfg.Validate(), scoring.ErrInvalidConfig), convey.ShouldBeTrue)
			}
		})

		convey.Convey("Then the one-shot helper should refuse a NaN base score", func() {
			_, err := scoring.Score(houseEvent(), model.UserTasteProfile{}, scoring.WithBaseScore(math.NaN()))
			convey.So(errors.Is(err, scoring.ErrInvalidConfig), convey.ShouldBeTrue)
		})
	})
}
