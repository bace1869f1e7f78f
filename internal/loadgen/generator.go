package loadgen

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/okian/sonar/internal/adapters/catalog"
	"github.com/okian/sonar/internal/domain/model"
)

var musicGenres = []string{ //nolint:gochecknoglobals // fixed generator vocabulary
	"house", "techno", "jazz", "indie rock", "hip hop", "drum and bass", "disco", "trance",
}

var musicFormats = []string{ //nolint:gochecknoglobals // fixed generator vocabulary
	"%s Club Night", "%s Festival", "%s Live Music Showcase", "Open Air %s Rave", "%s Concert",
}

var nonMusicNames = []string{ //nolint:gochecknoglobals // fixed generator vocabulary
	"Castle Guided Tour", "Modern Art Gallery Admission", "Harbour Sightseeing Cruise",
	"Natural History Museum Exhibition", "City Zoo Day Pass", "Cathedral Skip the Line Tour",
}

var venueCategories = []string{"club", "concert_hall", "festival", "bar", "outdoor"} //nolint:gochecknoglobals // fixed generator vocabulary

var timeKeys = []string{"weekend", "weekday", "evening", "night", "afternoon"} //nolint:gochecknoglobals // fixed generator vocabulary

const artistsPerGenre = 4

// Generator builds deterministic synthetic profiles, events and artists.
type Generator struct {
	rng     *rand.Rand
	artists []catalog.Artist
	byGenre map[string][]string
	start   time.Time
}

// NewGenerator returns a Generator seeded with seed.
func NewGenerator(seed uint64) *Generator {
	g := &Generator{
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		byGenre: make(map[string][]string, len(musicGenres)),
		start:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, genre := range musicGenres {
		for i := range artistsPerGenre {
			name := fmt.Sprintf("%s Collective %d", titleCase(genre), i+1)
			g.byGenre[genre] = append(g.byGenre[genre], name)
			g.artists = append(g.artists, catalog.Artist{
				Name:       name,
				Popularity: g.rng.IntN(101),
				Genres:     []string{genre},
				Features:   g.features(),
			})
		}
	}
	return g
}

// Artists returns the synthetic catalog the generated events refer to.
func (g *Generator) Artists() []catalog.Artist {
	return g.artists
}

// Profile returns a taste profile for userID with two or three favourite
// genres.
func (g *Generator) Profile(userID string) model.UserTasteProfile {
	p := model.UserTasteProfile{
		UserID:                  userID,
		AudioFeaturePreferences: g.features(),
		VenuePreferences:        map[string]float64{},
		TimePreferences:         map[string]float64{},
		ArtistAffinities:        map[string]float64{},
	}
	for i, idx := range g.rng.Perm(len(musicGenres))[:2+g.rng.IntN(2)] {
		genre := musicGenres[idx]
		p.TopGenres = append(p.TopGenres, model.GenreWeight{Genre: genre, Weight: 1 - 0.2*float64(i)})
		artists := g.byGenre[genre]
		p.ArtistAffinities[artists[g.rng.IntN(len(artists))]] = 0.5 + g.rng.Float64()/2
	}
	for _, v := range venueCategories {
		p.VenuePreferences[v] = round2(g.rng.Float64())
	}
	for _, k := range timeKeys {
		p.TimePreferences[k] = round2(g.rng.Float64())
	}
	return p
}

// Events returns n events, a musicRatio share of them music events.
func (g *Generator) Events(n int, musicRatio float64) []model.Event {
	out := make([]model.Event, n)
	for i := range out {
		if g.rng.Float64() < musicRatio {
			out[i] = g.musicEvent()
		} else {
			out[i] = g.nonMusicEvent()
		}
	}
	return out
}

func (g *Generator) musicEvent() model.Event {
	genre := musicGenres[g.rng.IntN(len(musicGenres))]
	artists := g.byGenre[genre]
	ev := model.Event{
		ID:    g.eventID(),
		Name:  fmt.Sprintf(musicFormats[g.rng.IntN(len(musicFormats))], titleCase(genre)),
		Venue: &model.Venue{Name: "Warehouse " + fmt.Sprint(g.rng.IntN(50)), Category: venueCategories[g.rng.IntN(len(venueCategories))]},
		Date:  model.Date{Time: g.start.Add(time.Duration(g.rng.IntN(90*24)) * time.Hour)},
	}
	for _, idx := range g.rng.Perm(len(artists))[:1+g.rng.IntN(2)] {
		ev.Artists = append(ev.Artists, model.Artist{Name: artists[idx]})
	}
	// Roughly half the events leave genres and features to catalog enrichment.
	if g.rng.IntN(2) == 0 {
		ev.Genres = model.StringList{genre}
		ev.AudioFeatures = g.features()
	}
	return ev
}

func (g *Generator) nonMusicEvent() model.Event {
	return model.Event{
		ID:    g.eventID(),
		Name:  nonMusicNames[g.rng.IntN(len(nonMusicNames))],
		Venue: &model.Venue{Name: "Old Town", Category: "museum"},
		Date:  model.Date{Time: g.start.Add(time.Duration(g.rng.IntN(90*24)) * time.Hour)},
	}
}

func (g *Generator) eventID() string {
	return fmt.Sprintf("evt-%016x", g.rng.Uint64())
}

func (g *Generator) features() model.AudioFeatures {
	return model.AudioFeatures{
		"energy":       round2(g.rng.Float64()),
		"danceability": round2(g.rng.Float64()),
		"valence":      round2(g.rng.Float64()),
		"acousticness": round2(g.rng.Float64()),
	}
}

func round2(f float64) float64 {
	return float64(int(f*100)) / 100
}

func titleCase(s string) string {
	b := []byte(s)
	upper := true
	for i, c := range b {
		if upper && c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
		upper = c == ' '
	}
	return string(b)
}
