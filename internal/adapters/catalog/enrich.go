package catalog

import (
	"context"
	"fmt"

	"github.com/okian/sonar/internal/domain/model"
)

const maxPopularity = 100

// NeedsEnrichment reports whether ev lacks data the catalog can supply.
func NeedsEnrichment(ev model.Event) bool {
	if len(ev.ArtistNames()) == 0 {
		return false
	}
	return len(ev.Genres) == 0 || len(ev.AudioFeatures.Clean()) == 0
}

// Enrich fills missing event genres with the union of its artists' genres
// and missing audio features with the mean of their features, weighted
// towards more popular artists. Data already
// present on the event is never replaced. On lookup failure the event is
// returned unchanged together with the error.
func Enrich(ctx context.Context, r Resolver, ev model.Event) (model.Event, error) {
	if r == nil || !NeedsEnrichment(ev) {
		return ev, nil
	}

	names := ev.ArtistNames()
	found, err := r.Lookup(ctx, names)
	if err != nil {
		return ev, fmt.Errorf("error enriching event '%s': %w", ev.Name, err)
	}
	if len(found) == 0 {
		return ev, nil
	}

	var (
		genres  model.StringList
		seen    = map[string]bool{}
		used    = map[string]bool{}
		vectors []model.AudioFeatures
		weights []float64
	)
	for _, n := range names {
		key := model.NormalizeKey(n)
		a, ok := found[key]
		if !ok || used[key] {
			continue
		}
		used[key] = true
		for _, g := range a.Genres {
			k := model.NormalizeKey(g)
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			genres = append(genres, g)
		}
		if len(a.Features) > 0 {
			vectors = append(vectors, a.Features)
			weights = append(weights, popularityWeight(a.Popularity))
		}
	}

	if len(ev.Genres) == 0 && len(genres) > 0 {
		ev.Genres = genres
	}
	if len(ev.AudioFeatures.Clean()) == 0 && len(vectors) > 0 {
		ev.AudioFeatures = model.WeightedMeanFeatures(vectors, weights)
	}
	return ev, nil
}

// popularityWeight maps a 0-100 popularity to a weight in [1, 2], so an
// artist without a popularity still counts.
func popularityWeight(p int) float64 {
	return 1 + float64(min(max(p, 0), maxPopularity))/maxPopularity
}
