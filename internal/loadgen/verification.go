package loadgen

import (
	"errors"
	"fmt"
	"sort"

	"github.com/okian/sonar/internal/domain/types"
)

// VerifyUser checks one user's ranking. ranked holds the per-event lookups
// for every submitted event; top is the first page of the ranking.
//
// It checks that scores stay within [0, 100], that every music event
// outscores every non-music event, that ranks are dense over the whole
// set, and that top is ordered by score then event id.
func VerifyUser(userID string, ranked, top []types.RankedEvent) error {
	var errs []error

	minMusic, maxOther := 101, -1
	distinct := map[int]struct{}{}
	for _, e := range ranked {
		if e.Score < 0 || e.Score > 100 {
			errs = append(errs, fmt.Errorf("%s: score %d out of range", e.EventID, e.Score))
		}
		if e.IsMusicEvent {
			minMusic = min(minMusic, e.Score)
		} else {
			maxOther = max(maxOther, e.Score)
		}
		distinct[e.Score] = struct{}{}
	}
	if maxOther >= 0 && minMusic <= 100 && maxOther >= minMusic {
		errs = append(errs, fmt.Errorf("non-music score %d reaches music score %d", maxOther, minMusic))
	}

	scores := make([]int, 0, len(distinct))
	for s := range distinct {
		scores = append(scores, s)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(scores)))
	denseRank := make(map[int]int, len(scores))
	for i, s := range scores {
		denseRank[s] = i + 1
	}
	for _, e := range ranked {
		if want := denseRank[e.Score]; e.Rank != want {
			errs = append(errs, fmt.Errorf("%s: rank %d, want %d", e.EventID, e.Rank, want))
		}
	}

	for i := 1; i < len(top); i++ {
		prev, cur := top[i-1], top[i]
		if prev.Score < cur.Score || (prev.Score == cur.Score && prev.EventID > cur.EventID) {
			errs = append(errs, fmt.Errorf("top[%d] %s/%d ranks after %s/%d", i, cur.EventID, cur.Score, prev.EventID, prev.Score))
		}
		if prev.Rank > cur.Rank {
			errs = append(errs, fmt.Errorf("top[%d] rank %d after rank %d", i, cur.Rank, prev.Rank))
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w for user %s: %w", ErrVerification, userID, errors.Join(errs...))
}
