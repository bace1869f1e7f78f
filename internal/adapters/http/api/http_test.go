package api_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/okian/sonar/internal/adapters/catalog"
	"github.com/okian/sonar/internal/adapters/http/api"
	"github.com/okian/sonar/internal/adapters/repository"
	service "github.com/okian/sonar/internal/app"
	"github.com/okian/sonar/internal/domain/model"
	"github.com/okian/sonar/internal/domain/scoring"
	"github.com/okian/sonar/internal/domain/types"
	"github.com/okian/sonar/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.InitWithWriter(io.Discard, logger.FormatText)
}

type mockDeps struct {
	jobs       []types.RankingJob
	ack        types.Ack
	submitErr  error
	ranked     []types.RankedEvent
	lastLimit  int
	artists    []catalog.Artist
	upsertErr  error
	stats      types.Stats
	scoreCalls int
}

func (m *mockDeps) Score(_ context.Context, ev model.Event, p model.UserTasteProfile) (scoring.Result, error) {
	m.scoreCalls++
	return scoring.Score(ev, p)
}

func (m *mockDeps) SubmitRanking(_ context.Context, job types.RankingJob) (types.Ack, error) {
	if m.submitErr != nil {
		return types.Ack{}, m.submitErr
	}
	m.jobs = append(m.jobs, job)
	return m.ack, nil
}

func (m *mockDeps) TopN(_ context.Context, userID string, limit int) ([]types.RankedEvent, error) {
	m.lastLimit = limit
	if userID != "u1" {
		return nil, repository.ErrNotFound
	}
	return m.ranked[:min(limit, len(m.ranked))], nil
}

func (m *mockDeps) Rank(_ context.Context, userID, eventID string) (types.RankedEvent, error) {
	for _, r := range m.ranked {
		if userID == "u1" && r.EventID == eventID {
			return r, nil
		}
	}
	return types.RankedEvent{}, fmt.Errorf("event %s: %w", eventID, repository.ErrNotFound)
}

func (m *mockDeps) UpsertArtists(_ context.Context, artists []catalog.Artist) (int, error) {
	if m.upsertErr != nil {
		return 0, m.upsertErr
	}
	m.artists = append(m.artists, artists...)
	return len(artists), nil
}

func (m *mockDeps) GetStats(context.Context) types.Stats {
	return m.stats
}

func newMux(deps api.Dependencies, opts ...api.Option) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, opts...).Register(mux)
	return mux
}

func do(mux http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](w *httptest.ResponseRecorder) T {
	var v T
	So(json.Unmarshal(w.Body.Bytes(), &v), ShouldBeNil)
	return v
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestScoreEndpoint(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When a music event is scored", func() {
			w := do(mux, http.MethodPost, "/score", `{
				"event": {"name": "Techno Night", "genres": "techno, house", "artists": [{"name": "Artist X"}, "DJ Y"],
				          "venue": {"category": "club"}, "date": "2025-06-13T23:00:00Z"},
				"profile": {"user_id": "u1", "top_genres": [{"genre": "techno", "weight": 1}],
				            "artist_affinities": {"artist x": 0.8}, "venue_preferences": {"club": 1}}
			}`)

			Convey("Then the result and breakdown are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				res := decode[scoring.Result](w)
				So(res.IsMusicEvent, ShouldBeTrue)
				So(res.Classification, ShouldEqual, scoring.ClassMusic)
				So(res.Score, ShouldBeBetweenOrEqual, 15, 100)
				So(len(res.Breakdown), ShouldBeGreaterThanOrEqualTo, 6)
			})
		})

		Convey("When the event has no name", func() {
			w := do(mux, http.MethodPost, "/score", `{"event": {"id": "e1"}, "profile": {}}`)

			Convey("Then 400 invalid_input is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "invalid_input")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(mux, http.MethodPost, "/score", `{nope`)

			Convey("Then 400 bad_request is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](w).Code, ShouldEqual, "bad_request")
				So(deps.scoreCalls, ShouldEqual, 0)
			})
		})

		Convey("When the body exceeds the size limit", func() {
			small := newMux(deps, api.WithMaxBodyBytes(64))
			w := do(small, http.MethodPost, "/score",
				`{"event": {"name": "`+strings.Repeat("x", 128)+`"}, "profile": {"user_id": "u1"}}`)

			Convey("Then 413 payload_too_large is returned", func() {
				So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
				So(decode[errorBody](w).Code, ShouldEqual, "payload_too_large")
				So(deps.scoreCalls, ShouldEqual, 0)
			})
		})

		Convey("When event and profile fields arrive in loose shapes", func() {
			w := do(mux, http.MethodPost, "/score", `{
				"event": {"id": 7, "name": "Techno Night", "venue": "Berghain", "artists": "artistX",
				          "audio_features": {"energy": "0.8"}},
				"profile": {"user_id": "u1", "venue_preferences": {"club": "0.7"},
				            "audio_feature_preferences": {"energy": "0.8"}}
			}`)

			Convey("Then the request is still scored", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				res := decode[scoring.Result](w)
				So(res.IsMusicEvent, ShouldBeTrue)
				audio, ok := res.Contribution(scoring.FactorAudio)
				So(ok, ShouldBeTrue)
				So(audio.Skipped, ShouldBeFalse)
			})
		})

		Convey("When the method does not match", func() {
			w := do(mux, http.MethodGet, "/score", "")

			Convey("Then the mux rejects it", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestRankingEndpoints(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDeps{
			ack: types.Ack{Status: types.AckAccepted, JobID: "job-1", Tasks: 2},
			ranked: []types.RankedEvent{
				{Rank: 1, EventID: "e1", Score: 81, IsMusicEvent: true, Classification: "music"},
				{Rank: 2, EventID: "e2", Score: 40, IsMusicEvent: true, Classification: "music"},
				{Rank: 3, EventID: "e3", Score: 9, Classification: "non-music"},
			},
		}
		mux := newMux(deps, api.WithDefaultLimit(2))

		Convey("When a ranking job is submitted", func() {
			w := do(mux, http.MethodPost, "/rankings", `{
				"job_id": "job-1",
				"profile": {"user_id": "u1", "top_genres": ["techno"]},
				"events": [{"id": "e1", "name": "Techno Night"}, {"id": "e2", "name": "Museum Tour"}]
			}`)

			Convey("Then it is acknowledged with 202", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(decode[types.Ack](w), ShouldResemble, deps.ack)
				So(deps.jobs, ShouldHaveLength, 1)
				So(deps.jobs[0].Profile.UserID, ShouldEqual, "u1")
				So(deps.jobs[0].Profile.TopGenres[0].Weight, ShouldEqual, 1)
				So(deps.jobs[0].Events, ShouldHaveLength, 2)
			})
		})

		Convey("When a duplicate job is submitted", func() {
			deps.ack = types.Ack{Status: types.AckDuplicate, JobID: "job-1", Duplicate: true}
			w := do(mux, http.MethodPost, "/rankings", `{"job_id": "job-1", "profile": {"user_id": "u1"}, "events": [{"name": "x"}]}`)

			Convey("Then it is acknowledged with 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.Ack](w).Duplicate, ShouldBeTrue)
			})
		})

		Convey("When required fields are missing", func() {
			noUser := do(mux, http.MethodPost, "/rankings", `{"profile": {}, "events": [{"name": "x"}]}`)
			noEvents := do(mux, http.MethodPost, "/rankings", `{"profile": {"user_id": "u1"}, "events": []}`)

			Convey("Then validation rejects them", func() {
				So(noUser.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](noUser).Message, ShouldContainSubstring, "profile.user_id")
				So(noEvents.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](noEvents).Message, ShouldContainSubstring, "events")
				So(deps.jobs, ShouldBeEmpty)
			})
		})

		Convey("When the queue is full", func() {
			deps.submitErr = fmt.Errorf("job j: %w", service.ErrBackpressure)
			w := do(mux, http.MethodPost, "/rankings", `{"profile": {"user_id": "u1"}, "events": [{"name": "x"}]}`)

			Convey("Then 429 backpressure is returned", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(decode[errorBody](w).Code, ShouldEqual, "backpressure")
			})
		})

		Convey("When a ranking is read without a limit", func() {
			w := do(mux, http.MethodGet, "/rankings/u1", "")

			Convey("Then the default limit applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.lastLimit, ShouldEqual, 2)
				body := decode[struct {
					UserID string              `json:"user_id"`
					Events []types.RankedEvent `json:"events"`
				}](w)
				So(body.UserID, ShouldEqual, "u1")
				So(body.Events, ShouldHaveLength, 2)
			})
		})

		Convey("When the limit is invalid", func() {
			zero := do(mux, http.MethodGet, "/rankings/u1?limit=0", "")
			junk := do(mux, http.MethodGet, "/rankings/u1?limit=ten", "")

			Convey("Then 400 is returned", func() {
				So(zero.Code, ShouldEqual, http.StatusBadRequest)
				So(junk.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When an unknown user is read", func() {
			w := do(mux, http.MethodGet, "/rankings/ghost?limit=5", "")

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(decode[errorBody](w).Code, ShouldEqual, "not_found")
			})
		})

		Convey("When a single ranked event is read", func() {
			ok := do(mux, http.MethodGet, "/rankings/u1/e3", "")
			missing := do(mux, http.MethodGet, "/rankings/u1/nope", "")

			Convey("Then it is returned or 404s", func() {
				So(ok.Code, ShouldEqual, http.StatusOK)
				So(decode[types.RankedEvent](ok).Rank, ShouldEqual, 3)
				So(missing.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestArtistsEndpoint(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDeps{}
		mux := newMux(deps)

		Convey("When artists are posted", func() {
			w := do(mux, http.MethodPost, "/artists", `{"artists": [
				{"name": "Artist X", "popularity": 80, "genres": ["techno"], "audio_features": {"energy": 0.9}}
			]}`)

			Convey("Then they reach the catalog", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"upserted":1`)
				So(deps.artists, ShouldHaveLength, 1)
				So(deps.artists[0].Features["energy"], ShouldEqual, 0.9)
			})
		})

		Convey("When an artist is invalid", func() {
			noName := do(mux, http.MethodPost, "/artists", `{"artists": [{"popularity": 10}]}`)
			badPop := do(mux, http.MethodPost, "/artists", `{"artists": [{"name": "A", "popularity": 500}]}`)
			empty := do(mux, http.MethodPost, "/artists", `{"artists": []}`)

			Convey("Then validation rejects the request", func() {
				So(noName.Code, ShouldEqual, http.StatusBadRequest)
				So(decode[errorBody](noName).Message, ShouldContainSubstring, "name")
				So(badPop.Code, ShouldEqual, http.StatusBadRequest)
				So(empty.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.artists, ShouldBeEmpty)
			})
		})

		Convey("When the catalog rejects a name", func() {
			deps.upsertErr = fmt.Errorf("artist %q: %w", "--", catalog.ErrInvalidArtist)
			w := do(mux, http.MethodPost, "/artists", `{"artists": [{"name": "--"}]}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestOperationalEndpoints(t *testing.T) {
	Convey("Given the API", t, func() {
		deps := &mockDeps{stats: types.Stats{Started: true, QueueCapacity: 10, BreakerState: "closed"}}
		mux := newMux(deps)

		Convey("When /healthz is requested", func() {
			w := do(mux, http.MethodGet, "/healthz", "")

			Convey("Then Prometheus metrics are served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "sonar_")
			})
		})

		Convey("When /stats is requested", func() {
			w := do(mux, http.MethodGet, "/stats", "")

			Convey("Then the stats are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decode[types.Stats](w), ShouldResemble, deps.stats)
			})
		})

		Convey("When an unknown path is requested", func() {
			w := do(mux, http.MethodGet, "/unknown", "")

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestRateLimit(t *testing.T) {
	Convey("Given a server limited to a burst of one write", t, func() {
		deps := &mockDeps{ack: types.Ack{Status: types.AckAccepted}}
		mux := newMux(deps, api.WithRateLimit(0.001, 1))
		body := `{"profile": {"user_id": "u1"}, "events": [{"name": "x"}]}`

		first := do(mux, http.MethodPost, "/rankings", body)
		second := do(mux, http.MethodPost, "/rankings", body)
		read := do(mux, http.MethodGet, "/stats", "")

		Convey("Then the second write is rejected but reads pass", func() {
			So(first.Code, ShouldEqual, http.StatusAccepted)
			So(second.Code, ShouldEqual, http.StatusTooManyRequests)
			So(second.Header().Get("Retry-After"), ShouldEqual, "1")
			So(decode[errorBody](second).Code, ShouldEqual, "rate_limited")
			So(read.Code, ShouldEqual, http.StatusOK)
		})
	})

	Convey("Given a non-positive rate", t, func() {
		So(api.NewRateLimiter(0, 10), ShouldBeNil)
		var l *api.RateLimiter
		So(l.Allow(), ShouldBeTrue)
	})
}
