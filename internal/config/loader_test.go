package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okian/sonar/internal/config"
	"github.com/okian/sonar/internal/domain/scoring"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 50_000)
				convey.So(cfg.Catalog.Path, convey.ShouldEqual, ":memory:")
				convey.So(cfg.Scoring, convey.ShouldResemble, scoring.DefaultConfig())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("SONAR_ADDR", ":8080")
			_ = os.Setenv("SONAR_QUEUE_SIZE", "1000")
			_ = os.Setenv("SONAR_WORKER_COUNT", "16")
			_ = os.Setenv("SONAR_RATE_LIMIT__RPS", "5")
			_ = os.Setenv("SONAR_CATALOG__BREAKER_TIMEOUT", "2s")
			_ = os.Setenv("SONAR_SCORING__BASE_SCORE", "35")
			_ = os.Setenv("SONAR_SCORING__NON_MUSIC_MODE", "random")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.RateLimit.RequestsPerSecond, convey.ShouldEqual, 5)
				convey.So(cfg.Catalog.BreakerTimeout, convey.ShouldEqual, 2*time.Second)
				convey.So(cfg.Scoring.BaseScore, convey.ShouldEqual, 35)
				convey.So(cfg.Scoring.NonMusicMode, convey.ShouldEqual, scoring.NonMusicRandom)
				convey.So(cfg.Scoring.Max.Artist, convey.ShouldEqual, 25)
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
worker_count: 24
catalog:
  path: /tmp/artists.db
scoring:
  music_floor: 20
  non_music_max: 12
  max:
    artist: 30
    genre: 15
  music_keywords: [karaoke, choir]
`)
			_ = os.Setenv("SONAR_CONFIG", path)

			cfg, err := config.Load(ctx)

			convey.Convey("Then nested sections should merge with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 24)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 100_000)
				convey.So(cfg.Catalog.Path, convey.ShouldEqual, "/tmp/artists.db")
				convey.So(cfg.Catalog.BreakerFailures, convey.ShouldEqual, 5)
				convey.So(cfg.Scoring.MusicFloor, convey.ShouldEqual, 20)
				convey.So(cfg.Scoring.NonMusicMax, convey.ShouldEqual, 12)
				convey.So(cfg.Scoring.Max.Artist, convey.ShouldEqual, 30)
				convey.So(cfg.Scoring.Max.Audio, convey.ShouldEqual, 7)
			})

			convey.Convey("Then keyword lists should replace the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Scoring.MusicKeywords, convey.ShouldResemble, []string{"karaoke", "choir"})
				convey.So(cfg.Scoring.NonMusicKeywords, convey.ShouldResemble, scoring.DefaultNonMusicKeywords())
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			path := writeConfigFile(t, "addr: \":9090\"\nworker_count: 24\nqueue_size: 300\n")
			_ = os.Setenv("SONAR_CONFIG", path)
			_ = os.Setenv("SONAR_ADDR", ":8080")
			_ = os.Setenv("SONAR_WORKER_COUNT", "32")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 32)
				convey.So(cfg.QueueSize, convey.ShouldEqual, 300)
			})
		})

		convey.Convey("When loading config with an invalid YAML file", func() {
			_ = os.Setenv("SONAR_CONFIG", writeConfigFile(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a non-existent file", func() {
			_ = os.Setenv("SONAR_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("SONAR_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("SONAR_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the scoring band overlaps the music floor", func() {
			_ = os.Setenv("SONAR_SCORING__NON_MUSIC_MAX", "15")

			cfg, err := config.Load(ctx)

			convey.Convey("Then both config and scoring errors should match", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(errors.Is(err, scoring.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, config.EnvPrefix) {
			_ = os.Unsetenv(name)
		}
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sonar.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
