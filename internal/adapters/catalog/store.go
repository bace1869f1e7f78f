// Package catalog stores artist metadata and uses it to fill in events that
// arrive without genres or audio features.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/sonar/internal/domain/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Artist is the catalog view of a performer.
type Artist struct {
	Name       string              `json:"name" validate:"required,max=256"`
	Popularity int                 `json:"popularity,omitempty" validate:"gte=0,lte=100"`
	Genres     []string            `json:"genres,omitempty" validate:"max=64,dive,required"`
	Features   model.AudioFeatures `json:"audio_features,omitempty"`
}

// artistRow is the persisted form of an Artist.
type artistRow struct {
	NameKey      string `gorm:"primaryKey"`
	DisplayName  string `gorm:"not null"`
	Popularity   int
	Genres       string // JSON array
	Energy       *float64
	Danceability *float64
	Valence      *float64
	Acousticness *float64
	UpdatedAt    time.Time
}

func (artistRow) TableName() string { return "artists" }

func toRow(a Artist) (artistRow, error) {
	genres, err := json.Marshal(a.Genres)
	if err != nil {
		return artistRow{}, fmt.Errorf("error encoding genres for '%s': %w", a.Name, err)
	}
	f := a.Features.Clean()
	pick := func(name string) *float64 {
		if v, ok := f[name]; ok {
			return &v
		}
		return nil
	}
	return artistRow{
		NameKey:      model.NormalizeKey(a.Name),
		DisplayName:  strings.TrimSpace(a.Name),
		Popularity:   a.Popularity,
		Genres:       string(genres),
		Energy:       pick(model.FeatureEnergy),
		Danceability: pick(model.FeatureDanceability),
		Valence:      pick(model.FeatureValence),
		Acousticness: pick(model.FeatureAcousticness),
	}, nil
}

func (r artistRow) artist() Artist {
	a := Artist{Name: r.DisplayName, Popularity: r.Popularity}
	if r.Genres != "" {
		_ = json.Unmarshal([]byte(r.Genres), &a.Genres)
	}
	f := model.AudioFeatures{}
	for name, v := range map[string]*float64{
		model.FeatureEnergy:       r.Energy,
		model.FeatureDanceability: r.Danceability,
		model.FeatureValence:      r.Valence,
		model.FeatureAcousticness: r.Acousticness,
	} {
		if v != nil {
			f[name] = *v
		}
	}
	if len(f) > 0 {
		a.Features = f
	}
	return a
}

// Store is a sqlite-backed artist catalog.
type Store struct{ *gorm.DB }

var _ Resolver = (*Store)(nil)

// Open returns a migrated catalog at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening catalog at '%s': %w", path, err)
	}

	// sqlite allows a single writer, and every ":memory:" connection would
	// otherwise get its own empty database.
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting catalog handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := gdb.AutoMigrate(&artistRow{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("error migrating catalog at '%s': %w", path, err)
	}
	return &Store{gdb}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return fmt.Errorf("error getting catalog handle: %w", err)
	}
	return sqlDB.Close()
}

// Upsert inserts or replaces artists by normalized name and returns how many
// rows were written. Later duplicates in the batch win.
func (s *Store) Upsert(ctx context.Context, artists []Artist) (int, error) {
	byKey := make(map[string]int, len(artists))
	rows := make([]artistRow, 0, len(artists))
	for _, a := range artists {
		row, err := toRow(a)
		if err != nil {
			return 0, err
		}
		if row.NameKey == "" {
			return 0, fmt.Errorf("artist %q: %w", a.Name, ErrInvalidArtist)
		}
		if i, ok := byKey[row.NameKey]; ok {
			rows[i] = row
			continue
		}
		byKey[row.NameKey] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	if err := s.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).
		Error; err != nil {
		return 0, fmt.Errorf("error upserting %d artists: %w", len(rows), err)
	}
	return len(rows), nil
}

// Lookup implements Resolver. Unknown names are absent from the result.
func (s *Store) Lookup(ctx context.Context, names []string) (map[string]Artist, error) {
	keys := make([]string, 0, len(names))
	for _, n := range names {
		if k := model.NormalizeKey(n); k != "" {
			keys = append(keys, k)
		}
	}
	out := make(map[string]Artist, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	var rows []artistRow
	if err := s.WithContext(ctx).
		Where("name_key IN ?", keys).
		Find(&rows).
		Error; err != nil {
		return nil, fmt.Errorf("error looking up %d artists: %w", len(keys), err)
	}
	for _, r := range rows {
		out[r.NameKey] = r.artist()
	}
	return out, nil
}

// Count returns the number of catalogued artists.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.WithContext(ctx).Model(&artistRow{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("error counting artists: %w", err)
	}
	return n, nil
}
