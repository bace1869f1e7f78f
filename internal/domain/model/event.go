// Package model contains domain models passed between layers.
package model

import (
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Event is a catalog event as submitted by clients. Only Name is required;
// every other field may be missing or loosely shaped.
type Event struct {
	ID            string        `json:"id,omitempty"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Venue         *Venue        `json:"venue,omitempty"`
	Artists       []Artist      `json:"artists,omitempty"`
	Genres        StringList    `json:"genres,omitempty"`
	Date          Date          `json:"date"`
	AudioFeatures AudioFeatures `json:"audio_features,omitempty"`
}

// eventWire is the loosely typed shape Event decodes from.
type eventWire struct {
	ID            any           `json:"id"`
	Name          any           `json:"name"`
	Description   any           `json:"description"`
	Venue         *Venue        `json:"venue"`
	Artists       artistList    `json:"artists"`
	Genres        StringList    `json:"genres"`
	Date          Date          `json:"date"`
	AudioFeatures AudioFeatures `json:"audio_features"`
}

// UnmarshalJSON decodes an event from catalog feeds that disagree on field
// shapes. Scalar fields accept strings, numbers or name-bearing objects.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w eventWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = Event{
		ID:            coerceName(w.ID),
		Name:          coerceName(w.Name),
		Description:   coerceName(w.Description),
		Venue:         w.Venue,
		Artists:       []Artist(w.Artists),
		Genres:        w.Genres,
		Date:          w.Date,
		AudioFeatures: w.AudioFeatures,
	}
	return nil
}

// Key identifies the event inside a user's ranking. Falls back to the
// normalized name when the catalog did not supply an id, and to a hash of
// the raw name when normalizing leaves nothing.
func (e Event) Key() string {
	if id := strings.TrimSpace(e.ID); id != "" {
		return id
	}
	if k := NormalizeKey(e.Name); k != "" {
		return k
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		return ""
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return "name-" + strconv.FormatUint(h.Sum64(), 16)
}

// ArtistNames returns the non-empty artist names in input order.
func (e Event) ArtistNames() []string {
	names := make([]string, 0, len(e.Artists))
	for _, a := range e.Artists {
		if n := strings.TrimSpace(a.Name); n != "" {
			names = append(names, n)
		}
	}
	return names
}

// Venue describes where an event takes place.
type Venue struct {
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Type     string `json:"type,omitempty"` // legacy alias for category
}

// UnmarshalJSON accepts a bare string as the venue name, or an object whose
// fields may themselves be loosely typed. Other shapes decode to an empty
// venue.
func (v *Venue) UnmarshalJSON(data []byte) error {
	*v = Venue{}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch t := raw.(type) {
	case string:
		v.Name = strings.TrimSpace(t)
	case map[string]any:
		v.Name = coerceName(t["name"])
		v.Category = coerceName(t["category"])
		v.Type = coerceName(t["type"])
	}
	return nil
}

// Kind returns the venue category, preferring Category over Type.
func (v *Venue) Kind() string {
	if v == nil {
		return ""
	}
	if c := strings.TrimSpace(v.Category); c != "" {
		return c
	}
	return strings.TrimSpace(v.Type)
}

// Artist is an event performer. Upstream feeds send either bare strings or
// records; both decode into Name.
type Artist struct {
	Name string
}

// UnmarshalJSON accepts a string, number or object and never fails.
func (a *Artist) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		a.Name = strings.Trim(strings.TrimSpace(string(data)), `"`)
		return nil
	}
	a.Name = coerceName(raw)
	return nil
}

// MarshalJSON always emits the plain-string form.
func (a Artist) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.Name)
}

// artistList decodes the artists field from an array, or from a single
// string, number or record meaning one artist.
type artistList []Artist

func (l *artistList) UnmarshalJSON(data []byte) error {
	*l = nil
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}
	for _, item := range items {
		if name := coerceName(item); name != "" {
			*l = append(*l, Artist{Name: name})
		}
	}
	return nil
}

// StringList decodes from either a JSON array or a single comma separated
// string.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		*l = nil
		return nil
	}
	switch v := raw.(type) {
	case string:
		var out StringList
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		*l = out
	case []any:
		out := make(StringList, 0, len(v))
		for _, item := range v {
			if s := coerceName(item); s != "" {
				out = append(out, s)
			}
		}
		*l = out
	default:
		*l = nil
	}
	return nil
}

// Date is an event start time. The zero value means unknown.
type Date struct {
	time.Time
	dayOnly bool
}

const dayLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// DayOf returns a Date that knows the calendar day of t but not its clock
// time.
func DayOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location()), dayOnly: true}
}

// HasClock reports whether the time of day is known.
func (d Date) HasClock() bool {
	return !d.IsZero() && !d.dayOnly
}

// UnmarshalJSON accepts RFC3339, a few ISO variants and unix seconds.
// Anything else decodes to the zero Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	*d = Date{}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}
	switch v := raw.(type) {
	case string:
		s := strings.TrimSpace(v)
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				d.Time = t
				return nil
			}
		}
		if t, err := time.Parse(dayLayout, s); err == nil {
			*d = DayOf(t)
			return nil
		}
		if secs, err := strconv.ParseInt(s, 10, 64); err == nil && secs > 0 {
			d.Time = time.Unix(secs, 0).UTC()
		}
	case float64:
		if v > 0 {
			d.Time = time.Unix(int64(v), 0).UTC()
		}
	}
	return nil
}

// MarshalJSON emits RFC3339, a bare day when the clock time is unknown, or
// null for an unknown date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if d.dayOnly {
		return json.Marshal(d.Format(dayLayout))
	}
	return json.Marshal(d.Format(time.RFC3339))
}

// coerceName extracts a display string from a loosely typed JSON value.
func coerceName(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case map[string]any:
		for _, k := range []string{"name", "title", "artist_name", "artistName", "id"} {
			if s := coerceName(t[k]); s != "" {
				return s
			}
		}
		return ""
	default:
		return ""
	}
}
