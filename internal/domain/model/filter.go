package model

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// EventFilter narrows an event listing. Zero-valued fields do not filter.
// From and To are inclusive calendar dates in DateLayout.
type EventFilter struct {
	Search  string   `json:"search,omitempty"`
	From    string   `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	To      string   `json:"to,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Emotion Emotion  `json:"emotion,omitempty" validate:"omitempty,emotion"`
	Spheres []string `json:"spheres,omitempty"`
}

// Normalize trims the search text and sorts and dedupes the sphere set so
// that equivalent filters compare and hash equal.
func (f EventFilter) Normalize() EventFilter {
	f.Search = strings.TrimSpace(f.Search)
	f.From = strings.TrimSpace(f.From)
	f.To = strings.TrimSpace(f.To)
	if len(f.Spheres) == 0 {
		f.Spheres = nil
		return f
	}
	spheres := make([]string, 0, len(f.Spheres))
	for _, s := range f.Spheres {
		if s = strings.TrimSpace(s); s != "" {
			spheres = append(spheres, s)
		}
	}
	sort.Strings(spheres)
	f.Spheres = dedupeIDs(spheres)
	if len(f.Spheres) == 0 {
		f.Spheres = nil
	}
	return f
}

// Matches reports whether e passes every set field of the filter.
//
// Search is a case-insensitive substring match on title or description.
// Spheres matches when the event shares at least one sphere with the filter.
func (f EventFilter) Matches(e *Event) bool {
	if f.Emotion != "" && e.Emotion != f.Emotion {
		return false
	}
	if f.From != "" && e.Date < f.From {
		return false
	}
	if f.To != "" && e.Date > f.To {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		if !strings.Contains(strings.ToLower(e.Title), q) &&
			!strings.Contains(strings.ToLower(e.Description), q) {
			return false
		}
	}
	if len(f.Spheres) > 0 {
		hit := false
		for _, s := range f.Spheres {
			if e.HasSphere(s) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// Fingerprint returns a stable hash of the normalized filter, used in cache
// keys and page tokens.
func (f EventFilter) Fingerprint() string {
	n := f.Normalize()
	var b strings.Builder
	b.WriteString(strings.ToLower(n.Search))
	b.WriteByte(0)
	b.WriteString(n.From)
	b.WriteByte(0)
	b.WriteString(n.To)
	b.WriteByte(0)
	b.WriteString(string(n.Emotion))
	b.WriteByte(0)
	b.WriteString(strings.Join(n.Spheres, ","))
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

// Cursor is the sort key of the last event a page returned.
type Cursor struct {
	Date      string    `json:"d"`
	CreatedAt time.Time `json:"c"`
	ID        string    `json:"i"`
}

// CursorOf returns the sort key of e.
func CursorOf(e *Event) Cursor {
	return Cursor{Date: e.Date, CreatedAt: e.CreatedAt, ID: e.ID}
}

// Less orders events newest first: date desc, then creation time desc,
// then id desc so the order is total.
func Less(a, b *Event) bool {
	return CursorOf(a).Before(CursorOf(b))
}

// Before reports whether c sorts ahead of o in listing order.
func (c Cursor) Before(o Cursor) bool {
	if c.Date != o.Date {
		return c.Date > o.Date
	}
	if !c.CreatedAt.Equal(o.CreatedAt) {
		return c.CreatedAt.After(o.CreatedAt)
	}
	return c.ID > o.ID
}

// SortEvents sorts events in listing order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool { return Less(&events[i], &events[j]) })
}
