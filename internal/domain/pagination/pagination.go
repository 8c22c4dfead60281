// Package pagination turns a filter and an opaque page token into bounded
// newest-first event queries.
package pagination

import (
	"context"
	"fmt"

	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// Source runs one bounded listing query. Results must be in listing order
// and start strictly after the cursor when one is given.
type Source interface {
	ListEvents(ctx context.Context, filter model.EventFilter, after *model.Cursor, limit int) ([]model.Event, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, filter model.EventFilter, after *model.Cursor, limit int) ([]model.Event, error)

// ListEvents implements Source.
func (f SourceFunc) ListEvents(ctx context.Context, filter model.EventFilter, after *model.Cursor, limit int) ([]model.Event, error) {
	return f(ctx, filter, after, limit)
}

// Page is one page of results. Next is empty on the last page.
type Page struct {
	Events []model.Event `json:"events"`
	Next   string        `json:"next_page_token"`
}

// Engine loads pages from a Source.
type Engine struct {
	src         Source
	pageSize    int
	maxPageSize int
}

// New creates an Engine over src.
func New(src Source, opts ...Option) (*Engine, error) {
	if src == nil {
		return nil, ErrNilSource
	}
	e := &Engine{src: src, pageSize: DefaultPageSize, maxPageSize: DefaultMaxPageSize}
	for _, opt := range opts {
		opt(e)
	}
	if e.pageSize > e.maxPageSize {
		e.pageSize = e.maxPageSize
	}
	return e, nil
}

// PageSize resolves a requested size: zero or negative means the default,
// anything above the cap is capped.
func (e *Engine) PageSize(requested int) int {
	switch {
	case requested <= 0:
		return e.pageSize
	case requested > e.maxPageSize:
		return e.maxPageSize
	}
	return requested
}

// LoadPage returns the page following token under filter. The next token
// is empty exactly when fewer than size records came back.
func (e *Engine) LoadPage(ctx context.Context, filter model.EventFilter, token string, size int) (Page, error) {
	filter = filter.Normalize()
	after, err := DecodeToken(filter, token)
	if err != nil {
		return Page{}, err
	}
	size = e.PageSize(size)

	events, err := e.src.ListEvents(ctx, filter, after, size)
	if err != nil {
		return Page{}, fmt.Errorf("load page: %w", err)
	}
	if len(events) > size {
		events = events[:size]
	}
	page := Page{Events: events}
	if page.Events == nil {
		page.Events = []model.Event{}
	}
	if len(events) == size {
		page.Next = EncodeToken(filter, model.CursorOf(&events[len(events)-1]))
	}
	return page, nil
}

// Collect walks every page under filter and returns up to limit events in
// listing order. truncated reports that the limit cut the walk short.
func (e *Engine) Collect(ctx context.Context, filter model.EventFilter, limit int) (events []model.Event, truncated bool, err error) {
	token := ""
	for {
		page, err := e.LoadPage(ctx, filter, token, e.maxPageSize)
		if err != nil {
			return nil, false, err
		}
		events = append(events, page.Events...)
		if limit > 0 && len(events) >= limit {
			if len(events) > limit || page.Next != "" {
				return events[:limit], true, nil
			}
			return events, false, nil
		}
		if page.Next == "" {
			return events, false, nil
		}
		token = page.Next
	}
}
