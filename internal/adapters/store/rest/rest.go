// Package rest is the store backend for a hosted PostgREST-style service
// exposing tables under /rest/v1/<table>.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// DefaultTimeout bounds one HTTP round trip.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 4 << 10

// Backend talks to the hosted data service over HTTP.
type Backend struct {
	base   *url.URL
	apiKey string
	client *http.Client
	now    func() time.Time
}

var _ store.Backend = (*Backend)(nil)

// Option configures a Backend.
type Option func(*Backend)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) {
		if c != nil {
			b.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.client.Timeout = d
		}
	}
}

// New creates a Backend for the service at baseURL.
func New(baseURL, apiKey string, opts ...Option) (*Backend, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("rest: invalid base url %q", baseURL)
	}
	b := &Backend{
		base:   u,
		apiKey: apiKey,
		client: &http.Client{Timeout: DefaultTimeout},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Close implements store.Backend.
func (b *Backend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *Backend) endpoint(table store.Kind, q url.Values) string {
	u := *b.base
	u.Path = u.Path + "/rest/v1/" + string(table)
	u.RawQuery = q.Encode()
	return u.String()
}

type apiError struct {
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
	Code    string `json:"code"`
}

// call performs one request and decodes a JSON array response into out.
func (b *Backend) call(ctx context.Context, method string, table store.Kind, q url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("rest: encode %s body: %w", table, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.endpoint(table, q), reader)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}
	if b.apiKey != "" {
		req.Header.Set("apikey", b.apiKey)
	}
	if token, ok := store.TokenFromContext(ctx); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return store.Transient(fmt.Errorf("%s %s: %w", method, table, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(raw))
		var ae apiError
		if json.Unmarshal(raw, &ae) == nil && ae.Message != "" {
			msg = ae.Message
		}
		return store.FromStatus(resp.StatusCode, msg)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return store.Transient(fmt.Errorf("decode %s response: %w", table, err))
	}
	return nil
}

// quote renders a PostgREST filter value that may contain reserved
// characters.
func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

func arrayLiteral(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = quote(s)
	}
	return "{" + strings.Join(quoted, ",") + "}"
}

// eventQuery renders an EventQuery as PostgREST query parameters.
func eventQuery(q store.EventQuery) url.Values {
	v := url.Values{}
	v.Set("select", "*")
	v.Set("user_id", "eq."+q.UserID)
	v.Set("order", "date.desc,created_at.desc,id.desc")
	if q.Limit > 0 {
		v.Set("limit", fmt.Sprint(q.Limit))
	}

	f := q.Filter
	if f.Emotion != "" {
		v.Set("emotion", "eq."+string(f.Emotion))
	}
	if f.From != "" {
		v.Add("date", "gte."+f.From)
	}
	if f.To != "" {
		v.Add("date", "lte."+f.To)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := quote("*" + s + "*")
		v.Set("or", "(title.ilike."+pattern+",description.ilike."+pattern+")")
	}
	if len(f.Spheres) > 0 {
		v.Set("spheres", "ov."+arrayLiteral(f.Spheres))
	}
	if c := q.After; c != nil {
		d := quote(c.Date)
		ts := quote(c.CreatedAt.UTC().Format(time.RFC3339Nano))
		id := quote(c.ID)
		v.Set("and", fmt.Sprintf("(or(date.lt.%s,and(date.eq.%s,or(created_at.lt.%s,and(created_at.eq.%s,id.lt.%s)))))",
			d, d, ts, ts, id))
	}
	return v
}

func scoped(userID, id string) url.Values {
	v := url.Values{}
	v.Set("user_id", "eq."+userID)
	if id != "" {
		v.Set("id", "eq."+id)
	}
	return v
}

// eventRow is the writable column set of the events table.
type eventRow struct {
	UserID      string        `json:"user_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Emoji       string        `json:"emoji"`
	Emotion     model.Emotion `json:"emotion"`
	Spheres     []string      `json:"spheres"`
	Date        string        `json:"date"`
	Time        *string       `json:"time"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
}

func toEventRow(e model.Event) eventRow {
	r := eventRow{
		UserID:      e.UserID,
		Title:       e.Title,
		Description: e.Description,
		Emoji:       e.Emoji,
		Emotion:     e.Emotion,
		Spheres:     e.Spheres,
		Date:        e.Date,
	}
	if r.Spheres == nil {
		r.Spheres = []string{}
	}
	if e.Time != "" {
		t := e.Time
		r.Time = &t
	}
	return r
}

// wireEvent tolerates the nullable columns of the hosted schema.
type wireEvent struct {
	ID          string        `json:"id"`
	UserID      string        `json:"user_id"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	Emoji       *string       `json:"emoji"`
	Emotion     model.Emotion `json:"emotion"`
	Spheres     []string      `json:"spheres"`
	Date        string        `json:"date"`
	Time        *string       `json:"time"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

func (w wireEvent) event() model.Event {
	e := model.Event{
		ID:        w.ID,
		UserID:    w.UserID,
		Title:     w.Title,
		Emotion:   w.Emotion,
		Spheres:   w.Spheres,
		Date:      w.Date,
		CreatedAt: w.CreatedAt.UTC(),
		UpdatedAt: w.UpdatedAt.UTC(),
	}
	if w.Description != nil {
		e.Description = *w.Description
	}
	if w.Emoji != nil {
		e.Emoji = *w.Emoji
	}
	if w.Time != nil {
		e.Time = *w.Time
	}
	if e.Spheres == nil {
		e.Spheres = []string{}
	}
	return e
}

func events(rows []wireEvent) []model.Event {
	out := make([]model.Event, len(rows))
	for i, r := range rows {
		out[i] = r.event()
	}
	return out
}

// ListEvents implements store.Backend.
func (b *Backend) ListEvents(ctx context.Context, q store.EventQuery) ([]model.Event, error) {
	var rows []wireEvent
	if err := b.call(ctx, http.MethodGet, store.KindEvents, eventQuery(q), nil, &rows); err != nil {
		return nil, err
	}
	return events(rows), nil
}

// GetEvent implements store.Backend.
func (b *Backend) GetEvent(ctx context.Context, userID, id string) (model.Event, error) {
	q := scoped(userID, id)
	q.Set("select", "*")
	q.Set("limit", "1")
	var rows []wireEvent
	if err := b.call(ctx, http.MethodGet, store.KindEvents, q, nil, &rows); err != nil {
		return model.Event{}, err
	}
	if len(rows) == 0 {
		return model.Event{}, store.NotFound(store.KindEvents, id)
	}
	return rows[0].event(), nil
}

// InsertEvent implements store.Backend. The service assigns the id and
// timestamps.
func (b *Backend) InsertEvent(ctx context.Context, e model.Event) (model.Event, error) {
	var rows []wireEvent
	if err := b.call(ctx, http.MethodPost, store.KindEvents, url.Values{}, []eventRow{toEventRow(e)}, &rows); err != nil {
		return model.Event{}, err
	}
	if len(rows) == 0 {
		return model.Event{}, store.Transient(errors.New("insert events: empty representation"))
	}
	return rows[0].event(), nil
}

// UpdateEvent implements store.Backend.
func (b *Backend) UpdateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	row := toEventRow(e)
	now := b.now().UTC()
	row.UpdatedAt = &now
	var rows []wireEvent
	if err := b.call(ctx, http.MethodPatch, store.KindEvents, scoped(e.UserID, e.ID), row, &rows); err != nil {
		return model.Event{}, err
	}
	if len(rows) == 0 {
		return model.Event{}, store.NotFound(store.KindEvents, e.ID)
	}
	return rows[0].event(), nil
}

// DeleteEvent implements store.Backend.
func (b *Backend) DeleteEvent(ctx context.Context, userID, id string) error {
	var rows []wireEvent
	if err := b.call(ctx, http.MethodDelete, store.KindEvents, scoped(userID, id), nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.NotFound(store.KindEvents, id)
	}
	return nil
}

// sphereRow is the writable column set of the life_spheres table.
type sphereRow struct {
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	Icon      string `json:"icon"`
	Score     int    `json:"score"`
	IsDefault bool   `json:"is_default"`
}

func toSphereRow(s model.LifeSphere) sphereRow {
	return sphereRow{
		UserID:    s.UserID,
		Name:      s.Name,
		Color:     s.Color,
		Icon:      s.Icon,
		Score:     model.ClampScore(s.Score),
		IsDefault: s.IsDefault,
	}
}

func clampAll(spheres []model.LifeSphere) []model.LifeSphere {
	for i := range spheres {
		spheres[i].Score = model.ClampScore(spheres[i].Score)
		spheres[i].CreatedAt = spheres[i].CreatedAt.UTC()
		spheres[i].UpdatedAt = spheres[i].UpdatedAt.UTC()
	}
	if spheres == nil {
		return []model.LifeSphere{}
	}
	return spheres
}

// ListSpheres implements store.Backend.
func (b *Backend) ListSpheres(ctx context.Context, userID string) ([]model.LifeSphere, error) {
	q := scoped(userID, "")
	q.Set("select", "*")
	q.Set("order", "created_at.asc,id.asc")
	var rows []model.LifeSphere
	if err := b.call(ctx, http.MethodGet, store.KindSpheres, q, nil, &rows); err != nil {
		return nil, err
	}
	return clampAll(rows), nil
}

// GetSphere implements store.Backend.
func (b *Backend) GetSphere(ctx context.Context, userID, id string) (model.LifeSphere, error) {
	q := scoped(userID, id)
	q.Set("select", "*")
	q.Set("limit", "1")
	var rows []model.LifeSphere
	if err := b.call(ctx, http.MethodGet, store.KindSpheres, q, nil, &rows); err != nil {
		return model.LifeSphere{}, err
	}
	if len(rows) == 0 {
		return model.LifeSphere{}, store.NotFound(store.KindSpheres, id)
	}
	return clampAll(rows)[0], nil
}

// InsertSpheres implements store.Backend as one bulk insert.
func (b *Backend) InsertSpheres(ctx context.Context, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	body := make([]sphereRow, len(spheres))
	for i, s := range spheres {
		body[i] = toSphereRow(s)
	}
	var rows []model.LifeSphere
	if err := b.call(ctx, http.MethodPost, store.KindSpheres, url.Values{}, body, &rows); err != nil {
		return nil, err
	}
	return clampAll(rows), nil
}

// UpdateSphere implements store.Backend. The default flag is not writable.
func (b *Backend) UpdateSphere(ctx context.Context, s model.LifeSphere) (model.LifeSphere, error) {
	now := b.now().UTC()
	body := map[string]any{
		"name":       s.Name,
		"color":      s.Color,
		"icon":       s.Icon,
		"score":      model.ClampScore(s.Score),
		"updated_at": now,
	}
	var rows []model.LifeSphere
	if err := b.call(ctx, http.MethodPatch, store.KindSpheres, scoped(s.UserID, s.ID), body, &rows); err != nil {
		return model.LifeSphere{}, err
	}
	if len(rows) == 0 {
		return model.LifeSphere{}, store.NotFound(store.KindSpheres, s.ID)
	}
	return clampAll(rows)[0], nil
}

// DeleteSphere implements store.Backend.
func (b *Backend) DeleteSphere(ctx context.Context, userID, id string) error {
	var rows []model.LifeSphere
	if err := b.call(ctx, http.MethodDelete, store.KindSpheres, scoped(userID, id), nil, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return store.NotFound(store.KindSpheres, id)
	}
	return nil
}

// DeleteAllSpheres implements store.Backend.
func (b *Backend) DeleteAllSpheres(ctx context.Context, userID string) error {
	return b.call(ctx, http.MethodDelete, store.KindSpheres, scoped(userID, ""), nil, nil)
}
