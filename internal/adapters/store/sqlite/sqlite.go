// Package sqlite is the embedded SQL store backend for self-hosted mode.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/Aygren/balendip-sub000/internal/adapters/store"
	"github.com/Aygren/balendip-sub000/internal/domain/model"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Backend stores events and spheres in sqlite.
type Backend struct {
	db  *sql.DB
	now func() time.Time
}

var (
	_ store.Backend        = (*Backend)(nil)
	_ store.SphereReplacer = (*Backend)(nil)
)

// Open opens (or creates) the database at path and applies migrations.
func Open(path string) (*Backend, error) {
	if path == "" {
		return nil, fmt.Errorf("open: empty db path")
	}

	var dsn string
	if path == MemoryPath {
		dsn = "file::memory:?_pragma=busy_timeout(5000)"
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("open: create db dir: %w", err)
		}
		dsn = "file:" + path + "?mode=rwc&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: sql open: %w", err)
	}
	if path == MemoryPath {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: ping: %w", err)
	}
	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open: migrate: %w", err)
	}
	return &Backend{db: db, now: time.Now}, nil
}

// Close implements store.Backend.
func (b *Backend) Close() error { return b.db.Close() }

// classify maps driver errors onto the store taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var se *sqlitedrv.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return store.Transient(fmt.Errorf("%s: %w", op, err))
		case sqlite3.SQLITE_CONSTRAINT:
			return &store.ClientError{Kind: store.ErrConflict, Msg: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

const eventColumns = `id, user_id, title, description, emoji, emotion, spheres, date, time, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (model.Event, error) {
	var (
		e                    model.Event
		emotion, spheres     string
		createdAt, updatedAt int64
	)
	err := r.Scan(&e.ID, &e.UserID, &e.Title, &e.Description, &e.Emoji, &emotion, &spheres,
		&e.Date, &e.Time, &createdAt, &updatedAt)
	if err != nil {
		return model.Event{}, err
	}
	e.Emotion = model.Emotion(emotion)
	if err := json.Unmarshal([]byte(spheres), &e.Spheres); err != nil {
		return model.Event{}, fmt.Errorf("decode spheres of %s: %w", e.ID, err)
	}
	if e.Spheres == nil {
		e.Spheres = []string{}
	}
	e.CreatedAt = time.Unix(0, createdAt).UTC()
	e.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return e, nil
}

// eventWhere renders the filter, scoping and cursor predicates.
func eventWhere(q store.EventQuery) (string, []any) {
	clauses := []string{"user_id = ?"}
	args := []any{q.UserID}
	f := q.Filter

	if f.Emotion != "" {
		clauses = append(clauses, "emotion = ?")
		args = append(args, string(f.Emotion))
	}
	if f.From != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, f.To)
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		clauses = append(clauses, "(instr("+foldFunc+"(title), ?) > 0 OR instr("+foldFunc+"(description), ?) > 0)")
		args = append(args, s, s)
	}
	if len(f.Spheres) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.Spheres)), ",")
		clauses = append(clauses, "EXISTS (SELECT 1 FROM json_each(events.spheres) WHERE json_each.value IN ("+marks+"))")
		for _, s := range f.Spheres {
			args = append(args, s)
		}
	}
	if c := q.After; c != nil {
		n := c.CreatedAt.UnixNano()
		clauses = append(clauses, "(date < ? OR (date = ? AND (created_at < ? OR (created_at = ? AND id < ?))))")
		args = append(args, c.Date, c.Date, n, n, c.ID)
	}
	return strings.Join(clauses, " AND "), args
}

// ListEvents implements store.Backend.
func (b *Backend) ListEvents(ctx context.Context, q store.EventQuery) ([]model.Event, error) {
	where, args := eventWhere(q)
	query := `SELECT ` + eventColumns + ` FROM events WHERE ` + where +
		` ORDER BY date DESC, created_at DESC, id DESC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify("list events", err)
	}
	defer rows.Close()

	out := make([]model.Event, 0, q.Limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, classify("list events: scan", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list events: rows", err)
	}
	return out, nil
}

// GetEvent implements store.Backend.
func (b *Backend) GetEvent(ctx context.Context, userID, id string) (model.Event, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, store.NotFound(store.KindEvents, id)
	}
	if err != nil {
		return model.Event{}, classify("get event", err)
	}
	return e, nil
}

func encodeSpheres(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	raw, err := json.Marshal(ids)
	return string(raw), err
}

// InsertEvent implements store.Backend.
func (b *Backend) InsertEvent(ctx context.Context, e model.Event) (model.Event, error) {
	now := b.now().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Spheres == nil {
		e.Spheres = []string{}
	}
	spheres, err := encodeSpheres(e.Spheres)
	if err != nil {
		return model.Event{}, fmt.Errorf("insert event: encode spheres: %w", err)
	}
	_, err = b.db.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.Title, e.Description, e.Emoji, string(e.Emotion), spheres, e.Date, e.Time,
		e.CreatedAt.UnixNano(), e.UpdatedAt.UnixNano())
	if err != nil {
		return model.Event{}, classify("insert event", err)
	}
	return e, nil
}

// UpdateEvent implements store.Backend.
func (b *Backend) UpdateEvent(ctx context.Context, e model.Event) (model.Event, error) {
	spheres, err := encodeSpheres(e.Spheres)
	if err != nil {
		return model.Event{}, fmt.Errorf("update event: encode spheres: %w", err)
	}
	now := b.now().UTC()
	res, err := b.db.ExecContext(ctx, `UPDATE events SET title = ?, description = ?, emoji = ?, emotion = ?,
		spheres = ?, date = ?, time = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		e.Title, e.Description, e.Emoji, string(e.Emotion), spheres, e.Date, e.Time, now.UnixNano(), e.ID, e.UserID)
	if err != nil {
		return model.Event{}, classify("update event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Event{}, store.NotFound(store.KindEvents, e.ID)
	}
	return b.GetEvent(ctx, e.UserID, e.ID)
}

// DeleteEvent implements store.Backend.
func (b *Backend) DeleteEvent(ctx context.Context, userID, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM events WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return classify("delete event", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFound(store.KindEvents, id)
	}
	return nil
}

const sphereColumns = `id, user_id, name, color, icon, score, is_default, created_at, updated_at`

func scanSphere(r rowScanner) (model.LifeSphere, error) {
	var (
		s                    model.LifeSphere
		createdAt, updatedAt int64
	)
	if err := r.Scan(&s.ID, &s.UserID, &s.Name, &s.Color, &s.Icon, &s.Score, &s.IsDefault, &createdAt, &updatedAt); err != nil {
		return model.LifeSphere{}, err
	}
	s.CreatedAt = time.Unix(0, createdAt).UTC()
	s.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return s, nil
}

// ListSpheres implements store.Backend.
func (b *Backend) ListSpheres(ctx context.Context, userID string) ([]model.LifeSphere, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT `+sphereColumns+` FROM life_spheres WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, classify("list spheres", err)
	}
	defer rows.Close()

	out := make([]model.LifeSphere, 0)
	for rows.Next() {
		s, err := scanSphere(rows)
		if err != nil {
			return nil, classify("list spheres: scan", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list spheres: rows", err)
	}
	return out, nil
}

// GetSphere implements store.Backend.
func (b *Backend) GetSphere(ctx context.Context, userID, id string) (model.LifeSphere, error) {
	row := b.db.QueryRowContext(ctx, `SELECT `+sphereColumns+` FROM life_spheres WHERE id = ? AND user_id = ?`, id, userID)
	s, err := scanSphere(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.LifeSphere{}, store.NotFound(store.KindSpheres, id)
	}
	if err != nil {
		return model.LifeSphere{}, classify("get sphere", err)
	}
	return s, nil
}

// InsertSpheres implements store.Backend. All rows are written in one
// transaction; creation times are offset by a nanosecond to keep order.
func (b *Backend) InsertSpheres(ctx context.Context, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("insert spheres: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	out, err := b.insertSpheres(ctx, tx, spheres)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("insert spheres: commit", err)
	}
	return out, nil
}

// ReplaceSpheres implements store.SphereReplacer: delete and insert share
// one transaction.
func (b *Backend) ReplaceSpheres(ctx context.Context, userID string, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("replace spheres: begin", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM life_spheres WHERE user_id = ?`, userID); err != nil {
		return nil, classify("replace spheres: delete", err)
	}
	out, err := b.insertSpheres(ctx, tx, spheres)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("replace spheres: commit", err)
	}
	return out, nil
}

func (b *Backend) insertSpheres(ctx context.Context, tx *sql.Tx, spheres []model.LifeSphere) ([]model.LifeSphere, error) {
	now := b.now().UTC()
	out := make([]model.LifeSphere, len(spheres))
	for i, s := range spheres {
		if s.ID == "" {
			s.ID = uuid.NewString()
		}
		s.Score = model.ClampScore(s.Score)
		s.CreatedAt = now.Add(time.Duration(i))
		s.UpdatedAt = s.CreatedAt
		_, err := tx.ExecContext(ctx, `INSERT INTO life_spheres (`+sphereColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.UserID, s.Name, s.Color, s.Icon, s.Score, s.IsDefault, s.CreatedAt.UnixNano(), s.UpdatedAt.UnixNano())
		if err != nil {
			return nil, classify("insert spheres", err)
		}
		out[i] = s
	}
	return out, nil
}

// UpdateSphere implements store.Backend.
func (b *Backend) UpdateSphere(ctx context.Context, s model.LifeSphere) (model.LifeSphere, error) {
	res, err := b.db.ExecContext(ctx, `UPDATE life_spheres SET name = ?, color = ?, icon = ?, score = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		s.Name, s.Color, s.Icon, model.ClampScore(s.Score), b.now().UTC().UnixNano(), s.ID, s.UserID)
	if err != nil {
		return model.LifeSphere{}, classify("update sphere", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.LifeSphere{}, store.NotFound(store.KindSpheres, s.ID)
	}
	return b.GetSphere(ctx, s.UserID, s.ID)
}

// DeleteSphere implements store.Backend.
func (b *Backend) DeleteSphere(ctx context.Context, userID, id string) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM life_spheres WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return classify("delete sphere", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.NotFound(store.KindSpheres, id)
	}
	return nil
}

// DeleteAllSpheres implements store.Backend.
func (b *Backend) DeleteAllSpheres(ctx context.Context, userID string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM life_spheres WHERE user_id = ?`, userID); err != nil {
		return classify("delete all spheres", err)
	}
	return nil
}
