package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pingwatch/internal/domain"
	"pingwatch/internal/state"

	_ "modernc.org/sqlite"
)

// Repository implements state.Store and state.ObjectStore using SQLite
type Repository struct {
	db *sql.DB

	mu     sync.RWMutex
	subs   map[int]subscription
	nextID int
}

type subscription struct {
	pattern string
	handler state.Handler
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn = "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared and serializes writers
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db, subs: make(map[int]subscription)}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS states (
		id TEXT PRIMARY KEY,
		val TEXT,
		ack INTEGER NOT NULL DEFAULT 0,
		ts DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS objects (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		common JSON NOT NULL,
		native JSON,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_objects_type ON objects(type);
	`

	_, err := r.db.Exec(schema)
	return err
}

// ============================================================================
// State store
// ============================================================================

// GetState loads a state value
func (r *Repository) GetState(ctx context.Context, id string) (*state.State, error) {
	var row stateRow
	err := r.db.QueryRowContext(ctx, `SELECT `+stateColumns+` FROM states WHERE id = ?`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state %s: %w", id, err)
	}
	return row.toState()
}

// SetState writes a value and notifies matching subscribers
func (r *Repository) SetState(ctx context.Context, id string, val any, ack bool) error {
	valJSON, err := marshalToNull(val)
	if err != nil {
		return fmt.Errorf("marshal state %s: %w", id, err)
	}
	ts := time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO states (id, val, ack, ts) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET val = excluded.val, ack = excluded.ack, ts = excluded.ts
	`, id, valJSON, boolToInt(ack), ts)
	if err != nil {
		return fmt.Errorf("failed to set state %s: %w", id, err)
	}

	r.notify(state.State{ID: id, Val: normalize(val), Ack: ack, Ts: ts})
	return nil
}

// ListStates returns every state whose id starts with prefix
func (r *Repository) ListStates(ctx context.Context, prefix string) ([]state.State, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+stateColumns+` FROM states WHERE id LIKE ? ESCAPE '\' ORDER BY id`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	defer rows.Close()

	var out []state.State
	for rows.Next() {
		var row stateRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan state: %w", err)
		}
		st, err := row.toState()
		if err != nil {
			return nil, err
		}
		out = append(out, *st)
	}
	return out, rows.Err()
}

// Subscribe registers a change handler. Handlers run on the writer's goroutine
// after the write has been committed.
func (r *Repository) Subscribe(pattern string, h state.Handler) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.subs[id] = subscription{pattern: pattern, handler: h}
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

func (r *Repository) notify(st state.State) {
	r.mu.RLock()
	var handlers []state.Handler
	for _, s := range r.subs {
		if state.Match(s.pattern, st.ID) {
			handlers = append(handlers, s.handler)
		}
	}
	r.mu.RUnlock()

	for _, h := range handlers {
		h(st)
	}
}

// ============================================================================
// Object store
// ============================================================================

// GetObject loads an object definition
func (r *Repository) GetObject(ctx context.Context, id string) (*domain.Object, error) {
	var row objectRow
	err := r.db.QueryRowContext(ctx, `SELECT `+objectColumns+` FROM objects WHERE id = ?`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", id, err)
	}
	return row.toDomain()
}

// SetObject creates or replaces an object definition
func (r *Repository) SetObject(ctx context.Context, obj domain.Object) error {
	args, err := objectInsertArgs(obj)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO objects (id, type, common, native, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			common = excluded.common,
			native = excluded.native,
			updated_at = CURRENT_TIMESTAMP
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to set object %s: %w", obj.ID, err)
	}
	return nil
}

// ExtendObject merges patch into the stored definition, creating it if absent
func (r *Repository) ExtendObject(ctx context.Context, id string, patch domain.Object) error {
	current, err := r.GetObject(ctx, id)
	if err != nil {
		return err
	}
	patch.ID = id
	if current == nil {
		return r.SetObject(ctx, patch)
	}
	return r.SetObject(ctx, current.Extend(patch))
}

// DeleteObject removes an object and its state
func (r *Repository) DeleteObject(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete object %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM states WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete state %s: %w", id, err)
	}
	return tx.Commit()
}

// ListObjects returns objects whose id starts with prefix
func (r *Repository) ListObjects(ctx context.Context, prefix string) ([]domain.Object, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+objectColumns+` FROM objects WHERE id LIKE ? ESCAPE '\' ORDER BY id`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("failed to query objects: %w", err)
	}
	defer rows.Close()

	var out []domain.Object
	for rows.Next() {
		var row objectRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan object: %w", err)
		}
		obj, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, *obj)
	}
	return out, rows.Err()
}

// Close releases the database
func (r *Repository) Close() error {
	return r.db.Close()
}

func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}
