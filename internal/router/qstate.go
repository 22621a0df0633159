package router

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/collective-judgment/cjo/internal/model"
)

// qStateSaveInterval bounds how often the Q-table is serialized to disk
// when dirty, per spec: at most once every 5s.
const qStateSaveInterval = 5 * time.Second

// Store persists the full Q-table. Implementations must tolerate
// concurrent SaveAll calls being serialized by the caller (QTable never
// calls SaveAll concurrently with itself).
type Store interface {
	LoadAll(ctx context.Context) ([]model.QState, error)
	SaveAll(ctx context.Context, states []model.QState) error
}

// SQLiteStore persists QState rows to a modernc.org/sqlite-backed database
// file, keyed by (classification_key, action_key).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the QState database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("router: open qstate db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite: avoid writer contention

	const schema = `
CREATE TABLE IF NOT EXISTS qstate (
	classification_key TEXT NOT NULL,
	action_key         TEXT NOT NULL,
	value              REAL NOT NULL,
	visits             INTEGER NOT NULL,
	last_update        INTEGER NOT NULL,
	PRIMARY KEY (classification_key, action_key)
);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("router: migrate qstate db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadAll implements Store.
func (s *SQLiteStore) LoadAll(ctx context.Context) ([]model.QState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT classification_key, action_key, value, visits, last_update FROM qstate`)
	if err != nil {
		return nil, fmt.Errorf("router: load qstate: %w", err)
	}
	defer rows.Close()

	var out []model.QState
	for rows.Next() {
		var qs model.QState
		var lastUpdateUnix int64
		if err := rows.Scan(&qs.ClassificationKey, &qs.ActionKey, &qs.Value, &qs.Visits, &lastUpdateUnix); err != nil {
			return nil, fmt.Errorf("router: scan qstate row: %w", err)
		}
		qs.LastUpdate = time.Unix(lastUpdateUnix, 0).UTC()
		out = append(out, qs)
	}
	return out, rows.Err()
}

// SaveAll implements Store, replacing the table contents in one transaction.
func (s *SQLiteStore) SaveAll(ctx context.Context, states []model.QState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("router: begin qstate save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO qstate (classification_key, action_key, value, visits, last_update)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (classification_key, action_key) DO UPDATE SET
	value = excluded.value, visits = excluded.visits, last_update = excluded.last_update`)
	if err != nil {
		return fmt.Errorf("router: prepare qstate upsert: %w", err)
	}
	defer stmt.Close()

	for _, qs := range states {
		if _, err := stmt.ExecContext(ctx, qs.ClassificationKey, qs.ActionKey, qs.Value, qs.Visits, qs.LastUpdate.Unix()); err != nil {
			return fmt.Errorf("router: upsert qstate row: %w", err)
		}
	}
	return tx.Commit()
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// QTable is the router's in-memory Q-table, debounced to a Store.
type QTable struct {
	mu     sync.RWMutex
	states map[string]map[string]*model.QState // classificationKey -> actionKey -> state

	store  Store
	logger *slog.Logger

	dirty      atomic.Bool
	started    atomic.Bool
	done       chan struct{}
	cancelLoop context.CancelFunc
	drainOnce  sync.Once
}

// NewQTable builds an empty QTable backed by store. store may be nil, in
// which case the table is purely in-memory (missing/stale QState is not
// fatal per spec — the router still works from the static Lightning Paths).
func NewQTable(store Store, logger *slog.Logger) *QTable {
	if logger == nil {
		logger = slog.Default()
	}
	return &QTable{
		states: make(map[string]map[string]*model.QState),
		store:  store,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Load populates the table from the store, if any.
func (q *QTable) Load(ctx context.Context) error {
	if q.store == nil {
		return nil
	}
	states, err := q.store.LoadAll(ctx)
	if err != nil {
		q.logger.Warn("router: qstate load failed, falling back to lightning paths", "error", err)
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range states {
		qs := states[i]
		if q.states[qs.ClassificationKey] == nil {
			q.states[qs.ClassificationKey] = make(map[string]*model.QState)
		}
		cp := qs
		q.states[qs.ClassificationKey][qs.ActionKey] = &cp
	}
	return nil
}

// Start begins the debounced save loop.
func (q *QTable) Start(ctx context.Context) {
	if q.store == nil || !q.started.CompareAndSwap(false, true) {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	q.cancelLoop = cancel
	go q.saveLoop(loopCtx)
}

// Get returns the state for (classificationKey, actionKey) if it exists.
func (q *QTable) Get(classificationKey, actionKey string) (model.QState, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	row, ok := q.states[classificationKey]
	if !ok {
		return model.QState{}, false
	}
	qs, ok := row[actionKey]
	if !ok {
		return model.QState{}, false
	}
	return *qs, true
}

// BestAction returns the candidate action with the highest learned value
// for classificationKey, or ok=false if none of the candidates has been
// visited yet.
func (q *QTable) BestAction(classificationKey string, candidates []string) (actionKey string, value float64, ok bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	row := q.states[classificationKey]
	if row == nil {
		return "", 0, false
	}
	best := -1.0
	found := false
	for _, candidate := range candidates {
		qs, exists := row[candidate]
		if !exists {
			continue
		}
		if !found || qs.Value > best {
			best = qs.Value
			actionKey = candidate
			found = true
		}
	}
	return actionKey, best, found
}

// Visits returns the visit count for (classificationKey, actionKey), 0 if
// never visited.
func (q *QTable) Visits(classificationKey, actionKey string) int {
	qs, ok := q.Get(classificationKey, actionKey)
	if !ok {
		return 0
	}
	return qs.Visits
}

// Update applies one Q-learning step and marks the table dirty for the next
// debounced save.
func (q *QTable) Update(classificationKey, actionKey string, newValue float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.states[classificationKey] == nil {
		q.states[classificationKey] = make(map[string]*model.QState)
	}
	qs, ok := q.states[classificationKey][actionKey]
	if !ok {
		qs = &model.QState{ClassificationKey: classificationKey, ActionKey: actionKey}
		q.states[classificationKey][actionKey] = qs
	}
	qs.Value = newValue
	qs.Visits++
	qs.LastUpdate = time.Now().UTC()
	q.dirty.Store(true)
}

func (q *QTable) snapshot() []model.QState {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var out []model.QState
	for _, row := range q.states {
		for _, qs := range row {
			out = append(out, *qs)
		}
	}
	return out
}

func (q *QTable) saveLoop(ctx context.Context) {
	ticker := time.NewTicker(qStateSaveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			q.trySave(saveCtx)
			cancel()
			close(q.done)
			return
		case <-ticker.C:
			q.trySave(ctx)
		}
	}
}

func (q *QTable) trySave(ctx context.Context) {
	if !q.dirty.Load() {
		return
	}
	if err := q.store.SaveAll(ctx, q.snapshot()); err != nil {
		q.logger.Warn("router: qstate save failed, will retry", "error", err)
		return
	}
	q.dirty.Store(false)
}

// Drain stops the save loop after a final save attempt.
func (q *QTable) Drain(ctx context.Context) {
	if q.store == nil {
		return
	}
	q.drainOnce.Do(func() {
		if q.cancelLoop != nil {
			q.cancelLoop()
		}
	})
	select {
	case <-q.done:
	case <-ctx.Done():
		q.logger.Warn("router: qstate drain timed out")
	}
}
