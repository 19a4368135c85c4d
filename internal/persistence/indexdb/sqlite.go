package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	ticklog "paranoia.ai/internal/persistence/log"
	"paranoia.ai/internal/persistence/snapshot"
	"paranoia.ai/internal/sim/catalogs"
	"paranoia.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable read model of a run. Writes are queued and
// applied by one goroutine; the tick log stays the source of truth.
type SQLiteIndex struct {
	db    *sql.DB
	runID string
	log   *zap.Logger

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu orders enqueues against Close so no send lands on a closed channel.
	mu     sync.RWMutex
	closed bool

	dropTick     atomic.Uint64
	dropSnapshot atomic.Uint64
	writeErrors  atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	tick     ticklog.TickEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Tick   uint64
	Path   string
	Digest string
	Active int
	Tags   int
}

type Stats struct {
	QueueDepth        int
	QueueCapacity     int
	DropTickTotal     uint64
	DropSnapshotTotal uint64
	WriteErrorTotal   uint64
}

// NewRunID returns a fresh run identifier.
func NewRunID() string { return uuid.NewString() }

func OpenSQLite(path, runID string, logger *zap.Logger) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if runID == "" {
		return nil, fmt.Errorf("empty run id")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:    db,
		runID: runID,
		log:   logger,
		ch:    make(chan req, 8192),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			seed INTEGER NOT NULL,
			catalog_digest TEXT NOT NULL,
			tuning_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS threat_defs (
			run_id TEXT NOT NULL,
			def_id TEXT NOT NULL,
			name TEXT NOT NULL,
			steps INTEGER NOT NULL,
			PRIMARY KEY (run_id, def_id)
		);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			digest TEXT NOT NULL,
			suspicion INTEGER NOT NULL,
			channel TEXT NOT NULL,
			headlines INTEGER NOT NULL,
			effects INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
		`CREATE TABLE IF NOT EXISTS headlines (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			priority TEXT NOT NULL,
			message TEXT NOT NULL,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS executions (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			def_id TEXT NOT NULL,
			step TEXT NOT NULL,
			target TEXT NOT NULL,
			retired INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_executions_def_tick ON executions(def_id, tick);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			path TEXT NOT NULL,
			digest TEXT NOT NULL,
			active_threats INTEGER NOT NULL,
			recent_tags INTEGER NOT NULL,
			PRIMARY KEY (run_id, tick)
		);`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`)
	return err
}

func (s *SQLiteIndex) RunID() string { return s.runID }

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// RecordRun stores run metadata synchronously, before the first tick.
func (s *SQLiteIndex) RecordRun(cat *catalogs.ThreatCatalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	tj, err := json.Marshal(tune)
	if err != nil {
		return err
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO runs(run_id,started_at,seed,catalog_digest,tuning_json) VALUES(?,?,?,?,?)`,
		s.runID, time.Now().UTC().Format(time.RFC3339Nano), tune.Seed, cat.Digest, string(tj)); err != nil {
		return err
	}
	for _, d := range cat.Defs {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO threat_defs(run_id,def_id,name,steps) VALUES(?,?,?,?)`,
			s.runID, d.ID, d.Name, len(d.Steps)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// enqueue reports false when the queue is full. Calls after Close are
// ignored. Safe for concurrent use with Close.
func (s *SQLiteIndex) enqueue(r req) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return true
	}
	select {
	case s.ch <- r:
		return true
	default:
		return false
	}
}

func (s *SQLiteIndex) WriteTick(entry ticklog.TickEntry) {
	if s == nil {
		return
	}
	if !s.enqueue(req{kind: reqTick, tick: entry}) {
		s.dropTick.Add(1)
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) {
	if s == nil {
		return
	}
	r := snapshotRow{
		Tick:   snap.Header.Tick,
		Path:   path,
		Digest: snap.Digest,
		Active: len(snap.State.Active),
		Tags:   len(snap.State.RecentTags),
	}
	if !s.enqueue(req{kind: reqSnapshot, snapshot: r}) {
		s.dropSnapshot.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropTickTotal:     s.dropTick.Load(),
		DropSnapshotTotal: s.dropSnapshot.Load(),
		WriteErrorTotal:   s.writeErrors.Load(),
	}
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		var err error
		switch r.kind {
		case reqTick:
			err = s.applyTick(r.tick)
		case reqSnapshot:
			_, err = s.db.Exec(`INSERT OR REPLACE INTO snapshots(run_id,tick,path,digest,active_threats,recent_tags) VALUES(?,?,?,?,?,?)`,
				s.runID, r.snapshot.Tick, r.snapshot.Path, r.snapshot.Digest, r.snapshot.Active, r.snapshot.Tags)
		}
		if err != nil {
			s.writeErrors.Add(1)
			s.log.Warn("index write failed", zap.Error(err))
		}
	}
}

func (s *SQLiteIndex) applyTick(e ticklog.TickEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO ticks(run_id,tick,digest,suspicion,channel,headlines,effects) VALUES(?,?,?,?,?,?,?)`,
		s.runID, e.Tick, e.Digest, e.Suspicion, e.Channel, len(e.Headlines), len(e.Effects)); err != nil {
		return err
	}
	for i, h := range e.Headlines {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO headlines(run_id,tick,seq,priority,message) VALUES(?,?,?,?,?)`,
			s.runID, e.Tick, i, h.Priority.String(), h.Message); err != nil {
			return err
		}
	}
	for i, x := range e.Executed {
		retired := 0
		if x.Retired {
			retired = 1
		}
		if _, err := tx.Exec(`INSERT OR REPLACE INTO executions(run_id,tick,seq,def_id,step,target,retired) VALUES(?,?,?,?,?,?,?)`,
			s.runID, e.Tick, i, x.DefID, x.Step, x.Target, retired); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// HeadlineRow is one stored headline.
type HeadlineRow struct {
	Tick     uint64
	Priority string
	Message  string
}

// Headlines returns headlines of runID in [from, to), ordered by tick and rank.
func (s *SQLiteIndex) Headlines(ctx context.Context, runID string, from, to uint64) ([]HeadlineRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tick, priority, message FROM headlines WHERE run_id=? AND tick>=? AND tick<? ORDER BY tick, seq`,
		runID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []HeadlineRow
	for rows.Next() {
		var h HeadlineRow
		if err := rows.Scan(&h.Tick, &h.Priority, &h.Message); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// ThreatRuns counts executed steps and retirements per threat definition.
func (s *SQLiteIndex) ThreatRuns(ctx context.Context, runID string) (map[string][2]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT def_id, COUNT(*), SUM(retired) FROM executions WHERE run_id=? GROUP BY def_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string][2]int{}
	for rows.Next() {
		var id string
		var steps, retired int
		if err := rows.Scan(&id, &steps, &retired); err != nil {
			return nil, err
		}
		out[id] = [2]int{steps, retired}
	}
	return out, rows.Err()
}

// LatestSnapshot returns the path of the newest recorded snapshot of runID.
func (s *SQLiteIndex) LatestSnapshot(ctx context.Context, runID string) (string, uint64, error) {
	var path string
	var tick uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT path, tick FROM snapshots WHERE run_id=? ORDER BY tick DESC LIMIT 1`, runID).Scan(&path, &tick)
	if err == sql.ErrNoRows {
		return "", 0, nil
	}
	return path, tick, err
}
