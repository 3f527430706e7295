// Package backup takes encrypted snapshots of the SQLite database and the
// optional Badger document store and keeps them in a local directory or an
// S3-compatible bucket.
package backup

import (
	"bytes"
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	_ "modernc.org/sqlite"

	"github.com/dukerupert/ourslists/internal/clock"
)

const (
	namePrefix  = "ourslists-"
	stampLayout = "20060102T150405Z"
	dbSuffix    = ".db.enc"
	docsSuffix  = ".badger.enc"
)

var (
	ErrNotConfigured    = errors.New("backup not configured")
	ErrInProgress       = errors.New("backup already in progress")
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrIntegrityCheck   = errors.New("restored database failed integrity check")
)

var (
	backupRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ourslists_backups_total",
		Help: "Backup runs by result.",
	}, []string{"result"})

	lastBackupSuccess = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ourslists_backup_last_success_timestamp_seconds",
		Help: "Unix time of the last successful backup.",
	})
)

// Config holds backup manager configuration.
type Config struct {
	Passphrase string
	// Interval between scheduled backups. Zero disables the schedule.
	Interval time.Duration
	// Keep is the number of snapshots retained. Zero keeps all of them.
	Keep int
}

// Docs dumps the document store.
type Docs interface {
	Backup(w io.Writer) error
}

// DocsLoader loads a document store dump.
type DocsLoader interface {
	Restore(r io.Reader) error
}

type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateDisabled State = "disabled"
	StateError    State = "error"
)

type Status struct {
	State      State      `json:"state"`
	LastBackup *time.Time `json:"last_backup,omitempty"`
	Snapshot   string     `json:"snapshot,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Snapshot is one backup run: a sealed SQLite file and, when a document
// store was configured, a sealed Badger dump.
type Snapshot struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"size"`
	HasDocs   bool      `json:"has_docs"`
}

type Manager struct {
	mu     sync.Mutex
	cfg    Config
	db     *sql.DB
	docs   Docs
	dest   Destination
	clock  clock.Clock
	logger *slog.Logger
	status Status
}

// NewManager creates a manager. docs may be nil. A nil dest or an empty
// passphrase leaves the manager disabled.
func NewManager(cfg Config, db *sql.DB, docs Docs, dest Destination, clk clock.Clock, logger *slog.Logger) *Manager {
	m := &Manager{
		cfg:    cfg,
		db:     db,
		docs:   docs,
		dest:   dest,
		clock:  clk,
		logger: logger,
		status: Status{State: StateDisabled},
	}
	if m.Enabled() {
		m.status.State = StateIdle
	}
	return m
}

func (m *Manager) Enabled() bool {
	return m.dest != nil && m.cfg.Passphrase != ""
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Run takes a backup every Interval until ctx is done. It returns at once
// when the manager is disabled or has no schedule.
func (m *Manager) Run(ctx context.Context) error {
	if !m.Enabled() || m.cfg.Interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := m.RunNow(ctx); err != nil && !errors.Is(err, ErrInProgress) {
				m.logger.Error("scheduled backup failed", "error", err)
			}
		}
	}
}

// RunNow takes a snapshot immediately and prunes old ones.
func (m *Manager) RunNow(ctx context.Context) (*Snapshot, error) {
	if !m.Enabled() {
		return nil, ErrNotConfigured
	}
	m.mu.Lock()
	if m.status.State == StateRunning {
		m.mu.Unlock()
		return nil, ErrInProgress
	}
	prev := m.status
	m.status = Status{State: StateRunning, LastBackup: prev.LastBackup, Snapshot: prev.Snapshot}
	m.mu.Unlock()

	snap, err := m.snapshot(ctx)
	if err != nil {
		backupRuns.WithLabelValues("error").Inc()
		m.setStatus(Status{State: StateError, LastBackup: prev.LastBackup, Snapshot: prev.Snapshot, Error: err.Error()})
		return nil, err
	}
	backupRuns.WithLabelValues("ok").Inc()
	lastBackupSuccess.Set(float64(snap.CreatedAt.Unix()))
	m.setStatus(Status{State: StateIdle, LastBackup: &snap.CreatedAt, Snapshot: snap.Name})
	m.logger.Info("backup complete", "snapshot", snap.Name, "size", snap.Size)

	if err := m.prune(ctx); err != nil {
		m.logger.Warn("prune backups", "error", err)
	}
	return snap, nil
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	m.status = s
	m.mu.Unlock()
}

func (m *Manager) snapshot(ctx context.Context) (*Snapshot, error) {
	now := m.clock.Now().UTC().Truncate(time.Second)
	snap := &Snapshot{Name: namePrefix + now.Format(stampLayout), CreatedAt: now}

	data, err := dumpSQLite(ctx, m.db)
	if err != nil {
		return nil, err
	}
	if err := m.put(ctx, snap.Name+dbSuffix, data, snap); err != nil {
		return nil, err
	}

	if m.docs != nil {
		var buf bytes.Buffer
		if err := m.docs.Backup(&buf); err != nil {
			return nil, fmt.Errorf("dump document store: %w", err)
		}
		if err := m.put(ctx, snap.Name+docsSuffix, buf.Bytes(), snap); err != nil {
			return nil, err
		}
		snap.HasDocs = true
	}
	return snap, nil
}

func (m *Manager) put(ctx context.Context, key string, data []byte, snap *Snapshot) error {
	sealed, err := Seal(data, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("encrypt %s: %w", key, err)
	}
	if err := m.dest.Put(ctx, key, sealed); err != nil {
		return err
	}
	snap.Size += int64(len(sealed))
	return nil
}

// dumpSQLite writes a consistent copy of db with VACUUM INTO and reads it
// back.
func dumpSQLite(ctx context.Context, db *sql.DB) ([]byte, error) {
	dir, err := os.MkdirTemp("", "ourslists-backup-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "snapshot.db")
	if _, err := db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return data, nil
}

// List returns the manager's snapshots, newest first.
func (m *Manager) List(ctx context.Context) ([]Snapshot, error) {
	if m.dest == nil {
		return nil, ErrNotConfigured
	}
	return List(ctx, m.dest)
}

// List returns the snapshots in dest, newest first.
func List(ctx context.Context, dest Destination) ([]Snapshot, error) {
	objs, err := dest.List(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Snapshot)
	for _, o := range objs {
		name, isDocs, ok := parseKey(o.Key)
		if !ok {
			continue
		}
		s := byName[name]
		if s == nil {
			created, _ := time.Parse(stampLayout, strings.TrimPrefix(name, namePrefix))
			s = &Snapshot{Name: name, CreatedAt: created}
			byName[name] = s
		}
		s.Size += o.Size
		if isDocs {
			s.HasDocs = true
		}
	}

	out := make([]Snapshot, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(a, b Snapshot) int {
		return cmp.Compare(b.Name, a.Name)
	})
	return out, nil
}

func parseKey(key string) (name string, isDocs bool, ok bool) {
	if !strings.HasPrefix(key, namePrefix) {
		return "", false, false
	}
	if name, ok := strings.CutSuffix(key, dbSuffix); ok {
		return name, false, true
	}
	if name, ok := strings.CutSuffix(key, docsSuffix); ok {
		return name, true, true
	}
	return "", false, false
}

func (m *Manager) prune(ctx context.Context) error {
	if m.cfg.Keep <= 0 {
		return nil
	}
	snaps, err := List(ctx, m.dest)
	if err != nil {
		return err
	}
	if len(snaps) <= m.cfg.Keep {
		return nil
	}
	var errs []error
	for _, s := range snaps[m.cfg.Keep:] {
		for _, key := range []string{s.Name + dbSuffix, s.Name + docsSuffix} {
			if err := m.dest.Delete(ctx, key); err != nil {
				errs = append(errs, err)
			}
		}
		m.logger.Info("backup pruned", "snapshot", s.Name)
	}
	return errors.Join(errs...)
}

// Restore decrypts snapshot name from dest, verifies it and replaces the
// database file at dbPath. When docs is non-nil and the snapshot has a
// document store dump, it is loaded into docs. The server must not be
// running.
func Restore(ctx context.Context, dest Destination, passphrase, name, dbPath string, docs DocsLoader) error {
	sealed, err := dest.Get(ctx, name+dbSuffix)
	if errors.Is(err, ErrObjectNotFound) {
		return ErrSnapshotNotFound
	}
	if err != nil {
		return err
	}
	data, err := Open(sealed, passphrase)
	if err != nil {
		return err
	}

	tmp := dbPath + ".restore"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write restored database: %w", err)
	}
	defer os.Remove(tmp)
	if err := checkIntegrity(ctx, tmp); err != nil {
		return err
	}

	if docs != nil {
		sealed, err := dest.Get(ctx, name+docsSuffix)
		switch {
		case errors.Is(err, ErrObjectNotFound):
		case err != nil:
			return err
		default:
			dump, err := Open(sealed, passphrase)
			if err != nil {
				return err
			}
			if err := docs.Restore(bytes.NewReader(dump)); err != nil {
				return err
			}
		}
	}

	if err := os.Rename(tmp, dbPath); err != nil {
		return fmt.Errorf("replace database: %w", err)
	}
	os.Remove(dbPath + "-wal")
	os.Remove(dbPath + "-shm")
	return nil
}

func checkIntegrity(ctx context.Context, path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open restored database: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrIntegrityCheck, result)
	}
	return nil
}
