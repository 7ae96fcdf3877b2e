// Package running persists the intended ("running") configuration the
// kernel state is verified against. The store survives restarts so drift
// detection keeps working across agent lifetimes, and keeps a bounded
// change history for diagnostics.
package running

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"grimm.is/hostnet/internal/clock"
	"grimm.is/hostnet/internal/topology"
)

// DefaultPath is where the running config lives unless overridden.
const DefaultPath = "/var/lib/hostnet/running.db"

// Store is the SQLite-backed running configuration.
type Store struct {
	db  *sql.DB
	clk clock.Clock
}

// Options configures a Store.
type Options struct {
	Path string
	// Clock for timestamps; RealClock when nil.
	Clock clock.Clock
}

// Open opens (creating if needed) the running-config store.
func Open(opts Options) (*Store, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}
	dsn := path
	if path != ":memory:" {
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open running config store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to running config store: %w", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = &clock.RealClock{}
	}

	s := &Store{db: db, clk: clk}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS networks (
		name       TEXT PRIMARY KEY,
		spec       TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS bonds (
		name       TEXT PRIMARY KEY,
		spec       TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE TABLE IF NOT EXISTS history (
		id        INTEGER PRIMARY KEY AUTOINCREMENT,
		entity    TEXT NOT NULL,
		name      TEXT NOT NULL,
		action    TEXT NOT NULL,
		spec      TEXT,
		timestamp TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_time ON history(timestamp);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize running config schema: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Update records the outcome of an applied change-set: removed entities
// drop out, everything else is upserted in its requested shape.
func (s *Store) Update(cs topology.ChangeSet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin running config update: %w", err)
	}
	defer tx.Rollback()

	now := s.clk.Now().UTC()

	for name, network := range cs.Networks {
		if network.Remove {
			if _, err := tx.Exec("DELETE FROM networks WHERE name = ?", name); err != nil {
				return fmt.Errorf("delete network %q: %w", name, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO history (entity, name, action, timestamp) VALUES ('network', ?, 'remove', ?)",
				name, now); err != nil {
				return fmt.Errorf("record removal of network %q: %w", name, err)
			}
			continue
		}
		spec, err := json.Marshal(network)
		if err != nil {
			return fmt.Errorf("encode network %q: %w", name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO networks (name, spec, updated_at) VALUES (?, ?, ?) "+
				"ON CONFLICT(name) DO UPDATE SET spec = excluded.spec, updated_at = excluded.updated_at",
			name, string(spec), now); err != nil {
			return fmt.Errorf("store network %q: %w", name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO history (entity, name, action, spec, timestamp) VALUES ('network', ?, 'set', ?, ?)",
			name, string(spec), now); err != nil {
			return fmt.Errorf("record update of network %q: %w", name, err)
		}
	}

	for name, bond := range cs.Bonds {
		if bond.Remove {
			if _, err := tx.Exec("DELETE FROM bonds WHERE name = ?", name); err != nil {
				return fmt.Errorf("delete bond %q: %w", name, err)
			}
			if _, err := tx.Exec(
				"INSERT INTO history (entity, name, action, timestamp) VALUES ('bond', ?, 'remove', ?)",
				name, now); err != nil {
				return fmt.Errorf("record removal of bond %q: %w", name, err)
			}
			continue
		}
		spec, err := json.Marshal(bond)
		if err != nil {
			return fmt.Errorf("encode bond %q: %w", name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO bonds (name, spec, updated_at) VALUES (?, ?, ?) "+
				"ON CONFLICT(name) DO UPDATE SET spec = excluded.spec, updated_at = excluded.updated_at",
			name, string(spec), now); err != nil {
			return fmt.Errorf("store bond %q: %w", name, err)
		}
		if _, err := tx.Exec(
			"INSERT INTO history (entity, name, action, spec, timestamp) VALUES ('bond', ?, 'set', ?, ?)",
			name, string(spec), now); err != nil {
			return fmt.Errorf("record update of bond %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// Load returns the full persisted intended configuration.
func (s *Store) Load() (map[string]topology.NetworkSpec, map[string]topology.BondSpec, error) {
	networks := make(map[string]topology.NetworkSpec)
	rows, err := s.db.Query("SELECT name, spec FROM networks")
	if err != nil {
		return nil, nil, fmt.Errorf("load networks: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name, raw string
		if err := rows.Scan(&name, &raw); err != nil {
			return nil, nil, fmt.Errorf("scan network row: %w", err)
		}
		var spec topology.NetworkSpec
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil, nil, fmt.Errorf("decode network %q: %w", name, err)
		}
		networks[name] = spec
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate networks: %w", err)
	}

	bonds := make(map[string]topology.BondSpec)
	bondRows, err := s.db.Query("SELECT name, spec FROM bonds")
	if err != nil {
		return nil, nil, fmt.Errorf("load bonds: %w", err)
	}
	defer bondRows.Close()
	for bondRows.Next() {
		var name, raw string
		if err := bondRows.Scan(&name, &raw); err != nil {
			return nil, nil, fmt.Errorf("scan bond row: %w", err)
		}
		var spec topology.BondSpec
		if err := json.Unmarshal([]byte(raw), &spec); err != nil {
			return nil, nil, fmt.Errorf("decode bond %q: %w", name, err)
		}
		bonds[name] = spec
	}
	if err := bondRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate bonds: %w", err)
	}

	return networks, bonds, nil
}

// HistoryEntry is one recorded change.
type HistoryEntry struct {
	Entity    string
	Name      string
	Action    string
	Spec      string
	Timestamp string
}

// History lists up to limit change records, newest first.
func (s *Store) History(limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		"SELECT entity, name, action, COALESCE(spec, ''), timestamp FROM history "+
			"ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Entity, &e.Name, &e.Action, &e.Spec, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
