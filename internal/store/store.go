// Package store provides SQLite-backed persistence for node configuration
// caches, so a simulated node reset can restart from cached configurations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/clelom/titan/internal/configcache"
	_ "modernc.org/sqlite"
)

// Memory is the path of a private in-memory database.
const Memory = ":memory:"

// Store provides access to the cache database.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != Memory && !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		dsn = dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		node_id INTEGER NOT NULL,
		config_id INTEGER NOT NULL,
		num_tasks INTEGER NOT NULL,
		num_conns INTEGER NOT NULL,
		data BLOB NOT NULL,
		seq INTEGER NOT NULL,
		stored_at DATETIME NOT NULL,
		PRIMARY KEY (node_id, config_id)
	);

	CREATE INDEX IF NOT EXISTS idx_cache_entries_node ON cache_entries(node_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// NodeCache returns the persister for one node's configuration cache.
func (s *Store) NodeCache(nodeID uint16) *NodeCache {
	return &NodeCache{db: s.db, node: nodeID}
}

// NodeCache implements configcache.Persister for a single node.
type NodeCache struct {
	db   *sql.DB
	node uint16
}

var _ configcache.Persister = (*NodeCache)(nil)

// Save inserts or replaces the entry for e.ConfigID.
func (c *NodeCache) Save(ctx context.Context, e configcache.Entry) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO cache_entries (node_id, config_id, num_tasks, num_conns, data, seq, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (node_id, config_id) DO UPDATE SET
			num_tasks = excluded.num_tasks,
			num_conns = excluded.num_conns,
			data = excluded.data,
			seq = excluded.seq,
			stored_at = excluded.stored_at`,
		c.node, e.ConfigID, e.NumTasks, e.NumConns, e.Data, int64(e.Seq), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save cache entry %d: %w", e.ConfigID, err)
	}
	return nil
}

// Delete removes the entry for configID, if any.
func (c *NodeCache) Delete(ctx context.Context, configID uint8) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE node_id = ? AND config_id = ?`, c.node, configID)
	if err != nil {
		return fmt.Errorf("delete cache entry %d: %w", configID, err)
	}
	return nil
}

// Load returns every saved entry of the node, oldest first.
func (c *NodeCache) Load(ctx context.Context) ([]configcache.Entry, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT config_id, num_tasks, num_conns, data, seq
		FROM cache_entries WHERE node_id = ? ORDER BY seq`, c.node)
	if err != nil {
		return nil, fmt.Errorf("query cache entries: %w", err)
	}
	defer rows.Close()

	var entries []configcache.Entry
	for rows.Next() {
		var e configcache.Entry
		var seq int64
		if err := rows.Scan(&e.ConfigID, &e.NumTasks, &e.NumConns, &e.Data, &seq); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		e.Seq = uint64(seq)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
