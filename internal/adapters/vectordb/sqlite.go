package vectordb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3" // registers "sqlite3"
	_ "modernc.org/sqlite"          // registers "sqlite"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

const (
	DriverCGO  = "sqlite3"
	DriverPure = "sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		sender TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		is_system INTEGER NOT NULL,
		original_id TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_timestamp ON messages(timestamp)`,
	`CREATE TABLE IF NOT EXISTS index_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// SQLiteIndex persists records in SQLite. Metadata predicates run as SQL,
// similarity is computed in Go over the rows that pass them.
type SQLiteIndex struct {
	mu        sync.RWMutex
	db        *sql.DB
	path      string
	dimension int
}

// NewSQLiteIndex opens (or creates) the index at path using the named driver.
func NewSQLiteIndex(driver, path string) (*SQLiteIndex, error) {
	if driver == "" {
		driver = DriverCGO
	}
	if path == "" {
		path = filepath.Join("data", "chatrag.db")
	}
	if driver != DriverCGO && driver != DriverPure {
		return nil, fmt.Errorf("unknown sqlite driver %q", driver)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open(driver, path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteIndex{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if err := s.loadDimension(); err != nil {
		db.Close()
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}
	return s, nil
}

func (s *SQLiteIndex) initSchema() error {
	for _, stmt := range sqliteSchema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) loadDimension() error {
	var value string
	err := s.db.QueryRow(`SELECT value FROM index_meta WHERE key = 'dimension'`).Scan(&value)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	s.dimension, err = strconv.Atoi(value)
	return err
}

// Upsert writes the batch in one transaction. On error nothing from the batch is kept.
func (s *SQLiteIndex) Upsert(ctx context.Context, records []entities.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim, err := checkRecords(records, s.dimension)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %v", entities.ErrIndexWrite, err)
	}
	defer tx.Rollback()

	if s.dimension == 0 {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO index_meta (key, value) VALUES ('dimension', ?)`, strconv.Itoa(dim)); err != nil {
			return fmt.Errorf("%w: saving dimension: %v", entities.ErrIndexWrite, err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO messages (id, document, sender, timestamp, is_system, original_id, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: preparing statement: %v", entities.ErrIndexWrite, err)
	}
	defer stmt.Close()

	for _, r := range records {
		_, err = stmt.ExecContext(ctx,
			r.ID,
			r.Document,
			r.Metadata.Sender,
			r.Metadata.Timestamp,
			boolToInt(r.Metadata.IsSystem),
			r.Metadata.OriginalID,
			encodeEmbedding(r.Embedding),
		)
		if err != nil {
			return fmt.Errorf("%w: inserting %s: %v", entities.ErrIndexWrite, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: committing: %v", entities.ErrIndexWrite, err)
	}
	s.dimension = dim
	return nil
}

// Query filters rows in SQL and ranks the survivors by cosine distance.
func (s *SQLiteIndex) Query(ctx context.Context, embedding []float32, k int, filter *entities.FilterSpec) ([]entities.Match, error) {
	if err := checkQuery(embedding, k, filter); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.dimension == 0 {
		return []entities.Match{}, nil
	}
	if len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has dimension %d, index has %d", entities.ErrIndexQuery, len(embedding), s.dimension)
	}

	where, args := whereClause(filter)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document, sender, timestamp, is_system, original_id, embedding FROM messages`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrIndexQuery, err)
	}
	defer rows.Close()

	q := newQueryVector(embedding)
	var matches []entities.Match
	for rows.Next() {
		var (
			m        entities.Match
			isSystem int
			blob     []byte
		)
		if err := rows.Scan(&m.ID, &m.Document, &m.Metadata.Sender, &m.Metadata.Timestamp, &isSystem, &m.Metadata.OriginalID, &blob); err != nil {
			return nil, fmt.Errorf("%w: scanning row: %v", entities.ErrIndexQuery, err)
		}
		vec, err := decodeEmbedding(blob)
		if err != nil || len(vec) != s.dimension {
			return nil, fmt.Errorf("%w: corrupt embedding for %s", entities.ErrIndexQuery, m.ID)
		}
		m.Metadata.IsSystem = isSystem != 0
		m.Distance = q.distance(vec)
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrIndexQuery, err)
	}

	if matches == nil {
		return []entities.Match{}, nil
	}
	return topK(matches, k), nil
}

// Count returns the number of stored records.
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&count)
	return count, err
}

// Clear removes all records and the stored dimension.
func (s *SQLiteIndex) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, "DELETE FROM messages"); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
		return err
	}
	s.dimension = 0
	return nil
}

// Close closes the database connection.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// whereClause translates a filter into SQL. Text columns use BINARY collation,
// so timestamp bounds compare lexicographically.
func whereClause(f *entities.FilterSpec) (string, []any) {
	if f == nil {
		return "", nil
	}

	var (
		conds []string
		args  []any
	)
	if f.Sender != nil {
		conds = append(conds, "sender = ?")
		args = append(args, *f.Sender)
	}
	if f.IsSystem != nil {
		conds = append(conds, "is_system = ?")
		args = append(args, boolToInt(*f.IsSystem))
	}
	if f.Timestamp != nil {
		if f.Timestamp.Gte != "" {
			conds = append(conds, "timestamp >= ?")
			args = append(args, f.Timestamp.Gte)
		}
		if f.Timestamp.Lte != "" {
			conds = append(conds, "timestamp <= ?")
			args = append(args, f.Timestamp.Lte)
		}
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
