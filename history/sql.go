package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/giygas/tdm-reports/resultparser/entities"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// fixed width so that text order is time order
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLStore persists records in SQLite or Postgres
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLiteStore opens (and creates) the database file at path
func NewSQLiteStore(path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	return newSQLStore(db, DialectSQLite)
}

// NewPostgresStore connects with a postgres:// DSN
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(db, DialectPostgres)
}

func newSQLStore(db *sql.DB, dialect Dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: dialect}
	if err := s.createSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) createSchema(ctx context.Context) error {
	seq := "seq INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == DialectPostgres {
		seq = "seq BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS export_records (
			` + seq + `,
			id TEXT NOT NULL UNIQUE,
			result_id TEXT NOT NULL,
			drug_id TEXT NOT NULL DEFAULT '',
			request_index INTEGER NOT NULL DEFAULT 0,
			format TEXT NOT NULL,
			file TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_export_records_result ON export_records(result_id)`,
		`CREATE INDEX IF NOT EXISTS idx_export_records_created ON export_records(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind turns "?" placeholders into "$n" for Postgres
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const selectColumns = `SELECT id, result_id, drug_id, request_index, format, file, status, error, duration_ms, created_at FROM export_records`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (Record, error) {
	var rec Record
	var format, status, created string
	if err := sc.Scan(&rec.ID, &rec.ResultID, &rec.DrugID, &rec.Index, &format, &rec.File, &status, &rec.Error, &rec.DurationMS, &created); err != nil {
		return Record{}, err
	}
	rec.Format = entities.OutputFormat(format)
	rec.Status = Status(status)
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Record{}, fmt.Errorf("invalid created_at %q: %w", created, err)
	}
	rec.CreatedAt = t
	return rec, nil
}

func (s *SQLStore) Add(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO export_records (id, result_id, drug_id, request_index, format, file, status, error, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.ResultID, rec.DrugID, rec.Index, string(rec.Format), rec.File,
		string(rec.Status), rec.Error, rec.DurationMS, rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to insert export record: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Record, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(selectColumns+` WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrRecordNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read export record: %w", err)
	}
	return rec, nil
}

func (s *SQLStore) List(ctx context.Context, f Filter) ([]Record, error) {
	where, args := f.where()
	query := selectColumns + where + ` ORDER BY seq DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list export records: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLStore) Stats(ctx context.Context, since time.Time) (Stats, error) {
	where, args := Filter{Since: since}.where()
	row := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM export_records`+where), args...)
	var st Stats
	if err := row.Scan(&st.Total, &st.Failed); err != nil {
		return Stats{}, fmt.Errorf("failed to count export records: %w", err)
	}
	return st, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// where builds the WHERE clause shared by List and Stats
func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.ResultID != "" {
		conds = append(conds, "result_id = ?")
		args = append(args, f.ResultID)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.Since.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
