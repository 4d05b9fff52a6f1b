package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/dmitrijs2005/userkeeper/internal/dbx"
	"github.com/dmitrijs2005/userkeeper/internal/logging"
	"github.com/dmitrijs2005/userkeeper/internal/server/store/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLStore keeps each collection in its own (id, body) table. Replace and
// Update run in a single transaction, so readers see either the old or the
// new collection.
type SQLStore struct {
	db      *sql.DB
	dialect dbx.Dialect
	locks   locks
}

// gooseMu guards goose's package-level base FS and dialect.
var gooseMu sync.Mutex

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// gooseLogger routes goose output into the structured logger.
type gooseLogger struct {
	ctx    context.Context
	logger logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.logger.Info(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...any) {
	g.logger.Error(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
	os.Exit(1)
}

// runMigrations bootstraps the schema from the embedded migrations.
func runMigrations(ctx context.Context, db *sql.DB, d dbx.Dialect, logger logging.Logger) error {
	var (
		fsys fs.FS
		dir  string
	)
	switch d {
	case dbx.SQLite:
		fsys, dir = migrations.SQLite, "sqlite"
	case dbx.Postgres:
		fsys, dir = migrations.Postgres, "postgres"
	default:
		return fmt.Errorf("no migrations for dialect %q", d)
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(fsys)
	goose.SetLogger(gooseLogger{ctx: ctx, logger: logger.With("module", "migrations")})
	if err := goose.SetDialect(string(d)); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, dir)
}

// OpenSQLite opens (creating if needed) the database file at path.
func OpenSQLite(ctx context.Context, path string, logger logging.Logger) (*SQLStore, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps SQLite writers from tripping over each other.
	db.SetMaxOpenConns(1)
	return newSQLStore(ctx, db, dbx.SQLite, logger)
}

// OpenPostgres connects through the pgx stdlib driver.
func OpenPostgres(ctx context.Context, dsn string, logger logging.Logger) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return newSQLStore(ctx, db, dbx.Postgres, logger)
}

func newSQLStore(ctx context.Context, db *sql.DB, d dbx.Dialect, logger logging.Logger) (*SQLStore, error) {
	if err := runMigrations(ctx, db, d, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLStore{db: db, dialect: d}, nil
}

// NewSQLStore wraps an existing handle whose schema is already in place.
func NewSQLStore(db *sql.DB, d dbx.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: d}
}

func (s *SQLStore) q(query string) string {
	return dbx.Rebind(s.dialect, query)
}

func (s *SQLStore) load(ctx context.Context, db dbx.DBTX, c Collection) (Records, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT id, body FROM %s ORDER BY id`, c))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := Records{}
	for rows.Next() {
		var (
			id   string
			body []byte
		)
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		recs[id] = body
	}
	return recs, rows.Err()
}

func (s *SQLStore) upsert(ctx context.Context, tx dbx.DBTX, c Collection, id string, body []byte) error {
	query := s.q(fmt.Sprintf(
		`INSERT INTO %s (id, body) VALUES (?, ?)
		 ON CONFLICT (id) DO UPDATE SET body = excluded.body`, c))
	_, err := tx.ExecContext(ctx, query, id, string(body))
	return err
}

func (s *SQLStore) delete(ctx context.Context, tx dbx.DBTX, c Collection, id string) error {
	_, err := tx.ExecContext(ctx, s.q(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c)), id)
	return err
}

func (s *SQLStore) Load(ctx context.Context, c Collection) (Records, error) {
	if err := checkCollection(c); err != nil {
		return nil, err
	}
	recs, err := s.load(ctx, s.db, c)
	if err != nil {
		return nil, ioError("load", c, err)
	}
	return recs, nil
}

func (s *SQLStore) Replace(ctx context.Context, c Collection, recs Records) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	l := s.locks.get(c)
	l.Lock()
	defer l.Unlock()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c)); err != nil {
			return err
		}
		for _, id := range recs.Keys() {
			if err := s.upsert(ctx, tx, c, id, recs[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ioError("replace", c, err)
	}
	return nil
}

// Update writes only the rows fn added, changed or removed.
func (s *SQLStore) Update(ctx context.Context, c Collection, fn UpdateFunc) error {
	if err := checkCollection(c); err != nil {
		return err
	}
	l := s.locks.get(c)
	l.Lock()
	defer l.Unlock()

	var fnErr error
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		current, err := s.load(ctx, tx, c)
		if err != nil {
			return err
		}
		next := current.Clone()
		if fnErr = fn(next); fnErr != nil {
			return fnErr
		}

		for _, id := range current.Keys() {
			if _, ok := next[id]; !ok {
				if err := s.delete(ctx, tx, c, id); err != nil {
					return err
				}
			}
		}
		for _, id := range next.Keys() {
			if old, ok := current[id]; ok && bytes.Equal(old, next[id]) {
				continue
			}
			if err := s.upsert(ctx, tx, c, id, next[id]); err != nil {
				return err
			}
		}
		return nil
	})
	if fnErr != nil {
		return fnErr
	}
	if err != nil {
		return ioError("update", c, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
