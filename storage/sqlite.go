package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"spanbridge/envelope"
)

const schema = `
create table if not exists envelopes (
    id         integer primary key autoincrement,
    created_at integer not null,
    content    blob    not null
);
`

var _ Spool = &SQLite{}

type SQLite struct {
	db *sqlx.DB
}

type row struct {
	ID      int64  `db:"id"`
	Content []byte `db:"content"`
}

func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := otelsql.Open("sqlite3", path, otelsql.WithAttributes(semconv.DBSystemSqlite))
	if err != nil {
		return nil, fmt.Errorf("error opening spool %s: %w", path, err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	s := &SQLite{db: sqlx.NewDb(db, "sqlite3")}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		s.db.Close()
		return nil, fmt.Errorf("error creating spool schema: %w", err)
	}

	return s, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Push(ctx context.Context, envelopes []*envelope.Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	for _, env := range envelopes {
		content, err := json.Marshal(env)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "insert into envelopes (created_at, content) values (?, ?)", now, content); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLite) Peek(ctx context.Context, limit int) ([]Record, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, "select id, content from envelopes order by id limit ?", limit); err != nil {
		return nil, err
	}

	records := make([]Record, len(rows))
	for i, r := range rows {
		env := &envelope.Envelope{}
		if err := json.Unmarshal(r.Content, env); err != nil {
			return nil, fmt.Errorf("error decoding spooled envelope %d: %w", r.ID, err)
		}

		records[i] = Record{ID: r.ID, Envelope: env}
	}

	return records, nil
}

func (s *SQLite) Remove(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In("delete from envelopes where id in (?)", ids)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	return err
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, "select count(*) from envelopes")
	return count, err
}
