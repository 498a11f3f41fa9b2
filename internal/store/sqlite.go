package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/idea-scorer/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if dsn == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	weights      TEXT NOT NULL,
	rejected     TEXT NOT NULL DEFAULT '[]',
	error        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL,
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS scored_ideas (
	batch_id           TEXT NOT NULL REFERENCES batches(id),
	row_num            INTEGER NOT NULL,
	idea_id            TEXT NOT NULL,
	name               TEXT NOT NULL,
	industry           TEXT NOT NULL DEFAULT '',
	business_model     TEXT NOT NULL DEFAULT '',
	score              INTEGER NOT NULL,
	tier               TEXT NOT NULL,
	rank               INTEGER NOT NULL,
	criterion_scores   TEXT NOT NULL,
	risk_flags         TEXT NOT NULL DEFAULT '[]',
	explanation        TEXT,
	explanation_status TEXT NOT NULL,
	imputed            TEXT NOT NULL DEFAULT '[]',
	PRIMARY KEY (batch_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_batches_state ON batches(state);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at);
CREATE INDEX IF NOT EXISTS idx_scored_ideas_score ON scored_ideas(score);
CREATE INDEX IF NOT EXISTS idx_scored_ideas_industry ON scored_ideas(industry);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertIdea = `INSERT INTO scored_ideas (` + ideaColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (s *SQLiteStore) SaveBatch(ctx context.Context, b *model.Batch) error {
	enc, err := encodeBatch(b)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO batches (id, source, state, weights, rejected, error, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			source = excluded.source, state = excluded.state, weights = excluded.weights,
			rejected = excluded.rejected, error = excluded.error,
			created_at = excluded.created_at, completed_at = excluded.completed_at`,
		b.ID, b.Source, string(b.State), string(enc.weights), string(enc.rejected), b.Error,
		b.CreatedAt.UTC(), enc.completedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert batch %s", b.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM scored_ideas WHERE batch_id = ?`, b.ID); err != nil {
		return eris.Wrapf(err, "sqlite: clear ideas %s", b.ID)
	}

	stmt, err := tx.PrepareContext(ctx, sqliteInsertIdea)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert idea")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range b.Ideas {
		vals, err := ideaValues(b.ID, &b.Ideas[i])
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, textJSON(vals)...); err != nil {
			return eris.Wrapf(err, "sqlite: insert idea row %d", b.Ideas[i].Row)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit batch")
}

// textJSON stores JSON columns as TEXT; SQLite treats BLOB arguments to its
// JSON functions as binary JSONB.
func textJSON(vals []any) []any {
	for i, v := range vals {
		if b, ok := v.([]byte); ok {
			vals[i] = string(b)
		}
	}
	return vals
}

func (s *SQLiteStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, state, weights, rejected, error, created_at, completed_at FROM batches WHERE id = ?`, id)
	b, err := scanBatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "batch %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch %s", id)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ideaColumns+` FROM scored_ideas WHERE batch_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get ideas %s", id)
	}
	defer rows.Close() //nolint:errcheck

	b.Ideas = []model.ScoredIdea{}
	for rows.Next() {
		si, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		b.Ideas = append(b.Ideas, si.ScoredIdea)
	}
	return b, eris.Wrap(rows.Err(), "sqlite: iterate ideas")
}

func (s *SQLiteStore) ListBatches(ctx context.Context, filter BatchFilter) ([]BatchSummary, error) {
	q, args := batchQuery(sqliteDialect, filter)
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list batches")
	}
	defer rows.Close() //nolint:errcheck

	var out []BatchSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate batches")
}

func (s *SQLiteStore) ListIdeas(ctx context.Context, filter IdeaFilter) ([]StoredIdea, error) {
	q, args, err := ideaQuery(sqliteDialect, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ideas")
	}
	defer rows.Close() //nolint:errcheck

	var out []StoredIdea
	for rows.Next() {
		si, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate ideas")
}
