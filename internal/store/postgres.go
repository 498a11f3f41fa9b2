package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/db"
	"github.com/sells-group/idea-scorer/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = min(minConns, maxConns)
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS batches (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL DEFAULT '',
	state        TEXT NOT NULL,
	weights      JSONB NOT NULL,
	rejected     JSONB NOT NULL DEFAULT '[]',
	error        TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS scored_ideas (
	batch_id           TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
	row_num            INTEGER NOT NULL,
	idea_id            TEXT NOT NULL,
	name               TEXT NOT NULL,
	industry           TEXT NOT NULL DEFAULT '',
	business_model     TEXT NOT NULL DEFAULT '',
	score              INTEGER NOT NULL,
	tier               TEXT NOT NULL,
	rank               INTEGER NOT NULL,
	criterion_scores   JSONB NOT NULL,
	risk_flags         JSONB NOT NULL DEFAULT '[]',
	explanation        TEXT,
	explanation_status TEXT NOT NULL,
	imputed            JSONB NOT NULL DEFAULT '[]',
	PRIMARY KEY (batch_id, row_num)
);

CREATE INDEX IF NOT EXISTS idx_batches_state ON batches(state);
CREATE INDEX IF NOT EXISTS idx_batches_created_at ON batches(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_scored_ideas_score ON scored_ideas(score DESC);
CREATE INDEX IF NOT EXISTS idx_scored_ideas_industry ON scored_ideas(lower(industry));
CREATE INDEX IF NOT EXISTS idx_scored_ideas_flags ON scored_ideas USING GIN (risk_flags);
`

// ideaCopyColumns matches ideaColumns for COPY.
var ideaCopyColumns = []string{
	"batch_id", "row_num", "idea_id", "name", "industry", "business_model", "score", "tier", "rank",
	"criterion_scores", "risk_flags", "explanation", "explanation_status", "imputed",
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveBatch(ctx context.Context, b *model.Batch) error {
	enc, err := encodeBatch(b)
	if err != nil {
		return err
	}
	rows := make([][]any, len(b.Ideas))
	for i := range b.Ideas {
		if rows[i], err = ideaValues(b.ID, &b.Ideas[i]); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin")
	}
	if err := saveBatchTx(ctx, tx, b, enc, rows); err != nil {
		tx.Rollback(ctx) //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit batch")
}

func saveBatchTx(ctx context.Context, tx pgx.Tx, b *model.Batch, enc batchRow, rows [][]any) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO batches (id, source, state, weights, rejected, error, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			source = EXCLUDED.source, state = EXCLUDED.state, weights = EXCLUDED.weights,
			rejected = EXCLUDED.rejected, error = EXCLUDED.error,
			created_at = EXCLUDED.created_at, completed_at = EXCLUDED.completed_at`,
		b.ID, b.Source, string(b.State), enc.weights, enc.rejected, b.Error, b.CreatedAt.UTC(), enc.completedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert batch %s", b.ID)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM scored_ideas WHERE batch_id = $1`, b.ID); err != nil {
		return eris.Wrapf(err, "postgres: clear ideas %s", b.ID)
	}
	_, err = db.CopyFrom(ctx, tx, "scored_ideas", ideaCopyColumns, rows)
	return err
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (*model.Batch, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source, state, weights, rejected, error, created_at, completed_at FROM batches WHERE id = $1`, id)
	b, err := scanBatch(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "batch %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch %s", id)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+ideaColumns+` FROM scored_ideas WHERE batch_id = $1 ORDER BY rank`, id)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get ideas %s", id)
	}
	defer rows.Close()

	b.Ideas = []model.ScoredIdea{}
	for rows.Next() {
		si, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		b.Ideas = append(b.Ideas, si.ScoredIdea)
	}
	return b, eris.Wrap(rows.Err(), "postgres: iterate ideas")
}

func (s *PostgresStore) ListBatches(ctx context.Context, filter BatchFilter) ([]BatchSummary, error) {
	q, args := batchQuery(postgresDialect, filter)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list batches")
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate batches")
}

func (s *PostgresStore) ListIdeas(ctx context.Context, filter IdeaFilter) ([]StoredIdea, error) {
	q, args, err := ideaQuery(postgresDialect, filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ideas")
	}
	defer rows.Close()

	var out []StoredIdea
	for rows.Next() {
		si, err := scanIdea(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, si)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate ideas")
}
