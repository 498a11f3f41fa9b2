// Package store persists scored batches so leaderboards can be listed and
// reloaded after the process exits.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/config"
	"github.com/sells-group/idea-scorer/internal/model"
)

// ErrNotFound is returned when a batch does not exist.
var ErrNotFound = eris.New("store: not found")

// Store defines the persistence interface for scored batches.
type Store interface {
	// SaveBatch writes a batch and all of its ideas, replacing any earlier
	// copy with the same ID.
	SaveBatch(ctx context.Context, b *model.Batch) error
	GetBatch(ctx context.Context, id string) (*model.Batch, error)
	ListBatches(ctx context.Context, filter BatchFilter) ([]BatchSummary, error)
	ListIdeas(ctx context.Context, filter IdeaFilter) ([]StoredIdea, error)

	Migrate(ctx context.Context) error
	Close() error
}

// BatchFilter specifies criteria for listing batches, newest first.
type BatchFilter struct {
	State  model.BatchState `json:"state,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Idea orderings accepted by IdeaFilter.Sort.
const (
	SortRank  = "rank"
	SortScore = "score"
	SortName  = "name"
)

var ideaOrder = map[string]string{
	"":        "batch_id, rank",
	SortRank:  "batch_id, rank",
	SortScore: "score DESC, batch_id, rank",
	SortName:  "name, batch_id, rank",
}

// IdeaFilter specifies criteria for listing stored ideas. Zero fields do
// not filter.
type IdeaFilter struct {
	BatchID  string     `json:"batch_id,omitempty"`
	MinScore int        `json:"min_score,omitempty"`
	Industry string     `json:"industry,omitempty"`
	Tier     model.Tier `json:"tier,omitempty"`
	Flag     string     `json:"flag,omitempty"`
	Sort     string     `json:"sort,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`
}

// StoredIdea is a scored idea together with the batch it belongs to.
type StoredIdea struct {
	BatchID string `json:"batch_id"`
	model.ScoredIdea
}

// BatchSummary is one row of the batch listing.
type BatchSummary struct {
	ID          string           `json:"id"`
	Source      string           `json:"source,omitempty"`
	State       model.BatchState `json:"state"`
	Ideas       int              `json:"ideas"`
	Rejected    int              `json:"rejected"`
	Degraded    int              `json:"degraded"`
	TopScore    int              `json:"top_score"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	CompletedAt time.Time        `json:"completed_at,omitempty"`
}

// Open connects to the configured backend and applies the schema.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "ideas.db"
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns})
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

const defaultLimit = 100

func limitOf(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	return n
}

// dialect holds the SQL that differs between backends.
type dialect struct {
	bind func(n int) string
	// hasFlag is a format string taking the bound flag name.
	hasFlag string
}

var (
	sqliteDialect = dialect{
		bind:    func(int) string { return "?" },
		hasFlag: `EXISTS (SELECT 1 FROM json_each(risk_flags) WHERE json_extract(value, '$.name') = %s)`,
	}
	postgresDialect = dialect{
		bind:    func(n int) string { return fmt.Sprintf("$%d", n) },
		hasFlag: `risk_flags @> jsonb_build_array(jsonb_build_object('name', %s::text))`,
	}
)

const ideaColumns = `batch_id, row_num, idea_id, name, industry, business_model, score, tier, rank,
	criterion_scores, risk_flags, explanation, explanation_status, imputed`

// ideaQuery renders the ListIdeas statement for a dialect.
func ideaQuery(d dialect, f IdeaFilter) (string, []any, error) {
	order, ok := ideaOrder[f.Sort]
	if !ok {
		return "", nil, eris.Errorf("store: unknown idea sort %q", f.Sort)
	}

	var (
		where []string
		args  []any
	)
	add := func(format string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(format, d.bind(len(args))))
	}
	if f.BatchID != "" {
		add("batch_id = %s", f.BatchID)
	}
	if f.MinScore > 0 {
		add("score >= %s", f.MinScore)
	}
	if f.Industry != "" {
		add("lower(industry) = lower(%s)", f.Industry)
	}
	if f.Tier != "" {
		add("tier = %s", string(f.Tier))
	}
	if f.Flag != "" {
		add(d.hasFlag, strings.ToUpper(f.Flag))
	}

	q := "SELECT " + ideaColumns + " FROM scored_ideas"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY " + order
	args = append(args, limitOf(f.Limit))
	q += " LIMIT " + d.bind(len(args))
	args = append(args, max(f.Offset, 0))
	q += " OFFSET " + d.bind(len(args))
	return q, args, nil
}

const summarySelect = `SELECT b.id, b.source, b.state, b.rejected, b.error, b.created_at, b.completed_at,
	COUNT(i.row_num),
	COALESCE(SUM(CASE WHEN i.explanation_status = 'DEGRADED' THEN 1 ELSE 0 END), 0),
	COALESCE(MAX(i.score), 0)
FROM batches b LEFT JOIN scored_ideas i ON i.batch_id = b.id`

// batchQuery renders the ListBatches statement for a dialect.
func batchQuery(d dialect, f BatchFilter) (string, []any) {
	var args []any
	q := summarySelect
	if f.State != "" {
		args = append(args, string(f.State))
		q += " WHERE b.state = " + d.bind(len(args))
	}
	q += " GROUP BY b.id ORDER BY b.created_at DESC, b.id"
	args = append(args, limitOf(f.Limit))
	q += " LIMIT " + d.bind(len(args))
	args = append(args, max(f.Offset, 0))
	q += " OFFSET " + d.bind(len(args))
	return q, args
}
