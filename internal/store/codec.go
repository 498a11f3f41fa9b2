package store

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/idea-scorer/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// batchRow is the encoded form of a batch's own columns.
type batchRow struct {
	weights     []byte
	rejected    []byte
	completedAt *time.Time
}

func encodeBatch(b *model.Batch) (batchRow, error) {
	var r batchRow
	var err error
	if r.weights, err = json.Marshal(b.Weights); err != nil {
		return r, eris.Wrap(err, "store: marshal weights")
	}
	rejected := b.Rejected
	if rejected == nil {
		rejected = []model.RowError{}
	}
	if r.rejected, err = json.Marshal(rejected); err != nil {
		return r, eris.Wrap(err, "store: marshal rejected rows")
	}
	if !b.CompletedAt.IsZero() {
		t := b.CompletedAt.UTC()
		r.completedAt = &t
	}
	return r, nil
}

// ideaValues returns the column values for one idea in ideaColumns order.
// JSON columns are returned as []byte.
func ideaValues(batchID string, s *model.ScoredIdea) ([]any, error) {
	scores, err := json.Marshal(s.CriterionScores)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal criterion scores")
	}
	flags := s.RiskFlags
	if flags == nil {
		flags = []model.RiskFlag{}
	}
	flagsJSON, err := json.Marshal(flags)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal risk flags")
	}
	imputed := s.Imputed
	if imputed == nil {
		imputed = []string{}
	}
	imputedJSON, err := json.Marshal(imputed)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal imputed fields")
	}
	return []any{
		batchID, s.Row, s.ID, s.Name, s.Industry, string(s.BusinessModel),
		s.Score, string(s.Tier), s.Rank,
		scores, flagsJSON, s.Explanation, string(s.ExplanationStatus), imputedJSON,
	}, nil
}

func scanIdea(row scannable) (StoredIdea, error) {
	var (
		si                     StoredIdea
		bizModel, tier, status string
		scores, flags, imputed []byte
	)
	err := row.Scan(
		&si.BatchID, &si.Row, &si.ID, &si.Name, &si.Industry, &bizModel,
		&si.Score, &tier, &si.Rank,
		&scores, &flags, &si.Explanation, &status, &imputed,
	)
	if err != nil {
		return si, eris.Wrap(err, "store: scan idea")
	}
	si.BusinessModel = model.BusinessModel(bizModel)
	si.Tier = model.Tier(tier)
	si.ExplanationStatus = model.ExplanationStatus(status)

	if err := json.Unmarshal(scores, &si.CriterionScores); err != nil {
		return si, eris.Wrap(err, "store: unmarshal criterion scores")
	}
	if err := json.Unmarshal(flags, &si.RiskFlags); err != nil {
		return si, eris.Wrap(err, "store: unmarshal risk flags")
	}
	if err := json.Unmarshal(imputed, &si.Imputed); err != nil {
		return si, eris.Wrap(err, "store: unmarshal imputed fields")
	}
	if len(si.Imputed) == 0 {
		si.Imputed = nil
	}
	return si, nil
}

// scanBatch reads id, source, state, weights, rejected, error, created_at,
// completed_at.
func scanBatch(row scannable) (*model.Batch, error) {
	var (
		b                 model.Batch
		state             string
		weights, rejected []byte
		completedAt       *time.Time
	)
	if err := row.Scan(&b.ID, &b.Source, &state, &weights, &rejected, &b.Error, &b.CreatedAt, &completedAt); err != nil {
		return nil, err
	}
	b.State = model.BatchState(state)
	b.CreatedAt = b.CreatedAt.UTC()
	if completedAt != nil {
		b.CompletedAt = completedAt.UTC()
	}
	if err := json.Unmarshal(weights, &b.Weights); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal weights")
	}
	if err := json.Unmarshal(rejected, &b.Rejected); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal rejected rows")
	}
	if len(b.Rejected) == 0 {
		b.Rejected = nil
	}
	return &b, nil
}

func scanSummary(row scannable) (BatchSummary, error) {
	var (
		s           BatchSummary
		state       string
		rejected    []byte
		completedAt *time.Time
	)
	err := row.Scan(&s.ID, &s.Source, &state, &rejected, &s.Error, &s.CreatedAt, &completedAt,
		&s.Ideas, &s.Degraded, &s.TopScore)
	if err != nil {
		return s, eris.Wrap(err, "store: scan batch summary")
	}
	s.State = model.BatchState(state)
	s.CreatedAt = s.CreatedAt.UTC()
	if completedAt != nil {
		s.CompletedAt = completedAt.UTC()
	}
	var rows []model.RowError
	if err := json.Unmarshal(rejected, &rows); err != nil {
		return s, eris.Wrap(err, "store: unmarshal rejected rows")
	}
	s.Rejected = len(rows)
	return s, nil
}
