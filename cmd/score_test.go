package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/idea-scorer/internal/config"
	"github.com/sells-group/idea-scorer/internal/criteria"
	"github.com/sells-group/idea-scorer/internal/model"
	"github.com/sells-group/idea-scorer/internal/store"
)

const ideasCSV = `Idea Name,Industry,Business Model,TAM,Competition Level,Team Experience,CAC,LTV
Clinic scheduler,Healthcare,B2B SaaS,$1.2B,6,8,400,4000
Pet sitter marketplace,Consumer,Marketplace,300,9,3,60,90
,Retail,B2C,10,5,5,,
Carbon ledger,Climate,B2B,,4,,,
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: filepath.Join(t.TempDir(), "ideas.db")},
		Explain: config.ExplainConfig{
			Enabled:     true,
			MaxInFlight: 2,
		},
		Normalize: config.NormalizeConfig{ScaleDefault: 5},
		Pipeline:  config.PipelineConfig{ScoringConcurrency: 4},
	}
}

func setFlags(t *testing.T, flags map[string]string) {
	t.Helper()
	for name, v := range flags {
		f := scoreCmd.Flags().Lookup(name)
		require.NotNil(t, f, name)
		def := f.DefValue
		require.NoError(t, scoreCmd.Flags().Set(name, v))
		t.Cleanup(func() {
			_ = scoreCmd.Flags().Set(name, def)
			f.Changed = false
		})
	}
}

func TestScoreCommand_SavesAndWritesJSON(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "ideas.csv")
	output := filepath.Join(dir, "out.json")
	require.NoError(t, os.WriteFile(input, []byte(ideasCSV), 0o644))

	cfg = testConfig(t)
	setFlags(t, map[string]string{
		"format":     "json",
		"output":     output,
		"save":       "true",
		"no-explain": "true",
	})

	ctx := context.Background()
	scoreCmd.SetContext(ctx)
	require.NoError(t, scoreCmd.RunE(scoreCmd, []string{input}))

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	var batch model.Batch
	require.NoError(t, json.Unmarshal(data, &batch))
	assert.Equal(t, model.BatchComplete, batch.State)
	assert.Equal(t, "ideas.csv", batch.Source)
	require.Len(t, batch.Ideas, 3)
	assert.Equal(t, 1, batch.Ideas[0].Rank)
	for _, idea := range batch.Ideas {
		assert.Equal(t, model.ExplanationPending, idea.ExplanationStatus)
	}
	require.Len(t, batch.Rejected, 1)
	assert.Equal(t, 3, batch.Rejected[0].Row)

	st, err := store.Open(ctx, cfg.Store)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck
	saved, err := st.GetBatch(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "ideas.csv", saved.Source)
	assert.Len(t, saved.Ideas, 3)
}

func TestScoreCommand_RejectsUnknownFormat(t *testing.T) {
	cfg = testConfig(t)
	setFlags(t, map[string]string{"format": "xml", "no-explain": "true"})
	scoreCmd.SetContext(context.Background())

	err := scoreCmd.RunE(scoreCmd, []string{"ideas.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestScoreCommand_ExplainNeedsKey(t *testing.T) {
	cfg = testConfig(t)
	scoreCmd.SetContext(context.Background())

	err := scoreCmd.RunE(scoreCmd, []string{"ideas.csv"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.key")
}

func TestLoadWeights_Precedence(t *testing.T) {
	reg := criteria.Default()
	c := testConfig(t)

	w, err := loadWeights(c, "", reg)
	require.NoError(t, err)
	assert.Len(t, w.Names(), 6)

	c.Weights = map[string]float64{"market_business_model": 50, "execution_team": 50}
	w, err = loadWeights(c, "", reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"execution_team", "market_business_model"}, w.Names())

	path := filepath.Join(t.TempDir(), "weights.yaml")
	require.NoError(t, os.WriteFile(path, []byte("weights:\n  competitive_landscape: 100\n"), 0o644))
	w, err = loadWeights(c, path, reg)
	require.NoError(t, err)
	assert.Equal(t, []string{"competitive_landscape"}, w.Names())

	c.Weights = map[string]float64{"vibes": 100}
	_, err = loadWeights(c, "", reg)
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestBuildPipeline_CustomRules(t *testing.T) {
	c := testConfig(t)
	c.Explain.Enabled = false
	c.Risk.RulesPath = filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(c.Risk.RulesPath, []byte("rules: [unclosed"), 0o644))

	_, err := buildPipeline(c, "")
	require.Error(t, err)
	assert.True(t, model.IsConfigError(err))
}

func TestBuildPipeline_TracksSpendOnlyWhenExplaining(t *testing.T) {
	c := testConfig(t)
	c.Anthropic.Key = "test-key"
	sc, err := buildPipeline(c, "")
	require.NoError(t, err)
	require.NotNil(t, sc.spend)
	assert.Zero(t, sc.spend.Total().Calls)

	c.Explain.Enabled = false
	sc, err = buildPipeline(c, "")
	require.NoError(t, err)
	assert.Nil(t, sc.spend)
	assert.Len(t, sc.weights.Names(), 6)
}
