package stages

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/analytics"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/stage"
	"github.com/cognicore/korpus/pkg/korpus/stoplist"
)

// CorpusAnalysisConfig configures corpus_analysis.
type CorpusAnalysisConfig struct {
	CorpusFile   string `yaml:"corpus_file"`
	Top          int    `yaml:"top"`
	Collocations int    `yaml:"collocations"`
	MinPairCount int64  `yaml:"min_pair_count"`
	Stopwords    string `yaml:"stopwords"`
}

// DefaultCorpusAnalysisConfig reports the top 10 tokens and collocations.
func DefaultCorpusAnalysisConfig() CorpusAnalysisConfig {
	return CorpusAnalysisConfig{Top: 10, Collocations: 10, MinPairCount: 5}
}

// CorpusAnalysis writes token frequency and article length statistics of
// one tmp file to the output dir.
type CorpusAnalysis struct {
	stage.Base
	cfg CorpusAnalysisConfig
}

// NewCorpusAnalysis validates cfg.
func NewCorpusAnalysis(cfg CorpusAnalysisConfig) (*CorpusAnalysis, error) {
	if err := required(CorpusAnalysisName, "corpus_file", cfg.CorpusFile); err != nil {
		return nil, err
	}
	if cfg.Top < 0 || cfg.Collocations < 0 || cfg.MinPairCount < 0 {
		return nil, fmt.Errorf("%w: %s: top, collocations and min_pair_count must not be negative", internalerr.ErrInvalidConfig, CorpusAnalysisName)
	}
	return &CorpusAnalysis{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *CorpusAnalysis) Name() string { return CorpusAnalysisName }

// Params implements stage.Describer.
func (s *CorpusAnalysis) Params() []stage.Param {
	return []stage.Param{
		{Name: "corpus_file", Type: "string", Usage: "tmp file to analyse"},
		{Name: "top", Type: "int", Default: "10", Usage: "number of most frequent non-stopwords to report"},
		{Name: "collocations", Type: "int", Default: "10", Usage: "number of adjacent word pairs to report, ranked by normalized PMI"},
		{Name: "min_pair_count", Type: "int", Default: "5", Usage: "ignore pairs seen fewer times"},
		{Name: "stopwords", Type: "string", Usage: "YAML stoplist, built-in English list when empty"},
	}
}

// PreRun logs the corpus file.
func (s *CorpusAnalysis) PreRun(env *stage.Env) {
	env.Logger.Info("analysing corpus", "corpus_file", s.cfg.CorpusFile)
}

// Report is the JSON document written by corpus_analysis.
type Report struct {
	Topic      string `json:"topic"`
	RunID      string `json:"run_id"`
	CorpusFile string `json:"corpus_file"`
	analytics.Stats
	Top          []analytics.TokenCount  `json:"top"`
	Collocations []analytics.Collocation `json:"collocations,omitempty"`
}

// Run writes the JSON report and the frequency table.
func (s *CorpusAnalysis) Run(ctx context.Context, env *stage.Env) bool {
	tokens, err := layout.ReadTokens(env.TmpPath(s.cfg.CorpusFile))
	if err != nil {
		return fail(env, "read corpus", err)
	}
	stops, err := stoplist.LoadOrEnglish(s.cfg.Stopwords)
	if err != nil {
		return fail(env, "load stopwords", err)
	}

	a := analytics.NewAnalyzer(stops)
	a.Process(tokens)
	stats := a.Snapshot()

	base := strings.TrimSuffix(s.cfg.CorpusFile, filepath.Ext(s.cfg.CorpusFile))
	report := Report{
		Topic:      env.Topic,
		RunID:      env.RunID,
		CorpusFile: s.cfg.CorpusFile,
		Stats:      stats,
		Top:        stats.Top(s.cfg.Top),

		Collocations: a.Collocations(s.cfg.MinPairCount, s.cfg.Collocations),
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fail(env, "encode report", err)
	}
	if err := layout.WriteText(env.OutputPath(base+".analysis.json"), string(data)+"\n"); err != nil {
		return fail(env, "write report", err)
	}
	if err := writeFrequencyCSV(env.OutputPath(base+".frequency.csv"), stats.Frequency); err != nil {
		return fail(env, "write frequency table", err)
	}

	env.Logger.Info("corpus analysed",
		"tokens", stats.TotalTokens,
		"unique", stats.UniqueTokens,
		"unique_after_stop", stats.UniqueAfterStop,
		"articles", stats.TotalArticles,
		"mean_article_len", stats.ArticleLength.Mean)
	return true
}

func writeFrequencyCSV(path string, rows []analytics.TokenCount) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write([]string{"token", "count", "percent", "stop"})
	for _, r := range rows {
		w.Write([]string{
			r.Token,
			strconv.FormatInt(r.Count, 10),
			strconv.FormatFloat(r.Percent, 'f', 4, 64),
			strconv.FormatBool(r.Stop),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
