package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/split"
	"github.com/cognicore/korpus/pkg/korpus/stage"
)

// CorpusSplitConfig configures corpus_split.
type CorpusSplitConfig struct {
	Splits    []split.Spec `yaml:"splits"`
	InputFile string       `yaml:"input_file"`
}

// DefaultCorpusSplitConfig returns the defaults; Splits must still be set.
func DefaultCorpusSplitConfig() CorpusSplitConfig {
	return CorpusSplitConfig{InputFile: "clean.txt"}
}

// CorpusSplit shuffles whole articles and writes one token file per split.
type CorpusSplit struct {
	stage.Base
	cfg CorpusSplitConfig
}

// NewCorpusSplit validates cfg.
func NewCorpusSplit(cfg CorpusSplitConfig) (*CorpusSplit, error) {
	if err := required(CorpusSplitName, "input_file", cfg.InputFile); err != nil {
		return nil, err
	}
	if err := split.ValidateSpecs(cfg.Splits); err != nil {
		return nil, fmt.Errorf("%s: %w", CorpusSplitName, err)
	}
	return &CorpusSplit{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *CorpusSplit) Name() string { return CorpusSplitName }

// Params implements stage.Describer.
func (s *CorpusSplit) Params() []stage.Param {
	return []stage.Param{
		{Name: "splits", Type: "list", Usage: "ordered {name, proportion} entries"},
		{Name: "input_file", Type: "string", Default: "clean.txt", Usage: "tmp file to split"},
	}
}

// PreRun logs the split layout.
func (s *CorpusSplit) PreRun(env *stage.Env) {
	names := make([]string, len(s.cfg.Splits))
	for i, sp := range s.cfg.Splits {
		names[i] = fmt.Sprintf("%s=%g", sp.Name, sp.Proportion)
	}
	env.Logger.Info("splitting corpus", "input", s.cfg.InputFile, "splits", strings.Join(names, ","))
}

// Run shuffles whole articles and writes one tmp file per split.
func (s *CorpusSplit) Run(ctx context.Context, env *stage.Env) bool {
	tokens, err := layout.ReadTokens(env.TmpPath(s.cfg.InputFile))
	if err != nil {
		return fail(env, "read corpus", err)
	}

	articles := split.ParseArticles(tokens)
	if dropped := split.Dropped(tokens, articles); dropped > 0 {
		env.Logger.Debug("tokens outside complete articles dropped", "count", dropped)
	}
	env.Logger.Info("corpus loaded", "tokens", len(tokens), "articles", len(articles))

	for _, part := range split.Split(articles, s.cfg.Splits, env.Rand) {
		path := env.TmpPath(part.Name + ".txt")
		tokens := part.Tokens()
		if err := layout.WriteTokens(path, tokens); err != nil {
			return fail(env, "write split", err)
		}
		env.Logger.Info("split written", "split", part.Name, "articles", len(part.Articles), "tokens", len(tokens))
	}
	return true
}
