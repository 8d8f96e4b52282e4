package stages

import (
	"context"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/codec"
	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/stage"
)

// FrequencyFilteringConfig configures frequency_filtering.
type FrequencyFilteringConfig struct {
	Threshold int      `yaml:"frequency_threshold"`
	Train     string   `yaml:"train"`
	Others    []string `yaml:"others"`
}

// DefaultFrequencyFilteringConfig returns the train/test/valid layout.
func DefaultFrequencyFilteringConfig() FrequencyFilteringConfig {
	return FrequencyFilteringConfig{Train: "train", Others: []string{"test", "valid"}}
}

// FrequencyFiltering builds the dictionary from the training split and
// encodes every split with it.
type FrequencyFiltering struct {
	stage.Base
	cfg FrequencyFilteringConfig
}

// NewFrequencyFiltering validates cfg.
func NewFrequencyFiltering(cfg FrequencyFilteringConfig) (*FrequencyFiltering, error) {
	if err := required(FrequencyFilteringName, "train", cfg.Train); err != nil {
		return nil, err
	}
	for _, o := range cfg.Others {
		if err := required(FrequencyFilteringName, "others", o); err != nil {
			return nil, err
		}
	}
	return &FrequencyFiltering{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *FrequencyFiltering) Name() string { return FrequencyFilteringName }

// Params implements stage.Describer.
func (s *FrequencyFiltering) Params() []stage.Param {
	return []stage.Param{
		{Name: "frequency_threshold", Type: "int", Default: "0", Usage: "keep tokens seen more than this many times in train"},
		{Name: "train", Type: "string", Default: "train", Usage: "split the dictionary is built from"},
		{Name: "others", Type: "list", Default: "[test, valid]", Usage: "splits encoded with the train dictionary"},
	}
}

// PreRun logs the threshold and splits.
func (s *FrequencyFiltering) PreRun(env *stage.Env) {
	env.Logger.Info("frequency filtering",
		"threshold", s.cfg.Threshold,
		"train", s.cfg.Train,
		"others", strings.Join(s.cfg.Others, ","))
}

// Run builds the dictionary from train and writes filtered and encoded copies of every split.
func (s *FrequencyFiltering) Run(ctx context.Context, env *stage.Env) bool {
	names := append([]string{s.cfg.Train}, s.cfg.Others...)

	// Every input must exist before anything is written.
	streams := make([][]string, len(names))
	for i, name := range names {
		tokens, err := layout.ReadTokens(env.TmpPath(name + ".txt"))
		if err != nil {
			return fail(env, "read split", err)
		}
		streams[i] = tokens
	}

	d := codec.Build(streams[0], s.cfg.Threshold)
	env.Logger.Info("dictionary built", "entries", d.Len())
	if err := codec.Save(env.DictionaryPath(), d); err != nil {
		return fail(env, "save dictionary", err)
	}

	for i, name := range names {
		if !encodeSplit(env, d, name, streams[i]) {
			return false
		}
	}
	return true
}

func encodeSplit(env *stage.Env, d *codec.Dictionary, name string, tokens []string) bool {
	filtered, replaced := codec.MarkUnknown(tokens, d)
	if err := layout.WriteTokens(env.TmpPath(name+".f.txt"), filtered); err != nil {
		return fail(env, "write filtered split", err)
	}
	ids, err := codec.Encode(filtered, d)
	if err != nil {
		return fail(env, "encode split", err)
	}
	if err := layout.WriteIDs(env.DataPath(name+".txt"), ids); err != nil {
		return fail(env, "write encoded split", err)
	}
	env.Logger.Info("split encoded", "split", name, "tokens", len(ids), "unknown", replaced)
	return true
}

// DictionaryCreationConfig configures dictionary_creation.
type DictionaryCreationConfig struct {
	CorpusFile string `yaml:"corpus_file"`
	Threshold  int    `yaml:"frequency_threshold"`
}

// DictionaryCreation builds and saves a dictionary from one tmp file.
type DictionaryCreation struct {
	stage.Base
	cfg DictionaryCreationConfig
}

// NewDictionaryCreation validates cfg.
func NewDictionaryCreation(cfg DictionaryCreationConfig) (*DictionaryCreation, error) {
	if err := required(DictionaryCreationName, "corpus_file", cfg.CorpusFile); err != nil {
		return nil, err
	}
	return &DictionaryCreation{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *DictionaryCreation) Name() string { return DictionaryCreationName }

// Params implements stage.Describer.
func (s *DictionaryCreation) Params() []stage.Param {
	return []stage.Param{
		{Name: "corpus_file", Type: "string", Usage: "tmp file the dictionary is built from"},
		{Name: "frequency_threshold", Type: "int", Default: "0", Usage: "keep tokens seen more than this many times"},
	}
}

// PreRun logs the corpus file and threshold.
func (s *DictionaryCreation) PreRun(env *stage.Env) {
	env.Logger.Info("creating dictionary", "corpus_file", s.cfg.CorpusFile, "threshold", s.cfg.Threshold)
}

// Run builds and saves the dictionary of corpus_file.
func (s *DictionaryCreation) Run(ctx context.Context, env *stage.Env) bool {
	tokens, err := layout.ReadTokens(env.TmpPath(s.cfg.CorpusFile))
	if err != nil {
		return fail(env, "read corpus", err)
	}
	d := codec.Build(tokens, s.cfg.Threshold)
	if err := codec.Save(env.DictionaryPath(), d); err != nil {
		return fail(env, "save dictionary", err)
	}
	env.Logger.Info("dictionary saved", "entries", d.Len(), "path", env.DictionaryPath())
	return true
}

// ApplyDictionaryConfig configures apply_dictionary.
type ApplyDictionaryConfig struct {
	CorpusFile string `yaml:"corpus_file"`
}

// ApplyDictionary encodes one tmp file with the persisted dictionary.
type ApplyDictionary struct {
	stage.Base
	cfg ApplyDictionaryConfig
}

// NewApplyDictionary validates cfg.
func NewApplyDictionary(cfg ApplyDictionaryConfig) (*ApplyDictionary, error) {
	if err := required(ApplyDictionaryName, "corpus_file", cfg.CorpusFile); err != nil {
		return nil, err
	}
	return &ApplyDictionary{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *ApplyDictionary) Name() string { return ApplyDictionaryName }

// Params implements stage.Describer.
func (s *ApplyDictionary) Params() []stage.Param {
	return []stage.Param{
		{Name: "corpus_file", Type: "string", Usage: "tmp file to encode; output keeps the name under the data dir"},
	}
}

// PreRun logs the corpus file.
func (s *ApplyDictionary) PreRun(env *stage.Env) {
	env.Logger.Info("applying dictionary", "corpus_file", s.cfg.CorpusFile)
}

// Run encodes corpus_file with the saved dictionary, unknown tokens first replaced by <<unk>>.
func (s *ApplyDictionary) Run(ctx context.Context, env *stage.Env) bool {
	tokens, err := layout.ReadTokens(env.TmpPath(s.cfg.CorpusFile))
	if err != nil {
		return fail(env, "read corpus", err)
	}
	d, err := codec.Load(env.DictionaryPath())
	if err != nil {
		return fail(env, "load dictionary", err)
	}

	filtered, replaced := codec.MarkUnknown(tokens, d)
	env.Logger.Info("unknown tokens replaced", "count", replaced)
	ids, err := codec.Encode(filtered, d)
	if err != nil {
		return fail(env, "encode corpus", err)
	}
	if err := layout.WriteIDs(env.DataPath(s.cfg.CorpusFile), ids); err != nil {
		return fail(env, "write encoded corpus", err)
	}
	return true
}
