package stages

import (
	"context"

	"github.com/cognicore/korpus/pkg/korpus/ingest"
	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/stage"
	"github.com/cognicore/korpus/pkg/korpus/stoplist"
)

// TextCleaningConfig configures text_cleaning.
type TextCleaningConfig struct {
	InputFile     string `yaml:"input_file"`
	OutputFile    string `yaml:"output_file"`
	Lowercase     bool   `yaml:"lowercase"`
	Tokenize      bool   `yaml:"tokenize"`
	Punctuation   bool   `yaml:"punctuation"`
	MarkYears     bool   `yaml:"mark_years"`
	MarkNumbers   bool   `yaml:"mark_numbers"`
	SectionTitles bool   `yaml:"section_titles"`
	Stopwords     string `yaml:"stopwords"`
}

// DefaultTextCleaningConfig returns the defaults: raw.txt to clean.txt with
// years marked.
func DefaultTextCleaningConfig() TextCleaningConfig {
	return TextCleaningConfig{
		InputFile:   "raw.txt",
		OutputFile:  "clean.txt",
		Punctuation: true,
		MarkYears:   true,
	}
}

// TextCleaning strips wiki markup and HTML from scraped text and writes a
// single-line token stream.
type TextCleaning struct {
	stage.Base
	cfg TextCleaningConfig
}

// NewTextCleaning validates cfg.
func NewTextCleaning(cfg TextCleaningConfig) (*TextCleaning, error) {
	if err := required(TextCleaningName, "input_file", cfg.InputFile); err != nil {
		return nil, err
	}
	if err := required(TextCleaningName, "output_file", cfg.OutputFile); err != nil {
		return nil, err
	}
	return &TextCleaning{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *TextCleaning) Name() string { return TextCleaningName }

// Params implements stage.Describer.
func (s *TextCleaning) Params() []stage.Param {
	d := DefaultTextCleaningConfig()
	return []stage.Param{
		{Name: "input_file", Type: "string", Default: d.InputFile, Usage: "tmp file with scraped text"},
		{Name: "output_file", Type: "string", Default: d.OutputFile, Usage: "tmp file for the cleaned stream"},
		{Name: "lowercase", Type: "bool", Default: fmtBool(d.Lowercase), Usage: "fold words to lower case"},
		{Name: "tokenize", Type: "bool", Default: fmtBool(d.Tokenize), Usage: "split punctuation from words"},
		{Name: "punctuation", Type: "bool", Default: fmtBool(d.Punctuation), Usage: "keep punctuation tokens when tokenizing"},
		{Name: "mark_years", Type: "bool", Default: fmtBool(d.MarkYears), Usage: "replace four-digit years with <<year>>"},
		{Name: "mark_numbers", Type: "bool", Default: fmtBool(d.MarkNumbers), Usage: "replace other numbers with <<number>>"},
		{Name: "section_titles", Type: "bool", Default: fmtBool(d.SectionTitles), Usage: "wrap ==titles== in section title markers"},
		{Name: "stopwords", Type: "string", Usage: "YAML stoplist of words to drop when tokenizing"},
	}
}

// PreRun logs the cleaning options.
func (s *TextCleaning) PreRun(env *stage.Env) {
	env.Logger.Info("cleaning text",
		"input", s.cfg.InputFile,
		"output", s.cfg.OutputFile,
		"tokenize", s.cfg.Tokenize,
		"lowercase", s.cfg.Lowercase)
}

// Run cleans input_file into output_file.
func (s *TextCleaning) Run(ctx context.Context, env *stage.Env) bool {
	text, err := layout.ReadText(env.TmpPath(s.cfg.InputFile))
	if err != nil {
		return fail(env, "read raw text", err)
	}

	opts := ingest.CleanOptions{
		MarkYears:     s.cfg.MarkYears,
		MarkNumbers:   s.cfg.MarkNumbers,
		SectionTitles: s.cfg.SectionTitles,
		Lowercase:     s.cfg.Lowercase,
		Tokenize:      s.cfg.Tokenize,
	}
	if s.cfg.Tokenize {
		var tokOpts []ingest.Option
		if !s.cfg.Punctuation {
			tokOpts = append(tokOpts, ingest.DropPunctuation())
		}
		if s.cfg.Stopwords != "" {
			stops, err := stoplist.Load(s.cfg.Stopwords)
			if err != nil {
				return fail(env, "load stopwords", err)
			}
			tokOpts = append(tokOpts, ingest.WithStopwords(stops))
		}
		opts.Tokenizer = ingest.NewTokenizer(tokOpts...)
	}

	clean := ingest.Clean(text, opts)
	if err := layout.WriteText(env.TmpPath(s.cfg.OutputFile), clean); err != nil {
		return fail(env, "write clean text", err)
	}
	env.Logger.Info("cleaned text saved", "tokens", len(layout.SplitTokens(clean)))
	return true
}
