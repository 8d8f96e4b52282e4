package stages

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cognicore/korpus/internal/feed"
	"github.com/cognicore/korpus/internal/wiki"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/split"
	"github.com/cognicore/korpus/pkg/korpus/stage"
)

const rawFile = "raw.txt"

// formatArticle wraps one document body in article markers, one per line.
func formatArticle(body string) string {
	return split.ArticleStart + " " + body + " " + split.ArticleEnd + "\n"
}

// longEnough applies the minimum token count, counted on single spaces.
func longEnough(body string, minTokens int) bool {
	return len(strings.Split(body, " ")) >= minTokens
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

func writeRaw(env *stage.Env, text string, appendMode bool) error {
	path := env.TmpPath(rawFile)
	if appendMode {
		return layout.AppendText(path, text)
	}
	return layout.WriteText(path, text)
}

// JSONLImportConfig configures jsonl_import.
type JSONLImportConfig struct {
	Input        string `yaml:"input"`
	MinNumTokens int    `yaml:"min_num_tokens"`
	IncludeTitle bool   `yaml:"include_title"`
	Append       bool   `yaml:"append"`
}

// JSONLImport turns a JSONL document dump into the raw article file.
type JSONLImport struct {
	stage.Base
	cfg JSONLImportConfig
}

// NewJSONLImport validates cfg.
func NewJSONLImport(cfg JSONLImportConfig) (*JSONLImport, error) {
	if err := required(JSONLImportName, "input", cfg.Input); err != nil {
		return nil, err
	}
	return &JSONLImport{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *JSONLImport) Name() string { return JSONLImportName }

// Params implements stage.Describer.
func (s *JSONLImport) Params() []stage.Param {
	return []stage.Param{
		{Name: "input", Type: "string", Usage: "JSONL file with url, title and text fields"},
		{Name: "min_num_tokens", Type: "int", Default: "0", Usage: "skip documents with fewer space-separated tokens"},
		{Name: "include_title", Type: "bool", Default: "false", Usage: "prepend the title as a ==section== heading"},
		{Name: "append", Type: "bool", Default: "false", Usage: "append to raw.txt instead of replacing it"},
	}
}

// PreRun logs the input.
func (s *JSONLImport) PreRun(env *stage.Env) {
	env.Logger.Info("importing documents", "input", s.cfg.Input, "min_num_tokens", s.cfg.MinNumTokens)
}

// Run wraps every long enough document in article markers and writes raw.txt.
func (s *JSONLImport) Run(ctx context.Context, env *stage.Env) bool {
	items, skipped, err := feed.LoadFromJSONL(s.cfg.Input)
	if err != nil {
		return fail(env, "load documents", err)
	}
	for _, le := range skipped {
		env.Logger.Warn("skipping document", "line", le.Line, "err", le.Err)
	}

	var b strings.Builder
	kept := 0
	for _, item := range items {
		body := item.Body
		if s.cfg.IncludeTitle && item.Title != "" {
			body = "==" + item.Title + "==\n" + body
		}
		if !longEnough(body, s.cfg.MinNumTokens) {
			continue
		}
		b.WriteString(formatArticle(body))
		kept++
	}

	if err := writeRaw(env, b.String(), s.cfg.Append); err != nil {
		return fail(env, "write raw text", err)
	}
	env.Logger.Info("documents imported", "read", len(items), "kept", kept, "skipped", len(skipped))
	return true
}

// WikiScrapingConfig configures wiki_scraping.
type WikiScrapingConfig struct {
	SparqlFile   string        `yaml:"sparql_file"`
	Endpoint     string        `yaml:"endpoint"`
	Site         string        `yaml:"site"`
	LabelVar     string        `yaml:"label_var"`
	MinNumTokens int           `yaml:"min_num_tokens"`
	Retries      int           `yaml:"retries"`
	Backoff      time.Duration `yaml:"backoff"`
	Timeout      time.Duration `yaml:"timeout"`
	UserAgent    string        `yaml:"user_agent"`
	Append       bool          `yaml:"append"`
}

// DefaultWikiScrapingConfig returns the Wikidata defaults.
func DefaultWikiScrapingConfig() WikiScrapingConfig {
	return WikiScrapingConfig{
		Endpoint:     wiki.WikidataURL,
		LabelVar:     "hLabel",
		MinNumTokens: 500,
		Retries:      2,
		Backoff:      time.Second,
		Timeout:      30 * time.Second,
	}
}

// WikiScraping selects articles with a SPARQL query and downloads their raw
// wikitext.
type WikiScraping struct {
	stage.Base
	cfg    WikiScrapingConfig
	client *wiki.Client
}

// NewWikiScraping validates cfg.
func NewWikiScraping(cfg WikiScrapingConfig) (*WikiScraping, error) {
	if err := required(WikiScrapingName, "sparql_file", cfg.SparqlFile); err != nil {
		return nil, err
	}
	if err := required(WikiScrapingName, "site", cfg.Site); err != nil {
		return nil, err
	}
	if err := required(WikiScrapingName, "label_var", cfg.LabelVar); err != nil {
		return nil, err
	}
	if cfg.Retries < 0 || cfg.Timeout < 0 || cfg.Backoff < 0 {
		return nil, fmt.Errorf("%w: %s: retries, backoff and timeout must not be negative", internalerr.ErrInvalidConfig, WikiScrapingName)
	}
	return &WikiScraping{
		cfg: cfg,
		client: &wiki.Client{
			Endpoint:   cfg.Endpoint,
			Site:       cfg.Site,
			UserAgent:  cfg.UserAgent,
			Retries:    cfg.Retries,
			Backoff:    cfg.Backoff,
			HTTPClient: newHTTPClient(cfg.Timeout),
		},
	}, nil
}

// Name implements stage.Stage.
func (s *WikiScraping) Name() string { return WikiScrapingName }

// Params implements stage.Describer.
func (s *WikiScraping) Params() []stage.Param {
	d := DefaultWikiScrapingConfig()
	return []stage.Param{
		{Name: "sparql_file", Type: "string", Usage: "file with the SPARQL query selecting articles"},
		{Name: "endpoint", Type: "string", Default: d.Endpoint, Usage: "SPARQL endpoint"},
		{Name: "site", Type: "string", Usage: "MediaWiki base URL, e.g. https://en.wikipedia.org"},
		{Name: "label_var", Type: "string", Default: d.LabelVar, Usage: "query variable holding page titles"},
		{Name: "min_num_tokens", Type: "int", Default: itoa(d.MinNumTokens), Usage: "skip shorter pages"},
		{Name: "retries", Type: "int", Default: itoa(d.Retries), Usage: "extra attempts per request"},
		{Name: "backoff", Type: "duration", Default: d.Backoff.String(), Usage: "wait before each retry, multiplied by the attempt"},
		{Name: "timeout", Type: "duration", Default: d.Timeout.String(), Usage: "per-request HTTP timeout"},
		{Name: "user_agent", Type: "string", Usage: "User-Agent header"},
		{Name: "append", Type: "bool", Default: "false", Usage: "append to raw.txt instead of replacing it"},
	}
}

// PreRun logs the query and target site.
func (s *WikiScraping) PreRun(env *stage.Env) {
	env.Logger.Info("scraping wiki",
		"site", s.cfg.Site,
		"endpoint", s.cfg.Endpoint,
		"sparql_file", s.cfg.SparqlFile,
		"min_num_tokens", s.cfg.MinNumTokens)
}

// Run queries for page titles and downloads each page; pages that fail or are too short are skipped.
func (s *WikiScraping) Run(ctx context.Context, env *stage.Env) bool {
	query, err := os.ReadFile(s.cfg.SparqlFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", internalerr.ErrMissingInput, s.cfg.SparqlFile)
		}
		return fail(env, "read SPARQL query", err)
	}

	env.Logger.Info("querying for articles to scrape")
	bindings, err := s.client.Query(ctx, string(query))
	if err != nil {
		return fail(env, "SPARQL query", err)
	}
	titles := wiki.Labels(bindings, s.cfg.LabelVar)
	env.Logger.Info("articles selected", "count", len(titles))

	step := max(len(titles)/10, 1)
	var b strings.Builder
	kept := 0
	for i, title := range titles {
		if ctx.Err() != nil {
			return fail(env, "scraping interrupted", ctx.Err())
		}
		text, err := s.client.PageText(ctx, title)
		switch {
		case err != nil:
			env.Logger.Warn("skipping page", "title", title, "err", err)
		case !longEnough(text, s.cfg.MinNumTokens):
			env.Logger.Debug("page too short", "title", title)
		default:
			b.WriteString(formatArticle(text))
			kept++
		}
		if (i+1)%step == 0 {
			env.Logger.Info("scraping progress", "done", i+1, "of", len(titles))
		}
	}

	if err := writeRaw(env, b.String(), s.cfg.Append); err != nil {
		return fail(env, "write raw text", err)
	}
	env.Logger.Info("scraping finished", "kept", kept, "tokens", len(layout.SplitTokens(b.String())))
	return true
}
