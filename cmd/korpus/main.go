package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/cognicore/korpus/pkg/korpus/config"
	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/registry"
	"github.com/cognicore/korpus/pkg/korpus/stage"
)

// stringList collects a repeatable flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var configs stringList
	flag.Var(&configs, "config-file", "Pipeline YAML file (repeatable; positional arguments are added too)")
	var (
		tmpDir     = flag.String("tmp-dir", "", "Directory for intermediate files (overrides config)")
		dataDir    = flag.String("data-dir", "", "Directory for encoded corpora and dictionaries (overrides config)")
		outputDir  = flag.String("output-dir", "", "Directory for analysis reports (overrides config)")
		seed       = flag.Int64("seed", 0, "Shuffle seed (overrides config)")
		logLevel   = flag.String("log-level", "info", "Log level: debug, info, warn, error")
		logJSON    = flag.Bool("log-json", false, "Emit JSON logs")
		listStages = flag.Bool("list-stages", false, "List registered stages and their parameters, then exit")
	)
	flag.Parse()

	reg := registry.Default()
	if *listStages {
		if err := printStages(os.Stdout, reg); err != nil {
			log.Fatal(err)
		}
		return
	}

	configs = append(configs, flag.Args()...)
	if len(configs) == 0 {
		log.Fatal("--config-file required")
	}
	logger, err := newLogger(os.Stderr, *logLevel, *logJSON)
	if err != nil {
		log.Fatal(err)
	}

	opts := runOptions{
		Dirs:   layout.Dirs{Tmp: *tmpDir, Data: *dataDir, Output: *outputDir},
		Logger: logger,
	}
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "seed" {
			opts.Seed = seed
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	failed := 0
	for _, path := range configs {
		if !runConfig(ctx, reg, path, opts) {
			failed++
		}
	}
	if failed > 0 {
		logger.Error("pipelines failed", "failed", failed, "of", len(configs))
		stop()
		os.Exit(1)
	}
}

type runOptions struct {
	Dirs   layout.Dirs
	Seed   *int64
	Logger *slog.Logger
}

func newLogger(w io.Writer, level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q: %w", level, err)
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	}
	return slog.New(slog.NewTextHandler(w, hopts)), nil
}

// runConfig loads, builds and executes one pipeline file. Flag directories
// and seed take precedence over the document.
func runConfig(ctx context.Context, reg *registry.Registry, path string, opts runOptions) bool {
	logger := opts.Logger.With("config", path)

	doc, err := config.Load(path)
	if err != nil {
		logger.Error("load config", "err", err)
		return false
	}
	p, err := reg.Build(doc)
	if err != nil {
		logger.Error("build pipeline", "err", err)
		return false
	}

	dirs := opts.Dirs.Merge(doc.Paths).Merge(layout.DefaultDirs())
	if err := dirs.Ensure(); err != nil {
		logger.Error("prepare directories", "err", err)
		return false
	}

	envOpts := []stage.Option{stage.WithDirs(dirs), stage.WithLogger(logger)}
	switch {
	case opts.Seed != nil:
		envOpts = append(envOpts, stage.WithSeed(*opts.Seed))
	case doc.Seed != nil:
		envOpts = append(envOpts, stage.WithSeed(*doc.Seed))
	}
	env := stage.NewEnv(doc.Topic, envOpts...)

	ok := stage.Execute(ctx, p, env)
	if err := env.Close(); err != nil {
		logger.Warn("release resources", "err", err)
	}
	if ok {
		logger.Info("pipeline finished", "topic", doc.Topic, "run_id", env.RunID)
	}
	return ok
}

func printStages(w io.Writer, reg *registry.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range reg.Names() {
		params, err := reg.Describe(name)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, name)
		for _, p := range params {
			def := p.Default
			if def == "" {
				def = "-"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", p.Name, p.Type, def, p.Usage)
		}
	}
	return tw.Flush()
}
