package stages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/korpus/pkg/korpus/codec"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/split"
	"github.com/cognicore/korpus/pkg/korpus/stage"
	"github.com/cognicore/korpus/pkg/korpus/store"
	"github.com/cognicore/korpus/pkg/korpus/store/sqlite"
)

// ConnectSQLConfig configures connect_sql.
type ConnectSQLConfig struct {
	Database string `yaml:"database"`
}

// ConnectSQL opens the SQLite store and shares it with later stages under
// SQLResource. The store is closed with the Env.
type ConnectSQL struct {
	stage.Base
	cfg ConnectSQLConfig
}

// NewConnectSQL validates cfg.
func NewConnectSQL(cfg ConnectSQLConfig) (*ConnectSQL, error) {
	if err := required(ConnectSQLName, "database", cfg.Database); err != nil {
		return nil, err
	}
	return &ConnectSQL{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *ConnectSQL) Name() string { return ConnectSQLName }

// Params implements stage.Describer.
func (s *ConnectSQL) Params() []stage.Param {
	return []stage.Param{
		{Name: "database", Type: "string", Usage: "SQLite file, relative paths resolve under the data dir"},
	}
}

func (s *ConnectSQL) path(env *stage.Env) string {
	if filepath.IsAbs(s.cfg.Database) {
		return s.cfg.Database
	}
	return filepath.Join(env.Dirs.Data, s.cfg.Database)
}

// PreRun logs the database path.
func (s *ConnectSQL) PreRun(env *stage.Env) {
	env.Logger.Info("connecting to database", "path", s.path(env))
}

// Run opens the database and attaches it to env.
func (s *ConnectSQL) Run(ctx context.Context, env *stage.Env) bool {
	path := s.path(env)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(env, "create database dir", err)
	}
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return fail(env, "open database", err)
	}
	env.Attach(SQLResource, st)
	return true
}

// SQLExportConfig configures sql_export.
type SQLExportConfig struct {
	Splits []string `yaml:"splits"`
}

// DefaultSQLExportConfig exports the train/test/valid splits.
func DefaultSQLExportConfig() SQLExportConfig {
	return SQLExportConfig{Splits: []string{"train", "test", "valid"}}
}

// SQLExport records the run, its dictionary and per-split counts in the
// store attached by connect_sql.
type SQLExport struct {
	stage.Base
	cfg SQLExportConfig
}

// NewSQLExport validates cfg.
func NewSQLExport(cfg SQLExportConfig) (*SQLExport, error) {
	for _, name := range cfg.Splits {
		if err := required(SQLExportName, "splits", name); err != nil {
			return nil, err
		}
	}
	return &SQLExport{cfg: cfg}, nil
}

// Name implements stage.Stage.
func (s *SQLExport) Name() string { return SQLExportName }

// Params implements stage.Describer.
func (s *SQLExport) Params() []stage.Param {
	return []stage.Param{
		{Name: "splits", Type: "list", Default: "[train, test, valid]", Usage: "filtered splits to summarise"},
	}
}

// PreRun logs the run id and splits.
func (s *SQLExport) PreRun(env *stage.Env) {
	env.Logger.Info("exporting run", "run_id", env.RunID, "splits", strings.Join(s.cfg.Splits, ","))
}

// Run stores the run, its dictionary and the split counts.
func (s *SQLExport) Run(ctx context.Context, env *stage.Env) bool {
	st, err := storeFrom(env)
	if err != nil {
		return fail(env, "no database", err)
	}

	d, err := codec.Load(env.DictionaryPath())
	if err != nil {
		return fail(env, "load dictionary", err)
	}
	stats := make([]store.SplitStats, 0, len(s.cfg.Splits))
	for _, name := range s.cfg.Splits {
		tokens, err := layout.ReadTokens(env.TmpPath(name + ".f.txt"))
		if err != nil {
			return fail(env, "read filtered split", err)
		}
		stats = append(stats, splitStats(name, tokens))
	}

	if err := st.UpsertRun(ctx, store.Run{ID: env.RunID, Topic: env.Topic, StartedAt: runStarted(env.RunID)}); err != nil {
		return fail(env, "store run", err)
	}
	if err := st.ReplaceDictionary(ctx, env.RunID, d); err != nil {
		return fail(env, "store dictionary", err)
	}
	for _, ss := range stats {
		if err := st.UpsertSplit(ctx, env.RunID, ss); err != nil {
			return fail(env, "store split", err)
		}
	}
	env.Logger.Info("run exported", "dictionary", d.Len(), "splits", len(stats))
	return true
}

func storeFrom(env *stage.Env) (store.Store, error) {
	res, err := env.Resource(SQLResource)
	if err != nil {
		return nil, err
	}
	st, ok := res.(store.Store)
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", internalerr.ErrResourceMissing, SQLResource, res)
	}
	return st, nil
}

// runStarted reads the timestamp embedded in a ULID run id.
func runStarted(runID string) time.Time {
	id, err := ulid.ParseStrict(runID)
	if err != nil {
		return time.Now()
	}
	return ulid.Time(id.Time())
}

func splitStats(name string, tokens []string) store.SplitStats {
	ss := store.SplitStats{
		Name:     name,
		Articles: len(split.ParseArticles(tokens)),
		Tokens:   len(tokens),
	}
	for _, tok := range tokens {
		if tok == codec.Unknown {
			ss.Unknown++
		}
	}
	return ss
}
