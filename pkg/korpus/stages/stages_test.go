package stages

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/korpus/pkg/korpus/codec"
	"github.com/cognicore/korpus/pkg/korpus/internalerr"
	"github.com/cognicore/korpus/pkg/korpus/layout"
	"github.com/cognicore/korpus/pkg/korpus/split"
	"github.com/cognicore/korpus/pkg/korpus/stage"
)

func newEnv(t *testing.T, opts ...stage.Option) *stage.Env {
	t.Helper()
	root := t.TempDir()
	dirs := layout.Dirs{
		Tmp:    filepath.Join(root, "tmp"),
		Data:   filepath.Join(root, "data"),
		Output: filepath.Join(root, "output"),
	}
	require.NoError(t, dirs.Ensure())
	base := []stage.Option{
		stage.WithDirs(dirs),
		stage.WithSeed(42),
		stage.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	env := stage.NewEnv("test", append(base, opts...)...)
	t.Cleanup(func() { env.Close() })
	return env
}

func writeTmp(t *testing.T, env *stage.Env, logical, text string) {
	t.Helper()
	require.NoError(t, layout.WriteText(env.TmpPath(logical), text))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func articlesText(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = split.ArticleStart + " word" + itoa(i) + " body " + split.ArticleEnd
	}
	return strings.Join(parts, " ")
}

func run(t *testing.T, s stage.Stage, env *stage.Env) bool {
	t.Helper()
	return stage.Execute(context.Background(), s, env)
}

func TestCorpusSplit(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "clean.txt", "stray "+articlesText(10)+" "+split.ArticleStart+" unterminated")

	cfg := DefaultCorpusSplitConfig()
	cfg.Splits = []split.Spec{{Name: "train", Proportion: 8}, {Name: "valid", Proportion: 1}, {Name: "test", Proportion: 1}}
	s, err := NewCorpusSplit(cfg)
	require.NoError(t, err)
	require.True(t, run(t, s, env))

	seen := map[string]int{}
	for name, want := range map[string]int{"train": 8, "valid": 1, "test": 1} {
		tokens, err := layout.ReadTokens(env.TmpPath(name + ".txt"))
		require.NoError(t, err)
		articles := split.ParseArticles(tokens)
		assert.Len(t, articles, want, name)
		assert.Equal(t, 0, split.Dropped(tokens, articles), name)
		for _, a := range articles {
			seen[a[1]]++
		}
	}
	assert.Len(t, seen, 10)
	for word, n := range seen {
		assert.Equal(t, 1, n, word)
	}
}

func TestCorpusSplitReproducible(t *testing.T) {
	cfg := DefaultCorpusSplitConfig()
	cfg.Splits = []split.Spec{{Name: "train", Proportion: 1}, {Name: "test", Proportion: 1}}
	s, err := NewCorpusSplit(cfg)
	require.NoError(t, err)

	outputs := make([]string, 2)
	for i := range outputs {
		env := newEnv(t, stage.WithSeed(7))
		writeTmp(t, env, "clean.txt", articlesText(20))
		require.True(t, run(t, s, env))
		outputs[i] = readFile(t, env.TmpPath("train.txt"))
	}
	assert.Equal(t, outputs[0], outputs[1])
}

func TestCorpusSplitMissingInput(t *testing.T) {
	cfg := DefaultCorpusSplitConfig()
	cfg.Splits = []split.Spec{{Name: "train", Proportion: 1}}
	s, err := NewCorpusSplit(cfg)
	require.NoError(t, err)
	assert.False(t, run(t, s, newEnv(t)))
}

func TestCorpusSplitInvalidConfig(t *testing.T) {
	_, err := NewCorpusSplit(DefaultCorpusSplitConfig())
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	cfg := DefaultCorpusSplitConfig()
	cfg.Splits = []split.Spec{{Name: "train", Proportion: 1}}
	cfg.InputFile = ""
	_, err = NewCorpusSplit(cfg)
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestFrequencyFiltering(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "train.txt", "a a b c c c")
	writeTmp(t, env, "test.txt", "a b d")
	writeTmp(t, env, "valid.txt", "c")

	cfg := DefaultFrequencyFilteringConfig()
	cfg.Threshold = 1
	s, err := NewFrequencyFiltering(cfg)
	require.NoError(t, err)
	require.True(t, run(t, s, env))

	assert.Equal(t, `{"a": 0, "c": 1, "<<unk>>": 2}`, readFile(t, env.DictionaryPath()))
	assert.Equal(t, "a a <<unk>> c c c", readFile(t, env.TmpPath("train.f.txt")))
	assert.Equal(t, "a <<unk>> <<unk>>", readFile(t, env.TmpPath("test.f.txt")))
	assert.Equal(t, "0 2 2", readFile(t, env.DataPath("test.txt")))
	assert.Equal(t, "1", readFile(t, env.DataPath("valid.txt")))
	assert.Equal(t, "0 0 2 1 1 1", readFile(t, env.DataPath("train.txt")))
}

func TestFrequencyFilteringInvalidUTF8(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "train.txt", "a \xff a \xfe")
	writeTmp(t, env, "test.txt", "\xff")
	writeTmp(t, env, "valid.txt", "a")

	s, err := NewFrequencyFiltering(DefaultFrequencyFilteringConfig())
	require.NoError(t, err)
	require.True(t, run(t, s, env))

	d, err := codec.Load(env.DictionaryPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "\uFFFD", codec.Unknown}, d.Tokens())
	assert.Equal(t, "1", readFile(t, env.DataPath("test.txt")))
	assert.Equal(t, "0 1 0 1", readFile(t, env.DataPath("train.txt")))
}

func TestFrequencyFilteringMissingSplitWritesNothing(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "train.txt", "a a b")
	writeTmp(t, env, "test.txt", "a")

	s, err := NewFrequencyFiltering(DefaultFrequencyFilteringConfig())
	require.NoError(t, err)
	assert.False(t, run(t, s, env))

	_, err = os.Stat(env.DictionaryPath())
	assert.True(t, os.IsNotExist(err), "dictionary must not be written")
}

func TestDictionaryCreationAndApply(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "clean.txt", "x y x z x")
	writeTmp(t, env, "other.txt", "x q y")

	create, err := NewDictionaryCreation(DictionaryCreationConfig{CorpusFile: "clean.txt", Threshold: 0})
	require.NoError(t, err)
	require.True(t, run(t, create, env))

	d, err := codec.Load(env.DictionaryPath())
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y", "z", codec.Unknown}, d.Tokens())

	apply, err := NewApplyDictionary(ApplyDictionaryConfig{CorpusFile: "other.txt"})
	require.NoError(t, err)
	require.True(t, run(t, apply, env))
	assert.Equal(t, "0 3 1", readFile(t, env.DataPath("other.txt")))
}

func TestApplyDictionaryWithoutDictionary(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "other.txt", "x")
	apply, err := NewApplyDictionary(ApplyDictionaryConfig{CorpusFile: "other.txt"})
	require.NoError(t, err)
	assert.False(t, run(t, apply, env))
}

func TestDictionaryStagesRequireCorpusFile(t *testing.T) {
	_, err := NewDictionaryCreation(DictionaryCreationConfig{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
	_, err = NewApplyDictionary(ApplyDictionaryConfig{})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)
}

func TestTextCleaning(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "raw.txt",
		"<<article_start>> {{Infobox}}'''Luke''' was born in 1951. He joined the [[Jedi Order|Jedi]]. <<article_end>>\n")

	cfg := DefaultTextCleaningConfig()
	cfg.Lowercase = true
	cfg.Tokenize = true
	cfg.Punctuation = false
	s, err := NewTextCleaning(cfg)
	require.NoError(t, err)
	require.True(t, run(t, s, env))

	got := readFile(t, env.TmpPath("clean.txt"))
	assert.Equal(t, "<<article_start>> luke was born in <<year>> he joined the jedi order <<article_end>> <<new_line>>", got)
}

func TestTextCleaningStopwords(t *testing.T) {
	env := newEnv(t)
	writeTmp(t, env, "raw.txt", "The Jedi of the Order")
	stops := filepath.Join(t.TempDir(), "stop.yaml")
	require.NoError(t, os.WriteFile(stops, []byte("terms: [the, of]\n"), 0o644))

	cfg := DefaultTextCleaningConfig()
	cfg.Tokenize = true
	cfg.Stopwords = stops
	s, err := NewTextCleaning(cfg)
	require.NoError(t, err)
	require.True(t, run(t, s, env))
	assert.Equal(t, "Jedi Order", readFile(t, env.TmpPath("clean.txt")))
}

func TestTextCleaningMissingInput(t *testing.T) {
	s, err := NewTextCleaning(DefaultTextCleaningConfig())
	require.NoError(t, err)
	assert.False(t, run(t, s, newEnv(t)))
}
