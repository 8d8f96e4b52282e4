// Package layout holds the on-disk naming convention shared by every stage.
//
// Files are named <topic>.<logical-name>.<extension>, e.g. startrek.train.txt or
// startrek.dictionary.json. Intermediate artifacts live under the tmp directory,
// encoded corpora and dictionaries under the data directory, and analysis
// reports under the output directory.
package layout

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Dirs locates the three working directories of a run.
type Dirs struct {
	Tmp    string `yaml:"tmp"`
	Data   string `yaml:"data"`
	Output string `yaml:"output"`
}

// DefaultDirs returns directories relative to the working directory.
func DefaultDirs() Dirs {
	return Dirs{Tmp: "tmp", Data: "data", Output: "output"}
}

// Merge fills empty fields of d from fallback.
func (d Dirs) Merge(fallback Dirs) Dirs {
	if d.Tmp == "" {
		d.Tmp = fallback.Tmp
	}
	if d.Data == "" {
		d.Data = fallback.Data
	}
	if d.Output == "" {
		d.Output = fallback.Output
	}
	return d
}

// Ensure creates all three directories.
func (d Dirs) Ensure() error {
	for _, dir := range []string{d.Tmp, d.Data, d.Output} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// Name builds "<topic>.<logical>" where logical already carries its extension.
func Name(topic, logical string) string {
	return topic + "." + logical
}

// TmpPath returns the path of an intermediate artifact.
func (d Dirs) TmpPath(topic, logical string) string {
	return filepath.Join(d.Tmp, Name(topic, logical))
}

// DataPath returns the path of a finalized artifact.
func (d Dirs) DataPath(topic, logical string) string {
	return filepath.Join(d.Data, Name(topic, logical))
}

// OutputPath returns the path of an analysis report.
func (d Dirs) OutputPath(topic, logical string) string {
	return filepath.Join(d.Output, Name(topic, logical))
}

// DictionaryPath returns where the topic dictionary is persisted.
func (d Dirs) DictionaryPath(topic string) string {
	return d.DataPath(topic, "dictionary.json")
}

// ReadText loads a whole file. A missing file is reported as ErrMissingInput.
// Invalid UTF-8 sequences are replaced with U+FFFD so every token read from
// disk can be persisted in a dictionary unchanged.
func ReadText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", internalerr.ErrMissingInput, path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// WriteText replaces path with text, creating the parent directory if needed.
func WriteText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// AppendText adds text to the end of path, creating it if needed.
func AppendText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return f.Close()
}

// SplitTokens splits a token-stream text on single spaces. Consecutive or
// leading spaces yield empty tokens, matching files written by earlier runs.
// Empty text is an empty stream.
func SplitTokens(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(text, " ")
}

// ReadTokens loads a token-stream file.
func ReadTokens(path string) ([]string, error) {
	text, err := ReadText(path)
	if err != nil {
		return nil, err
	}
	return SplitTokens(text), nil
}

// WriteTokens writes tokens separated by a single space.
func WriteTokens(path string, tokens []string) error {
	return writeJoined(path, len(tokens), func(i int) string { return tokens[i] })
}

// WriteIDs writes an encoded stream as space-separated decimal ids.
func WriteIDs(path string, ids []int) error {
	return writeJoined(path, len(ids), func(i int) string { return strconv.Itoa(ids[i]) })
}

// ReadIDs loads a stream written by WriteIDs.
func ReadIDs(path string) ([]int, error) {
	tokens, err := ReadTokens(path)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%s: position %d: %w", path, i, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func writeJoined(path string, n int, at func(int) string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	for i := 0; i < n; i++ {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(at(i))
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
