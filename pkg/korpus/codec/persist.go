package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// MarshalJSON writes a flat object in id order, e.g.
// {"a": 0, "c": 1, "<<unk>>": 2}. Tokens that are not valid UTF-8 cannot be
// written without rewriting them and are rejected.
func (d *Dictionary) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	var out bytes.Buffer
	out.WriteByte('{')
	for id, tok := range d.tokens {
		if id > 0 {
			out.WriteString(", ")
		}
		if !utf8.ValidString(tok) {
			return nil, malformed(fmt.Errorf("token %q at id %d is not valid UTF-8", tok, id))
		}
		buf.Reset()
		if err := enc.Encode(tok); err != nil {
			return nil, err
		}
		out.Write(bytes.TrimRight(buf.Bytes(), "\n"))
		out.WriteString(": ")
		out.WriteString(strconv.Itoa(id))
	}
	out.WriteByte('}')
	return out.Bytes(), nil
}

// UnmarshalJSON reads a flat token → id object. Ids must be unique and cover
// [0, N) exactly, and the Unknown token must be present.
func (d *Dictionary) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return malformed(err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return malformed(errors.New("expected object"))
	}

	ids := make(map[string]int)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return malformed(err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return malformed(fmt.Errorf("unexpected key %v", keyTok))
		}
		valTok, err := dec.Token()
		if err != nil {
			return malformed(err)
		}
		num, ok := valTok.(json.Number)
		if !ok {
			return malformed(fmt.Errorf("value of %q is not a number", key))
		}
		id, err := strconv.Atoi(num.String())
		if err != nil || id < 0 {
			return malformed(fmt.Errorf("value of %q is not a non-negative integer", key))
		}
		if _, dup := ids[key]; dup {
			return malformed(fmt.Errorf("duplicate token %q", key))
		}
		ids[key] = id
	}
	if _, err := dec.Token(); err != nil {
		return malformed(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return malformed(errors.New("trailing data after object"))
	}

	tokens := make([]string, len(ids))
	filled := make([]bool, len(ids))
	for key, id := range ids {
		if id >= len(ids) {
			return malformed(fmt.Errorf("id %d of %q outside [0, %d)", id, key, len(ids)))
		}
		if filled[id] {
			return malformed(fmt.Errorf("id %d assigned twice", id))
		}
		tokens[id] = key
		filled[id] = true
	}
	if _, ok := ids[Unknown]; !ok {
		return malformed(fmt.Errorf("missing %s entry", Unknown))
	}

	d.ids = ids
	d.tokens = tokens
	return nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: %v", internalerr.ErrMalformedDictionary, err)
}

// Save persists d as JSON at path.
func Save(path string, d *Dictionary) error {
	data, err := d.MarshalJSON()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write dictionary %s: %w", path, err)
	}
	return nil
}

// Load reads a dictionary written by Save. A missing file is ErrMissingInput.
func Load(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", internalerr.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("read dictionary %s: %w", path, err)
	}
	d := &Dictionary{}
	if err := d.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
