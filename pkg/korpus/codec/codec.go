// Package codec builds token dictionaries and encodes token streams with them.
//
// A Dictionary maps every token whose training frequency exceeds a threshold to
// a dense integer id, in first-occurrence order, and always ends with the
// reserved Unknown token. The id order is part of the persisted format and is
// reproduced exactly for identical input streams.
package codec

import (
	"fmt"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Unknown replaces every token absent from the active dictionary.
const Unknown = "<<unk>>"

// Dictionary is an immutable token → id mapping with ids in [0, Len()).
type Dictionary struct {
	ids    map[string]int
	tokens []string // index is the id
}

// Build counts tokens and assigns ids to those seen more than threshold times.
// Negative thresholds behave like 0.
func Build(tokens []string, threshold int) *Dictionary {
	if threshold < 0 {
		threshold = 0
	}

	counts := make(map[string]int, len(tokens)/4+1)
	order := make([]string, 0, len(tokens)/4+1)
	for _, tok := range tokens {
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}

	d := &Dictionary{ids: make(map[string]int, len(order)+1)}
	for _, tok := range order {
		if tok == Unknown || counts[tok] <= threshold {
			continue
		}
		d.add(tok)
	}
	d.add(Unknown)
	return d
}

// FromTokens rebuilds a dictionary whose ids are the indexes of tokens.
func FromTokens(tokens []string) (*Dictionary, error) {
	d := &Dictionary{ids: make(map[string]int, len(tokens))}
	for _, tok := range tokens {
		if _, dup := d.ids[tok]; dup {
			return nil, malformed(fmt.Errorf("duplicate token %q", tok))
		}
		d.add(tok)
	}
	if _, ok := d.ids[Unknown]; !ok {
		return nil, malformed(fmt.Errorf("missing %s entry", Unknown))
	}
	return d, nil
}

func (d *Dictionary) add(tok string) {
	d.ids[tok] = len(d.tokens)
	d.tokens = append(d.tokens, tok)
}

// Len returns the number of entries, Unknown included.
func (d *Dictionary) Len() int { return len(d.tokens) }

// ID returns the id of tok.
func (d *Dictionary) ID(tok string) (int, bool) {
	id, ok := d.ids[tok]
	return id, ok
}

// Token returns the token with the given id.
func (d *Dictionary) Token(id int) (string, bool) {
	if id < 0 || id >= len(d.tokens) {
		return "", false
	}
	return d.tokens[id], true
}

// Contains reports whether tok has an id.
func (d *Dictionary) Contains(tok string) bool {
	_, ok := d.ids[tok]
	return ok
}

// UnknownID returns the id of the Unknown token.
func (d *Dictionary) UnknownID() int {
	return d.ids[Unknown]
}

// Tokens returns the entries in id order.
func (d *Dictionary) Tokens() []string {
	out := make([]string, len(d.tokens))
	copy(out, d.tokens)
	return out
}

// LookupError reports a token or id that the dictionary cannot map.
type LookupError struct {
	Pos   int
	Token string
	ID    int
	ByID  bool
}

func (e *LookupError) Error() string {
	if e.ByID {
		return fmt.Sprintf("id %d at position %d: %v", e.ID, e.Pos, internalerr.ErrTokenNotFound)
	}
	return fmt.Sprintf("token %q at position %d: %v", e.Token, e.Pos, internalerr.ErrTokenNotFound)
}

func (e *LookupError) Unwrap() error { return internalerr.ErrTokenNotFound }

// MarkUnknown returns a copy of tokens with every token missing from d
// replaced by Unknown, and the number of replacements.
func MarkUnknown(tokens []string, d *Dictionary) ([]string, int) {
	out := make([]string, len(tokens))
	replaced := 0
	for i, tok := range tokens {
		if d.Contains(tok) {
			out[i] = tok
			continue
		}
		out[i] = Unknown
		replaced++
	}
	return out, replaced
}

// Encode maps tokens to ids. Callers run MarkUnknown first; a miss here is a
// *LookupError.
func Encode(tokens []string, d *Dictionary) ([]int, error) {
	ids := make([]int, len(tokens))
	for i, tok := range tokens {
		id, ok := d.ids[tok]
		if !ok {
			return nil, &LookupError{Pos: i, Token: tok}
		}
		ids[i] = id
	}
	return ids, nil
}

// Decode maps ids back to tokens.
func Decode(ids []int, d *Dictionary) ([]string, error) {
	tokens := make([]string, len(ids))
	for i, id := range ids {
		tok, ok := d.Token(id)
		if !ok {
			return nil, &LookupError{Pos: i, ID: id, ByID: true}
		}
		tokens[i] = tok
	}
	return tokens, nil
}
