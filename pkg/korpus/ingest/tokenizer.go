package ingest

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cognicore/korpus/pkg/korpus/stoplist"
)

// Tokenizer splits cleaned text into word, punctuation and marker tokens.
// Marker tokens such as <<article_start>> are emitted untouched.
type Tokenizer struct {
	lower bool
	punct bool
	stops *stoplist.Set // Optional: tokens in the set are dropped
}

// Option configures a Tokenizer.
type Option func(*Tokenizer)

// Lowercase folds word tokens to lower case.
func Lowercase() Option { return func(t *Tokenizer) { t.lower = true } }

// DropPunctuation discards punctuation instead of emitting it as tokens.
func DropPunctuation() Option { return func(t *Tokenizer) { t.punct = false } }

// WithStopwords removes words found in s.
func WithStopwords(s *stoplist.Set) Option { return func(t *Tokenizer) { t.stops = s } }

// NewTokenizer creates a tokenizer that keeps case and punctuation by default.
func NewTokenizer(opts ...Option) *Tokenizer {
	t := &Tokenizer{punct: true}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tokenizer) withLowercase() *Tokenizer {
	c := *t
	c.lower = true
	return &c
}

// IsMarker reports whether tok has the <<name>> form.
func IsMarker(tok string) bool {
	return markerLen(tok) == len(tok) && len(tok) > 0
}

// markerLen returns the byte length of a marker at the start of s, or 0.
func markerLen(s string) int {
	if !strings.HasPrefix(s, "<<") {
		return 0
	}
	for i := 2; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '>':
			if i > 2 && strings.HasPrefix(s[i:], ">>") {
				return i + 2
			}
			return 0
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
		default:
			return 0
		}
	}
	return 0
}

// Tokenize splits text into tokens.
func (t *Tokenizer) Tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		if word := t.processToken(current.String()); word != "" {
			tokens = append(tokens, word)
		}
		current.Reset()
	}

	for i := 0; i < len(text); {
		if n := markerLen(text[i:]); n > 0 {
			flush()
			tokens = append(tokens, text[i:i+n])
			i += n
			continue
		}

		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			current.WriteRune(r)
		case (r == '-' || r == '\'') && current.Len() > 0 && i+size < len(text) && isWordStart(text[i+size:]):
			current.WriteRune(r)
		case (r == '.' || r == ',') && endsWithDigit(current.String()) && i+size < len(text) && isDigitStart(text[i+size:]):
			current.WriteRune(r)
		case unicode.IsSpace(r):
			flush()
		default:
			flush()
			if t.punct && unicode.IsGraphic(r) {
				tokens = append(tokens, string(r))
			}
		}
		i += size
	}
	flush()

	return tokens
}

// processToken applies cleaning, case folding, and stopword filtering.
func (t *Tokenizer) processToken(token string) string {
	word := cleanToken(token)
	if word == "" {
		return ""
	}
	if t.lower {
		word = strings.ToLower(word)
	}
	if t.stops != nil && t.stops.IsStop(word) {
		return ""
	}
	return word
}

// cleanToken strips leading/trailing hyphens and normalizes consecutive hyphens
func cleanToken(token string) string {
	token = strings.Trim(token, "-'")
	for strings.Contains(token, "--") {
		token = strings.ReplaceAll(token, "--", "-")
	}
	return token
}

func isWordStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsLetter(r) || unicode.IsNumber(r)
}

func isDigitStart(s string) bool {
	r, _ := utf8.DecodeRuneInString(s)
	return unicode.IsDigit(r)
}

func endsWithDigit(s string) bool {
	r, _ := utf8.DecodeLastRuneInString(s)
	return s != "" && unicode.IsDigit(r)
}
