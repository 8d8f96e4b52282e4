package stoplist

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Set is a case-insensitive stopword set
type Set struct {
	stops map[string]struct{}
}

// New creates a set from the given words
func New(words []string) *Set {
	s := &Set{stops: make(map[string]struct{}, len(words))}
	for _, w := range words {
		s.Add(w)
	}
	return s
}

// file is the YAML layout of a stoplist:
//
//	terms:
//	  - the
//	  - a
type file struct {
	Terms []string `yaml:"terms"`
}

// Load reads a stoplist from a YAML file
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stoplist %s: %w", path, err)
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse stoplist %s: %w", path, err)
	}
	return New(f.Terms), nil
}

// LoadOrEnglish loads path, or returns the built-in English list when path is empty
func LoadOrEnglish(path string) (*Set, error) {
	if path == "" {
		return English(), nil
	}
	return Load(path)
}

// IsStop checks if a token is a stopword
func (s *Set) IsStop(token string) bool {
	_, ok := s.stops[strings.ToLower(token)]
	return ok
}

// Add adds a word to the set
func (s *Set) Add(word string) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return
	}
	s.stops[word] = struct{}{}
}

// Remove removes a word from the set
func (s *Set) Remove(word string) {
	delete(s.stops, strings.ToLower(word))
}

// Len returns the number of stopwords
func (s *Set) Len() int { return len(s.stops) }

// All returns all stopwords, sorted
func (s *Set) All() []string {
	result := make([]string, 0, len(s.stops))
	for w := range s.stops {
		result = append(result, w)
	}
	sort.Strings(result)
	return result
}

// English returns a small built-in English stoplist
func English() *Set {
	return New(strings.Fields(english))
}

const english = `
a about above after again against all am an and any are as at be because been
before being below between both but by can did do does doing down during each
few for from further had has have having he her here hers herself him himself
his how i if in into is it its itself just me more most my myself no nor not now
of off on once only or other our ours ourselves out over own same she should so
some such than that the their theirs them themselves then there these they this
those through to too under until up very was we were what when where which while
who whom why will with you your yours yourself yourselves
`
