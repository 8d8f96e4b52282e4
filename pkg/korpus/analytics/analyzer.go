package analytics

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/cognicore/korpus/pkg/korpus/ingest"
	"github.com/cognicore/korpus/pkg/korpus/split"
	"github.com/cognicore/korpus/pkg/korpus/stoplist"
)

// Analyzer aggregates token frequency and article statistics over a corpus.
type Analyzer struct {
	totalTokens int64
	rawUnique   map[string]struct{}
	freq        map[string]int64 // punctuation-stripped content tokens
	markers     map[string]int64
	articleLens []int
	pairs       map[[2]string]int64 // adjacent content tokens
	nPairs      int64
	stops       *stoplist.Set
}

// NewAnalyzer creates an empty analyzer; stops may be nil.
func NewAnalyzer(stops *stoplist.Set) *Analyzer {
	if stops == nil {
		stops = stoplist.New(nil)
	}
	return &Analyzer{
		rawUnique: make(map[string]struct{}),
		freq:      make(map[string]int64),
		markers:   make(map[string]int64),
		pairs:     make(map[[2]string]int64),
		stops:     stops,
	}
}

// Process consumes one token stream.
func (a *Analyzer) Process(tokens []string) {
	prev := ""
	for _, tok := range tokens {
		a.totalTokens++
		a.rawUnique[tok] = struct{}{}
		if ingest.IsMarker(tok) {
			a.markers[tok]++
			prev = ""
			continue
		}
		word := stripPunct(tok)
		if word == "" {
			prev = ""
			continue
		}
		a.freq[word]++
		if prev != "" {
			a.pairs[[2]string{prev, word}]++
			a.nPairs++
		}
		prev = word
	}

	for _, art := range split.ParseArticles(tokens) {
		// Exclude the two delimiters.
		a.articleLens = append(a.articleLens, len(art)-2)
	}
}

func stripPunct(tok string) string {
	return strings.TrimFunc(strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return r
	}, tok), unicode.IsSpace)
}

// TokenCount is one row of a frequency table.
type TokenCount struct {
	Token   string  `json:"token"`
	Count   int64   `json:"count"`
	Percent float64 `json:"percent"`
	Stop    bool    `json:"stop"`
}

// LengthStats summarises article lengths, counted between the delimiters.
type LengthStats struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Stats exposes the aggregated counts.
type Stats struct {
	TotalTokens      int64            `json:"total_tokens"`
	UniqueTokens     int              `json:"unique_tokens"`
	UniqueBeforeStop int              `json:"unique_words_before_stop"`
	UniqueAfterStop  int              `json:"unique_words_after_stop"`
	Markers          map[string]int64 `json:"markers"`
	TotalArticles    int              `json:"total_articles"`
	ArticleLength    LengthStats      `json:"article_length"`
	Frequency        []TokenCount     `json:"-"`
}

// Snapshot returns the statistics gathered so far. Frequency is sorted by
// descending count, ties broken alphabetically.
func (a *Analyzer) Snapshot() Stats {
	markers := make(map[string]int64, len(a.markers))
	for m, c := range a.markers {
		markers[m] = c
	}

	var content int64
	for _, c := range a.freq {
		content += c
	}
	freq := make([]TokenCount, 0, len(a.freq))
	nonStop := 0
	for tok, c := range a.freq {
		stop := a.stops.IsStop(tok)
		if !stop {
			nonStop++
		}
		freq = append(freq, TokenCount{
			Token:   tok,
			Count:   c,
			Percent: 100 * float64(c) / float64(content),
			Stop:    stop,
		})
	}
	sort.Slice(freq, func(i, j int) bool {
		if freq[i].Count != freq[j].Count {
			return freq[i].Count > freq[j].Count
		}
		return freq[i].Token < freq[j].Token
	})

	return Stats{
		TotalTokens:      a.totalTokens,
		UniqueTokens:     len(a.rawUnique),
		UniqueBeforeStop: len(a.freq),
		UniqueAfterStop:  nonStop,
		Markers:          markers,
		TotalArticles:    len(a.articleLens),
		ArticleLength:    lengthStats(a.articleLens),
		Frequency:        freq,
	}
}

// Top returns the n most frequent non-stopword tokens.
func (s Stats) Top(n int) []TokenCount {
	if n <= 0 {
		return nil
	}
	out := make([]TokenCount, 0, n)
	for _, tc := range s.Frequency {
		if len(out) == n {
			break
		}
		if !tc.Stop {
			out = append(out, tc)
		}
	}
	return out
}

func lengthStats(lens []int) LengthStats {
	if len(lens) == 0 {
		return LengthStats{}
	}
	ls := LengthStats{Min: lens[0], Max: lens[0]}
	var sum float64
	for _, l := range lens {
		ls.Min = min(ls.Min, l)
		ls.Max = max(ls.Max, l)
		sum += float64(l)
	}
	ls.Mean = sum / float64(len(lens))

	// Population standard deviation.
	var sq float64
	for _, l := range lens {
		d := float64(l) - ls.Mean
		sq += d * d
	}
	ls.StdDev = math.Sqrt(sq / float64(len(lens)))
	return ls
}

// Collocation is an adjacent token pair with its normalized PMI.
type Collocation struct {
	First  string  `json:"first"`
	Second string  `json:"second"`
	Count  int64   `json:"count"`
	NPMI   float64 `json:"npmi"`
}

// Collocations returns up to n adjacent pairs seen at least minCount times,
// ranked by normalized PMI. Pairs containing a stopword are left out; markers
// and punctuation break adjacency.
func (a *Analyzer) Collocations(minCount int64, n int) []Collocation {
	if n <= 0 {
		return nil
	}
	scorer := NewPMI(1.0)
	var out []Collocation
	for pair, c := range a.pairs {
		if c < minCount || a.stops.IsStop(pair[0]) || a.stops.IsStop(pair[1]) {
			continue
		}
		out = append(out, Collocation{
			First:  pair[0],
			Second: pair[1],
			Count:  c,
			NPMI:   scorer.Normalized(c, a.freq[pair[0]], a.freq[pair[1]], a.nPairs),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		switch {
		case out[i].NPMI != out[j].NPMI:
			return out[i].NPMI > out[j].NPMI
		case out[i].Count != out[j].Count:
			return out[i].Count > out[j].Count
		case out[i].First != out[j].First:
			return out[i].First < out[j].First
		}
		return out[i].Second < out[j].Second
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
