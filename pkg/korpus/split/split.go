// Package split partitions an article-delimited corpus into named subsets.
package split

import (
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// Article markers.
const (
	ArticleStart = "<<article_start>>"
	ArticleEnd   = "<<article_end>>"
)

// Spec names one output split and its relative size.
type Spec struct {
	Name       string  `yaml:"name"`
	Proportion float64 `yaml:"proportion"`
}

// ValidateSpecs checks a split configuration.
func ValidateSpecs(specs []Spec) error {
	if len(specs) == 0 {
		return fmt.Errorf("%w: no splits configured", internalerr.ErrInvalidConfig)
	}
	seen := make(map[string]struct{}, len(specs))
	total := 0.0
	for i, s := range specs {
		if s.Name == "" {
			return fmt.Errorf("%w: split %d has no name", internalerr.ErrInvalidConfig, i)
		}
		if _, dup := seen[s.Name]; dup {
			return fmt.Errorf("%w: duplicate split %q", internalerr.ErrInvalidConfig, s.Name)
		}
		seen[s.Name] = struct{}{}
		if s.Proportion < 0 || math.IsNaN(s.Proportion) || math.IsInf(s.Proportion, 0) {
			return fmt.Errorf("%w: split %q has invalid proportion %v", internalerr.ErrInvalidConfig, s.Name, s.Proportion)
		}
		total += s.Proportion
	}
	if total <= 0 {
		return fmt.Errorf("%w: split proportions sum to %v", internalerr.ErrInvalidConfig, total)
	}
	return nil
}

// Article is one marker-delimited unit, markers included.
type Article []string

// ParseArticles extracts whole articles from a token stream. Tokens outside
// articles and stray end markers are ignored, a start marker inside an open
// article restarts it, and an unterminated trailing article is dropped.
func ParseArticles(tokens []string) []Article {
	var articles []Article
	var cur Article
	open := false
	for _, tok := range tokens {
		switch {
		case tok == ArticleStart:
			cur = Article{tok}
			open = true
		case !open:
			continue
		case tok == ArticleEnd:
			articles = append(articles, append(cur, tok))
			cur = nil
			open = false
		default:
			cur = append(cur, tok)
		}
	}
	return articles
}

// Dropped reports how many tokens ParseArticles would discard.
func Dropped(tokens []string, articles []Article) int {
	kept := 0
	for _, a := range articles {
		kept += len(a)
	}
	return len(tokens) - kept
}

// Allocate returns how many of n articles each split receives. Every split
// gets floor(n*p/total); the remainder r is spread as r/len to all splits
// plus one more to the first r%len splits in declared order. The result always
// sums to n.
func Allocate(n int, specs []Spec) []int {
	sizes := make([]int, len(specs))
	if len(specs) == 0 || n <= 0 {
		return sizes
	}

	total := 0.0
	for _, s := range specs {
		total += s.Proportion
	}
	if total <= 0 {
		return sizes
	}

	sum := 0
	for i, s := range specs {
		sizes[i] = int(math.Floor(float64(n) * (s.Proportion / total)))
		sum += sizes[i]
	}

	// Float rounding can push the floors past n; trim from the back.
	for i := len(sizes) - 1; sum > n && i >= 0; i-- {
		cut := min(sizes[i], sum-n)
		sizes[i] -= cut
		sum -= cut
	}

	diff := n - sum
	for i := range sizes {
		sizes[i] += diff / len(sizes)
		if i < diff%len(sizes) {
			sizes[i]++
		}
	}
	return sizes
}

// Part is one split's share of the corpus.
type Part struct {
	Name     string
	Articles []Article
}

// Tokens flattens the part into one stream.
func (p Part) Tokens() []string {
	n := 0
	for _, a := range p.Articles {
		n += len(a)
	}
	out := make([]string, 0, n)
	for _, a := range p.Articles {
		out = append(out, a...)
	}
	return out
}

// Text space-joins the part's tokens.
func (p Part) Text() string {
	return strings.Join(p.Tokens(), " ")
}

// Split shuffles articles with rng and hands consecutive ranges to each spec.
// The articles slice is reordered in place. A nil rng keeps the input order.
func Split(articles []Article, specs []Spec, rng *rand.Rand) []Part {
	if rng != nil {
		rng.Shuffle(len(articles), func(i, j int) {
			articles[i], articles[j] = articles[j], articles[i]
		})
	}

	sizes := Allocate(len(articles), specs)
	parts := make([]Part, len(specs))
	start := 0
	for i, s := range specs {
		end := start + sizes[i]
		parts[i] = Part{Name: s.Name, Articles: articles[start:end]}
		start = end
	}
	return parts
}
