package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Marker tokens produced by cleaning.
const (
	NewLine           = "<<new_line>>"
	Year              = "<<year>>"
	Number            = "<<number>>"
	SectionTitleStart = "<<section_title_start>>"
	SectionTitleEnd   = "<<section_title_end>>"
)

// CleanOptions selects the optional cleaning passes.
type CleanOptions struct {
	MarkYears     bool
	MarkNumbers   bool
	SectionTitles bool // wrap ==Title== in section title markers instead of dropping the equals signs
	Lowercase     bool
	Tokenize      bool       // re-tokenize words and punctuation with Tokenizer
	Tokenizer     *Tokenizer // used when Tokenize is set; nil means NewTokenizer()
}

var (
	reTemplate  = regexp.MustCompile(`\{\{.*?\}\}`)
	reNewLine   = regexp.MustCompile(`\r?\n`)
	reTable     = regexp.MustCompile(`\{\|.*?\|\}`)
	reFile      = regexp.MustCompile(`\[\[(?:File|Image):.*?\]\]`)
	reRef       = regexp.MustCompile(`<ref[^>]*/>|<ref.*?>.*?</ref>`)
	reGallery   = regexp.MustCompile(`<gallery.*?>.*?</gallery>`)
	reLink      = regexp.MustCompile(`\[\[(.*?)(\|[\w\s|]*)?\]\]`)
	reBracket   = regexp.MustCompile(`\[.*?\]`)
	reYear      = regexp.MustCompile(`(^|[\s(,;])\d{4}(-\d+|s)?([\s).,;:]|$)`)
	reNumber    = regexp.MustCompile(`(^|\s)\d[\d.,%]*(st|nd|rd|th)?(-[\d.,%]+)?(\s|$)`)
	rePossess   = regexp.MustCompile(`'s\b`)
	reQuotes    = regexp.MustCompile(`['"]+`)
	reSection   = regexp.MustCompile(`==+(.*?)==+`)
	reEquals    = regexp.MustCompile(`==+`)
	reMarker    = regexp.MustCompile(`<<[a-z0-9_]+>>`)
	reExtraWS   = regexp.MustCompile(`\s\s+`)
	nonBreaking = strings.NewReplacer("\u00a0", " ", "\u200b", "")
)

// Clean turns raw wikitext into a single-line, space-separated token stream.
// Marker tokens already present in text are preserved.
func Clean(text string, opts CleanOptions) string {
	text = reTemplate.ReplaceAllString(text, "")
	text = reNewLine.ReplaceAllString(text, " "+NewLine+" ")
	// Templates may have spanned lines.
	text = reTemplate.ReplaceAllString(text, "")
	text = reTable.ReplaceAllString(text, "")
	text = reFile.ReplaceAllString(text, "")
	text = reRef.ReplaceAllString(text, "")
	text = reGallery.ReplaceAllString(text, "")
	text = StripHTML(text)
	text = reLink.ReplaceAllString(text, "$1")
	text = reBracket.ReplaceAllString(text, "")

	if opts.MarkYears {
		text = replaceAllRepeat(reYear, text, "$1 "+Year+" $3")
	}
	if opts.MarkNumbers {
		text = replaceAllRepeat(reNumber, text, "$1"+Number+"$4")
	}

	text = rePossess.ReplaceAllString(text, " s")
	text = reQuotes.ReplaceAllString(text, " ")

	if opts.SectionTitles {
		text = reSection.ReplaceAllString(text, " "+SectionTitleStart+" $1 "+SectionTitleEnd+" ")
	} else {
		text = reEquals.ReplaceAllString(text, " ")
	}

	if opts.Tokenize {
		tok := opts.Tokenizer
		if tok == nil {
			tok = NewTokenizer()
		}
		if opts.Lowercase {
			tok = tok.withLowercase()
		}
		return strings.Join(tok.Tokenize(text), " ")
	}
	if opts.Lowercase {
		// Markers are lowercase already.
		text = strings.ToLower(text)
	}
	text = reExtraWS.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// replaceAllRepeat reapplies re until the text stops changing. Patterns that
// consume a separating space on both sides miss every other match otherwise.
func replaceAllRepeat(re *regexp.Regexp, text, repl string) string {
	for {
		next := re.ReplaceAllString(text, repl)
		if next == text {
			return next
		}
		text = next
	}
}

// StripHTML removes tags, drops script and style content and decodes
// entities. Marker tokens are kept verbatim.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var b strings.Builder
	last := 0
	for _, loc := range reMarker.FindAllStringIndex(s, -1) {
		b.WriteString(htmlText(s[last:loc[0]]))
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	b.WriteString(htmlText(s[last:]))
	return b.String()
}

func htmlText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	var buf strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF at the end of the fragment.
			return nonBreaking.Replace(buf.String())
		case html.TextToken:
			if skip == 0 {
				buf.Write(z.Text())
			}
		case html.StartTagToken:
			if name, _ := z.TagName(); isRawContent(name) {
				skip++
			} else {
				buf.WriteByte(' ')
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); isRawContent(name) {
				if skip > 0 {
					skip--
				}
			} else {
				buf.WriteByte(' ')
			}
		case html.SelfClosingTagToken:
			buf.WriteByte(' ')
		}
	}
}

func isRawContent(tag []byte) bool {
	switch string(tag) {
	case "script", "style":
		return true
	}
	return false
}
