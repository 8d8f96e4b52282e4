package ingest

import "testing"

func TestCleanWikitext(t *testing.T) {
	raw := "{{Infobox}}Luke was born in 19 BBY.\n[[File:luke.jpg|thumb]]He joined the [[Jedi Order|Jedi]].<ref>source</ref>"
	got := Clean(raw, CleanOptions{})
	want := "Luke was born in 19 BBY. <<new_line>> He joined the Jedi Order."
	if got != want {
		t.Errorf("Clean() =\n%q\nwant\n%q", got, want)
	}
}

func TestCleanMarksYearsAndNumbers(t *testing.T) {
	raw := "In 1999 and 2000 2001, about 300 troops and 5-10% of 12th fleet"
	got := Clean(raw, CleanOptions{MarkYears: true, MarkNumbers: true})
	want := "In <<year>> and <<year>> <<year>> , about <<number>> troops and <<number>> of <<number>> fleet"
	if got != want {
		t.Errorf("Clean() =\n%q\nwant\n%q", got, want)
	}
}

func TestCleanSectionTitlesAndMarkup(t *testing.T) {
	raw := "==Early Life==\n'''Luke''' Skywalker's <b>home</b> &amp; farm"
	got := Clean(raw, CleanOptions{SectionTitles: true, Lowercase: true})
	want := "<<section_title_start>> early life <<section_title_end>> <<new_line>> luke skywalker s home & farm"
	if got != want {
		t.Errorf("Clean() =\n%q\nwant\n%q", got, want)
	}
}

func TestCleanDropsSectionEqualsByDefault(t *testing.T) {
	got := Clean("==History==", CleanOptions{})
	if got != "History" {
		t.Errorf("Clean() = %q, want History", got)
	}
}

func TestCleanTokenize(t *testing.T) {
	got := Clean("Hello, World! 3 ships", CleanOptions{
		Tokenize:    true,
		Lowercase:   true,
		MarkNumbers: true,
		Tokenizer:   NewTokenizer(DropPunctuation()),
	})
	want := "hello world <<number>> ships"
	if got != want {
		t.Errorf("Clean() = %q, want %q", got, want)
	}
}

func TestCleanKeepsArticleMarkers(t *testing.T) {
	raw := "<<article_start>> The <i>Falcon</i> <<article_end>>\n<<article_start>> Yoda <<article_end>>\n"
	got := Clean(raw, CleanOptions{})
	want := "<<article_start>> The Falcon <<article_end>> <<new_line>> <<article_start>> Yoda <<article_end>> <<new_line>>"
	if got != want {
		t.Errorf("Clean() =\n%q\nwant\n%q", got, want)
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"<<article_start>> a<script>x()</script>b &lt;c&gt; <<article_end>>", "<<article_start>> ab <c> <<article_end>>"},
		{"x&nbsp;y", "x y"},
		{"<p>one</p><p>two</p>", " one  two "},
	}
	for _, tt := range tests {
		if got := StripHTML(tt.in); got != tt.want {
			t.Errorf("StripHTML(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
