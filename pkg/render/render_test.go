package render

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/vango-dev/cnlwiki/pkg/page"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

func TestEscapeHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty string", "", ""},
		{"plain text", "Hello, World!", "Hello, World!"},
		{"ampersand", "Tom & Jerry", "Tom &amp; Jerry"},
		{"tags", "<script>", "&lt;script&gt;"},
		{"quotes", `say "hi" 'there'`, "say &quot;hi&quot; &#39;there&#39;"},
		{"newline kept", "a\nb", "a\nb"},
		{"unicode", "Zürich ist schön", "Zürich ist schön"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := escapeHTML(tt.input); got != tt.expected {
				t.Errorf("escapeHTML(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestEscapeAttr(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"?a=1&b=2", "?a=1&amp;b=2"},
		{"line\nbreak", "line&#10;break"},
		{"tab\there", "tab&#9;here"},
		{"cr\rhere", "cr&#13;here"},
		{`x" onclick="y`, "x&quot; onclick=&quot;y"},
	}
	for _, tt := range tests {
		if got := escapeAttr(tt.input); got != tt.expected {
			t.Errorf("escapeAttr(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLink(t *testing.T) {
	tests := []struct {
		page, tab, lang string
		expected        string
	}{
		{"", "", "", "?sid=Navigate"},
		{"s1", "", "", "?page=s1&sid=Navigate"},
		{"s1", page.TabSentence, "", "?page=s1&sid=Navigate"},
		{"s1", page.TabTranslations, "de", "?lang=de&page=s1&sid=Navigate&tab=translations"},
		{"a b", "", "", "?page=a+b&sid=Navigate"},
	}
	for _, tt := range tests {
		if got := Link(tt.page, tt.tab, tt.lang); got != tt.expected {
			t.Errorf("Link(%q, %q, %q) = %q, want %q", tt.page, tt.tab, tt.lang, got, tt.expected)
		}
	}
}

func TestLabelFallback(t *testing.T) {
	r := NewRenderer(RendererConfig{Labels: map[string]string{page.LabelAlternatives: "Varianten"}})

	if got := r.Label(page.LabelAlternatives); got != "Varianten" {
		t.Errorf("override not applied: %q", got)
	}
	if got := r.Label(page.LabelDetailsEmpty); got != DefaultLabels[page.LabelDetailsEmpty] {
		t.Errorf("default not kept: %q", got)
	}
	if got := r.Label("paraphrase"); got != "paraphrase" {
		t.Errorf("unknown key must render as itself: %q", got)
	}
}

func TestRenderEmptyBlockIsEmphasized(t *testing.T) {
	s := &store.Record{SentenceID: "s1", Texts: map[string][]string{"en": {"Paris is a city."}}}

	var buf bytes.Buffer
	if err := NewRenderer(RendererConfig{}).RenderPage(&buf, page.Compose(s, "en", false), Nav{}); err != nil {
		t.Fatalf("RenderPage: %v", err)
	}

	out := buf.String()
	want := `<p class="block empty"><em>There are no details for this sentence.</em></p>`
	if !strings.Contains(out, want) {
		t.Errorf("missing empty block in:\n%s", out)
	}
	if strings.Contains(out, "translations") {
		t.Error("translations tab rendered in a monolingual context")
	}
	if strings.Contains(out, `class="languages"`) {
		t.Error("language bar rendered with a single language")
	}
}

func TestGoldenHTML(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".html.golden"),
	)
	r := NewRenderer(RendererConfig{Title: "Geo Wiki"})

	t.Run("details", func(t *testing.T) {
		s := &store.Record{
			SentenceID: "s1",
			Texts: map[string][]string{
				"en": {"Every_country is a region.", "Each country is a region."},
				"de": {"Jedes Land ist eine Region."},
			},
			Sections: map[string][]store.DetailSection{
				"en": {{Name: "paraphrase", RichText: "<b>Every</b> country is a region."}},
			},
		}
		var buf bytes.Buffer
		if err := r.RenderPage(&buf, page.Compose(s, "en", true), Nav{Languages: []string{"en", "de"}}); err != nil {
			t.Fatalf("RenderPage: %v", err)
		}
		g.Assert(t, "details", buf.Bytes())
	})

	t.Run("index", func(t *testing.T) {
		entries := []IndexEntry{
			{ID: "s1", Label: "Paris is a city."},
			{ID: "s&2", Label: "Rome <is> a city."},
		}
		var buf bytes.Buffer
		if err := r.RenderIndex(&buf, "en", entries, Nav{}); err != nil {
			t.Fatalf("RenderIndex: %v", err)
		}
		g.Assert(t, "index", buf.Bytes())
	})
}

type failingWriter struct{ n int }

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n <= 0 {
		return 0, errors.New("disk full")
	}
	f.n--
	return len(p), nil
}

func TestRenderPropagatesWriteError(t *testing.T) {
	s := &store.Record{SentenceID: "s1", Texts: map[string][]string{"en": {"x"}}}
	err := NewRenderer(RendererConfig{}).RenderPage(&failingWriter{n: 2}, page.Compose(s, "en", false), Nav{})
	if err == nil || err.Error() != "disk full" {
		t.Fatalf("err = %v, want disk full", err)
	}
}

func TestServeETag(t *testing.T) {
	body := []byte("<p>hello</p>")
	tag := ETag(body)
	if tag != ETag([]byte("<p>hello</p>")) {
		t.Fatal("ETag not deterministic")
	}
	if tag == ETag([]byte("<p>other</p>")) {
		t.Fatal("ETag collides for different bodies")
	}
	if len(tag) != 34 || tag[0] != '"' {
		t.Fatalf("unexpected tag format %s", tag)
	}

	rec := httptest.NewRecorder()
	Serve(rec, httptest.NewRequest(http.MethodGet, "/", nil), body)
	if rec.Code != http.StatusOK || rec.Body.String() != string(body) {
		t.Fatalf("first response: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("ETag") != tag {
		t.Errorf("ETag header = %q", rec.Header().Get("ETag"))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("If-None-Match", `"other", W/`+tag)
	rec = httptest.NewRecorder()
	Serve(rec, req, body)
	if rec.Code != http.StatusNotModified || rec.Body.Len() != 0 {
		t.Errorf("conditional response: %d, %d bytes", rec.Code, rec.Body.Len())
	}

	rec = httptest.NewRecorder()
	Serve(rec, httptest.NewRequest(http.MethodHead, "/", nil), body)
	if rec.Code != http.StatusOK || rec.Body.Len() != 0 {
		t.Errorf("HEAD response: %d, %d bytes", rec.Code, rec.Body.Len())
	}
}
