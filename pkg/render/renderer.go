// Package render turns composed pages into HTML.
//
// The renderer is a thin host: it resolves label keys to display text,
// escapes plain strings and writes detail-section rich text verbatim.
//
//	r := render.NewRenderer(render.RendererConfig{Title: "Geo Wiki"})
//	err := r.RenderPage(w, page.Compose(s, "en", true), render.Nav{Languages: langs})
package render

import (
	"fmt"
	"io"
	"net/url"

	"github.com/vango-dev/cnlwiki/pkg/page"
)

// NavigateSID is the sid carried by links the wiki generates itself, so the
// request normalizer treats them as internal navigation.
const NavigateSID = "Navigate"

// DefaultLabels maps label keys to English display text.
var DefaultLabels = map[string]string{
	page.LabelTabSentence:     "Sentence",
	page.LabelTabTranslations: "Translations",
	page.LabelAlternatives:    "Alternatives",
	page.LabelDetailsEmpty:    "There are no details for this sentence.",
	page.LabelTranslations:    "Translations",
	page.LabelNoTranslations:  "This sentence has no translations.",
	LabelIndex:                "Sentences",
	LabelIndexEmpty:           "There are no sentences yet.",
	LabelLanguages:            "Languages",
}

// Label keys used by the index page and language bar.
const (
	LabelIndex      = "index"
	LabelIndexEmpty = "index_empty"
	LabelLanguages  = "languages"
)

// RendererConfig configures the HTML renderer.
type RendererConfig struct {
	// Title is the wiki title shown in the document title.
	Title string

	// Labels overrides entries of DefaultLabels.
	Labels map[string]string

	// Stylesheet is an optional stylesheet URL.
	Stylesheet string
}

// Renderer writes HTML documents.
type Renderer struct {
	config RendererConfig
	labels map[string]string
}

// NewRenderer creates a new Renderer with the given configuration.
func NewRenderer(config RendererConfig) *Renderer {
	labels := make(map[string]string, len(DefaultLabels)+len(config.Labels))
	for k, v := range DefaultLabels {
		labels[k] = v
	}
	for k, v := range config.Labels {
		labels[k] = v
	}
	return &Renderer{config: config, labels: labels}
}

// Label returns the display text for key, or key itself when unknown.
func (r *Renderer) Label(key string) string {
	if v, ok := r.labels[key]; ok {
		return v
	}
	return key
}

// Nav describes the navigation context of a rendered page.
type Nav struct {
	// Languages lists the configured display languages. A language bar is
	// shown when there is more than one.
	Languages []string
}

// IndexEntry is one row of the index page.
type IndexEntry struct {
	ID    string
	Label string
}

// Link returns the internal navigation URL for a sentence page.
// Empty arguments are omitted.
func Link(pageID, tab, lang string) string {
	q := url.Values{"sid": {NavigateSID}}
	if pageID != "" {
		q.Set("page", pageID)
	}
	if tab != "" && tab != page.TabSentence {
		q.Set("tab", tab)
	}
	if lang != "" {
		q.Set("lang", lang)
	}
	return "?" + q.Encode()
}

// RenderPage writes the HTML document of a composed page.
func (r *Renderer) RenderPage(w io.Writer, p page.ComposedPage, nav Nav) error {
	ew := &errWriter{w: w}
	r.open(ew, p.Language, p.Title)

	r.languageBar(ew, p, nav)

	ew.print(`<nav class="tabs">`)
	for _, t := range p.Tabs {
		class := "tab"
		if t.Selected {
			class += " selected"
		}
		ew.printf(`<a class="%s" href="%s">%s</a>`,
			class, escapeAttr(Link(p.SentenceID, t.Name, "")), escapeHTML(r.Label(t.Label)))
	}
	ew.print("</nav>\n")

	ew.printf("<h1>%s</h1>\n<hr>\n", escapeHTML(p.Title))

	for _, b := range p.Blocks {
		r.block(ew, b)
	}

	r.close(ew)
	return ew.err
}

// RenderIndex writes the list of all sentences.
func (r *Renderer) RenderIndex(w io.Writer, lang string, entries []IndexEntry, nav Nav) error {
	ew := &errWriter{w: w}
	title := r.Label(LabelIndex)
	r.open(ew, lang, title)
	r.languageBar(ew, page.ComposedPage{Language: lang}, nav)

	ew.printf("<h1>%s</h1>\n", escapeHTML(title))
	if len(entries) == 0 {
		ew.printf("<p class=\"block empty\"><em>%s</em></p>\n", escapeHTML(r.Label(LabelIndexEmpty)))
	} else {
		ew.print("<ul class=\"index\">\n")
		for _, e := range entries {
			ew.printf("<li><a href=\"%s\">%s</a></li>\n", escapeAttr(Link(e.ID, "", "")), escapeHTML(e.Label))
		}
		ew.print("</ul>\n")
	}

	r.close(ew)
	return ew.err
}

func (r *Renderer) open(ew *errWriter, lang, title string) {
	if lang == "" {
		lang = "en"
	}
	if r.config.Title != "" {
		title = r.config.Title + " - " + title
	}
	ew.print("<!DOCTYPE html>\n")
	ew.printf("<html lang=\"%s\">\n<head>\n<meta charset=\"utf-8\">\n", escapeAttr(lang))
	ew.printf("<title>%s</title>\n", escapeHTML(title))
	if r.config.Stylesheet != "" {
		ew.printf("<link rel=\"stylesheet\" href=\"%s\">\n", escapeAttr(r.config.Stylesheet))
	}
	ew.print("</head>\n<body>\n")
}

func (r *Renderer) close(ew *errWriter) {
	ew.print("</body>\n</html>\n")
}

func (r *Renderer) languageBar(ew *errWriter, p page.ComposedPage, nav Nav) {
	if len(nav.Languages) < 2 {
		return
	}
	ew.printf(`<nav class="languages" aria-label="%s">`, escapeAttr(r.Label(LabelLanguages)))
	for _, lang := range nav.Languages {
		if lang == p.Language {
			ew.printf(`<span class="language selected">%s</span>`, escapeHTML(lang))
			continue
		}
		ew.printf(`<a class="language" href="%s">%s</a>`,
			escapeAttr(Link(p.SentenceID, p.SelectedTab(), lang)), escapeHTML(lang))
	}
	ew.print("</nav>\n")
}

func (r *Renderer) block(ew *errWriter, b page.Block) {
	switch b.Kind {
	case page.BlockList:
		ew.printf("<section class=\"block list\">\n<h2>%s</h2>\n<ul>\n", escapeHTML(r.Label(b.HeadingLabel)))
		for _, item := range b.Items {
			ew.printf("<li>%s</li>\n", escapeHTML(item))
		}
		ew.print("</ul>\n</section>\n")
	case page.BlockSection:
		// Rich text is trusted markup from the store.
		ew.printf("<section class=\"block section\">\n<h2>%s</h2>\n<div class=\"rich\">%s</div>\n</section>\n",
			escapeHTML(r.Label(b.Heading)), b.RichText)
	case page.BlockEmpty:
		text := escapeHTML(r.Label(b.Label))
		if b.Emphasized {
			text = "<em>" + text + "</em>"
		}
		ew.printf("<p class=\"block empty\">%s</p>\n", text)
	}
}

// errWriter remembers the first write error and skips later writes.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) print(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = io.WriteString(ew.w, s)
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
