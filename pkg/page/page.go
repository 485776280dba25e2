// Package page composes the detail view of a sentence.
//
// Composition is pure: it reads a store.Sentence and returns a ComposedPage
// describing tabs, title and content blocks. Turning that into markup is the
// renderer's job.
package page

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/vango-dev/cnlwiki/pkg/store"
)

// Tab names.
const (
	TabSentence     = "sentence"
	TabTranslations = "translations"
)

// Label keys resolved by the rendering host.
const (
	LabelTabSentence     = "page_sentence"
	LabelTabTranslations = "page_translations"
	LabelAlternatives    = "details_alternatives"
	LabelDetailsEmpty    = "details_empty"
	LabelTranslations    = "translations"
	LabelNoTranslations  = "translations_empty"
)

// BlockKind tags a Block.
type BlockKind string

const (
	// BlockList is a headed list of plain strings.
	BlockList BlockKind = "list"

	// BlockSection is a heading with a rich-text body.
	BlockSection BlockKind = "section"

	// BlockEmpty is an emphasized empty-state marker.
	BlockEmpty BlockKind = "empty"
)

// Tab is one entry of a page's tab bar.
type Tab struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// Block is one content block.
//
// For BlockList, HeadingLabel names the heading and Items holds the entries.
// For BlockSection, Heading is the section name and RichText its body,
// which is passed through verbatim. For BlockEmpty, Label names the message.
type Block struct {
	Kind         BlockKind `json:"kind"`
	Heading      string    `json:"heading,omitempty"`
	HeadingLabel string    `json:"headingLabel,omitempty"`
	Items        []string  `json:"items,omitempty"`
	RichText     string    `json:"richText,omitempty"`
	Label        string    `json:"label,omitempty"`
	Emphasized   bool      `json:"emphasized,omitempty"`
}

// ComposedPage is the derived state of one rendered page.
type ComposedPage struct {
	SentenceID string  `json:"sentenceId"`
	Language   string  `json:"language"`
	Tabs       []Tab   `json:"tabs"`
	Title      string  `json:"title"`
	Blocks     []Block `json:"blocks"`
}

// SelectedTab returns the name of the selected tab.
func (p ComposedPage) SelectedTab() string {
	for _, t := range p.Tabs {
		if t.Selected {
			return t.Name
		}
	}
	return ""
}

// Empty reports whether the page consists of the empty-state block only.
func (p ComposedPage) Empty() bool {
	return len(p.Blocks) == 1 && p.Blocks[0].Kind == BlockEmpty
}

// Compose builds the detail page of s in lang.
//
// Blocks are, in order: an alternatives list when there is more than one
// phrasing, one section per detail in source order, and a single empty-state
// block when neither produced anything. The translations tab is present only
// in a multilingual context.
func Compose(s store.Sentence, lang string, multilingual bool) ComposedPage {
	p := ComposedPage{
		SentenceID: s.ID(),
		Language:   lang,
		Tabs:       tabs(TabSentence, multilingual),
		Title:      PrettyPrint(s.Text(lang)),
	}

	variants := s.Variants(lang)
	sections := s.Details(lang)

	if len(variants) > 1 {
		items := make([]string, len(variants))
		for i, v := range variants {
			items[i] = v.Text
		}
		p.Blocks = append(p.Blocks, Block{Kind: BlockList, HeadingLabel: LabelAlternatives, Items: items})
	}
	for _, sec := range sections {
		p.Blocks = append(p.Blocks, Block{Kind: BlockSection, Heading: sec.Name, RichText: sec.RichText})
	}
	if len(p.Blocks) == 0 {
		p.Blocks = []Block{{Kind: BlockEmpty, Label: LabelDetailsEmpty, Emphasized: true}}
	}
	return p
}

// ComposeTranslations builds the translations tab of s: the sentence text in
// every configured language other than current, in configuration order.
func ComposeTranslations(s store.Sentence, languages []string, current string) ComposedPage {
	p := ComposedPage{
		SentenceID: s.ID(),
		Language:   current,
		Tabs:       tabs(TabTranslations, true),
		Title:      PrettyPrint(s.Text(current)),
	}

	var items []string
	if s.HasTranslations() {
		for _, lang := range languages {
			if lang == current {
				continue
			}
			if text := s.Text(lang); text != "" {
				items = append(items, lang+": "+PrettyPrint(text))
			}
		}
	}
	if len(items) == 0 {
		p.Blocks = []Block{{Kind: BlockEmpty, Label: LabelNoTranslations, Emphasized: true}}
		return p
	}
	p.Blocks = []Block{{Kind: BlockList, HeadingLabel: LabelTranslations, Items: items}}
	return p
}

func tabs(selected string, multilingual bool) []Tab {
	out := []Tab{{Name: TabSentence, Label: LabelTabSentence, Selected: selected == TabSentence}}
	if multilingual {
		out = append(out, Tab{Name: TabTranslations, Label: LabelTabTranslations, Selected: selected == TabTranslations})
	}
	return out
}

// PrettyPrint turns stored sentence text into display text: underscores
// joining multi-word names become spaces, runs of whitespace collapse, and
// the result is NFC normalized.
func PrettyPrint(text string) string {
	text = strings.ReplaceAll(text, "_", " ")
	text = strings.Join(strings.Fields(text), " ")
	return norm.NFC.String(text)
}

// SameLogicalPage reports whether a and b show the same sentence. The
// language a page was rendered in does not matter.
func SameLogicalPage(a, b ComposedPage) bool {
	return a.SentenceID != "" && a.SentenceID == b.SentenceID
}

// Label returns the text identifying the page of s, taken from the first
// configured display language.
func Label(s store.Sentence, languages []string) string {
	if len(languages) == 0 {
		return ""
	}
	return PrettyPrint(s.Text(languages[0]))
}
