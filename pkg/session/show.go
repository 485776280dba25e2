package session

import (
	"context"
	"fmt"

	"github.com/vango-dev/cnlwiki/pkg/page"
)

// Show composes the page of sentence id on the given tab in the current
// language and records it as the current page. An unknown tab shows the
// sentence tab. The translations tab falls back to the sentence tab outside
// a multilingual backend.
func (i *Instance) Show(ctx context.Context, id, tab string) (page.ComposedPage, error) {
	s, err := i.backend.Store().Sentence(ctx, id)
	if err != nil {
		return page.ComposedPage{}, fmt.Errorf("session: show %q: %w", id, err)
	}

	lang := i.Language()
	multilingual := i.backend.Multilingual()

	var p page.ComposedPage
	if tab == page.TabTranslations && multilingual {
		p = page.ComposeTranslations(s, i.backend.Languages(), lang)
	} else {
		p = page.Compose(s, lang, multilingual)
	}
	i.SetPage(id)
	return p, nil
}
