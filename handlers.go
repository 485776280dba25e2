package cnlwiki

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/vango-dev/cnlwiki/internal/errors"
	"github.com/vango-dev/cnlwiki/pkg/engine"
	"github.com/vango-dev/cnlwiki/pkg/middleware"
	"github.com/vango-dev/cnlwiki/pkg/normalize"
	"github.com/vango-dev/cnlwiki/pkg/page"
	"github.com/vango-dev/cnlwiki/pkg/render"
	"github.com/vango-dev/cnlwiki/pkg/session"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

// ParamTab selects the tab of a sentence page.
const ParamTab = "tab"

// Page kinds recorded by the pages_composed metric.
const (
	kindIndex        = "index"
	kindDetails      = "details"
	kindTranslations = "translations"
)

// servePage renders the index or the requested sentence page for the
// session resolved by the middleware chain.
func (i *Instance) servePage(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	q := r.URL.Query()

	if lang := normalize.RequestedLang(q); lang != "" && !sess.SetLanguage(lang) {
		i.logger.Debug("unknown language requested", "lang", lang, "session_id", sess.ID())
	}

	nav := render.Nav{Languages: i.backend.Languages()}
	var buf bytes.Buffer
	var kind string

	if id := normalize.RequestedPage(q); id != "" {
		p, err := sess.Show(r.Context(), id, q.Get(ParamTab))
		if stderrors.Is(err, store.ErrNotFound) {
			i.httpError(w, r, http.StatusNotFound, errors.New("E301").WithDetail("No sentence "+id))
			return
		}
		if err != nil {
			i.httpError(w, r, http.StatusInternalServerError, errors.FromError(err, "E303"))
			return
		}
		kind = kindDetails
		if p.SelectedTab() == page.TabTranslations {
			kind = kindTranslations
		}
		if err := i.renderer.RenderPage(&buf, p, nav); err != nil {
			i.httpError(w, r, http.StatusInternalServerError, errors.FromError(err, "E303"))
			return
		}
	} else {
		entries, err := i.index(r.Context())
		if err != nil {
			i.httpError(w, r, http.StatusInternalServerError, errors.FromError(err, "E303"))
			return
		}
		kind = kindIndex
		if err := i.renderer.RenderIndex(&buf, sess.Language(), entries, nav); err != nil {
			i.httpError(w, r, http.StatusInternalServerError, errors.FromError(err, "E303"))
			return
		}
	}

	i.metrics.PageComposed(kind)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	render.Serve(w, r, buf.Bytes())
}

// index lists every sentence of the store, labelled in the first configured
// display language.
func (i *Instance) index(ctx context.Context) ([]render.IndexEntry, error) {
	st := i.backend.Store()
	ids, err := st.IDs(ctx)
	if err != nil {
		return nil, err
	}
	languages := i.backend.Languages()
	entries := make([]render.IndexEntry, 0, len(ids))
	for _, id := range ids {
		s, err := st.Sentence(ctx, id)
		if err != nil {
			return nil, err
		}
		entries = append(entries, render.IndexEntry{ID: id, Label: page.Label(s, languages)})
	}
	return entries, nil
}

// ParseResult is the response of the parse diagnostics endpoint.
type ParseResult struct {
	Engine string `json:"engine"`
	Text   string `json:"text"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

// serveParse runs the backend's parsing engine on the text parameter.
func (i *Instance) serveParse(w http.ResponseWriter, r *http.Request) {
	eng := i.backend.Engine()
	text := r.URL.Query().Get("text")
	res := ParseResult{Engine: string(eng.Kind()), Text: text}

	status := http.StatusOK
	out, err := eng.Parse(r.Context(), text)
	switch {
	case stderrors.Is(err, engine.ErrEmptyText):
		status = http.StatusBadRequest
		res.Error = err.Error()
	case err != nil:
		status = http.StatusBadGateway
		ce := errors.FromError(err, "E302")
		i.logger.Warn("parse failed",
			"error", ce.FormatCompact(),
			"request_id", middleware.RequestIDFrom(r.Context()))
		res.Error = ce.Message
		if i.devMode {
			res.Error = ce.Error()
		}
	default:
		res.Output = out
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(res)
}

// httpError logs ce and writes its message with status. Details of server
// errors are only shown in dev mode.
func (i *Instance) httpError(w http.ResponseWriter, r *http.Request, status int, ce *errors.CodedError) {
	attrs := []any{
		"error", ce.FormatCompact(),
		"status", status,
		"request_id", middleware.RequestIDFrom(r.Context()),
		"session_id", middleware.CorrelationFrom(r.Context()).SessionID(),
		"uri", r.URL.RequestURI(),
	}
	if status >= http.StatusInternalServerError {
		i.logger.Error("request failed", attrs...)
	} else {
		i.logger.Info("request failed", attrs...)
	}

	msg := ce.Code + ": " + ce.Message
	if ce.Detail != "" && (status < http.StatusInternalServerError || i.devMode) {
		msg += "\n" + ce.Detail
	}
	if i.devMode && ce.Wrapped != nil {
		msg += "\n" + ce.Wrapped.Error()
	}
	http.Error(w, msg, status)
}
