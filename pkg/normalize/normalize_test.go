package normalize

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustQuery(t *testing.T, raw string) url.Values {
	t.Helper()
	q, err := url.ParseQuery(raw)
	require.NoError(t, err)
	return q
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		newSession bool
		want       Outcome
	}{
		{
			name:  "deep link into existing session",
			query: "showpage=Foo",
			want:  Outcome{Kind: Redirect, Location: "?sid=ExternalEvent&page=Foo", Rule: RuleExternalEntry},
		},
		{
			name:  "deep link with language",
			query: "showlang=de&showpage=Foo",
			want:  Outcome{Kind: Redirect, Location: "?sid=ExternalEvent&page=Foo&lang=de", Rule: RuleExternalEntry},
		},
		{
			name:  "language only deep link",
			query: "showlang=de",
			want:  Outcome{Kind: Redirect, Location: "?sid=ExternalEvent&lang=de", Rule: RuleExternalEntry},
		},
		{
			name:  "deep link values are escaped",
			query: "showpage=" + url.QueryEscape("a b&c"),
			want:  Outcome{Kind: Redirect, Location: "?sid=ExternalEvent&page=a+b%26c", Rule: RuleExternalEntry},
		},
		{
			name:       "deep link on a new session passes",
			query:      "showpage=Foo",
			newSession: true,
			want:       Outcome{Kind: PassThrough},
		},
		{
			name:       "stray internal page on fresh entry",
			query:      "page=Foo",
			newSession: true,
			want:       Outcome{Kind: Redirect, Location: ".", Rule: RuleCanonical},
		},
		{
			name:  "stray internal lang on existing session",
			query: "lang=en",
			want:  Outcome{Kind: Redirect, Location: ".", Rule: RuleCanonical},
		},
		{
			name:  "internal navigation with sid",
			query: "sid=S1&page=Foo",
			want:  Outcome{Kind: PassThrough},
		},
		{
			name:       "internal navigation with sid on new session",
			query:      "sid=S1&page=Foo&lang=de",
			newSession: true,
			want:       Outcome{Kind: PassThrough},
		},
		{
			name:       "staged translation suppresses canonical rule",
			query:      "showpage=Foo&page=Bar",
			newSession: true,
			want:       Outcome{Kind: PassThrough},
		},
		{
			name:  "external entry follow-up passes",
			query: "sid=ExternalEvent&page=Foo",
			want:  Outcome{Kind: PassThrough},
		},
		{
			name: "no parameters",
			want: Outcome{Kind: PassThrough},
		},
		{
			name:  "unrelated parameters",
			query: "tab=translations",
			want:  Outcome{Kind: PassThrough},
		},
		{
			name:  "empty showpage still stages",
			query: "showpage=",
			want:  Outcome{Kind: Redirect, Location: "?sid=ExternalEvent&page=", Rule: RuleExternalEntry},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Decide(mustQuery(t, tt.query), tt.newSession))
		})
	}
}

func TestRequested(t *testing.T) {
	assert.Equal(t, "Foo", RequestedPage(mustQuery(t, "showpage=Foo")))
	assert.Equal(t, "Bar", RequestedPage(mustQuery(t, "showpage=Foo&page=Bar")))
	assert.Equal(t, "", RequestedPage(nil))
	assert.Equal(t, "de", RequestedLang(mustQuery(t, "showlang=de")))
	assert.Equal(t, "en", RequestedLang(mustQuery(t, "showlang=de&lang=en")))
}

func TestMiddleware(t *testing.T) {
	var fired []Rule
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})
	newSession := false
	h := Middleware(
		func(*http.Request) bool { return newSession },
		func(_ *http.Request, o Outcome) { fired = append(fired, o.Rule) },
	)(next)

	t.Run("external entry redirect", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wiki/?showpage=Foo", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/wiki/?sid=ExternalEvent&page=Foo", rec.Header().Get("Location"))
	})

	t.Run("canonical redirect", func(t *testing.T) {
		newSession = true
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?page=Foo", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
	})

	t.Run("pass through", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wiki/?sid=S1&page=Foo", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("Location"))
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, []Rule{RuleExternalEntry, RuleCanonical}, fired)
}
