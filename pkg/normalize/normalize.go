// Package normalize decides, before any page logic runs, whether an incoming
// request must be redirected.
//
// Deep links use the public parameters showpage and showlang. Internally the
// wiki navigates with page and lang. Decide translates the former into the
// latter and picks one of three outcomes:
//
//  1. an existing session followed a deep link: redirect to an external
//     entry URL carrying the translated parameters;
//  2. a bare entry carries stray internal parameters without a sid: redirect
//     to the canonical base URL;
//  3. anything else passes through.
package normalize

import (
	"net/http"
	"net/url"
	"strings"
)

// Query parameter names.
const (
	ParamShowPage = "showpage"
	ParamPage     = "page"
	ParamShowLang = "showlang"
	ParamLang     = "lang"
	ParamSID      = "sid"
)

// ExternalEntrySID is the sid value that marks a redirect started from a
// deep link.
const ExternalEntrySID = "ExternalEvent"

// CanonicalBase is the redirect target that strips all parameters.
const CanonicalBase = "."

// Kind tags an Outcome.
type Kind int

const (
	// PassThrough hands the request to normal processing.
	PassThrough Kind = iota

	// Redirect sends the client to Outcome.Location.
	Redirect
)

// Rule names the decision rule that produced an outcome.
type Rule string

const (
	RuleNone          Rule = ""
	RuleExternalEntry Rule = "external_entry"
	RuleCanonical     Rule = "canonical"
)

// Outcome is the result of Decide.
type Outcome struct {
	Kind     Kind
	Location string
	Rule     Rule
}

// IsRedirect reports whether o is a redirect.
func (o Outcome) IsRedirect() bool { return o.Kind == Redirect }

// Decide evaluates the normalization rules for one request. q is the raw
// query, newSession reports whether the session was created by this request.
func Decide(q url.Values, newSession bool) Outcome {
	// Staged translations, page first then lang.
	var staged []string
	hasInternal := false

	if v, ok := first(q, ParamShowPage); ok {
		staged = append(staged, ParamPage+"="+url.QueryEscape(v))
	}
	if q.Has(ParamPage) {
		hasInternal = true
	}
	if v, ok := first(q, ParamShowLang); ok {
		staged = append(staged, ParamLang+"="+url.QueryEscape(v))
	}
	if q.Has(ParamLang) {
		hasInternal = true
	}

	if !newSession && len(staged) > 0 {
		return Outcome{
			Kind:     Redirect,
			Location: "?" + ParamSID + "=" + ExternalEntrySID + "&" + strings.Join(staged, "&"),
			Rule:     RuleExternalEntry,
		}
	}
	if len(staged) == 0 && hasInternal && !q.Has(ParamSID) {
		return Outcome{Kind: Redirect, Location: CanonicalBase, Rule: RuleCanonical}
	}
	return Outcome{Kind: PassThrough}
}

func first(q url.Values, key string) (string, bool) {
	vs, ok := q[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

// RequestedPage returns the page a request asks for, preferring the internal
// parameter over the public one.
func RequestedPage(q url.Values) string {
	if v := q.Get(ParamPage); v != "" {
		return v
	}
	return q.Get(ParamShowPage)
}

// RequestedLang returns the language a request asks for, preferring the
// internal parameter over the public one.
func RequestedLang(q url.Values) string {
	if v := q.Get(ParamLang); v != "" {
		return v
	}
	return q.Get(ParamShowLang)
}

// SessionNovelty reports whether the session serving r was created by r.
type SessionNovelty func(r *http.Request) bool

// Middleware runs Decide for every request. Redirect outcomes are written
// with 302 Found and end the request; onRedirect, if set, is told which rule
// fired.
func Middleware(isNew SessionNovelty, onRedirect func(*http.Request, Outcome)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			out := Decide(r.URL.Query(), isNew(r))
			if out.IsRedirect() {
				if onRedirect != nil {
					onRedirect(r, out)
				}
				http.Redirect(w, r, resolve(r.URL, out.Location), http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// resolve makes a relative redirect target absolute against the request
// path. Unlike http.Redirect it keeps the trailing slash of "." targets, so
// "." on /wiki/ stays /wiki/.
func resolve(base *url.URL, location string) string {
	ref, err := url.Parse(location)
	if err != nil {
		return location
	}
	return (&url.URL{Path: base.Path}).ResolveReference(ref).String()
}
