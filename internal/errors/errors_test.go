package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New("E101")
	if err.Code != "E101" {
		t.Errorf("Code = %q, want E101", err.Code)
	}
	if err.Category != CategoryConfig {
		t.Errorf("Category = %q, want config", err.Category)
	}
	if err.Message == "" || err.Detail == "" {
		t.Errorf("template not applied: %+v", err)
	}

	unknown := New("E999")
	if unknown.Message != "Unknown error" {
		t.Errorf("unknown code message = %q", unknown.Message)
	}
}

func TestErrorAndUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := New("E204").Wrap(cause)

	if got := err.Error(); got != "E204: Import failed: unexpected EOF" {
		t.Errorf("Error() = %q", got)
	}
	if !stderrors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("errors.Is should see the wrapped error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E201") != nil {
		t.Error("FromError(nil) should be nil")
	}

	coded := New("E105")
	wrapped := fmt.Errorf("startup: %w", coded)
	if got := FromError(wrapped, "E201"); got != coded {
		t.Errorf("FromError should return the coded error in the chain, got %v", got)
	}

	plain := FromError(io.EOF, "E302")
	if plain.Code != "E302" || plain.Wrapped != io.EOF {
		t.Errorf("FromError(plain) = %+v", plain)
	}
}

func TestWithLocationFromError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cnlwiki.yaml")
	content := "backends:\n  - name: geo\ninstances:\n  - path /geo\n    backend: geo\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	parseErr := stderrors.New("yaml: line 4: mapping values are not allowed in this context")
	err := New("E102").WithLocationFromError(path, parseErr)
	if err.Location == nil || err.Location.Line != 4 {
		t.Fatalf("Location = %+v, want line 4", err.Location)
	}
	want := []string{"instances:", "  - path /geo", "    backend: geo"}
	if strings.Join(err.Context, "|") != strings.Join(want, "|") {
		t.Errorf("Context = %q, want %q", err.Context, want)
	}

	noLine := New("E102").WithLocationFromError(path, stderrors.New("unexpected end"))
	if noLine.Location != nil {
		t.Errorf("Location = %+v, want nil", noLine.Location)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E105").
		WithDetail(`instance "geo" names backend "geo-main"`).
		WithSuggestion("Declare the backend or mark it as external").
		Wrap(stderrors.New("not declared"))
	err.Location = &Location{File: "cnlwiki.yaml", Line: 7}

	out := err.Format()
	for _, want := range []string{
		"ERROR E105: Unknown backend reference",
		"cnlwiki.yaml:7",
		`instance "geo" names backend "geo-main"`,
		"Cause: not declared",
		"Hint: Declare the backend or mark it as external",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}

	if got := err.FormatCompact(); got != "cnlwiki.yaml:7: E105: Unknown backend reference: not declared" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("E201").WithSuggestion("Check the backend name")
	data, jerr := err.FormatJSON()
	if jerr != nil {
		t.Fatal(jerr)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatal(err)
	}
	if got["code"] != "E201" || got["category"] != "startup" || got["suggestion"] != "Check the backend name" {
		t.Errorf("FormatJSON() = %s", data)
	}
	if _, ok := got["file"]; ok {
		t.Errorf("file should be omitted without a location: %s", data)
	}
}

func TestPrintError(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	PrintError(&buf, fmt.Errorf("serve: %w", New("E203")))
	if !strings.HasPrefix(buf.String(), "ERROR E203: Listen failed") {
		t.Errorf("PrintError(coded) = %q", buf.String())
	}

	buf.Reset()
	PrintError(&buf, stderrors.New("boom"))
	if buf.String() != "ERROR: boom\n" {
		t.Errorf("PrintError(plain) = %q", buf.String())
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("no codes registered")
	}
	for i, code := range codes {
		if i > 0 && codes[i-1] >= code {
			t.Errorf("codes not sorted: %q before %q", codes[i-1], code)
		}
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("template %s incomplete: %+v", code, tmpl)
		}
	}
}

func TestWrapText(t *testing.T) {
	got := wrapText("one two three four", 9, "> ")
	want := "> one two\n> three\n> four"
	if got != want {
		t.Errorf("wrapText() = %q, want %q", got, want)
	}
}
