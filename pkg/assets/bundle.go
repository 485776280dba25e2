package assets

import (
	"bytes"
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"
)

// Stylesheet is the source name of the page stylesheet.
const Stylesheet = "wiki.css"

// Cache-Control values for fingerprinted and plain names.
const (
	cacheImmutable  = "public, max-age=31536000, immutable"
	cacheRevalidate = "no-cache"
)

//go:embed static
var static embed.FS

type file struct {
	content     []byte
	contentType string
}

// Bundle holds a set of static files in memory.
type Bundle struct {
	manifest    *Manifest
	files       map[string]file
	fingerprint bool
	modTime     time.Time
}

// NewBundle reads the regular files at the root of fsys. With fingerprint
// set each file is served as <base>.<hash>.<ext>; otherwise under its
// source name.
func NewBundle(fsys fs.FS, fingerprint bool) (*Bundle, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	b := &Bundle{
		manifest:    NewManifest(),
		files:       make(map[string]file, len(entries)),
		fingerprint: fingerprint,
		modTime:     time.Now(),
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		content, err := fs.ReadFile(fsys, e.Name())
		if err != nil {
			return nil, fmt.Errorf("assets: %w", err)
		}
		name := e.Name()
		if fingerprint {
			name = fingerprintName(name, content)
		}
		contentType := mime.TypeByExtension(path.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		b.manifest.Set(e.Name(), name)
		b.files[name] = file{content: content, contentType: contentType}
	}
	return b, nil
}

// Default returns the bundle of embedded page assets.
func Default(fingerprint bool) *Bundle {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	b, err := NewBundle(sub, fingerprint)
	if err != nil {
		panic(err)
	}
	return b
}

// fingerprintName inserts the first eight hex digits of the content hash
// before the extension: wiki.css becomes wiki.3f2a9c1d.css.
func fingerprintName(name string, content []byte) string {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:4])
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "." + hash + ext
}

// Manifest returns the source to served name mapping.
func (b *Bundle) Manifest() *Manifest {
	return b.manifest
}

// ServeHTTP serves the file named by the last element of the request path.
func (b *Bundle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f, ok := b.files[path.Base(r.URL.Path)]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", f.contentType)
	if b.fingerprint {
		w.Header().Set("Cache-Control", cacheImmutable)
	} else {
		w.Header().Set("Cache-Control", cacheRevalidate)
	}
	http.ServeContent(w, r, "", b.modTime, bytes.NewReader(f.content))
}
