package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vango-dev/cnlwiki/pkg/params"
)

// DefaultOntology is used when no ontology parameter is configured.
const DefaultOntology = "default"

// OpenOptions tunes Open.
type OpenOptions struct {
	// S3 is used for s3:// data directories. When nil a client is built
	// from the s3region/s3endpoint parameters.
	S3 S3API
}

// Open returns the store for the ontology configured in p.
//
// The data directory decides the source:
//   - s3://bucket/prefix: <prefix>/<ontology>.yaml fetched from S3
//   - <datadir>/<ontology>.db: SQLite database
//   - <datadir>/<ontology>.yaml (or .yml, .json): sentence document
//
// A data directory without any of these files yields an empty store so a
// fresh wiki can start without content.
func Open(ctx context.Context, p params.Params, opts OpenOptions) (Store, error) {
	ontology := p.GetOr(params.KeyOntology, DefaultOntology)
	dataDir := p.GetOr(params.KeyDataDir, params.DefaultDataDir)

	if loc, ok := ParseS3Location(dataDir); ok {
		client := opts.S3
		if client == nil {
			client = NewS3Client(p.Get(params.KeyS3Region), p.Get(params.KeyS3Endpoint))
		}
		return LoadS3(ctx, client, loc, ontology)
	}

	dbPath := filepath.Join(dataDir, ontology+".db")
	if _, err := os.Stat(dbPath); err == nil {
		return OpenSQLite(dbPath)
	}

	for _, ext := range []string{".yaml", ".yml", ".json"} {
		docPath := filepath.Join(dataDir, ontology+ext)
		f, err := os.Open(docPath)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("store: open %s: %w", docPath, err)
		}
		st, err := LoadDocument(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("store: %s: %w", docPath, err)
		}
		return st, nil
	}

	return NewMemoryStore(), nil
}
