package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// sqliteDriver is the database/sql driver name registered by modernc.org/sqlite.
const sqliteDriver = "sqlite"

// Schema is the SQLite layout read by SQLiteStore.
const Schema = `
CREATE TABLE IF NOT EXISTS sentences (
	id           TEXT PRIMARY KEY,
	translations INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS variants (
	sentence_id TEXT NOT NULL REFERENCES sentences(id),
	lang        TEXT NOT NULL,
	position    INTEGER NOT NULL,
	text        TEXT NOT NULL,
	PRIMARY KEY (sentence_id, lang, position)
);
CREATE TABLE IF NOT EXISTS details (
	sentence_id TEXT NOT NULL REFERENCES sentences(id),
	lang        TEXT NOT NULL,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	rich_text   TEXT NOT NULL,
	PRIMARY KEY (sentence_id, lang, position)
);
`

// SQLiteStore reads sentences from a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path read-only.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open(sqliteDriver, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

// Sentence implements Store.
func (s *SQLiteStore) Sentence(ctx context.Context, id string) (Sentence, error) {
	rec := &Record{
		SentenceID: id,
		Texts:      make(map[string][]string),
	}

	var translations int
	err := s.db.QueryRowContext(ctx,
		`SELECT translations FROM sentences WHERE id = ?`, id).Scan(&translations)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: query sentence %q: %w", id, err)
	}
	rec.Translations = translations != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT lang, text FROM variants WHERE sentence_id = ? ORDER BY lang, position`, id)
	if err != nil {
		return nil, fmt.Errorf("store: query variants %q: %w", id, err)
	}
	for rows.Next() {
		var lang, text string
		if err := rows.Scan(&lang, &text); err != nil {
			rows.Close()
			return nil, err
		}
		rec.Texts[lang] = append(rec.Texts[lang], text)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT lang, name, rich_text FROM details WHERE sentence_id = ? ORDER BY lang, position`, id)
	if err != nil {
		return nil, fmt.Errorf("store: query details %q: %w", id, err)
	}
	for rows.Next() {
		var lang string
		var d DetailSection
		if err := rows.Scan(&lang, &d.Name, &d.RichText); err != nil {
			rows.Close()
			return nil, err
		}
		if rec.Sections == nil {
			rec.Sections = make(map[string][]DetailSection)
		}
		rec.Sections[lang] = append(rec.Sections[lang], d)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return rec, nil
}

// IDs implements Store.
func (s *SQLiteStore) IDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM sentences ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: query ids: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, closeRows(rows)
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

// WriteSQLite creates (or extends) the database at path with the given
// records. A record replaces every stored row of its sentence. It is used to
// convert YAML documents for larger collections.
func WriteSQLite(ctx context.Context, path string, records []Record) (err error) {
	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return fmt.Errorf("store: create sqlite %s: %w", path, err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for i := range records {
		rec := &records[i]
		if err = rec.Validate(); err != nil {
			return err
		}
		translations := 0
		if rec.Translations {
			translations = 1
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO sentences (id, translations) VALUES (?, ?)`,
			rec.SentenceID, translations); err != nil {
			return err
		}
		// A re-imported sentence replaces all of its rows.
		for _, table := range []string{"variants", "details"} {
			if _, err = tx.ExecContext(ctx,
				`DELETE FROM `+table+` WHERE sentence_id = ?`, rec.SentenceID); err != nil {
				return err
			}
		}
		for lang, texts := range rec.Texts {
			for pos, text := range texts {
				if _, err = tx.ExecContext(ctx,
					`INSERT OR REPLACE INTO variants (sentence_id, lang, position, text) VALUES (?, ?, ?, ?)`,
					rec.SentenceID, lang, pos, text); err != nil {
					return err
				}
			}
		}
		for lang, sections := range rec.Sections {
			for pos, d := range sections {
				if _, err = tx.ExecContext(ctx,
					`INSERT OR REPLACE INTO details (sentence_id, lang, position, name, rich_text) VALUES (?, ?, ?, ?, ?)`,
					rec.SentenceID, lang, pos, d.Name, d.RichText); err != nil {
					return err
				}
			}
		}
	}
	return tx.Commit()
}
