package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cnlwiki/internal/errors"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

func importCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "import <document>...",
		Short: "Convert sentence documents into a SQLite database",
		Long: `Convert YAML or JSON sentence documents into a SQLite database.

A backend prefers <datadir>/<ontology>.db over the document files, so
larger collections can be imported once and served from SQLite.

Examples:
  cnlwiki import --out data/geo.db data/geo.yaml
  cnlwiki import --out data/all.db part1.yaml part2.json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var records []store.Record
			for _, path := range args {
				recs, err := readDocument(path)
				if err != nil {
					return errors.New("E204").
						WithDetail(fmt.Sprintf("Could not read %s", path)).
						Wrap(err)
				}
				records = append(records, recs...)
			}

			if err := store.WriteSQLite(cmd.Context(), out, records); err != nil {
				return errors.New("E204").
					WithDetail(fmt.Sprintf("Could not write %s", out)).
					Wrap(err)
			}
			success(cmd.OutOrStdout(), "imported %d sentences into %s", len(records), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "SQLite database to create or extend")
	cmd.MarkFlagRequired("out")

	return cmd
}

func readDocument(path string) ([]store.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := store.DecodeDocument(f)
	if err != nil {
		return nil, err
	}
	return doc.Sentences, nil
}
