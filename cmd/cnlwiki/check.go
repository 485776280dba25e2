package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vango-dev/cnlwiki/internal/config"
	"github.com/vango-dev/cnlwiki/internal/errors"
	"github.com/vango-dev/cnlwiki/pkg/backend"
	"github.com/vango-dev/cnlwiki/pkg/params"
	"github.com/vango-dev/cnlwiki/pkg/store"
)

func checkCmd() *cobra.Command {
	var (
		configPath string
		open       bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the deployment descriptor",
		Long: `Validate the deployment descriptor.

With --open every declared backend and every instance without a named
backend is constructed once, so missing data files and bad language tags
are reported before deployment.

Examples:
  cnlwiki check
  cnlwiki check --config deploy/cnlwiki.json --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := loadDescriptor(configPath)
			if err != nil {
				return err
			}
			if err := desc.Validate(); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			success(w, "%s is valid", desc.Path())
			info(w, "%d backends, %d instances", len(desc.Backends), len(desc.Instances))
			if !open {
				return nil
			}
			return openAll(cmd.Context(), cmd, desc)
		},
	}

	addDescriptorFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&open, "open", false, "Construct every backend and report its content")

	return cmd
}

// openAll constructs the backends a deployment would construct and reports
// what each one serves.
func openAll(ctx context.Context, cmd *cobra.Command, desc *config.Config) error {
	w := cmd.OutOrStdout()
	check := func(label string, p params.Params) error {
		b, err := backend.New(ctx, p, backend.WithLogger(discardLogger()))
		if err != nil {
			return errors.New("E202").WithDetail(label).Wrap(err)
		}
		defer b.Close()
		ids, err := b.Store().IDs(ctx)
		if err != nil {
			return errors.New("E202").WithDetail(label).Wrap(err)
		}
		success(w, "%s: %d sentences, ontology %s, languages %v, engine %s",
			label, len(ids), p.GetOr(params.KeyOntology, store.DefaultOntology), b.Languages(), b.Engine().Kind())
		return nil
	}

	for _, bc := range desc.Backends {
		if err := check(fmt.Sprintf("backend %s", bc.Name), desc.BackendParams(bc)); err != nil {
			return err
		}
	}
	for _, inst := range desc.Instances {
		if inst.Backend != "" {
			continue
		}
		if err := check(fmt.Sprintf("instance %s", inst.Name), desc.InstanceParams(inst)); err != nil {
			return err
		}
	}
	return nil
}
