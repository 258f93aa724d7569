package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// newDescribeCmd creates the 'describe' subcommand
func newDescribeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe [entity:service]",
		Short: "List entity types or show one descriptor",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			w := cmd.OutOrStdout()
			registry := app.Metadata.Registry

			if len(args) == 0 {
				keys := registry.Keys()
				if done, err := opts.emit(w, keys); done {
					return err
				}
				if len(keys) == 0 {
					warningColor.Fprintln(w, "No entity types loaded")
					return nil
				}
				headerColor.Fprintln(w, "ENTITY TYPES")
				for _, k := range keys {
					infoColor.Fprintln(w, k)
				}
				return nil
			}

			desc, err := app.Metadata.Provider.Describe(ctx, args[0])
			if err != nil {
				return err
			}
			if done, err := opts.emit(w, desc); done {
				return err
			}
			renderDescriptor(w, desc)
			return nil
		},
	}
}
