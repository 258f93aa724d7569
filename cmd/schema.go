package cmd

import (
	"context"
	"fmt"

	"entitysvc/storage"

	"github.com/spf13/cobra"
)

// newSchemaCmd creates the 'schema' subcommand
func newSchemaCmd(opts *globalOptions) *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create tables and indexes for every entity type",
		Long: `Create the tables (SQLite) or collections and indexes (MongoDB) for every
entity type in the metadata file. Existing tables are left untouched.

With --print the SQLite DDL is written to stdout and nothing is applied.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			w := cmd.OutOrStdout()
			if printOnly {
				stmts := storage.SchemaStatements(app.Descriptors())
				if done, err := opts.emit(w, stmts); done {
					return err
				}
				for _, stmt := range stmts {
					fmt.Fprintf(w, "%s;\n", stmt)
				}
				return nil
			}

			stop := opts.startSpinner(cmd.ErrOrStderr(), "Applying schema...")
			err = app.EnsureSchema(ctx)
			stop()
			if err != nil {
				errorColor.Fprintln(cmd.ErrOrStderr(), "Schema failed")
				return err
			}

			keys := app.Registry.Keys()
			if done, err := opts.emit(w, map[string]any{"applied": keys}); done {
				return err
			}
			if !opts.quiet {
				successColor.Fprintf(w, "Schema applied for %d entity type(s)\n", len(keys))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the SQLite DDL instead of applying it")
	return cmd
}
