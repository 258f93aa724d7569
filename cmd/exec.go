package cmd

import (
	"context"
	"fmt"
	"strings"

	"entitysvc/core"

	"github.com/spf13/cobra"
)

// execFlags are the action parameters accepted on the command line
type execFlags struct {
	params []string
	id     string
	name   string
	filter string
	sort   string
	limit  int
}

// newExecCmd creates the 'exec' subcommand
func newExecCmd(opts *globalOptions) *cobra.Command {
	flags := &execFlags{}

	cmd := &cobra.Command{
		Use:   "exec <entity:service> <action>",
		Short: "Execute an entity action",
		Long: `Execute one of Create, Read, Update, Delete, List or Count.

Update and Delete load the entity named by --id first and act on it.
Filters use the textual syntax, for example:

  entitysvc exec user:testcenter List --filter "status = 'active' and age > 30" --sort '!age;name'`,
		Example: `  entitysvc exec user:testcenter Create --param name=ana --param age=31
  entitysvc exec user:testcenter Read --name ana
  entitysvc exec user:testcenter Update --id <id> --param age=32
  entitysvc exec user:testcenter Count --filter "age >= 30"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := core.ParseActionKind(args[1])
			if err != nil {
				return err
			}
			raw, err := flags.parameters(action)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), defaultTimeout)
			defer cancel()

			app, cleanup, err := initApp(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := app.EnsureSchema(ctx); err != nil {
				return err
			}

			key := args[0]
			if action == core.ActionUpdate || action == core.ActionDelete {
				loaded, err := app.Registry.Execute(ctx, key, core.ActionRead, map[string]any{core.KeyID: flags.id})
				if err != nil {
					return fmt.Errorf("failed to load %s %s: %w", key, flags.id, err)
				}
				raw[core.KeyEntity] = loaded.Entity
			}

			stop := opts.startSpinner(cmd.ErrOrStderr(), fmt.Sprintf("%s %s...", action, key))
			outcome, err := app.Registry.Execute(ctx, key, action, raw)
			stop()
			if err != nil {
				return fmt.Errorf("%s %s failed: %w", action, key, err)
			}

			return renderOutcome(cmd.OutOrStdout(), opts, outcome)
		},
	}

	cmd.Flags().StringArrayVarP(&flags.params, "param", "p", nil, "Field assignment key=value (repeatable)")
	cmd.Flags().StringVar(&flags.id, "id", "", "Entity identifier (Read, Update, Delete)")
	cmd.Flags().StringVar(&flags.name, "name", "", "Entity name (Read)")
	cmd.Flags().StringVar(&flags.filter, "filter", "", "Filter expression (List, Count)")
	cmd.Flags().StringVar(&flags.sort, "sort", "", "Sort fields separated by ';', '!' for descending (List)")
	cmd.Flags().IntVar(&flags.limit, "limit", 0, "Maximum number of rows, 0 for all (List)")

	return cmd
}

// parameters builds the raw parameter mapping for action
func (f *execFlags) parameters(action core.ActionKind) (map[string]any, error) {
	raw, err := parseParams(f.params)
	if err != nil {
		return nil, err
	}

	switch action {
	case core.ActionRead:
		if f.id != "" {
			raw[core.KeyID] = f.id
		}
		if f.name != "" {
			raw[core.KeyName] = f.name
		}
	case core.ActionUpdate, core.ActionDelete:
		if f.id == "" {
			return nil, fmt.Errorf("%s requires --id", action)
		}
	case core.ActionList, core.ActionCount:
		if f.filter != "" {
			raw[core.KeyFilter] = f.filter
		}
		if f.sort != "" {
			raw[core.KeySort] = f.sort
		}
		if f.limit != 0 {
			raw[core.KeyLimit] = f.limit
		}
	}
	return raw, nil
}

// parseParams turns repeated key=value flags into a parameter mapping. An
// empty value is kept as "" so that the binder stores null.
func parseParams(pairs []string) (map[string]any, error) {
	raw := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		if _, dup := raw[key]; dup {
			return nil, fmt.Errorf("duplicate --param %q", key)
		}
		raw[key] = value
	}
	return raw, nil
}
