// Package cmd provides the entitysvc command-line interface.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"entitysvc/bootstrap"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// defaultTimeout bounds a single CLI invocation
const defaultTimeout = 2 * time.Minute

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	outputJSON bool
	outputYAML bool
	configFile string
	noColor    bool
	quiet      bool
	logLevel   string
	permissive bool
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "entitysvc",
		Short: "Run entity actions against a configured store",
		Long: `entitysvc executes Create, Read, Update, Delete, List and Count actions
against entity types described in a metadata file.

Storage, metadata and binder settings come from config.yaml and ENTITYSVC_*
environment variables.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				color.NoColor = true
			}
			if opts.outputJSON && opts.outputYAML {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			if opts.configFile != "" {
				viper.SetConfigFile(opts.configFile)
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&opts.outputJSON, "json", false, "Output in JSON format")
	root.PersistentFlags().BoolVar(&opts.outputYAML, "yaml", false, "Output in YAML format")
	root.PersistentFlags().StringVar(&opts.configFile, "config", "", "Config file path (default: ./config.yaml)")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	root.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "Suppress non-essential output")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override logging.level")
	root.PersistentFlags().BoolVar(&opts.permissive, "permissive", false, "Ignore parameters that match no declared field")

	root.AddCommand(newExecCmd(opts))
	root.AddCommand(newDescribeCmd(opts))
	root.AddCommand(newSchemaCmd(opts))

	return root
}

// initApp assembles the application for one command. The returned cleanup
// must be called once the command is done.
func initApp(ctx context.Context, cmd *cobra.Command, opts *globalOptions) (*bootstrap.App, func(), error) {
	appOpts := bootstrap.Options{
		LogLevel:  opts.logLevel,
		LogOutput: cmd.ErrOrStderr(),
	}
	if opts.permissive {
		strict := false
		appOpts.Strict = &strict
	}

	app, err := bootstrap.NewApp(ctx, appOpts)
	if err != nil {
		return nil, nil, err
	}
	return app, app.Shutdown, nil
}

// structured reports whether output goes through a machine-readable encoder
func (o *globalOptions) structured() bool {
	return o.outputJSON || o.outputYAML
}

// startSpinner shows progress for slow operations on interactive output
func (o *globalOptions) startSpinner(w io.Writer, suffix string) func() {
	if o.structured() || o.quiet {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

// emit writes data as JSON or YAML when requested. It reports false when the
// caller should render text instead.
func (o *globalOptions) emit(w io.Writer, data any) (bool, error) {
	switch {
	case o.outputJSON:
		return true, outputAsJSON(w, data)
	case o.outputYAML:
		return true, outputAsYAML(w, data)
	default:
		return false, nil
	}
}

// outputAsJSON outputs data as indented JSON.
func outputAsJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// outputAsYAML outputs data as YAML.
func outputAsYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}
