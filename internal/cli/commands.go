// Package cli implements the vetrina command line client.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/vetrina/vetrina/internal/common/httpclient"
	"github.com/vetrina/vetrina/internal/ordereditor"
	"github.com/vetrina/vetrina/internal/ordereditor/draftcache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const cliVersion = "v0.1.0"

var (
	// Global flags
	jsonOutput bool
	configFile string

	// transport replaces the HTTP transport in tests
	transport http.RoundTripper
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vetrina",
	Short: "Vetrina CLI - order editing, products and notifications from the terminal",
	Long: `Vetrina CLI is a command line client for the Vetrina wholesale ordering server.
It edits order lines with a local draft that survives between invocations, searches and imports products,
lists catalogs and follows notifications.`,
	PersistentPreRunE: preRunHandlePersistents,
	SilenceErrors:     true,
	SilenceUsage:      true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "", "", "Path to configuration file to override default")
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
}

// Execute runs the root command and exits non-zero on error. Called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		if jsonOutput {
			_ = printJSON(rootCmd, map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func preRunHandlePersistents(cmd *cobra.Command, args []string) error {
	if configFile == "" {
		var err error
		configFile, err = GetDefaultConfigPath()
		if err != nil {
			return err
		}
	}

	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "config" || c.Name() == "version" || c.Name() == "normalize" {
			return nil
		}
	}

	if err := LoadConfig(configFile); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("config file not found; configure the CLI with \"vetrina config create\" first")
		}
		return err
	}
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of the vetrina CLI",
		RunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput {
				return printJSON(cmd, map[string]string{"version": cliVersion})
			}
			fmt.Fprintln(cmd.OutOrStdout(), "vetrina "+cliVersion)
			return nil
		},
	}
}

func newClient() *httpclient.Client {
	var opts []httpclient.Option
	if transport != nil {
		opts = append(opts, httpclient.WithTransport(transport))
	}
	return httpclient.New(GetConfig(), opts...)
}

// openEditor loads an order into an editor backed by the draft file. The returned func closes it.
func openEditor(cmd *cobra.Command, orderID int64) (*ordereditor.Editor, func(), error) {
	storage, err := draftcache.OpenSQLite(GetConfig().DraftFile)
	if err != nil {
		return nil, nil, err
	}
	e := ordereditor.New(newClient(), draftcache.New(storage))
	closer := func() {
		e.Close()
		_ = storage.Close()
	}
	if err := e.Load(cmd.Context(), orderID); err != nil {
		closer()
		return nil, nil, err
	}
	return e, closer, nil
}

func parseID(s, what string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", what, s)
	}
	return id, nil
}

// printJSON prints data as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, data any) error {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to format JSON output: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return nil
}
