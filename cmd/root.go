package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mcpdiscover/internal/config"
	"mcpdiscover/pkg/logging"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeNothingFound indicates the discovery itself ran but no server
	// could be reached. Diagnostics are in the log output.
	ExitCodeNothingFound = 2
)

var (
	logLevelFlag string
	configFlag   string
)

// rootCmd represents the base command for the mcpdiscover application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcpdiscover",
	Short: "Discover the tools exposed by MCP servers",
	Long: `mcpdiscover spawns an MCP server from a local command or a container
image, performs the protocol handshake, and reports the tools it exposes.
Provisioned containers and Kubernetes objects are removed on every exit path.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logging.ParseLevel(logLevelFlag), os.Stderr)
	},
}

// loadConfig resolves the effective configuration: built-in defaults overlaid
// with the --config file when one is given.
func loadConfig() (config.Config, error) {
	if configFlag == "" {
		return config.GetDefaultConfig(), nil
	}
	cfg, err := config.LoadConfig(configFlag)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config %s: %w", configFlag, err)
	}
	return cfg, nil
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the
// application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpdiscover version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		if nothingFound(err) {
			os.Exit(ExitCodeNothingFound)
		}
		os.Exit(ExitCodeError)
	}
}

// errNothingFound marks discovery runs that completed without reaching a
// server, so scripts can distinguish "no tools" from operational errors.
type errNothingFound struct{ what string }

func (e *errNothingFound) Error() string {
	return fmt.Sprintf("no MCP server discovered from %s", e.what)
}

func nothingFound(err error) bool {
	var target *errNothingFound
	return errors.As(err, &target)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "path to a YAML config file")

	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
