package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	worldFile  string
	logLevel   string
}

// NewRootCommand creates the root command for the CLI
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "foundry",
		Short: "Foundry - discrete-time production simulation",
		Long: `Foundry runs producers that consume produce over work cycles and
iterations and emit outputs into capacity-bounded storage.

Examples:
  foundry validate --world configs/world.yaml
  foundry run --ticks 60
  foundry run --ticks 600 --output json
  foundry serve --config configs/foundry.yaml`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"Path to foundry.yaml (default: ./foundry.yaml or ./configs/foundry.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.worldFile, "world", "w", "",
		"World definition file, overrides simulation.world_file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level (debug, info, warn, error), overrides logging.level")

	rootCmd.AddCommand(newRunCommand(opts))
	rootCmd.AddCommand(newServeCommand(opts))
	rootCmd.AddCommand(newValidateCommand(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
