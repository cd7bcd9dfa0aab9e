package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gravitas-games/foundry/pkg/production"
)

func newValidateCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and build the world definition without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			w, err := loadWorld(cfg, production.NewNullEventBus(), slog.New(slog.DiscardHandler))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "World %s is valid\n", cfg.Simulation.WorldFile)

			fmt.Fprintf(out, "\nProduce (%d):\n", w.Catalog.Len())
			for _, pd := range w.Catalog.Export() {
				fmt.Fprintf(out, "  %-16s %s", pd.Name, pd.DisplayName)
				if makers := w.Processes.ByOutput(pd.Name); len(makers) > 0 {
					fmt.Fprintf(out, " (made by %s)", joinProcesses(makers))
				}
				fmt.Fprintln(out)
			}

			fmt.Fprintf(out, "\nProcesses (%d):\n", w.Processes.Count())
			for _, p := range w.Processes.All() {
				fmt.Fprintf(out, "  %-16s %v -> %v (%d cycles x %d iterations)\n",
					p.Name(), p.Inputs(), p.Outputs(), p.IterationWorkCycles(), p.IterationCount())
			}

			fmt.Fprintf(out, "\nProducers (%d):\n", len(w.Producers))
			for _, p := range w.Producers {
				fmt.Fprintf(out, "  %-16s %s (max storage %d)\n", p.Name(), p.Process().Name(), p.Storage().MaxCapacity())
			}

			fmt.Fprintf(out, "\nSchedule: %d supplies, %d drains\n", len(w.Schedule.Supplies), len(w.Schedule.Drains))
			return nil
		},
	}
}

func joinProcesses(ids []production.ProcessID) string {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = string(id)
	}
	return strings.Join(names, ", ")
}
