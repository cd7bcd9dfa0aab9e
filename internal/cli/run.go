package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gravitas-games/foundry/internal/sim"
	"github.com/gravitas-games/foundry/pkg/inventory"
)

const defaultRunTicks = 100

type runSummary struct {
	Ticks     int64                       `json:"ticks"`
	Drained   map[inventory.ProduceID]int `json:"drained"`
	Producers []producerSummary           `json:"producers"`
}

type producerSummary struct {
	sim.ProducerSnapshot
	Stats sim.ProducerStats `json:"stats"`
}

func newRunCommand(opts *globalOptions) *cobra.Command {
	var (
		ticks  int64
		output string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the world headless for a number of ticks and print a summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unknown output format %q", output)
			}

			a, err := newApp(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.sim.Close()

			if ticks <= 0 {
				ticks = a.cfg.Simulation.MaxTicks
			}
			if ticks <= 0 {
				ticks = defaultRunTicks
			}

			runErr := a.sim.RunTicks(cmd.Context(), int(ticks))
			summary := summarize(a.sim)
			if output == "json" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			} else {
				printSummary(cmd.OutOrStdout(), summary)
			}
			return runErr
		},
	}

	cmd.Flags().Int64VarP(&ticks, "ticks", "n", 0, "Ticks to run (default: simulation.max_ticks, or 100)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text or json")
	return cmd
}

func summarize(s *sim.Simulation) runSummary {
	snap := s.Snapshot()
	stats := s.Stats()
	out := runSummary{
		Ticks:   snap.Tick,
		Drained: s.Drained(),
	}
	for _, p := range snap.Producers {
		out.Producers = append(out.Producers, producerSummary{ProducerSnapshot: p, Stats: stats[p.Name]})
	}
	return out
}

func printSummary(w io.Writer, s runSummary) {
	fmt.Fprintf(w, "Ticks: %d\n", s.Ticks)

	if len(s.Drained) > 0 {
		fmt.Fprintln(w, "\nDrained:")
		for _, id := range sortedIDs(s.Drained) {
			fmt.Fprintf(w, "  %-16s %d\n", id, s.Drained[id])
		}
	}

	fmt.Fprintln(w, "\nProducers:")
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tPROCESS\tPROGRESS\tITERATIONS\tPRODUCED\tINPUT STALLS\tOUTPUT STALLS\tSTORAGE")
	for _, p := range s.Producers {
		fmt.Fprintf(tw, "  %s\t%s\t%d/%d\t%d/%d\t%d\t%d\t%d\t%s\n",
			p.Name, p.Process,
			p.Progress, p.IterationWorkCycles,
			p.CompletedIterations, p.IterationCount,
			p.Stats.ProductionsCompleted,
			p.Stats.InputStalls,
			p.Stats.OutputStalls,
			formatStorage(p.Storage))
	}
	tw.Flush()
}

func formatStorage(stored map[inventory.ProduceID]int) string {
	if len(stored) == 0 {
		return "-"
	}
	s := ""
	for i, id := range sortedIDs(stored) {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprintf("%s=%d", id, stored[id])
	}
	return s
}

func sortedIDs(m map[inventory.ProduceID]int) []inventory.ProduceID {
	ids := make([]inventory.ProduceID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
