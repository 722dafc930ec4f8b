package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/config"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/replay"
	"github.com/danielpatrickdp/creature-colony/internal/state"
	"github.com/spf13/cobra"
)

var (
	dbPath      string
	fixturePath string
	configPath  string
)

// errDiverged signals a completed replay whose outcome differs from the record.
var errDiverged = errors.New("replay diverged")

// #region main

var rootCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay recorded interactions through a fresh in-memory colony",
	Long: `Fixture mode runs a JSON fixture and compares every turn with its expected action.
DB mode re-runs the thought log of a colony database and compares the rebuilt
colony with the stored aggregate.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if (dbPath == "") == (fixturePath == "") {
			return fmt.Errorf("exactly one of --db or --fixture is required")
		}
		if fixturePath != "" {
			return runFixtureMode(cmd.Context(), cmd.OutOrStdout(), fixturePath)
		}
		return runDBMode(cmd.Context(), cmd.OutOrStdout(), dbPath)
	},
}

func init() {
	rootCmd.Flags().StringVar(&dbPath, "db", "", "path to a colony database (DB mode)")
	rootCmd.Flags().StringVar(&fixturePath, "fixture", "", "path to fixture JSON (fixture mode)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML config the database was produced with (DB mode)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errDiverged) {
			os.Exit(1)
		}
		os.Exit(2)
	}
}

// #endregion main

// #region fixture-mode

func runFixtureMode(ctx context.Context, w io.Writer, path string) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	if f.Description != "" {
		fmt.Fprintf(w, "Fixture: %s\n\n", f.Description)
	}

	results, final, err := replay.Replay(ctx, f.ToInteractions(), f.Config.ToReplayConfig())
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "%-12s| %-30s| %-30s| %s\n", "Turn", "Expected", "Replayed", "Match")
	fmt.Fprintf(w, "%-12s+%-30s+%-30s+%s\n",
		"------------", "-------------------------------", "-------------------------------", "------")
	for i, r := range results {
		exp := "-"
		if i < len(f.ExpectedResults) {
			exp = f.ExpectedResults[i].Action
		}
		match := "OK"
		if exp != r.Label() {
			match = "DIVERGE"
		}
		fmt.Fprintf(w, "%-12s| %-30s| %-30s| %s\n", r.TurnID, exp, r.Label(), match)
	}

	printSummary(w, replay.Summarize(results, final))
	diffs := f.Check(results, final)
	for _, d := range diffs {
		fmt.Fprintf(w, "  %s\n", d)
	}
	if len(diffs) > 0 {
		return errDiverged
	}
	return nil
}

// #endregion fixture-mode

// #region db-mode

func runDBMode(ctx context.Context, w io.Writer, path string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := state.NewStore(path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	stored, err := store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	log, err := store.ThoughtLog(ctx)
	if err != nil {
		return err
	}

	interactions := rebuildInteractions(stored, log)

	// recorded thoughts already passed the policy gate
	svcCfg := cfg.Service()
	svcCfg.Policy = creature.DefaultConfig().Policy
	svcCfg.Policy.MaxPayloadBytes = int(^uint(0) >> 1)

	results, rebuilt, err := replay.Replay(ctx, interactions, svcCfg)
	if err != nil {
		return err
	}
	summary := replay.Summarize(results, rebuilt)
	printSummary(w, summary)

	diverged := summary.Rejections > 0
	fmt.Fprintf(w, "\n%-18s| %-10s| %-10s\n", "Field", "Stored", "Replayed")
	fmt.Fprintf(w, "%-18s+%-11s+%-11s\n", "------------------", "-----------", "-----------")
	for _, row := range compareAggregates(stored.Aggregate, rebuilt.Aggregate) {
		mark := ""
		if row.stored != row.replayed {
			mark = "  DIVERGE"
			diverged = true
		}
		fmt.Fprintf(w, "%-18s| %-10d| %-10d%s\n", row.name, row.stored, row.replayed, mark)
	}
	if diverged {
		return errDiverged
	}
	return nil
}

// rebuildInteractions interleaves registrations and thoughts by timestamp so the
// evolution trigger sees the same cell count at every step.
func rebuildInteractions(stored colony.Snapshot, log []state.ThoughtRow) []replay.Interaction {
	cells := append([]cell.State(nil), stored.Cells...)
	sort.SliceStable(cells, func(i, j int) bool { return cells[i].CreatedAt.Before(cells[j].CreatedAt) })

	out := make([]replay.Interaction, 0, len(cells)+len(log))
	ci := 0
	for _, t := range log {
		for ci < len(cells) && !cells[ci].CreatedAt.After(t.CreatedAt) {
			out = append(out, replay.Interaction{TurnID: "register-" + cells[ci].Identity, Kind: replay.KindRegister, Caller: cells[ci].Identity})
			ci++
		}
		out = append(out, replay.Interaction{
			TurnID:  fmt.Sprintf("%s#%d", t.Identity, t.Seq),
			Kind:    replay.KindAnalyze,
			Caller:  t.Identity,
			Payload: t.Content,
		})
	}
	for ; ci < len(cells); ci++ {
		out = append(out, replay.Interaction{TurnID: "register-" + cells[ci].Identity, Kind: replay.KindRegister, Caller: cells[ci].Identity})
	}
	return out
}

type aggregateRow struct {
	name             string
	stored, replayed int64
}

func compareAggregates(a, b colony.Aggregate) []aggregateRow {
	rows := []aggregateRow{
		{"cell_count", int64(a.CellCount), int64(b.CellCount)},
		{"total_energy", int64(a.TotalEnergy), int64(b.TotalEnergy)},
		{"total_thoughts", int64(a.Metrics.TotalThoughts), int64(b.Metrics.TotalThoughts)},
		{"stability_index", int64(a.Metrics.StabilityIndex), int64(b.Metrics.StabilityIndex)},
		{"evolution_stage", int64(a.Metrics.EvolutionStage), int64(b.Metrics.EvolutionStage)},
	}
	sa, sb := a.Scores.Axes(), b.Scores.Axes()
	for i := range sa {
		rows = append(rows, aggregateRow{"score_" + dimension.AxisNames[i], int64(sa[i]), int64(sb[i])})
	}
	return rows
}

// #endregion db-mode

// #region output

func printSummary(w io.Writer, s replay.Summary) {
	fmt.Fprintf(w, "\nSummary: %d turns, %d registered, %d committed, %d rejected, %d evolutions\n",
		s.TotalTurns, s.Registrations, s.Commits, s.Rejections, s.Evolutions)
	fmt.Fprintf(w, "Final: cells=%d thoughts=%d avg_energy=%d stability=%d stage=%d\n",
		s.CellCount, s.FinalMetrics.TotalThoughts, s.FinalMetrics.AverageEnergy,
		s.FinalMetrics.StabilityIndex, s.FinalMetrics.EvolutionStage)
}

// #endregion output
