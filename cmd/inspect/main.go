package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/state"
	"github.com/spf13/cobra"
)

var (
	dbPath  string
	last    int
	jsonOut bool
)

// #region main

var rootCmd = &cobra.Command{
	Use:          "inspect",
	Short:        "Read-only view of a colony database",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", os.Getenv("CREATURE_DB"), "path to the colony database")
	rootCmd.PersistentFlags().IntVar(&last, "last", 20, "show N most recent rows")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")

	rootCmd.AddCommand(
		storeCommand("colony", "Colony aggregate and metrics", runColony),
		storeCommand("cells", "Cells with energy and position", runCells),
		storeCommand("thoughts", "Most recent thoughts", runThoughts),
		storeCommand("strategies", "Most recent strategy records", runStrategies),
		storeCommand("facts", "Most recent emitted facts", runFacts),
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// storeCommand opens the database for run and closes it afterwards.
func storeCommand(use, short string, run func(context.Context, io.Writer, *state.Store) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				return fmt.Errorf("--db is required")
			}
			store, err := state.NewStore(dbPath)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer store.Close()
			return run(cmd.Context(), cmd.OutOrStdout(), store)
		},
	}
}

// #endregion main

// #region colony

func runColony(ctx context.Context, w io.Writer, store *state.Store) error {
	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(w, snap.Aggregate)
	}
	m := snap.Metrics
	fmt.Fprintf(w, "Cells:           %d\n", snap.CellCount)
	fmt.Fprintf(w, "Total energy:    %d\n", snap.TotalEnergy)
	fmt.Fprintf(w, "Average energy:  %d\n", m.AverageEnergy)
	fmt.Fprintf(w, "Total thoughts:  %d\n", m.TotalThoughts)
	fmt.Fprintf(w, "Stability index: %d\n", m.StabilityIndex)
	fmt.Fprintf(w, "Evolution stage: %d\n", m.EvolutionStage)
	fmt.Fprintln(w, "Scores:")
	printVector(w, snap.Scores)
	return nil
}

func printVector(w io.Writer, v dimension.Vector) {
	axes := v.Axes()
	for i, name := range dimension.AxisNames {
		fmt.Fprintf(w, "  %-14s %5d\n", name, axes[i])
	}
}

// #endregion colony

// #region cells

type cellRow struct {
	Identity  string           `json:"identity"`
	CellID    string           `json:"cell_id"`
	Energy    uint64           `json:"energy"`
	Stability uint64           `json:"stability"`
	Position  dimension.Vector `json:"position"`
	CreatedAt string           `json:"created_at"`
}

func runCells(ctx context.Context, w io.Writer, store *state.Store) error {
	cells, err := store.ListCells(ctx)
	if err != nil {
		return err
	}
	if len(cells) == 0 {
		fmt.Fprintln(os.Stderr, "no cells found")
		return nil
	}

	rows := make([]cellRow, len(cells))
	for i, c := range cells {
		rows[i] = cellRow{
			Identity:  c.Identity,
			CellID:    c.ID,
			Energy:    c.Energy,
			Stability: c.Stability,
			Position:  c.Position,
			CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}
	if jsonOut {
		return printJSON(w, rows)
	}

	fmt.Fprintf(w, "%-20s  %-8s  %6s  %9s  %-29s  %s\n",
		"Identity", "Cell", "Energy", "Stability", "Position (E C R I Ef In)", "Created")
	fmt.Fprintf(w, "%-20s+-%-8s+-%6s+-%9s+-%-29s+-%s\n",
		"--------------------", "--------", "------", "---------", "-----------------------------", "--------------------")
	for _, r := range rows {
		a := r.Position.Axes()
		fmt.Fprintf(w, "%-20s  %-8s  %6d  %9d  %4d %4d %4d %4d %4d %4d  %s\n",
			r.Identity, shortID(r.CellID), r.Energy, r.Stability,
			a[0], a[1], a[2], a[3], a[4], a[5], r.CreatedAt)
	}
	return nil
}

// #endregion cells

// #region thoughts

func runThoughts(ctx context.Context, w io.Writer, store *state.Store) error {
	thoughts, err := store.ListThoughts(ctx, last)
	if err != nil {
		return err
	}
	if len(thoughts) == 0 {
		fmt.Fprintln(os.Stderr, "no thoughts found")
		return nil
	}
	if jsonOut {
		return printJSON(w, thoughts)
	}

	fmt.Fprintf(w, "%-8s  %-20s  %4s  %10s  %-20s  %s\n", "Thought", "Identity", "Seq", "Confidence", "Time", "Content")
	fmt.Fprintf(w, "%-8s+-%-20s+-%4s+-%10s+-%-20s+-%s\n",
		"--------", "--------------------", "----", "----------", "--------------------", "--------")
	for _, t := range thoughts {
		fmt.Fprintf(w, "%-8s  %-20s  %4d  %10d  %-20s  %s\n",
			shortID(t.ThoughtID), t.Identity, t.Seq, t.Confidence,
			t.CreatedAt.Format("2006-01-02T15:04:05Z"), preview(t.Content, 40))
	}
	return nil
}

func preview(b []byte, n int) string {
	s := string(b)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// #endregion thoughts

// #region strategies

func runStrategies(ctx context.Context, w io.Writer, store *state.Store) error {
	recs, err := store.ListStrategies(ctx, last)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(os.Stderr, "no strategies found")
		return nil
	}
	if jsonOut {
		return printJSON(w, recs)
	}

	fmt.Fprintf(w, "%-36s  %4s  %6s  %-8s  %5s  %s\n", "Strategy", "Risk", "Return", "Thought", "Valid", "Time")
	fmt.Fprintf(w, "%-36s+-%4s+-%6s+-%-8s+-%5s+-%s\n",
		"------------------------------------", "----", "------", "--------", "-----", "--------------------")
	for _, r := range recs {
		fmt.Fprintf(w, "%-36s  %4d  %6d  %-8s  %5t  %s\n",
			r.ID, r.RiskScore, r.ExpectedReturn, shortID(r.ThoughtID), r.IsValid,
			r.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion strategies

// #region facts

func runFacts(ctx context.Context, w io.Writer, store *state.Store) error {
	facts, err := store.ListFacts(ctx, last)
	if err != nil {
		return err
	}
	if len(facts) == 0 {
		fmt.Fprintln(os.Stderr, "no facts found")
		return nil
	}
	if jsonOut {
		return printJSON(w, facts)
	}

	fmt.Fprintf(w, "%6s  %-18s  %-36s  %5s  %s\n", "ID", "Kind", "Subject", "Value", "Time")
	fmt.Fprintf(w, "%6s+-%-18s+-%-36s+-%5s+-%s\n",
		"------", "------------------", "------------------------------------", "-----", "--------------------")
	for _, f := range facts {
		fmt.Fprintf(w, "%6d  %-18s  %-36s  %5d  %s\n",
			f.ID, f.Kind, f.SubjectID, f.Value, f.CreatedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion facts

// #region output

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
