package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/logging"
	"github.com/danielpatrickdp/creature-colony/internal/state"
	"go.uber.org/zap"
)

// seedStore records two callers and their facts into a fresh database.
func seedStore(t *testing.T) *state.Store {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "colony.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	svc, err := creature.Open(ctx, creature.DefaultConfig(), store,
		creature.WithEmitter(logging.NewFactLog(store.DB(), zap.NewNop())))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	for _, caller := range []string{"alice", "bob"} {
		if _, _, err := svc.Register(ctx, caller); err != nil {
			t.Fatalf("Register %s: %v", caller, err)
		}
	}
	for i := 0; i < 3; i++ {
		if _, err := svc.AnalyzeStrategy(ctx, "alice", []byte(fmt.Sprintf("plan-%d", i))); err != nil {
			t.Fatalf("AnalyzeStrategy %d: %v", i, err)
		}
	}
	return store
}

func withJSON(t *testing.T) {
	t.Helper()
	jsonOut = true
	t.Cleanup(func() { jsonOut = false })
}

func TestTables(t *testing.T) {
	store := seedStore(t)
	ctx := context.Background()

	cases := []struct {
		name string
		run  func(context.Context, *bytes.Buffer) error
		want []string
	}{
		{
			name: "colony",
			run:  func(ctx context.Context, w *bytes.Buffer) error { return runColony(ctx, w, store) },
			want: []string{"Cells:           2", "Total energy:    170", "Total thoughts:  3", "Scores:", "emergence"},
		},
		{
			name: "cells",
			run:  func(ctx context.Context, w *bytes.Buffer) error { return runCells(ctx, w, store) },
			want: []string{"Identity", "Position (E C R I Ef In)", "alice", "bob"},
		},
		{
			name: "thoughts",
			run:  func(ctx context.Context, w *bytes.Buffer) error { return runThoughts(ctx, w, store) },
			want: []string{"Confidence", "plan-0", "plan-2"},
		},
		{
			name: "strategies",
			run:  func(ctx context.Context, w *bytes.Buffer) error { return runStrategies(ctx, w, store) },
			want: []string{"Strategy", "Risk", "Return", "true"},
		},
		{
			name: "facts",
			run:  func(ctx context.Context, w *bytes.Buffer) error { return runFacts(ctx, w, store) },
			want: []string{"ThoughtGenerated", "StrategyAnalyzed"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := tc.run(ctx, &out); err != nil {
				t.Fatalf("run: %v", err)
			}
			for _, w := range tc.want {
				if !strings.Contains(out.String(), w) {
					t.Fatalf("output missing %q:\n%s", w, out.String())
				}
			}
		})
	}
}

func TestColonyJSON(t *testing.T) {
	store := seedStore(t)
	withJSON(t)
	ctx := context.Background()

	var out bytes.Buffer
	if err := runColony(ctx, &out, store); err != nil {
		t.Fatalf("runColony: %v", err)
	}
	var got colony.Aggregate
	if err := json.Unmarshal(out.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	snap, err := store.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got != snap.Aggregate {
		t.Fatalf("got %+v, want %+v", got, snap.Aggregate)
	}
}

func TestCellsJSON(t *testing.T) {
	store := seedStore(t)
	withJSON(t)

	var out bytes.Buffer
	if err := runCells(context.Background(), &out, store); err != nil {
		t.Fatalf("runCells: %v", err)
	}
	var rows []cellRow
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 cells, got %d", len(rows))
	}
	if rows[0].Identity != "alice" || rows[0].Energy != 70 {
		t.Fatalf("unexpected first row %+v", rows[0])
	}
	if rows[1].Identity != "bob" || rows[1].Energy != 100 {
		t.Fatalf("unexpected second row %+v", rows[1])
	}
}

func TestLastLimitsRows(t *testing.T) {
	store := seedStore(t)
	withJSON(t)
	prev := last
	last = 1
	t.Cleanup(func() { last = prev })

	var out bytes.Buffer
	if err := runThoughts(context.Background(), &out, store); err != nil {
		t.Fatalf("runThoughts: %v", err)
	}
	var rows []state.ThoughtRow
	if err := json.Unmarshal(out.Bytes(), &rows); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 thought, got %d", len(rows))
	}
}

func TestEmptyDatabasePrintsNothing(t *testing.T) {
	store, err := state.NewStore(filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	var out bytes.Buffer
	if err := runCells(context.Background(), &out, store); err != nil {
		t.Fatalf("runCells: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected no table output, got:\n%s", out.String())
	}
}
