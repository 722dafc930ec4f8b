package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
)

// Interaction kinds.
const (
	KindRegister = "register"
	KindAnalyze  = "analyze"
)

// Per-turn actions.
const (
	ActionRegistered = "registered"
	ActionExisting   = "existing"
	ActionCommit     = "commit"
	ActionRejected   = "rejected"
)

// #region types
// Interaction represents a single recorded call for replay.
type Interaction struct {
	TurnID  string
	Kind    string
	Caller  string
	Payload []byte
}

// Result captures the outcome of replaying one interaction.
type Result struct {
	TurnID string
	Action string
	Reason string // metrics reason label when rejected

	// Outcome is set for committed analyses.
	Outcome creature.Result

	// Colony metrics after this turn (unchanged if rejected)
	Metrics colony.Metrics
}

// Label renders the action the way fixtures spell it: "commit", or "rejected:<reason>".
func (r Result) Label() string {
	if r.Action == ActionRejected {
		return ActionRejected + ":" + r.Reason
	}
	return r.Action
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalTurns    int
	Registrations int
	Commits       int
	Rejections    int
	Evolutions    int
	FinalScores   dimension.Vector
	FinalMetrics  colony.Metrics
	CellCount     uint64
}

// #endregion types

// #region replay
// Replay runs interactions in order against a fresh in-memory colony:
// register or policy → engine → colony commit. Rejections are results, not errors;
// only a malformed interaction or a cancelled context stops the run.
func Replay(ctx context.Context, interactions []Interaction, config creature.Config, opts ...creature.Option) ([]Result, colony.Snapshot, error) {
	svc, err := creature.Open(ctx, config, nil, opts...)
	if err != nil {
		return nil, colony.Snapshot{}, fmt.Errorf("open colony: %w", err)
	}

	results := make([]Result, 0, len(interactions))
	for _, inter := range interactions {
		if err := ctx.Err(); err != nil {
			return results, svc.Snapshot(), err
		}

		r := Result{TurnID: inter.TurnID}
		switch inter.Kind {
		case KindRegister:
			_, created, err := svc.Register(ctx, inter.Caller)
			switch {
			case err != nil:
				r.Action, r.Reason = ActionRejected, creature.ReasonOf(err)
			case created:
				r.Action = ActionRegistered
			default:
				r.Action = ActionExisting
			}
		case KindAnalyze:
			out, err := svc.AnalyzeStrategy(ctx, inter.Caller, inter.Payload)
			if err != nil {
				r.Action, r.Reason = ActionRejected, creature.ReasonOf(err)
			} else {
				r.Action, r.Outcome = ActionCommit, out
			}
		default:
			return results, svc.Snapshot(), fmt.Errorf("turn %s: unknown interaction kind %q", inter.TurnID, inter.Kind)
		}
		r.Metrics = svc.Metrics()
		results = append(results, r)
	}

	return results, svc.Snapshot(), nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []Result, final colony.Snapshot) Summary {
	s := Summary{
		TotalTurns:   len(results),
		FinalScores:  final.Scores,
		FinalMetrics: final.Metrics,
		CellCount:    final.CellCount,
	}
	for _, r := range results {
		switch r.Action {
		case ActionRegistered:
			s.Registrations++
		case ActionCommit:
			s.Commits++
			if r.Outcome.Evolved {
				s.Evolutions++
			}
		case ActionRejected:
			s.Rejections++
		}
	}
	return s
}

// #endregion replay
