package transport

import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/quantum"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	"google.golang.org/protobuf/types/known/structpb"
)

// Messages travel as google.protobuf.Struct. Every number is at most 2^53, so
// the float64 representation is exact.

// #region encode
func encodeCell(c cell.State, created bool) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":         c.ID,
		"identity":   c.Identity,
		"energy":     c.Energy,
		"stability":  c.Stability,
		"position":   vectorMap(c.Position),
		"created_at": c.CreatedAt.UTC().Format(time.RFC3339Nano),
		"created":    created,
	})
}

func encodeResult(r creature.Result) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"risk_score":      r.RiskScore,
		"expected_return": r.ExpectedReturn,
		"is_valid":        r.IsValid,
		"thought_id":      r.ThoughtID,
		"strategy_id":     r.StrategyID,
		"evolved":         r.Evolved,
		"confidence":      r.Confidence,
		"stability_score": r.StabilityScore,
		"volatility":      r.Volatility,
		"correlation":     r.Correlation,
		"phase_space":     phaseSpaceMap(r.PhaseSpace),
	})
}

func phaseSpaceMap(ps quantum.PhaseSpace) map[string]any {
	attractors := make([]any, len(ps.Attractors))
	for i, a := range ps.Attractors {
		coord := make([]any, len(a.Coord))
		for j, c := range a.Coord {
			coord[j] = c
		}
		attractors[i] = map[string]any{"coord": coord, "intensity": a.Intensity}
	}
	lyapunov := make([]any, len(ps.Lyapunov))
	for i, l := range ps.Lyapunov {
		lyapunov[i] = l
	}
	return map[string]any{
		"embedding_dimension": ps.EmbeddingDimension,
		"attractors":          attractors,
		"lyapunov":            lyapunov,
	}
}

func encodeVector(v dimension.Vector) (*structpb.Struct, error) {
	return structpb.NewStruct(vectorMap(v))
}

func encodeRecord(r strategy.Record) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":              r.ID,
		"risk_score":      r.RiskScore,
		"expected_return": r.ExpectedReturn,
		"thought_id":      r.ThoughtID,
		"is_valid":        r.IsValid,
		"created_at":      r.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
}

func encodeMetrics(m colony.Metrics) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"average_energy":  m.AverageEnergy,
		"total_thoughts":  m.TotalThoughts,
		"stability_index": m.StabilityIndex,
		"evolution_stage": m.EvolutionStage,
	})
}

func vectorMap(v dimension.Vector) map[string]any {
	axes := v.Axes()
	m := make(map[string]any, len(axes))
	for i, name := range dimension.AxisNames {
		m[name] = int64(axes[i])
	}
	return m
}

// #endregion encode

// #region decode
func decodeCell(s *structpb.Struct) (cell.State, bool, error) {
	f := s.GetFields()
	created, err := parseTime(f["created_at"].GetStringValue())
	if err != nil {
		return cell.State{}, false, err
	}
	return cell.State{
		ID:        f["id"].GetStringValue(),
		Identity:  f["identity"].GetStringValue(),
		Energy:    uint64(f["energy"].GetNumberValue()),
		Stability: uint64(f["stability"].GetNumberValue()),
		Position:  decodeVector(f["position"].GetStructValue()),
		CreatedAt: created,
	}, f["created"].GetBoolValue(), nil
}

func decodeResult(s *structpb.Struct) creature.Result {
	f := s.GetFields()
	return creature.Result{
		RiskScore:      uint64(f["risk_score"].GetNumberValue()),
		ExpectedReturn: uint64(f["expected_return"].GetNumberValue()),
		IsValid:        f["is_valid"].GetBoolValue(),
		ThoughtID:      f["thought_id"].GetStringValue(),
		StrategyID:     f["strategy_id"].GetStringValue(),
		Evolved:        f["evolved"].GetBoolValue(),
		Confidence:     uint64(f["confidence"].GetNumberValue()),
		StabilityScore: uint64(f["stability_score"].GetNumberValue()),
		Volatility:     uint64(f["volatility"].GetNumberValue()),
		Correlation:    uint64(f["correlation"].GetNumberValue()),
		PhaseSpace:     decodePhaseSpace(f["phase_space"].GetStructValue()),
	}
}

func decodePhaseSpace(s *structpb.Struct) quantum.PhaseSpace {
	f := s.GetFields()
	ps := quantum.PhaseSpace{EmbeddingDimension: int(f["embedding_dimension"].GetNumberValue())}
	for _, v := range f["attractors"].GetListValue().GetValues() {
		af := v.GetStructValue().GetFields()
		var a quantum.Attractor
		for j, c := range af["coord"].GetListValue().GetValues() {
			if j < len(a.Coord) {
				a.Coord[j] = int(c.GetNumberValue())
			}
		}
		a.Intensity = af["intensity"].GetNumberValue()
		ps.Attractors = append(ps.Attractors, a)
	}
	for _, v := range f["lyapunov"].GetListValue().GetValues() {
		ps.Lyapunov = append(ps.Lyapunov, v.GetNumberValue())
	}
	return ps
}

func decodeVector(s *structpb.Struct) dimension.Vector {
	f := s.GetFields()
	var axes [6]dimension.Axis
	for i, name := range dimension.AxisNames {
		axes[i] = dimension.Axis(int64(f[name].GetNumberValue()))
	}
	return dimension.FromAxes(axes)
}

func decodeRecord(s *structpb.Struct) (strategy.Record, error) {
	f := s.GetFields()
	created, err := parseTime(f["created_at"].GetStringValue())
	if err != nil {
		return strategy.Record{}, err
	}
	return strategy.Record{
		ID:             f["id"].GetStringValue(),
		RiskScore:      uint64(f["risk_score"].GetNumberValue()),
		ExpectedReturn: uint64(f["expected_return"].GetNumberValue()),
		ThoughtID:      f["thought_id"].GetStringValue(),
		IsValid:        f["is_valid"].GetBoolValue(),
		CreatedAt:      created,
	}, nil
}

func decodeMetrics(s *structpb.Struct) colony.Metrics {
	f := s.GetFields()
	return colony.Metrics{
		AverageEnergy:  uint64(f["average_energy"].GetNumberValue()),
		TotalThoughts:  uint64(f["total_thoughts"].GetNumberValue()),
		StabilityIndex: uint64(f["stability_index"].GetNumberValue()),
		EvolutionStage: uint64(f["evolution_stage"].GetNumberValue()),
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// #endregion decode
