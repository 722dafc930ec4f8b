package transport

import (
	"errors"
	"fmt"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/state"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "creature.v1"

// #region error-table
// errorKinds maps domain sentinels to wire codes and stable reasons. Order matters:
// the first match wins.
var errorKinds = []struct {
	err    error
	code   codes.Code
	reason string
}{
	{creature.ErrMissingCaller, codes.Unauthenticated, "MISSING_CALLER"},
	{colony.ErrCellNotFound, codes.NotFound, "CELL_NOT_FOUND"},
	{state.ErrNotFound, codes.NotFound, "NOT_FOUND"},
	{cell.ErrInsufficientEnergy, codes.FailedPrecondition, "INSUFFICIENT_ENERGY"},
	{cell.ErrInvalidDimensionalUpdate, codes.Internal, "INVALID_DIMENSIONAL_UPDATE"},
	{strategy.ErrInvalidStrategy, codes.InvalidArgument, "INVALID_STRATEGY"},
	{strategy.ErrRiskTooHigh, codes.FailedPrecondition, "RISK_TOO_HIGH"},
	{strategy.ErrLowConfidence, codes.FailedPrecondition, "LOW_CONFIDENCE"},
}

// #endregion error-table

// #region to-status
// toStatus converts a service error into a gRPC status carrying an ErrorInfo reason.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			st := status.New(k.code, err.Error())
			if withInfo, derr := st.WithDetails(&errdetails.ErrorInfo{Reason: k.reason, Domain: errorDomain}); derr == nil {
				st = withInfo
			}
			return st.Err()
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// #endregion to-status

// #region from-status
// fromStatus restores the domain sentinel from a status so callers can use errors.Is.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		for _, k := range errorKinds {
			if k.reason == info.GetReason() {
				return fmt.Errorf("%s: %w", st.Message(), k.err)
			}
		}
	}
	return err
}

// #endregion from-status
