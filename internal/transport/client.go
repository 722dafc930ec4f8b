package transport

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/creature-colony/internal/cell"
	"github.com/danielpatrickdp/creature-colony/internal/colony"
	"github.com/danielpatrickdp/creature-colony/internal/creature"
	"github.com/danielpatrickdp/creature-colony/internal/dimension"
	"github.com/danielpatrickdp/creature-colony/internal/strategy"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// #region client-struct
// Client calls a creature.v1.Colony server as one caller identity.
type Client struct {
	conn   *grpc.ClientConn
	cc     grpc.ClientConnInterface
	caller string
}

// #endregion client-struct

// #region constructor
// NewClient connects to the colony server at addr.
func NewClient(addr, caller string) (*Client, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn, caller: caller}, nil
}

// NewClientWithConn creates a Client over an existing connection. The caller owns cc.
func NewClientWithConn(cc grpc.ClientConnInterface, caller string) *Client {
	return &Client{cc: cc, caller: caller}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client opened it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls

// Register creates the caller's cell; created is false when it already existed.
func (c *Client) Register(ctx context.Context) (cell.State, bool, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "Register", &emptypb.Empty{}, out); err != nil {
		return cell.State{}, false, err
	}
	return decodeCell(out)
}

// AnalyzeStrategy submits a strategy payload.
func (c *Client) AnalyzeStrategy(ctx context.Context, data []byte) (creature.Result, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "AnalyzeStrategy", wrapperspb.Bytes(data), out); err != nil {
		return creature.Result{}, err
	}
	return decodeResult(out), nil
}

// DimensionalScores fetches the colony-wide scores.
func (c *Client) DimensionalScores(ctx context.Context) (dimension.Vector, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetDimensionalScores", &emptypb.Empty{}, out); err != nil {
		return dimension.Vector{}, err
	}
	return decodeVector(out), nil
}

// Strategy fetches a strategy record by ID.
func (c *Client) Strategy(ctx context.Context, id string) (strategy.Record, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetStrategy", wrapperspb.String(id), out); err != nil {
		return strategy.Record{}, err
	}
	return decodeRecord(out)
}

// Metrics fetches the colony metrics.
func (c *Client) Metrics(ctx context.Context) (colony.Metrics, error) {
	out := new(structpb.Struct)
	if err := c.invoke(ctx, "GetMetrics", &emptypb.Empty{}, out); err != nil {
		return colony.Metrics{}, err
	}
	return decodeMetrics(out), nil
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	if c.caller != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, CallerKey, c.caller)
	}
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out); err != nil {
		return fromStatus(err)
	}
	return nil
}

// #endregion calls
