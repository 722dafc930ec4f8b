package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/danielpatrickdp/creature-colony/internal/transport"
	"github.com/spf13/cobra"
)

var payloadFile string

// #region client-commands
var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create the caller's cell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) (any, error) {
			st, created, err := c.Register(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"cell": st, "created": created}, nil
		})
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [payload]",
	Short: "Analyze a strategy payload as the caller",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		return withClient(cmd, func(ctx context.Context, c *transport.Client) (any, error) {
			return c.AnalyzeStrategy(ctx, data)
		})
	},
}

var scoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Print the colony-wide dimensional scores",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) (any, error) {
			return c.DimensionalScores(ctx)
		})
	},
}

var strategyCmd = &cobra.Command{
	Use:   "strategy <id>",
	Short: "Look up a strategy record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) (any, error) {
			return c.Strategy(ctx, args[0])
		})
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print the colony metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withClient(cmd, func(ctx context.Context, c *transport.Client) (any, error) {
			return c.Metrics(ctx)
		})
	},
}

// #endregion client-commands

// #region helpers
func withClient(cmd *cobra.Command, call func(context.Context, *transport.Client) (any, error)) error {
	c, err := transport.NewClient(addr, caller)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()
	out, err := call(ctx, c)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	switch {
	case payloadFile == "-":
		return io.ReadAll(cmd.InOrStdin())
	case payloadFile != "":
		data, err := os.ReadFile(payloadFile)
		if err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
		return data, nil
	case len(args) == 1:
		return []byte(args[0]), nil
	default:
		return nil, fmt.Errorf("payload required: pass it as an argument or with --file")
	}
}

// #endregion helpers
