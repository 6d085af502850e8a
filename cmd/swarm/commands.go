//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"trpc.group/trpc-go/trpc-swarm-go/config"
	"trpc.group/trpc-go/trpc-swarm-go/log"
	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/model/openai"
	"trpc.group/trpc-go/trpc-swarm-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-swarm-go/telemetry/trace"
)

// newModel builds the model shared by all agents. Tests replace it.
var newModel = func(cfg config.ModelConfig) model.Model {
	return openai.New(cfg.Name, openai.WithAPIKey(cfg.APIKey), openai.WithBaseURL(cfg.BaseURL))
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "swarm",
		Short:         "Run multi-agent swarms with handoffs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "swarm.yaml", "Swarm definition file")
	root.AddCommand(newValidateCmd(&configPath), newRunCmd(&configPath))
	return root
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	log.SetLevel(cfg.LogLevel)
	return cfg, nil
}

func newValidateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a swarm definition and print its topology",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			g, err := buildSwarm(cfg, newModel(cfg.Model))
			if err != nil {
				return err
			}
			printTopology(cmd.OutOrStdout(), cfg, g)
			return nil
		},
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	var (
		input        string
		activeAgent  string
		otelEndpoint string
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one turn of the swarm",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return errors.New("--input is required")
			}
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if activeAgent != "" {
				if _, ok := cfg.Agent(activeAgent); !ok {
					return fmt.Errorf("--agent %s is not defined in %s", activeAgent, *configPath)
				}
			}
			if otelEndpoint != "" {
				cfg.Telemetry.Endpoint = otelEndpoint
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			if cfg.Telemetry.Endpoint != "" {
				cleanup, err := startTelemetry(ctx, cfg.Telemetry)
				if err != nil {
					return err
				}
				defer cleanup()
			}

			g, err := buildSwarm(cfg, newModel(cfg.Model))
			if err != nil {
				return err
			}
			result, err := runTurn(ctx, g, cfg, input, activeAgent)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "User message")
	cmd.Flags().StringVar(&activeAgent, "agent", "", "Agent to start with (default: the configured default agent)")
	cmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP collector host:port; enables tracing and metrics")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Run timeout")
	return cmd
}

func startTelemetry(ctx context.Context, cfg config.TelemetryConfig) (func(), error) {
	cleanTrace, err := trace.Start(ctx,
		trace.WithProtocol(cfg.Protocol),
		trace.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		return nil, err
	}
	cleanMetric, err := metric.Start(ctx,
		metric.WithProtocol(cfg.Protocol),
		metric.WithEndpoint(cfg.Endpoint),
	)
	if err != nil {
		_ = cleanTrace()
		return nil, err
	}
	return func() {
		if err := cleanTrace(); err != nil {
			log.Warnf("trace shutdown: %v", err)
		}
		if err := cleanMetric(); err != nil {
			log.Warnf("metric shutdown: %v", err)
		}
	}, nil
}
