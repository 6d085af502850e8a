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
	"fmt"
	"io"
	"strings"

	"trpc.group/trpc-go/trpc-swarm-go/config"
	"trpc.group/trpc-go/trpc-swarm-go/graph"
	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/prebuilt"
	"trpc.group/trpc-go/trpc-swarm-go/swarm"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// buildSwarm turns a validated config into a compiled swarm graph.
func buildSwarm(cfg *config.Config, m model.Model) (*graph.Graph, error) {
	agents := make([]*graph.Graph, 0, len(cfg.Agents))
	for _, agentCfg := range cfg.Agents {
		tools := make([]tool.Tool, 0, len(agentCfg.Handoffs))
		for _, target := range agentCfg.Handoffs {
			var opts []swarm.HandoffOption
			if targetCfg, ok := cfg.Agent(target); ok && targetCfg.Description != "" {
				opts = append(opts, swarm.WithHandoffDescription(
					fmt.Sprintf("Transfer to %s: %s", target, targetCfg.Description)))
			}
			handoff, err := swarm.CreateHandoffTool(target, opts...)
			if err != nil {
				return nil, fmt.Errorf("agent %s: %w", agentCfg.Name, err)
			}
			tools = append(tools, handoff)
		}
		agent, err := prebuilt.NewReactAgent(agentCfg.Name, m, tools,
			prebuilt.WithInstruction(agentCfg.Instruction),
			prebuilt.WithDescription(agentCfg.Description),
		)
		if err != nil {
			return nil, err
		}
		agents = append(agents, agent)
	}

	sg, err := swarm.CreateSwarm(agents, cfg.DefaultAgent)
	if err != nil {
		return nil, err
	}
	return sg.Compile(graph.WithGraphName("swarm"))
}

// turnResult is the outcome of one swarm turn.
type turnResult struct {
	ActiveAgent string
	Reply       string
	Handoffs    []string
}

// runTurn runs the swarm once for input, starting at activeAgent or, when
// empty, at the default agent.
func runTurn(
	ctx context.Context,
	g *graph.Graph,
	cfg *config.Config,
	input, activeAgent string,
) (*turnResult, error) {
	exec, err := graph.NewExecutor(g, graph.WithMaxSteps(cfg.MaxSteps))
	if err != nil {
		return nil, err
	}
	state := graph.State{graph.StateKeyUserInput: input}
	if activeAgent != "" {
		state[swarm.StateKeyActiveAgent] = activeAgent
	}
	final, err := exec.Invoke(ctx, state)
	if err != nil {
		return nil, err
	}

	result := &turnResult{}
	result.ActiveAgent, _ = graph.GetStateValue[string](final, swarm.StateKeyActiveAgent)
	if result.ActiveAgent == "" {
		result.ActiveAgent = cfg.DefaultAgent
	}
	result.Reply, _ = graph.GetStateValue[string](final, graph.StateKeyLastResponse)
	messages, _ := graph.GetStateValue[[]model.Message](final, graph.StateKeyMessages)
	for _, msg := range messages {
		if msg.Role == model.RoleTool && strings.HasPrefix(msg.ToolName, "transfer_to_") {
			result.Handoffs = append(result.Handoffs, msg.ToolName)
		}
	}
	return result, nil
}

func printTopology(w io.Writer, cfg *config.Config, g *graph.Graph) {
	fmt.Fprintf(w, "swarm ok: %d agents, default %s\n", len(cfg.Agents), cfg.DefaultAgent)
	for _, node := range g.Nodes() {
		destinations := node.Destinations()
		if len(destinations) == 0 {
			fmt.Fprintf(w, "  %s\n", node.ID)
			continue
		}
		fmt.Fprintf(w, "  %s -> %s\n", node.ID, strings.Join(destinations, ", "))
	}
}

func printResult(w io.Writer, r *turnResult) {
	for _, h := range r.Handoffs {
		fmt.Fprintf(w, "[%s]\n", h)
	}
	fmt.Fprintf(w, "%s: %s\n", r.ActiveAgent, r.Reply)
}
