//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package swarm

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trpc.group/trpc-go/trpc-swarm-go/graph"
	"trpc.group/trpc-go/trpc-swarm-go/log"
	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
	"trpc.group/trpc-go/trpc-swarm-go/tool/function"
)

const (
	// MetadataKeyHandoffDestination is the tool metadata key holding the
	// target agent of a handoff tool.
	MetadataKeyHandoffDestination = "__handoff_destination"

	// DefaultToolsNodeName is the node agents register their tools on.
	DefaultToolsNodeName = "tools"

	handoffToolPrefix = "transfer_to_"
)

// NormalizeAgentName makes an agent name usable inside a tool name: it
// trims the name, collapses every run of Unicode white space into "_" and
// lower-cases the result.
func NormalizeAgentName(name string) string {
	// A Caser is stateful and cannot be shared between goroutines.
	return cases.Lower(language.Und).String(strings.Join(strings.Fields(name), "_"))
}

// HandoffToolName returns the name of the tool handing off to agentName.
func HandoffToolName(agentName string) string {
	return handoffToolPrefix + NormalizeAgentName(agentName)
}

type handoffOptions struct {
	description string
}

// HandoffOption configures CreateHandoffTool.
type HandoffOption func(*handoffOptions)

// WithHandoffDescription overrides the tool description shown to the model.
func WithHandoffDescription(description string) HandoffOption {
	return func(o *handoffOptions) { o.description = description }
}

// handoffArgs is empty: the model only has to pick the tool.
type handoffArgs struct{}

// CreateHandoffTool returns a tool that transfers control to agentName.
//
// The tool must run inside a graph tools node, which provides the current
// state and the tool call ID. It answers with a command for the parent
// graph that jumps to agentName, sets the active agent and extends the
// message log with a single tool message acknowledging the transfer.
func CreateHandoffTool(agentName string, opts ...HandoffOption) (tool.CallableTool, error) {
	if strings.TrimSpace(agentName) == "" {
		return nil, errors.New("agent name cannot be empty")
	}
	o := handoffOptions{description: fmt.Sprintf("Ask agent '%s' for help", agentName)}
	for _, opt := range opts {
		opt(&o)
	}
	name := HandoffToolName(agentName)

	handoff := func(ctx context.Context, _ handoffArgs) (*graph.Command, error) {
		state, ok := graph.StateFromContext(ctx)
		if !ok {
			return nil, fmt.Errorf("%s: no graph state in context; the tool must run in a tools node", name)
		}
		toolCallID, _ := tool.ToolCallIDFromContext(ctx)
		messages, _ := graph.GetStateValue[[]model.Message](state, graph.StateKeyMessages)

		updated := make([]model.Message, 0, len(messages)+1)
		updated = append(updated, messages...)
		updated = append(updated, model.NewToolMessage(
			toolCallID, name, fmt.Sprintf("Successfully transferred to %s", agentName)))

		log.Debugf("handoff: transferring to %s (tool call %s)", agentName, toolCallID)
		metric.RecordHandoff(ctx, agentName)
		return &graph.Command{
			GoTo:  agentName,
			Graph: graph.ParentGraph,
			Update: graph.State{
				graph.StateKeyMessages: graph.ReplaceAllMessages{Items: updated},
				StateKeyActiveAgent:    agentName,
			},
		}, nil
	}

	return function.NewFunctionTool(handoff,
		function.WithName(name),
		function.WithDescription(o.description),
		function.WithMetadata(map[string]any{MetadataKeyHandoffDestination: agentName}),
		function.WithOutputSchema(&tool.Schema{Type: "object"}),
	), nil
}

// GetHandoffDestinations returns the agents reachable through the handoff
// tools on agent's tools node, ordered by tool name. It returns nil when
// the node does not exist or is not a tools node. An empty toolsNodeName
// means DefaultToolsNodeName.
func GetHandoffDestinations(agent *graph.Graph, toolsNodeName string) []string {
	if agent == nil {
		return nil
	}
	if toolsNodeName == "" {
		toolsNodeName = DefaultToolsNodeName
	}
	node, ok := agent.Node(toolsNodeName)
	if !ok || node.Type != graph.NodeTypeTools {
		return nil
	}
	tools := node.Tools()
	names := make([]string, 0, len(tools))
	for name := range tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var destinations []string
	for _, name := range names {
		destination, ok := tool.Metadata(tools[name])[MetadataKeyHandoffDestination].(string)
		if ok && destination != "" {
			destinations = append(destinations, destination)
		}
	}
	return destinations
}
