//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-swarm-go/log"
	"trpc.group/trpc-go/trpc-swarm-go/telemetry/metric"
	"trpc.group/trpc-go/trpc-swarm-go/telemetry/trace"
)

const defaultMaxSteps = 100

// Executor runs a compiled graph. Execution is sequential: exactly one
// node runs per step.
type Executor struct {
	graph    *Graph
	maxSteps int
}

// ExecutorOptions holds executor settings.
type ExecutorOptions struct {
	// MaxSteps bounds the number of node executions in one run.
	MaxSteps int
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*ExecutorOptions)

// WithMaxSteps sets the maximum number of node executions per run.
func WithMaxSteps(maxSteps int) ExecutorOption {
	return func(opts *ExecutorOptions) {
		if maxSteps > 0 {
			opts.MaxSteps = maxSteps
		}
	}
}

// NewExecutor creates an executor for g.
func NewExecutor(g *Graph, opts ...ExecutorOption) (*Executor, error) {
	if g == nil {
		return nil, errors.New("graph cannot be nil")
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	options := ExecutorOptions{MaxSteps: defaultMaxSteps}
	for _, opt := range opts {
		opt(&options)
	}
	return &Executor{graph: g, maxSteps: options.MaxSteps}, nil
}

// Invoke runs the graph from Start until End and returns the final state.
// input is merged into the schema defaults through the field reducers.
func (e *Executor) Invoke(ctx context.Context, input State) (State, error) {
	state, cmd, err := e.run(ctx, input)
	if err != nil {
		return state, err
	}
	if cmd != nil {
		return state, fmt.Errorf("graph %q: %w", e.graph.name, ErrNoParentGraph)
	}
	return state, nil
}

// run executes the graph. A non-nil command is a command addressed to
// the parent graph; state is then the state at the point it was raised.
func (e *Executor) run(ctx context.Context, input State) (State, *Command, error) {
	runID := uuid.NewString()
	ctx, span := trace.Tracer.Start(ctx, "graph.invoke "+e.graph.name,
		oteltrace.WithAttributes(
			attribute.String(AttrGraphName, e.graph.name),
			attribute.String(AttrRunID, runID),
		))
	defer span.End()

	state, cmd, err := e.loop(ctx, runID, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return state, cmd, err
}

func (e *Executor) loop(ctx context.Context, runID string, input State) (State, *Command, error) {
	schema := e.graph.schema
	state := schema.ApplyUpdate(schema.InitState(), input)
	if err := schema.Validate(state); err != nil {
		return state, nil, fmt.Errorf("invalid input state: %w", err)
	}

	next, err := e.nextFromEdges(ctx, Start, state)
	if err != nil {
		return state, nil, err
	}
	for step := 0; next != End; step++ {
		if err := ctx.Err(); err != nil {
			return state, nil, err
		}
		if step >= e.maxSteps {
			return state, nil, fmt.Errorf("graph %q after %d steps: %w", e.graph.name, step, ErrMaxStepsExceeded)
		}
		node, ok := e.graph.nodes[next]
		if !ok {
			return state, nil, fmt.Errorf("node %s not found", next)
		}

		result, err := e.runNode(ctx, runID, step, node, state)
		if err != nil {
			return state, nil, fmt.Errorf("error executing node %s: %w", node.ID, err)
		}

		switch r := result.(type) {
		case nil:
		case State:
			state = schema.ApplyUpdate(state, r)
		case map[string]any:
			state = schema.ApplyUpdate(state, State(r))
		case *Command:
			if r == nil {
				break
			}
			switch r.Graph {
			case "":
			case ParentGraph:
				return state, r, nil
			default:
				return state, nil, fmt.Errorf("node %s: unknown command graph %q", node.ID, r.Graph)
			}
			state = schema.ApplyUpdate(state, r.Update)
			if r.GoTo != "" {
				if next, err = e.resolveGoTo(node, r.GoTo); err != nil {
					return state, nil, err
				}
				continue
			}
		default:
			return state, nil, fmt.Errorf("node %s returned unsupported result type %T", node.ID, result)
		}

		if next, err = e.nextFromEdges(ctx, node.ID, state); err != nil {
			return state, nil, err
		}
	}
	return state, nil, nil
}

func (e *Executor) runNode(
	ctx context.Context,
	runID string,
	step int,
	node *Node,
	state State,
) (any, error) {
	ctx, span := trace.Tracer.Start(ctx, "graph.node "+node.ID,
		oteltrace.WithAttributes(
			attribute.String(AttrRunID, runID),
			attribute.String(AttrNodeID, node.ID),
			attribute.String(AttrNodeType, string(node.Type)),
			attribute.Int(AttrStep, step),
		))
	defer span.End()

	log.Debugf("graph %q run %s: step %d node %s", e.graph.name, runID, step, node.ID)
	metric.RecordNodeRun(ctx, node.ID, string(node.Type))
	result, err := node.Function(ctx, state.Clone())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// resolveGoTo maps a command target through the node's ends, then node IDs.
func (e *Executor) resolveGoTo(node *Node, goTo string) (string, error) {
	if to, ok := node.ends[goTo]; ok {
		return to, nil
	}
	if e.graph.hasTarget(goTo) {
		return goTo, nil
	}
	return "", fmt.Errorf("node %s: command target %q does not exist", node.ID, goTo)
}

// nextFromEdges follows the outgoing edge of from. A node without
// outgoing edges ends the run.
func (e *Executor) nextFromEdges(ctx context.Context, from string, state State) (string, error) {
	if edge, ok := e.graph.conditionalEdges[from]; ok {
		branch, err := edge.Condition(ctx, state)
		if err != nil {
			return "", fmt.Errorf("condition evaluation failed: %w", err)
		}
		to := branch
		if edge.PathMap != nil {
			mapped, ok := edge.PathMap[branch]
			if !ok {
				return "", fmt.Errorf("condition on %s returned unmapped branch %q", from, branch)
			}
			to = mapped
		}
		if !e.graph.hasTarget(to) {
			return "", fmt.Errorf("condition selected unreachable node %s", to)
		}
		return to, nil
	}
	if edges := e.graph.edges[from]; len(edges) > 0 {
		return edges[0].To, nil
	}
	return End, nil
}
