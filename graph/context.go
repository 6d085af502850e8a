//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "context"

type stateContextKey struct{}

// NewStateContext returns a context carrying state. Tools nodes use it to
// expose the graph state to the tools they call.
func NewStateContext(ctx context.Context, state State) context.Context {
	return context.WithValue(ctx, stateContextKey{}, state)
}

// StateFromContext returns the state injected by a tools node.
func StateFromContext(ctx context.Context) (State, bool) {
	state, ok := ctx.Value(stateContextKey{}).(State)
	return state, ok
}
