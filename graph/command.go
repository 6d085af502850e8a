//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

// ParentGraph addresses a Command to the graph enclosing the current one.
const ParentGraph = "__parent__"

// Command combines a state update with routing. Nodes return it instead
// of a plain State to choose the next node themselves.
type Command struct {
	// Update is merged into the state through the schema reducers.
	Update State
	// GoTo is the next node. It is resolved through the node's ends map
	// first, then against node IDs. Empty falls back to the edges.
	GoTo string
	// Graph selects the graph the command applies to. Empty means the
	// current graph; ParentGraph bubbles it one level up.
	Graph string
}
