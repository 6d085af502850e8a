//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

// State map keys used by the message-oriented nodes.
const (
	StateKeyMessages     = "messages"
	StateKeyUserInput    = "user_input"
	StateKeyLastResponse = "last_response"
)

// Span attribute keys.
const (
	AttrGraphName = "graph.name"
	AttrRunID     = "graph.run_id"
	AttrNodeID    = "graph.node.id"
	AttrNodeType  = "graph.node.type"
	AttrStep      = "graph.step"
)
