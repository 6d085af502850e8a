//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "errors"

var (
	// ErrMaxStepsExceeded is returned when a run takes more node steps
	// than the executor allows.
	ErrMaxStepsExceeded = errors.New("max steps exceeded")
	// ErrNoParentGraph is returned when a command addressed to the parent
	// graph reaches the outermost graph.
	ErrNoParentGraph = errors.New("command targets parent graph but there is none")
)
