//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package model defines the language-model abstraction used by LLM nodes.
package model

import (
	"context"

	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// Model is a chat-completion capable language model.
type Model interface {
	// GenerateContent sends request and streams responses on the returned
	// channel. The final response has Done set. The channel is closed
	// when generation ends.
	GenerateContent(ctx context.Context, request *Request) (<-chan *Response, error)
	// Info returns the model's basic information.
	Info() Info
}

// Info contains basic information about a model.
type Info struct {
	Name string
}

// GenerationConfig contains sampling parameters.
type GenerationConfig struct {
	// MaxTokens caps the completion length.
	MaxTokens *int `json:"max_tokens,omitempty"`
	// Temperature controls randomness.
	Temperature *float64 `json:"temperature,omitempty"`
	// Stream asks for incremental responses. Providers may ignore it.
	Stream bool `json:"stream"`
}

// Request is the input to a model call.
type Request struct {
	// Messages is the conversation so far.
	Messages []Message `json:"messages"`
	// Tools are the tools the model may call, keyed by name.
	Tools map[string]tool.Tool `json:"-"`

	GenerationConfig `json:",inline"`
}
