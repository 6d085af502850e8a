//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool defines the tool abstraction exposed to language models.
package tool

import "context"

// Tool is the interface every tool implements.
type Tool interface {
	// Declaration returns the metadata describing the tool to a model.
	Declaration() *Declaration
}

// CallableTool is a Tool that can be invoked with JSON arguments.
type CallableTool interface {
	Tool
	// Call executes the tool. jsonArgs is the raw argument object produced
	// by the model.
	Call(ctx context.Context, jsonArgs []byte) (any, error)
}

// Declaration describes a tool to a model.
type Declaration struct {
	// Name is the unique tool name. Providers usually require it to match
	// ^[a-zA-Z0-9_-]+$.
	Name string `json:"name"`
	// Description tells the model when to use the tool.
	Description string `json:"description"`
	// InputSchema is the JSON schema of the arguments.
	InputSchema *Schema `json:"inputSchema"`
	// OutputSchema is the JSON schema of the result, if known.
	OutputSchema *Schema `json:"outputSchema,omitempty"`
}

// Schema is a subset of JSON schema sufficient for tool declarations.
type Schema struct {
	Type                 string             `json:"type,omitempty"`
	Description          string             `json:"description,omitempty"`
	Properties           map[string]*Schema `json:"properties,omitempty"`
	Required             []string           `json:"required,omitempty"`
	Items                *Schema            `json:"items,omitempty"`
	AdditionalProperties any                `json:"additionalProperties,omitempty"`
	Enum                 []any              `json:"enum,omitempty"`
	Default              any                `json:"default,omitempty"`
	Ref                  string             `json:"$ref,omitempty"`
	Defs                 map[string]*Schema `json:"$defs,omitempty"`
}
