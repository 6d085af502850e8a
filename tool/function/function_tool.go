//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package function provides function-based tool implementations.
package function

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"reflect"

	itool "trpc.group/trpc-go/trpc-swarm-go/internal/tool"
	"trpc.group/trpc-go/trpc-swarm-go/log"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// FunctionTool implements the CallableTool interface for executing functions with arguments.
// Arguments are validated against the input schema before they are decoded.
type FunctionTool[I, O any] struct {
	name         string
	description  string
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
	metadata     map[string]any
	validator    *itool.Validator
	fn           func(context.Context, I) (O, error)
}

// Option is a function that configures a FunctionTool.
type Option func(*functionToolOptions)

type functionToolOptions struct {
	name         string
	description  string
	metadata     map[string]any
	inputSchema  *tool.Schema
	outputSchema *tool.Schema
}

// WithName sets the name of the function tool.
//
// Note: Tool names must comply with LLM API requirements for compatibility.
// Use only ^[a-zA-Z0-9_-]+ to be accepted by every provider.
func WithName(name string) Option {
	return func(opts *functionToolOptions) {
		opts.name = name
	}
}

// WithDescription sets the description of the function tool.
func WithDescription(description string) Option {
	return func(opts *functionToolOptions) {
		opts.description = description
	}
}

// WithMetadata attaches framework metadata to the tool. The map is copied.
func WithMetadata(metadata map[string]any) Option {
	return func(opts *functionToolOptions) {
		opts.metadata = maps.Clone(metadata)
	}
}

// WithInputSchema sets a custom input schema for the function tool.
// When provided, the automatic schema generation will be skipped.
func WithInputSchema(schema *tool.Schema) Option {
	return func(opts *functionToolOptions) {
		opts.inputSchema = schema
	}
}

// WithOutputSchema sets a custom output schema for the function tool.
func WithOutputSchema(schema *tool.Schema) Option {
	return func(opts *functionToolOptions) {
		opts.outputSchema = schema
	}
}

// NewFunctionTool wraps fn as a tool. Input and output schemas are derived
// from I and O unless overridden.
func NewFunctionTool[I, O any](fn func(context.Context, I) (O, error), opts ...Option) *FunctionTool[I, O] {
	options := &functionToolOptions{}
	for _, opt := range opts {
		opt(options)
	}
	if options.name == "" {
		log.Warnf("FunctionTool: name is empty")
	}
	if options.description == "" {
		log.Warnf("FunctionTool: description is empty")
	}

	iSchema := options.inputSchema
	if iSchema == nil {
		iSchema = itool.GenerateJSONSchema(reflect.TypeOf((*I)(nil)).Elem())
	}
	oSchema := options.outputSchema
	if oSchema == nil {
		oSchema = itool.GenerateJSONSchema(reflect.TypeOf((*O)(nil)).Elem())
	}

	validator, err := itool.NewValidator(iSchema)
	if err != nil {
		log.Warnf("FunctionTool %s: argument validation disabled: %v", options.name, err)
		validator = nil
	}

	return &FunctionTool[I, O]{
		name:         options.name,
		description:  options.description,
		inputSchema:  iSchema,
		outputSchema: oSchema,
		metadata:     options.metadata,
		validator:    validator,
		fn:           fn,
	}
}

// Call validates jsonArgs, decodes them into I and calls the function.
func (ft *FunctionTool[I, O]) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	args := itool.NormalizeArgs(jsonArgs)
	if err := ft.validator.Validate(args); err != nil {
		return nil, fmt.Errorf("tool %s: %w", ft.name, err)
	}
	var input I
	if err := json.Unmarshal(args, &input); err != nil {
		return nil, fmt.Errorf("tool %s: decode arguments: %w", ft.name, err)
	}
	return ft.fn(ctx, input)
}

// Declaration returns the tool's declaration information.
func (ft *FunctionTool[I, O]) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:         ft.name,
		Description:  ft.description,
		InputSchema:  ft.inputSchema,
		OutputSchema: ft.outputSchema,
	}
}

// Metadata implements tool.MetadataProvider.
func (ft *FunctionTool[I, O]) Metadata() map[string]any {
	return maps.Clone(ft.metadata)
}
