//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

const schemaResource = "tool-input.json"

// Validator checks raw tool arguments against a compiled input schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles s. A nil schema compiles to nil and a nil
// *Validator accepts everything.
func NewValidator(s *tool.Schema) (*Validator, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal input schema: %w", err)
	}
	// jsonschema.UnmarshalJSON keeps numbers as json.Number, which the
	// compiler requires.
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("unmarshal input schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaResource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(schemaResource)
	if err != nil {
		return nil, fmt.Errorf("compile input schema: %w", err)
	}
	return &Validator{schema: compiled}, nil
}

// Validate reports whether args satisfies the schema.
func (v *Validator) Validate(args []byte) error {
	if v == nil {
		return nil
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return fmt.Errorf("invalid JSON arguments: %w", err)
	}
	if err := v.schema.Validate(inst); err != nil {
		return fmt.Errorf("arguments do not match schema: %w", err)
	}
	return nil
}

// NormalizeArgs maps empty or whitespace-only arguments to "{}".
// Models omit arguments for parameterless tools.
func NormalizeArgs(args []byte) []byte {
	if len(bytes.TrimSpace(args)) == 0 {
		return []byte("{}")
	}
	return args
}
