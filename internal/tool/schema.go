//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package tool provides internal utilities for tool schema generation and
// argument validation.
package tool

import (
	"reflect"
	"strings"

	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// GenerateJSONSchema generates a JSON schema from a reflect.Type.
// A nil type (e.g. an interface type parameter) yields an open object.
func GenerateJSONSchema(t reflect.Type) *tool.Schema {
	if t == nil {
		return &tool.Schema{Type: "object"}
	}
	return generate(t, map[reflect.Type]bool{})
}

func generate(t reflect.Type, inProgress map[reflect.Type]bool) *tool.Schema {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.String:
		return &tool.Schema{Type: "string"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &tool.Schema{Type: "integer"}
	case reflect.Float32, reflect.Float64:
		return &tool.Schema{Type: "number"}
	case reflect.Bool:
		return &tool.Schema{Type: "boolean"}
	case reflect.Slice, reflect.Array:
		return &tool.Schema{Type: "array", Items: generate(t.Elem(), inProgress)}
	case reflect.Map:
		return &tool.Schema{
			Type:                 "object",
			AdditionalProperties: generate(t.Elem(), inProgress),
		}
	case reflect.Struct:
		// Recursive structs are cut off as open objects.
		if inProgress[t] {
			return &tool.Schema{Type: "object"}
		}
		inProgress[t] = true
		defer delete(inProgress, t)
		return structSchema(t, inProgress)
	default:
		return &tool.Schema{}
	}
}

func structSchema(t reflect.Type, inProgress map[reflect.Type]bool) *tool.Schema {
	schema := &tool.Schema{Type: "object", Properties: map[string]*tool.Schema{}}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonFieldName(field)
		if skip {
			continue
		}
		fieldSchema := generate(field.Type, inProgress)
		requiredByTag := applySchemaTag(field.Tag.Get("jsonschema"), fieldSchema)
		if requiredByTag || (field.Type.Kind() != reflect.Ptr && !omitEmpty) {
			schema.Required = append(schema.Required, name)
		}
		schema.Properties[name] = fieldSchema
	}
	return schema
}

func jsonFieldName(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	name = field.Name
	if tag == "" {
		return name, false, false
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		name = parts[0]
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// applySchemaTag understands `jsonschema:"description=...,enum=a,enum=b,required"`.
// Enum values are kept as strings.
func applySchemaTag(tag string, schema *tool.Schema) bool {
	if tag == "" {
		return false
	}
	required := false
	for _, item := range strings.Split(tag, ",") {
		key, value, found := strings.Cut(item, "=")
		switch {
		case !found && key == "required":
			required = true
		case key == "description":
			schema.Description = value
		case key == "enum":
			schema.Enum = append(schema.Enum, value)
		}
	}
	return required
}
