//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package tool

// MetadataProvider is implemented by tools that carry framework-level
// metadata. Metadata is never sent to the model.
type MetadataProvider interface {
	Metadata() map[string]any
}

// Metadata returns the metadata of t, or nil when t carries none.
func Metadata(t Tool) map[string]any {
	if t == nil {
		return nil
	}
	p, ok := t.(MetadataProvider)
	if !ok {
		return nil
	}
	return p.Metadata()
}
