//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"trpc.group/trpc-go/trpc-swarm-go/log"
	"trpc.group/trpc-go/trpc-swarm-go/model"
)

// State represents the state that flows through the graph.
type State map[string]any

// Clone creates a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// StateReducer merges an update into the existing value of a field.
type StateReducer func(existing, update any) any

// StateField describes one field of the state.
type StateField struct {
	// Type is the expected Go type. Nil disables type checks.
	Type reflect.Type
	// Reducer merges updates. Defaults to DefaultReducer.
	Reducer StateReducer
	// Default produces the initial value. Optional.
	Default func() any
	// Required fields must be present after the input is applied.
	Required bool
}

// StateSchema declares the fields of a graph state and how they merge.
type StateSchema struct {
	mu     sync.RWMutex
	Fields map[string]StateField
}

// NewStateSchema creates an empty schema.
func NewStateSchema() *StateSchema {
	return &StateSchema{Fields: make(map[string]StateField)}
}

// AddField adds or replaces a field.
func (s *StateSchema) AddField(name string, field StateField) *StateSchema {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field.Reducer == nil {
		field.Reducer = DefaultReducer
	}
	s.Fields[name] = field
	return s
}

// Field returns the named field.
func (s *StateSchema) Field(name string) (StateField, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	field, ok := s.Fields[name]
	return field, ok
}

// HasField reports whether the schema declares name.
func (s *StateSchema) HasField(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// FieldNames returns the declared field names, sorted.
func (s *StateSchema) FieldNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns an independent copy of the schema.
func (s *StateSchema) Clone() *StateSchema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := NewStateSchema()
	for name, field := range s.Fields {
		clone.Fields[name] = field
	}
	return clone
}

// InitState returns a state holding every field default.
func (s *StateSchema) InitState() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := make(State, len(s.Fields))
	for name, field := range s.Fields {
		if field.Default != nil {
			state[name] = field.Default()
		}
	}
	return state
}

// ApplyUpdate merges update into state using the field reducers. Keys not
// declared by the schema are overwritten.
func (s *StateSchema) ApplyUpdate(state, update State) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := state.Clone()
	for key, value := range update {
		field, ok := s.Fields[key]
		if !ok {
			result[key] = value
			continue
		}
		result[key] = field.Reducer(result[key], value)
	}
	return result
}

// Validate checks required fields and declared types.
func (s *StateSchema) Validate(state State) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for name, field := range s.Fields {
		value, ok := state[name]
		if !ok || value == nil {
			if field.Required {
				return fmt.Errorf("required field %s is missing", name)
			}
			continue
		}
		if field.Type != nil && !reflect.TypeOf(value).AssignableTo(field.Type) {
			return fmt.Errorf("field %s has type %T, expected %s", name, value, field.Type)
		}
	}
	return nil
}

// DefaultReducer overwrites the existing value.
func DefaultReducer(existing, update any) any {
	return update
}

// MergeReducer merges map[string]any values; update keys win.
func MergeReducer(existing, update any) any {
	existingMap, ok1 := existing.(map[string]any)
	updateMap, ok2 := update.(map[string]any)
	if !ok1 || !ok2 {
		return update
	}
	result := make(map[string]any, len(existingMap)+len(updateMap))
	for k, v := range existingMap {
		result[k] = v
	}
	for k, v := range updateMap {
		result[k] = v
	}
	return result
}

// AppendReducer appends slice updates to slice values of the same type.
func AppendReducer(existing, update any) any {
	if existing == nil {
		return update
	}
	ev, uv := reflect.ValueOf(existing), reflect.ValueOf(update)
	if ev.Kind() != reflect.Slice || uv.Kind() != reflect.Slice || ev.Type() != uv.Type() {
		return update
	}
	result := reflect.MakeSlice(ev.Type(), 0, ev.Len()+uv.Len())
	result = reflect.AppendSlice(result, ev)
	result = reflect.AppendSlice(result, uv)
	return result.Interface()
}

// MessageReducer merges message updates. It accepts a message, a slice of
// messages (appended), a MessageOp or a slice of MessageOps.
func MessageReducer(existing, update any) any {
	var messages []model.Message
	switch v := existing.(type) {
	case []model.Message:
		messages = append([]model.Message(nil), v...)
	case nil:
	default:
		log.Warnf("message reducer: unexpected existing value %T, resetting", existing)
	}

	switch u := update.(type) {
	case nil:
		return messages
	case model.Message:
		return append(messages, u)
	case []model.Message:
		return append(messages, u...)
	case MessageOp:
		return u.Apply(messages)
	case []MessageOp:
		for _, op := range u {
			messages = op.Apply(messages)
		}
		return messages
	default:
		log.Warnf("message reducer: unsupported update %T ignored", update)
		return messages
	}
}

// GetStateValue returns state[key] as T.
func GetStateValue[T any](state State, key string) (T, bool) {
	var zero T
	if state == nil {
		return zero, false
	}
	value, ok := state[key]
	if !ok {
		return zero, false
	}
	typed, ok := value.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// MessagesStateSchema creates a schema for message-based workflows.
func MessagesStateSchema() *StateSchema {
	schema := NewStateSchema()
	schema.AddField(StateKeyMessages, StateField{
		Type:    reflect.TypeOf([]model.Message{}),
		Reducer: MessageReducer,
		Default: func() any { return []model.Message{} },
	})
	schema.AddField(StateKeyUserInput, StateField{
		Type:    reflect.TypeOf(""),
		Reducer: DefaultReducer,
	})
	schema.AddField(StateKeyLastResponse, StateField{
		Type:    reflect.TypeOf(""),
		Reducer: DefaultReducer,
	})
	return schema
}
