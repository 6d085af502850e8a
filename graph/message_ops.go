//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package graph

import "trpc.group/trpc-go/trpc-swarm-go/model"

// MessageOp transforms the message log. MessageReducer applies it.
type MessageOp interface {
	Apply([]model.Message) []model.Message
}

// AppendMessages appends Items.
type AppendMessages struct {
	Items []model.Message
}

// Apply implements MessageOp.
func (op AppendMessages) Apply(messages []model.Message) []model.Message {
	return append(messages, op.Items...)
}

// ReplaceAllMessages replaces the whole log with Items.
type ReplaceAllMessages struct {
	Items []model.Message
}

// Apply implements MessageOp.
func (op ReplaceAllMessages) Apply([]model.Message) []model.Message {
	return append([]model.Message(nil), op.Items...)
}

// RemoveAllMessages clears the log.
type RemoveAllMessages struct{}

// Apply implements MessageOp.
func (RemoveAllMessages) Apply([]model.Message) []model.Message {
	return nil
}

// ReplaceLastUser rewrites the content of the last user message, or
// appends a user message when there is none. The input slice is not
// modified.
type ReplaceLastUser struct {
	Content string
}

// Apply implements MessageOp.
func (op ReplaceLastUser) Apply(messages []model.Message) []model.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == model.RoleUser {
			out := append([]model.Message(nil), messages...)
			out[i].Content = op.Content
			return out
		}
	}
	return append(append([]model.Message(nil), messages...), model.NewUserMessage(op.Content))
}
