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
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"

	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/telemetry/trace"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

// NewLLMNodeFunc creates a NodeFunc that calls llmModel with the message
// log. The instruction is sent as a system message but not stored in the
// state. A pending user_input is appended as a user message and consumed.
func NewLLMNodeFunc(llmModel model.Model, instruction string, tools map[string]tool.Tool) NodeFunc {
	return func(ctx context.Context, state State) (any, error) {
		messages, _ := GetStateValue[[]model.Message](state, StateKeyMessages)

		var newMessages []model.Message
		if input, ok := GetStateValue[string](state, StateKeyUserInput); ok && input != "" {
			newMessages = append(newMessages, model.NewUserMessage(input))
		}

		requestMessages := make([]model.Message, 0, len(messages)+len(newMessages)+1)
		if instruction != "" {
			requestMessages = append(requestMessages, model.NewSystemMessage(instruction))
		}
		requestMessages = append(requestMessages, messages...)
		requestMessages = append(requestMessages, newMessages...)

		request := &model.Request{
			Messages: requestMessages,
			Tools:    tools,
		}
		responseChan, err := llmModel.GenerateContent(ctx, request)
		if err != nil {
			return nil, fmt.Errorf("failed to generate content: %w", err)
		}

		var finalResponse *model.Response
		var toolCalls []model.ToolCall
		for response := range responseChan {
			if response.Error != nil {
				return nil, fmt.Errorf("model API error: %s", response.Error.Message)
			}
			if len(response.Choices) > 0 && len(response.Choices[0].Message.ToolCalls) > 0 {
				toolCalls = append(toolCalls, response.Choices[0].Message.ToolCalls...)
			}
			finalResponse = response
		}
		if finalResponse == nil || len(finalResponse.Choices) == 0 {
			return nil, errors.New("no response received from model")
		}

		content := finalResponse.Choices[0].Message.Content
		newMessages = append(newMessages, model.Message{
			Role:      model.RoleAssistant,
			Content:   content,
			ToolCalls: toolCalls,
		})
		update := State{
			StateKeyMessages:     newMessages,
			StateKeyLastResponse: content,
		}
		if _, ok := state[StateKeyUserInput]; ok {
			update[StateKeyUserInput] = ""
		}
		return update, nil
	}
}

// NewToolsNodeFunc creates a NodeFunc executing the tool calls of the last
// assistant message in order. Each call sees the graph state, including
// the tool messages produced earlier in the batch, through
// StateFromContext and its call ID through tool.ToolCallIDFromContext.
// A tool returning a *Command stops the batch and the command becomes the
// node result; the calls after it are answered with a "not executed" tool
// message so that every call of the assistant message has a response.
func NewToolsNodeFunc(tools map[string]tool.Tool) NodeFunc {
	return func(ctx context.Context, state State) (any, error) {
		messages, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
		if len(messages) == 0 {
			return nil, errors.New("no messages in state")
		}
		lastMessage := messages[len(messages)-1]
		if lastMessage.Role != model.RoleAssistant {
			return nil, errors.New("last message is not an assistant message")
		}

		newMessages := make([]model.Message, 0, len(lastMessage.ToolCalls))
		for i, toolCall := range lastMessage.ToolCalls {
			id, name := toolCall.ID, toolCall.Function.Name
			t := tools[name]
			if t == nil {
				return nil, fmt.Errorf("tool %s not found", name)
			}
			callableTool, ok := t.(tool.CallableTool)
			if !ok {
				return nil, fmt.Errorf("tool %s is not callable", name)
			}

			callState := state.Clone()
			callState[StateKeyMessages] = append(append([]model.Message(nil), messages...), newMessages...)
			callCtx := NewStateContext(tool.NewToolCallContext(ctx, id), callState)

			result, err := callTool(callCtx, callableTool, name, toolCall.Function.Arguments)
			if err != nil {
				return nil, fmt.Errorf("tool %s call failed: %w", name, err)
			}
			if cmd, ok := result.(*Command); ok && cmd != nil {
				answered := append(append([]model.Message(nil), messages...), newMessages...)
				return answerSkippedCalls(cmd, answered, lastMessage.ToolCalls[i+1:]), nil
			}
			content, err := toolResultContent(result)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool result: %w", err)
			}
			newMessages = append(newMessages, model.NewToolMessage(id, name, content))
		}
		return State{StateKeyMessages: newMessages}, nil
	}
}

// answerSkippedCalls returns cmd with a tool message for each skipped call
// added to its messages update. history is the message log as the command saw
// it and is used when the command carries no messages update.
func answerSkippedCalls(cmd *Command, history []model.Message, skipped []model.ToolCall) *Command {
	if len(skipped) == 0 {
		return cmd
	}
	content := "Not executed: the tool batch was interrupted"
	if cmd.GoTo != "" {
		content = "Not executed: control was transferred to " + cmd.GoTo
	}
	notices := make([]model.Message, 0, len(skipped))
	for _, call := range skipped {
		notices = append(notices, model.NewToolMessage(call.ID, call.Function.Name, content))
	}

	out := *cmd
	out.Update = cmd.Update.Clone()
	switch u := out.Update[StateKeyMessages].(type) {
	case nil:
		out.Update[StateKeyMessages] = ReplaceAllMessages{Items: append(history, notices...)}
	case ReplaceAllMessages:
		out.Update[StateKeyMessages] = ReplaceAllMessages{
			Items: append(append([]model.Message(nil), u.Items...), notices...),
		}
	case []model.Message:
		out.Update[StateKeyMessages] = append(append([]model.Message(nil), u...), notices...)
	case model.Message:
		out.Update[StateKeyMessages] = append([]model.Message{u}, notices...)
	case AppendMessages:
		out.Update[StateKeyMessages] = AppendMessages{
			Items: append(append([]model.Message(nil), u.Items...), notices...),
		}
	default:
		out.Update[StateKeyMessages] = []MessageOp{toMessageOp(u), AppendMessages{Items: notices}}
	}
	return &out
}

func toMessageOp(update any) MessageOp {
	switch u := update.(type) {
	case MessageOp:
		return u
	case []MessageOp:
		return messageOps(u)
	default:
		return messageOps(nil)
	}
}

// messageOps applies a sequence of ops as one.
type messageOps []MessageOp

func (ops messageOps) Apply(messages []model.Message) []model.Message {
	for _, op := range ops {
		messages = op.Apply(messages)
	}
	return messages
}

func callTool(ctx context.Context, t tool.CallableTool, name string, args []byte) (any, error) {
	ctx, span := trace.Tracer.Start(ctx, "execute_tool "+name,
		oteltrace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()
	result, err := t.Call(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func toolResultContent(result any) (string, error) {
	if s, ok := result.(string); ok {
		return s, nil
	}
	content, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// newSubgraphNodeFunc runs subgraph on the parent state. The message log
// returned to the parent replaces the parent's log, since the subgraph
// started from a copy of it. A command the subgraph addresses to its
// parent is returned as this node's command, on top of the subgraph's
// state at the point it was raised.
func newSubgraphNodeFunc(subgraph *Graph) NodeFunc {
	return func(ctx context.Context, state State) (any, error) {
		input := make(State)
		fields := subgraph.schema.FieldNames()
		if len(fields) == 0 {
			input = state.Clone()
		}
		for _, name := range fields {
			if value, ok := state[name]; ok {
				input[name] = value
			}
		}

		executor, err := NewExecutor(subgraph)
		if err != nil {
			return nil, err
		}
		final, cmd, err := executor.run(ctx, input)
		if err != nil {
			return nil, err
		}
		update := subgraphUpdate(final)
		if cmd == nil {
			return update, nil
		}
		for key, value := range cmd.Update {
			update[key] = value
		}
		return &Command{Update: update, GoTo: cmd.GoTo}, nil
	}
}

func subgraphUpdate(final State) State {
	update := make(State, len(final))
	for key, value := range final {
		if msgs, ok := value.([]model.Message); ok && key == StateKeyMessages {
			update[key] = ReplaceAllMessages{Items: msgs}
			continue
		}
		update[key] = value
	}
	return update
}
