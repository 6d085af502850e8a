//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	openaiopt "github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

type stubTool struct{ name string }

func (s stubTool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name:        s.name,
		Description: "stub " + s.name,
		InputSchema: &tool.Schema{Type: "object"},
	}
}

const toolCallCompletion = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-test",
  "choices": [{
    "index": 0,
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "transfer_to_bob", "arguments": "{}"}
      }]
    },
    "finish_reason": "tool_calls"
  }],
  "usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}
}`

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New("gpt-test",
		WithAPIKey("test-key"),
		WithBaseURL(server.URL+"/"),
		WithOpenAIOptions(openaiopt.WithMaxRetries(0)),
	)
}

func collect(t *testing.T, ch <-chan *model.Response) []*model.Response {
	t.Helper()
	var out []*model.Response
	for rsp := range ch {
		out = append(out, rsp)
	}
	return out
}

func TestGenerateContent_ToolCalls(t *testing.T) {
	var captured map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"), r.URL.Path)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallCompletion))
	})

	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{
			model.NewSystemMessage("be helpful"),
			model.NewUserMessage("hi"),
			{
				Role: model.RoleAssistant,
				ToolCalls: []model.ToolCall{{
					ID:       "call_0",
					Type:     "function",
					Function: model.FunctionDefinitionParam{Name: "lookup", Arguments: []byte(`{}`)},
				}},
			},
			model.NewToolMessage("call_0", "lookup", "found"),
		},
		Tools: map[string]tool.Tool{
			"transfer_to_bob": stubTool{name: "transfer_to_bob"},
			"lookup":          stubTool{name: "lookup"},
		},
	})
	require.NoError(t, err)

	responses := collect(t, ch)
	require.Len(t, responses, 1)
	rsp := responses[0]
	require.Nil(t, rsp.Error)
	assert.True(t, rsp.Done)
	assert.Equal(t, "chatcmpl-1", rsp.ID)
	require.Len(t, rsp.Choices, 1)
	calls := rsp.Choices[0].Message.ToolCalls
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.Equal(t, "transfer_to_bob", calls[0].Function.Name)
	assert.Equal(t, "{}", string(calls[0].Function.Arguments))
	require.NotNil(t, rsp.Choices[0].FinishReason)
	assert.Equal(t, "tool_calls", *rsp.Choices[0].FinishReason)
	require.NotNil(t, rsp.Usage)
	assert.Equal(t, 5, rsp.Usage.TotalTokens)

	assert.Equal(t, "gpt-test", captured["model"])
	messages, ok := captured["messages"].([]any)
	require.True(t, ok)
	require.Len(t, messages, 4)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
	assert.Equal(t, "tool", messages[3].(map[string]any)["role"])
	assert.Equal(t, "call_0", messages[3].(map[string]any)["tool_call_id"])

	tools, ok := captured["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 2)
	first := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "lookup", first["name"])
	params := first["parameters"].(map[string]any)
	assert.Equal(t, "object", params["type"])
	assert.Contains(t, params, "properties")
}

func TestGenerateContent_APIError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad request","type":"invalid_request_error"}}`))
	})

	ch, err := m.GenerateContent(context.Background(), &model.Request{
		Messages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	responses := collect(t, ch)
	require.Len(t, responses, 1)
	require.NotNil(t, responses[0].Error)
	assert.Equal(t, model.ErrorTypeAPIError, responses[0].Error.Type)
	assert.True(t, responses[0].Done)
}

func TestGenerateContent_NilRequest(t *testing.T) {
	m := New("gpt-test", WithAPIKey("k"))
	_, err := m.GenerateContent(context.Background(), nil)
	require.Error(t, err)
	assert.Equal(t, "gpt-test", m.Info().Name)
}

func TestToFunctionParameters(t *testing.T) {
	params, err := toFunctionParameters(nil)
	require.NoError(t, err)
	assert.Equal(t, "object", params["type"])
	assert.Equal(t, map[string]any{}, params["properties"])

	params, err = toFunctionParameters(&tool.Schema{
		Type:       "object",
		Properties: map[string]*tool.Schema{"q": {Type: "string"}},
		Required:   []string{"q"},
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"q"}, params["required"])
}
