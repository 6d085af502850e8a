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
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-swarm-go/model"
	"trpc.group/trpc-go/trpc-swarm-go/tool"
)

type echoTool struct{}

func (echoTool) Declaration() *tool.Declaration {
	return &tool.Declaration{Name: "echo", InputSchema: &tool.Schema{Type: "object"}}
}

func (echoTool) Call(ctx context.Context, args []byte) (any, error) {
	return map[string]string{"echo": string(args)}, nil
}

// probeTool records what a tools node injects into the call context.
type probeTool struct {
	name    string
	seen    []State
	callIDs []string
	result  func(ctx context.Context) any
}

func (p *probeTool) Declaration() *tool.Declaration {
	return &tool.Declaration{Name: p.name}
}

func (p *probeTool) Call(ctx context.Context, args []byte) (any, error) {
	state, _ := StateFromContext(ctx)
	id, _ := tool.ToolCallIDFromContext(ctx)
	p.seen = append(p.seen, state)
	p.callIDs = append(p.callIDs, id)
	if p.result != nil {
		return p.result(ctx), nil
	}
	return "ok", nil
}

func counterSchema() *StateSchema {
	return MessagesStateSchema().AddField("count", StateField{
		Type:    reflect.TypeOf(0),
		Reducer: func(existing, update any) any { e, _ := existing.(int); return e + update.(int) },
		Default: func() any { return 0 },
	})
}

func increment(ctx context.Context, state State) (any, error) {
	return State{"count": 1}, nil
}

func mustExecutor(t *testing.T, sg *StateGraph, opts ...ExecutorOption) *Executor {
	t.Helper()
	g, err := sg.Compile(WithGraphName("test"))
	require.NoError(t, err)
	exec, err := NewExecutor(g, opts...)
	require.NoError(t, err)
	return exec
}

func assistantCall(id, name, args string) model.Message {
	return model.Message{
		Role: model.RoleAssistant,
		ToolCalls: []model.ToolCall{{
			ID:       id,
			Type:     "function",
			Function: model.FunctionDefinitionParam{Name: name, Arguments: []byte(args)},
		}},
	}
}

func TestNewExecutor_Errors(t *testing.T) {
	_, err := NewExecutor(nil)
	require.Error(t, err)
	_, err = NewExecutor(New(nil))
	require.Error(t, err)
}

func TestExecutor_LinearRun(t *testing.T) {
	exec := mustExecutor(t, NewStateGraph(counterSchema()).
		AddNode("a", increment).
		AddNode("b", increment).
		SetEntryPoint("a").
		AddEdge("a", "b").
		SetFinishPoint("b"))

	final, err := exec.Invoke(context.Background(), State{"count": 10})
	require.NoError(t, err)
	assert.Equal(t, 12, final["count"])
}

func TestExecutor_NodeWithoutEdgesEnds(t *testing.T) {
	exec := mustExecutor(t, NewStateGraph(counterSchema()).
		AddNode("a", increment).
		SetEntryPoint("a"))
	final, err := exec.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, final["count"])
}

func TestExecutor_ConditionalLoopAndMaxSteps(t *testing.T) {
	loopUntil := func(limit int) ConditionalFunc {
		return func(ctx context.Context, state State) (string, error) {
			if count, _ := GetStateValue[int](state, "count"); count < limit {
				return "again", nil
			}
			return "stop", nil
		}
	}
	build := func(limit int) *StateGraph {
		return NewStateGraph(counterSchema()).
			AddNode("inc", increment).
			SetEntryPoint("inc").
			AddConditionalEdges("inc", loopUntil(limit), map[string]string{"again": "inc", "stop": End})
	}

	final, err := mustExecutor(t, build(5)).Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 5, final["count"])

	_, err = mustExecutor(t, build(1000), WithMaxSteps(10)).Invoke(context.Background(), nil)
	require.ErrorIs(t, err, ErrMaxStepsExceeded)
}

func TestExecutor_ConditionErrors(t *testing.T) {
	failing := func(ctx context.Context, state State) (string, error) { return "", errors.New("boom") }
	_, err := mustExecutor(t, NewStateGraph(nil).
		AddNode("a", noop).
		AddConditionalEdges(Start, failing, nil)).Invoke(context.Background(), nil)
	require.ErrorContains(t, err, "boom")

	unmapped := func(ctx context.Context, state State) (string, error) { return "zzz", nil }
	_, err = mustExecutor(t, NewStateGraph(nil).
		AddNode("a", noop).
		AddConditionalEdges(Start, unmapped, map[string]string{"a": "a"})).Invoke(context.Background(), nil)
	require.ErrorContains(t, err, "unmapped branch")
}

func TestExecutor_CommandGoTo(t *testing.T) {
	router := func(ctx context.Context, state State) (any, error) {
		return &Command{Update: State{"count": 100}, GoTo: "jump"}, nil
	}
	exec := mustExecutor(t, NewStateGraph(counterSchema()).
		AddNode("router", router, WithEndsMap(map[string]string{"jump": "target"})).
		AddNode("skipped", increment).
		AddNode("target", increment).
		SetEntryPoint("router").
		AddEdge("router", "skipped"))

	final, err := exec.Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 101, final["count"])
}

func TestExecutor_CommandGoToNodeIDAndUnknown(t *testing.T) {
	goTo := func(target string) NodeFunc {
		return func(ctx context.Context, state State) (any, error) { return &Command{GoTo: target}, nil }
	}
	final, err := mustExecutor(t, NewStateGraph(counterSchema()).
		AddNode("router", goTo("target")).
		AddNode("target", increment).
		SetEntryPoint("router")).Invoke(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, final["count"])

	_, err = mustExecutor(t, NewStateGraph(nil).
		AddNode("router", goTo("nowhere")).
		SetEntryPoint("router")).Invoke(context.Background(), nil)
	require.ErrorContains(t, err, `command target "nowhere" does not exist`)
}

func TestExecutor_ParentCommandAtRoot(t *testing.T) {
	exec := mustExecutor(t, NewStateGraph(nil).
		AddNode("a", func(ctx context.Context, state State) (any, error) {
			return &Command{GoTo: "x", Graph: ParentGraph}, nil
		}).
		SetEntryPoint("a"))
	_, err := exec.Invoke(context.Background(), nil)
	require.ErrorIs(t, err, ErrNoParentGraph)
}

func TestExecutor_NodeErrorAndBadResult(t *testing.T) {
	_, err := mustExecutor(t, NewStateGraph(nil).
		AddNode("a", func(ctx context.Context, state State) (any, error) { return nil, errors.New("bad node") }).
		SetEntryPoint("a")).Invoke(context.Background(), nil)
	require.ErrorContains(t, err, "error executing node a: bad node")

	_, err = mustExecutor(t, NewStateGraph(nil).
		AddNode("a", func(ctx context.Context, state State) (any, error) { return 42, nil }).
		SetEntryPoint("a")).Invoke(context.Background(), nil)
	require.ErrorContains(t, err, "unsupported result type int")
}

func TestExecutor_InvalidInput(t *testing.T) {
	exec := mustExecutor(t, NewStateGraph(counterSchema()).AddNode("a", noop).SetEntryPoint("a"))
	_, err := exec.Invoke(context.Background(), State{StateKeyUserInput: 3})
	require.ErrorContains(t, err, "invalid input state")
}

func TestExecutor_CanceledContext(t *testing.T) {
	exec := mustExecutor(t, NewStateGraph(nil).AddNode("a", noop).SetEntryPoint("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Invoke(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestExecutor_LLMAndToolsLoop(t *testing.T) {
	llm := &scriptedModel{replies: []model.Message{
		assistantCall("call-1", "echo", `{"x":1}`),
		model.NewAssistantMessage("all done"),
	}}
	tools := map[string]tool.Tool{"echo": echoTool{}}
	exec := mustExecutor(t, NewStateGraph(MessagesStateSchema()).
		AddLLMNode("agent", llm, "be brief", tools).
		AddToolsNode("tools", tools).
		SetEntryPoint("agent").
		AddToolsConditionalEdges("agent", "tools", End).
		AddEdge("tools", "agent"))

	final, err := exec.Invoke(context.Background(), State{StateKeyUserInput: "hello"})
	require.NoError(t, err)

	messages, ok := GetStateValue[[]model.Message](final, StateKeyMessages)
	require.True(t, ok)
	require.Len(t, messages, 4)
	assert.Equal(t, model.NewUserMessage("hello"), messages[0])
	assert.Equal(t, "echo", messages[1].ToolCalls[0].Function.Name)
	assert.Equal(t, model.RoleTool, messages[2].Role)
	assert.Equal(t, "call-1", messages[2].ToolID)
	assert.JSONEq(t, `{"echo":"{\"x\":1}"}`, messages[2].Content)
	assert.Equal(t, "all done", messages[3].Content)
	assert.Equal(t, "all done", final[StateKeyLastResponse])
	assert.Equal(t, "", final[StateKeyUserInput])

	require.Len(t, llm.requests, 2)
	first := llm.requests[0]
	require.Len(t, first.Messages, 2)
	assert.Equal(t, model.NewSystemMessage("be brief"), first.Messages[0])
	assert.Contains(t, first.Tools, "echo")
	second := llm.requests[1]
	require.Len(t, second.Messages, 4, "instruction is not persisted in state")
}

func TestExecutor_LLMError(t *testing.T) {
	llm := &scriptedModel{err: &model.ResponseError{Message: "quota", Type: model.ErrorTypeAPIError}}
	_, err := mustExecutor(t, NewStateGraph(MessagesStateSchema()).
		AddLLMNode("agent", llm, "", nil).
		SetEntryPoint("agent")).Invoke(context.Background(), nil)
	require.ErrorContains(t, err, "model API error: quota")
}

func TestToolsNode_InjectsStateAndCallID(t *testing.T) {
	probe := &probeTool{name: "probe"}
	fn := NewToolsNodeFunc(map[string]tool.Tool{"probe": probe})

	calls := assistantCall("c1", "probe", "{}")
	calls.ToolCalls = append(calls.ToolCalls, model.ToolCall{
		ID:       "c2",
		Function: model.FunctionDefinitionParam{Name: "probe", Arguments: []byte("{}")},
	})
	state := State{
		StateKeyMessages: []model.Message{model.NewUserMessage("hi"), calls},
		"active_agent":   "alice",
	}

	result, err := fn(context.Background(), state)
	require.NoError(t, err)
	update, ok := result.(State)
	require.True(t, ok)
	newMessages := update[StateKeyMessages].([]model.Message)
	require.Len(t, newMessages, 2)
	assert.Equal(t, "ok", newMessages[0].Content)

	assert.Equal(t, []string{"c1", "c2"}, probe.callIDs)
	require.Len(t, probe.seen, 2)
	assert.Equal(t, "alice", probe.seen[0]["active_agent"])
	assert.Len(t, probe.seen[0][StateKeyMessages], 2)
	assert.Len(t, probe.seen[1][StateKeyMessages], 3, "second call sees the first tool message")
}

func TestToolsNode_CommandStopsBatch(t *testing.T) {
	cmd := &Command{GoTo: "bob", Graph: ParentGraph}
	handoff := &probeTool{name: "handoff", result: func(ctx context.Context) any { return cmd }}
	other := &probeTool{name: "other"}
	fn := NewToolsNodeFunc(map[string]tool.Tool{"handoff": handoff, "other": other})

	calls := assistantCall("c1", "handoff", "{}")
	calls.ToolCalls = append(calls.ToolCalls, model.ToolCall{
		ID:       "c2",
		Function: model.FunctionDefinitionParam{Name: "other", Arguments: []byte("{}")},
	})
	result, err := fn(context.Background(), State{StateKeyMessages: []model.Message{calls}})
	require.NoError(t, err)
	assert.Empty(t, other.callIDs)

	got, ok := result.(*Command)
	require.True(t, ok)
	assert.Equal(t, "bob", got.GoTo)
	assert.Equal(t, ParentGraph, got.Graph)
	assert.Nil(t, cmd.Update, "the tool's command is not modified")

	// Without a messages update the command carries the full log.
	replace, ok := got.Update[StateKeyMessages].(ReplaceAllMessages)
	require.True(t, ok)
	require.Len(t, replace.Items, 2)
	assert.Equal(t, model.RoleTool, replace.Items[1].Role)
	assert.Equal(t, "c2", replace.Items[1].ToolID)
	assert.Equal(t, "other", replace.Items[1].ToolName)
	assert.Equal(t, "Not executed: control was transferred to bob", replace.Items[1].Content)
}

func TestToolsNode_CommandAnswersEveryCall(t *testing.T) {
	handoff := &probeTool{name: "handoff", result: func(ctx context.Context) any {
		state, _ := StateFromContext(ctx)
		id, _ := tool.ToolCallIDFromContext(ctx)
		messages, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
		updated := append(append([]model.Message(nil), messages...), model.NewToolMessage(id, "handoff", "moved"))
		return &Command{GoTo: "bob", Update: State{StateKeyMessages: ReplaceAllMessages{Items: updated}}}
	}}
	fn := NewToolsNodeFunc(map[string]tool.Tool{"echo": echoTool{}, "handoff": handoff})

	calls := assistantCall("c1", "echo", "{}")
	for _, id := range []string{"c2", "c3", "c4"} {
		name := "handoff"
		if id == "c4" {
			name = "echo"
		}
		calls.ToolCalls = append(calls.ToolCalls, model.ToolCall{
			ID:       id,
			Function: model.FunctionDefinitionParam{Name: name, Arguments: []byte("{}")},
		})
	}
	result, err := fn(context.Background(), State{StateKeyMessages: []model.Message{calls}})
	require.NoError(t, err)
	require.Len(t, handoff.callIDs, 1, "the batch stops at the first command")

	cmd, ok := result.(*Command)
	require.True(t, ok)
	replace, ok := cmd.Update[StateKeyMessages].(ReplaceAllMessages)
	require.True(t, ok)

	answered := make(map[string]bool)
	for _, msg := range replace.Items[1:] {
		require.Equal(t, model.RoleTool, msg.Role)
		answered[msg.ToolID] = true
	}
	assert.Equal(t, map[string]bool{"c1": true, "c2": true, "c3": true, "c4": true}, answered)
	assert.Len(t, replace.Items, 5)
}

func TestAnswerSkippedCalls_UpdateShapes(t *testing.T) {
	skipped := []model.ToolCall{{ID: "c9", Function: model.FunctionDefinitionParam{Name: "x"}}}
	history := []model.Message{model.NewUserMessage("hi")}

	appended := answerSkippedCalls(&Command{Update: State{StateKeyMessages: []model.Message{
		model.NewAssistantMessage("a"),
	}}}, history, skipped)
	msgs, ok := appended.Update[StateKeyMessages].([]model.Message)
	require.True(t, ok)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Not executed: the tool batch was interrupted", msgs[1].Content)

	removed := answerSkippedCalls(&Command{Update: State{StateKeyMessages: RemoveAllMessages{}}}, history, skipped)
	out := MessageReducer(history, removed.Update[StateKeyMessages]).([]model.Message)
	require.Len(t, out, 1)
	assert.Equal(t, "c9", out[0].ToolID)

	same := &Command{GoTo: "bob"}
	assert.Same(t, same, answerSkippedCalls(same, history, nil))
}

func TestToolsNode_Errors(t *testing.T) {
	fn := NewToolsNodeFunc(map[string]tool.Tool{"decl": declOnlyTool{}})

	_, err := fn(context.Background(), State{})
	require.ErrorContains(t, err, "no messages")

	_, err = fn(context.Background(), State{StateKeyMessages: []model.Message{model.NewUserMessage("x")}})
	require.ErrorContains(t, err, "not an assistant message")

	_, err = fn(context.Background(), State{StateKeyMessages: []model.Message{assistantCall("1", "ghost", "{}")}})
	require.ErrorContains(t, err, "tool ghost not found")

	_, err = fn(context.Background(), State{StateKeyMessages: []model.Message{assistantCall("1", "decl", "{}")}})
	require.ErrorContains(t, err, "not callable")
}

type declOnlyTool struct{}

func (declOnlyTool) Declaration() *tool.Declaration { return &tool.Declaration{Name: "decl"} }

func TestSubgraph_ReturnsStateAndReplacesMessages(t *testing.T) {
	reply := func(ctx context.Context, state State) (any, error) {
		return State{StateKeyMessages: []model.Message{model.NewAssistantMessage("from child")}}, nil
	}
	child := NewStateGraph(MessagesStateSchema()).
		AddNode("reply", reply).
		SetEntryPoint("reply").
		MustCompile(WithGraphName("child"))

	exec := mustExecutor(t, NewStateGraph(MessagesStateSchema()).
		AddSubgraphNode("child", child).
		SetEntryPoint("child"))

	final, err := exec.Invoke(context.Background(), State{
		StateKeyMessages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	messages := final[StateKeyMessages].([]model.Message)
	require.Len(t, messages, 2, "child output must not duplicate the shared log")
	assert.Equal(t, "from child", messages[1].Content)
}

func TestSubgraph_ParentCommandBubbles(t *testing.T) {
	schema := MessagesStateSchema().AddField("active", StateField{Type: reflect.TypeOf("")})
	handoff := func(ctx context.Context, state State) (any, error) {
		messages, _ := GetStateValue[[]model.Message](state, StateKeyMessages)
		return &Command{
			GoTo:  "second",
			Graph: ParentGraph,
			Update: State{
				StateKeyMessages: ReplaceAllMessages{Items: append(messages, model.NewAssistantMessage("handing off"))},
				"active":         "second",
			},
		}, nil
	}
	first := NewStateGraph(MessagesStateSchema()).
		AddNode("handoff", handoff).
		AddNode("unreached", increment).
		SetEntryPoint("handoff").
		AddEdge("handoff", "unreached").
		MustCompile()

	var seenBySecond State
	second := func(ctx context.Context, state State) (any, error) {
		seenBySecond = state
		return nil, nil
	}
	exec := mustExecutor(t, NewStateGraph(schema).
		AddSubgraphNode("first", first, WithDestinations("second")).
		AddNode("second", second).
		SetEntryPoint("first"))

	final, err := exec.Invoke(context.Background(), State{
		StateKeyMessages: []model.Message{model.NewUserMessage("hi")},
	})
	require.NoError(t, err)
	require.NotNil(t, seenBySecond)
	assert.Equal(t, "second", final["active"])
	messages := final[StateKeyMessages].([]model.Message)
	require.Len(t, messages, 2)
	assert.Equal(t, "handing off", messages[1].Content)
	_, hasCount := final["count"]
	assert.False(t, hasCount)
}

func TestStateContext(t *testing.T) {
	_, ok := StateFromContext(context.Background())
	assert.False(t, ok)
	ctx := NewStateContext(context.Background(), State{"k": "v"})
	state, ok := StateFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "v", state["k"])
}
