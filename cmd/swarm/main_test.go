//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trpc.group/trpc-go/trpc-swarm-go/config"
	"trpc.group/trpc-go/trpc-swarm-go/model"
)

const swarmYAML = `
default_agent: alice
max_steps: 20
log_level: error
model:
  name: fake
agents:
  - name: alice
    description: Addition expert
    instruction: You are Alice.
    handoffs: [bob]
  - name: bob
    description: Talks like a pirate
    instruction: You are Bob.
    handoffs: [alice]
`

// routedModel answers according to the system instruction of the request.
type routedModel struct {
	mu      sync.Mutex
	replies map[string][]model.Message
}

func (r *routedModel) GenerateContent(ctx context.Context, req *model.Request) (<-chan *model.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ""
	if len(req.Messages) > 0 && req.Messages[0].Role == model.RoleSystem {
		key = req.Messages[0].Content
	}
	reply := model.NewAssistantMessage("...")
	if queue := r.replies[key]; len(queue) > 0 {
		reply, r.replies[key] = queue[0], queue[1:]
	}
	ch := make(chan *model.Response, 1)
	ch <- &model.Response{Choices: []model.Choice{{Message: reply}}, Done: true}
	close(ch)
	return ch, nil
}

func (r *routedModel) Info() model.Info { return model.Info{Name: "routed"} }

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "swarm.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func useModel(t *testing.T, m model.Model) {
	t.Helper()
	orig := newModel
	newModel = func(config.ModelConfig) model.Model { return m }
	t.Cleanup(func() { newModel = orig })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	useModel(t, &routedModel{})
	path := writeConfig(t, swarmYAML)

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "swarm ok: 2 agents, default alice")
	assert.Contains(t, out, "alice -> bob")
	assert.Contains(t, out, "bob -> alice")
}

func TestValidateCommand_InvalidConfig(t *testing.T) {
	useModel(t, &routedModel{})
	path := writeConfig(t, "default_agent: ghost\nmodel:\n  name: fake\nagents:\n  - name: alice\n")
	_, err := execute(t, "validate", "-c", path)
	require.ErrorContains(t, err, "default_agent ghost is not defined")
}

func TestRunCommand_Handoff(t *testing.T) {
	useModel(t, &routedModel{replies: map[string][]model.Message{
		"You are Alice.": {{
			Role: model.RoleAssistant,
			ToolCalls: []model.ToolCall{{
				ID:       "call-1",
				Type:     "function",
				Function: model.FunctionDefinitionParam{Name: "transfer_to_bob", Arguments: []byte("{}")},
			}},
		}},
		"You are Bob.": {model.NewAssistantMessage("Arr, what be yer question?")},
	}})
	path := writeConfig(t, swarmYAML)

	out, err := execute(t, "run", "--config", path, "--input", "let me talk to bob")
	require.NoError(t, err)
	assert.Contains(t, out, "[transfer_to_bob]")
	assert.Contains(t, out, "bob: Arr, what be yer question?")
}

func TestRunCommand_StartAgentAndNoHandoff(t *testing.T) {
	useModel(t, &routedModel{replies: map[string][]model.Message{
		"You are Bob.": {model.NewAssistantMessage("Ahoy")},
	}})
	path := writeConfig(t, swarmYAML)

	out, err := execute(t, "run", "-c", path, "-i", "hi", "--agent", "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob: Ahoy\n", out)
}

func TestRunCommand_UnknownAgent(t *testing.T) {
	useModel(t, &routedModel{})
	path := writeConfig(t, swarmYAML)

	_, err := execute(t, "run", "-c", path, "-i", "hi", "--agent", "carol")
	require.ErrorContains(t, err, "--agent carol is not defined")
}

func TestRunCommand_RequiresInput(t *testing.T) {
	_, err := execute(t, "run", "--config", writeConfig(t, swarmYAML))
	require.ErrorContains(t, err, "--input is required")
}

func TestBuildSwarm_HandoffDescriptions(t *testing.T) {
	cfg, err := config.Parse([]byte(swarmYAML))
	require.NoError(t, err)
	g, err := buildSwarm(cfg, &routedModel{})
	require.NoError(t, err)

	aliceNode, ok := g.Node("alice")
	require.True(t, ok)
	toolsNode, ok := aliceNode.Subgraph().Node("tools")
	require.True(t, ok)
	handoff := toolsNode.Tools()["transfer_to_bob"]
	require.NotNil(t, handoff)
	assert.Equal(t, "Transfer to bob: Talks like a pirate", handoff.Declaration().Description)
}
