//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package swarm builds multi-agent graphs in which agents hand control to
// each other.
//
// Each agent is a compiled graph whose tools node carries handoff tools
// made by CreateHandoffTool. Calling one ends the agent's turn with a
// command to the swarm graph: jump to the target agent and record it as
// active_agent. CreateSwarm wires the agents as subgraph nodes behind a
// router that starts every run at the active agent, or at the default one
// when none is set yet.
//
//	bob, _ := swarm.CreateHandoffTool("Bob")
//	alice, _ := prebuilt.NewReactAgent("Alice", m, []tool.Tool{bob})
//	...
//	sg, err := swarm.CreateSwarm([]*graph.Graph{alice, bobAgent}, "Alice")
//	g, err := sg.Compile()
package swarm
