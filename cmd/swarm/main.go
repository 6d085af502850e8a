//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Command swarm validates and runs agent swarms defined in YAML.
package main

import (
	"os"

	"trpc.group/trpc-go/trpc-swarm-go/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Errorf("swarm: %v", err)
		os.Exit(1)
	}
}
