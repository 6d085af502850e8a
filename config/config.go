//
// Tencent is pleased to support the open source community by making trpc-agent-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-agent-go is licensed under the Apache License Version 2.0.
//
//

// Package config loads swarm definitions from YAML.
//
//	default_agent: alice
//	model:
//	  name: gpt-4o-mini
//	  api_key: ${OPENAI_API_KEY}
//	agents:
//	  - name: alice
//	    instruction: You are Alice.
//	    handoffs: [bob]
//	  - name: bob
//	    instruction: You are Bob.
//	    handoffs: [alice]
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied by Parse.
const (
	DefaultLogLevel          = "info"
	DefaultTelemetryProtocol = "grpc"
)

// Config is a swarm definition.
type Config struct {
	// DefaultAgent receives the first turn.
	DefaultAgent string `yaml:"default_agent"`
	// MaxSteps bounds node executions per run. Zero keeps the executor
	// default.
	MaxSteps int `yaml:"max_steps"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// Model configures the OpenAI-compatible model shared by all agents.
	Model ModelConfig `yaml:"model"`
	// Telemetry configures OTLP export. Disabled when Endpoint is empty.
	Telemetry TelemetryConfig `yaml:"telemetry"`
	// Agents are the swarm members.
	Agents []AgentConfig `yaml:"agents"`
}

// ModelConfig configures the chat model. Values support ${ENV} expansion.
type ModelConfig struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Endpoint string `yaml:"endpoint"`
	Protocol string `yaml:"protocol"`
}

// AgentConfig describes one agent.
type AgentConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Instruction string `yaml:"instruction"`
	// Handoffs lists the agents this agent may transfer control to.
	Handoffs []string `yaml:"handoffs"`
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, expands environment references in the model and
// telemetry settings and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	cfg.Model.Name = os.ExpandEnv(cfg.Model.Name)
	cfg.Model.BaseURL = os.ExpandEnv(cfg.Model.BaseURL)
	cfg.Model.APIKey = os.ExpandEnv(cfg.Model.APIKey)
	cfg.Telemetry.Endpoint = os.ExpandEnv(cfg.Telemetry.Endpoint)
	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = DefaultTelemetryProtocol
	}
	return cfg, nil
}

// Validate checks the swarm definition and reports every problem found.
func (c *Config) Validate() error {
	var errs []error
	if len(c.Agents) == 0 {
		errs = append(errs, errors.New("at least one agent is required"))
	}
	if c.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("max_steps must not be negative, got %d", c.MaxSteps))
	}
	if c.Model.Name == "" {
		errs = append(errs, errors.New("model.name is required"))
	}
	switch c.Telemetry.Protocol {
	case "grpc", "http":
	default:
		errs = append(errs, fmt.Errorf("telemetry.protocol must be grpc or http, got %q", c.Telemetry.Protocol))
	}

	names := make(map[string]bool, len(c.Agents))
	for i, agent := range c.Agents {
		switch {
		case agent.Name == "":
			errs = append(errs, fmt.Errorf("agents[%d]: name is required", i))
		case names[agent.Name]:
			errs = append(errs, fmt.Errorf("agents[%d]: duplicate name %s", i, agent.Name))
		}
		names[agent.Name] = true
	}
	for _, agent := range c.Agents {
		for _, target := range agent.Handoffs {
			switch {
			case target == agent.Name:
				errs = append(errs, fmt.Errorf("agent %s: cannot hand off to itself", agent.Name))
			case !names[target]:
				errs = append(errs, fmt.Errorf("agent %s: handoff target %s is not defined", agent.Name, target))
			}
		}
	}

	switch {
	case c.DefaultAgent == "":
		errs = append(errs, errors.New("default_agent is required"))
	case !names[c.DefaultAgent]:
		errs = append(errs, fmt.Errorf("default_agent %s is not defined", c.DefaultAgent))
	}
	return errors.Join(errs...)
}

// Agent returns the named agent definition.
func (c *Config) Agent(name string) (AgentConfig, bool) {
	for _, agent := range c.Agents {
		if agent.Name == name {
			return agent, true
		}
	}
	return AgentConfig{}, false
}
