// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command gateway starts the CareMesh chat gateway HTTP server.
//
// This is the main entry point for the containerized gateway service.
// It reads configuration from environment variables, optionally merged
// over a YAML config file, and starts the server.
//
// # Environment Variables
//
//   - GATEWAY_PORT: HTTP server port (default: 8080)
//   - GATEWAY_CONFIG_FILE: YAML config file path (optional)
//   - LLM_BACKEND_TYPE: LLM provider - databricks, openai (default: databricks)
//   - DATABRICKS_ENDPOINT: Databricks serving endpoint URL
//   - DATABRICKS_TOKEN: Databricks access token
//   - OPENAI_API_KEY: OpenAI key for the openai backend
//   - TAVILY_API_KEY: Web search key (optional, search disabled when unset)
//   - SESSION_WINDOW: Per-session history window (default: 20)
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OpenTelemetry collector (default: caremesh-otel-collector:4317)
//
// # Usage
//
//	# Build
//	go build -o gateway ./cmd/gateway
//
//	# Run
//	./gateway
//
//	# Or via container
//	podman-compose up gateway
package main

import (
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Optional YAML base, overridden by environment variables
	var cfg gateway.Config
	if path := os.Getenv("GATEWAY_CONFIG_FILE"); path != "" {
		loaded, err := gateway.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
		cfg = loaded
	}

	cfg.Port = getEnvInt("GATEWAY_PORT", cfg.Port)
	cfg.LLMBackend = getEnvString("LLM_BACKEND_TYPE", cfg.LLMBackend)
	cfg.LLMEndpoint = getEnvString("DATABRICKS_ENDPOINT", cfg.LLMEndpoint)
	cfg.LLMToken = getEnvString("DATABRICKS_TOKEN", cfg.LLMToken)
	cfg.OpenAIAPIKey = getEnvString("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", cfg.OpenAIModel)
	cfg.SearchAPIKey = getEnvString("TAVILY_API_KEY", cfg.SearchAPIKey)
	cfg.SessionWindow = getEnvInt("SESSION_WINDOW", cfg.SessionWindow)
	cfg.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)

	slog.Info("Starting gateway",
		"port", cfg.Port,
		"llm_backend", cfg.LLMBackend,
		"search_enabled", cfg.SearchAPIKey != "",
	)

	svc, err := gateway.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	// Run the server (blocks until shutdown)
	if err := svc.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
