// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package gateway provides the chat gateway service for CareMesh.
//
// This package contains the main service type that coordinates all
// components: HTTP routing, the PII sanitizer, session store, optional web
// search, language model backends, and observability infrastructure.
//
// # Usage
//
//	cfg := gateway.Config{Port: 8080, LLMBackend: "databricks"}
//	svc, err := gateway.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(svc.Run())
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway/observability"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/pipeline"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/routes"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/sanitize"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/search"
	"github.com/CareMeshAI/CareMeshGateway/services/gateway/session"
	"github.com/CareMeshAI/CareMeshGateway/services/llm"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the gateway service.
//
// # Description
//
// Service abstracts the gateway lifecycle, enabling testing and alternative
// implementations. Run() blocks and should only be called once per instance.
type Service interface {
	// Run starts the HTTP server and blocks until shutdown or error.
	Run() error

	// Router returns the underlying Gin engine for testing.
	Router() *gin.Engine
}

// =============================================================================
// Configuration
// =============================================================================

// Config holds gateway configuration options.
//
// # Description
//
// Config centralizes all configuration for the gateway service. Values can
// be populated from environment variables, a YAML file via LoadConfig, or
// programmatically for testing.
//
// # Required Fields
//
// The language model backend credentials (endpoint + token for databricks,
// API key for openai) must be resolvable at construction, from Config or
// the environment.
type Config struct {
	// Port is the HTTP server port. Default: 8080
	Port int `yaml:"port"`

	// LLMBackend specifies the language model provider.
	// Valid values: "databricks", "openai". Default: "databricks"
	LLMBackend string `yaml:"llm_backend"`

	// LLMEndpoint is the Databricks-style serving endpoint URL.
	LLMEndpoint string `yaml:"llm_endpoint"`

	// LLMToken is the personal access token for the serving endpoint.
	LLMToken string `yaml:"llm_token"`

	// OpenAIAPIKey and OpenAIModel configure the alternate backend.
	OpenAIAPIKey string `yaml:"openai_api_key"`
	OpenAIModel  string `yaml:"openai_model"`

	// SearchAPIKey enables web search when set. Optional.
	SearchAPIKey string `yaml:"search_api_key"`

	// SessionWindow is the per-session history window. Default: 20
	SessionWindow int `yaml:"session_window"`

	// OTelEndpoint is the OpenTelemetry collector endpoint.
	// Default: "caremesh-otel-collector:4317"
	OTelEndpoint string `yaml:"otel_endpoint"`

	// EnableMetrics enables Prometheus metric recording. Nil means
	// unset and defaults to true; an explicit false disables recording.
	EnableMetrics *bool `yaml:"enable_metrics"`

	// Development enables Gin debug mode. Default: false
	Development bool `yaml:"development"`

	// RateLimitRPS and RateLimitBurst bound the chat message endpoint
	// per client IP. Defaults: 5 rps, burst 10.
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`
}

// LoadConfig reads a YAML configuration file into a Config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	content, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = "databricks"
	}
	if cfg.SessionWindow == 0 {
		cfg.SessionWindow = session.DefaultWindowSize
	}
	if cfg.OTelEndpoint == "" {
		cfg.OTelEndpoint = "caremesh-otel-collector:4317"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 5
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 10
	}
	if cfg.EnableMetrics == nil {
		enabled := true
		cfg.EnableMetrics = &enabled
	}
	return cfg
}

// =============================================================================
// Implementation
// =============================================================================

// service implements Service for production use.
type service struct {
	config        Config
	router        *gin.Engine
	store         *session.Store
	llmClient     llm.Client
	pipeline      *pipeline.Pipeline
	tracerCleanup func(context.Context)
}

// New creates a gateway Service with the given configuration.
//
// # Description
//
// New initializes all gateway components:
//  1. Applies default configuration for missing values
//  2. Initializes OpenTelemetry tracing
//  3. Initializes Prometheus metrics
//  4. Creates the language model client for the configured backend
//  5. Creates the session store, sanitizer, and optional search service
//  6. Wires the pipeline and HTTP routes
//
// A missing language model backend configuration is fatal; a missing
// search key only disables search.
func New(cfg Config) (Service, error) {
	s := &service{
		config: applyConfigDefaults(cfg),
	}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	var metrics *observability.PipelineMetrics
	if *s.config.EnableMetrics {
		metrics = observability.InitMetrics()
		slog.Info("Initialized Prometheus metrics for chat pipeline")
	}

	if err := s.initLLMClient(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}

	s.store = session.New(s.config.SessionWindow)
	sanitizer := sanitize.NewSanitizer(s.llmClient)

	var searcher pipeline.Searcher
	if svc := search.NewService(s.config.SearchAPIKey, s.llmClient); svc.Available() {
		searcher = svc
	}

	s.pipeline = pipeline.New(s.store, sanitizer, searcher, s.llmClient, metrics)

	s.initRouter()

	return s, nil
}

// Run starts the HTTP server and blocks until shutdown or error.
func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting gateway server", "port", s.config.Port)

	return s.router.Run(addr)
}

// Router returns the underlying Gin engine for testing.
func (s *service) Router() *gin.Engine {
	return s.router
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

// initTracer initializes OpenTelemetry distributed tracing.
//
// Uses an insecure gRPC connection to the collector, appropriate for
// internal networks.
func (s *service) initTracer() (func(context.Context), error) {
	ctx := context.Background()

	conn, err := grpc.NewClient(s.config.OTelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("caremesh-gateway")))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	cleanup := func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}

	return cleanup, nil
}

// initLLMClient creates the language model client for the configured
// backend.
func (s *service) initLLMClient() error {
	var err error

	switch s.config.LLMBackend {
	case "databricks":
		s.llmClient, err = llm.NewDatabricksClient(s.config.LLMEndpoint, s.config.LLMToken)
		slog.Info("Using Databricks LLM backend")
	case "openai":
		s.llmClient, err = llm.NewOpenAIClient(s.config.OpenAIAPIKey, s.config.OpenAIModel)
		slog.Info("Using OpenAI LLM backend")
	default:
		slog.Warn("Unknown LLM backend, defaulting to databricks", "backend", s.config.LLMBackend)
		s.llmClient, err = llm.NewDatabricksClient(s.config.LLMEndpoint, s.config.LLMToken)
	}

	return err
}

// initRouter sets up the Gin HTTP router with all routes.
func (s *service) initRouter() {
	if s.config.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.Default()
	s.router.Use(otelgin.Middleware("caremesh-gateway"))

	routes.SetupRoutes(s.router, s.pipeline, s.store, s.llmClient, routes.RateLimitConfig{
		RPS:   s.config.RateLimitRPS,
		Burst: s.config.RateLimitBurst,
	})
}

// cleanup releases all resources held by the service.
func (s *service) cleanup() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
	}
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
