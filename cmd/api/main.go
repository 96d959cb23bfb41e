// Package main is the entry point for the API server.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/orbitdesk-ai/support-platform/internal/agent"
	"github.com/orbitdesk-ai/support-platform/internal/config"
	"github.com/orbitdesk-ai/support-platform/internal/handler"
	"github.com/orbitdesk-ai/support-platform/internal/knowledge"
	"github.com/orbitdesk-ai/support-platform/internal/llm"
	"github.com/orbitdesk-ai/support-platform/internal/middleware"
	natsclient "github.com/orbitdesk-ai/support-platform/internal/nats"
	"github.com/orbitdesk-ai/support-platform/internal/service"
	"github.com/orbitdesk-ai/support-platform/internal/store"
	"github.com/orbitdesk-ai/support-platform/internal/store/memory"
	"github.com/orbitdesk-ai/support-platform/pkg/logger"
	"github.com/orbitdesk-ai/support-platform/pkg/tracing"
)

const embeddingDimensions = 1536

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-platform", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Storage backend
	var (
		conversations store.ConversationStore
		threads       store.ThreadStore
		sessions      store.SessionStore
		secrets       store.SecretStore
		objects       store.ObjectStore
		readiness     handler.ReadyChecker
	)
	switch cfg.StorageBackend {
	case "nats":
		client, err := natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer client.Close()
		readiness = client

		threadStore := natsclient.NewThreadStore(client)
		if err := threadStore.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure thread stream", zap.Error(err))
			os.Exit(1)
		}
		threads = threadStore

		if conversations, err = natsclient.NewConversationStore(ctx, client); err != nil {
			log.Error("failed to open conversation bucket", zap.Error(err))
			os.Exit(1)
		}
		if sessions, err = natsclient.NewSessionStore(ctx, client); err != nil {
			log.Error("failed to open session bucket", zap.Error(err))
			os.Exit(1)
		}
		if secrets, err = natsclient.NewSecretStore(ctx, client); err != nil {
			log.Error("failed to open secret bucket", zap.Error(err))
			os.Exit(1)
		}
		if objects, err = natsclient.NewObjectStore(ctx, client); err != nil {
			log.Error("failed to open artifact bucket", zap.Error(err))
			os.Exit(1)
		}

	case "memory":
		log.Warn("using in-memory storage, data will not survive restarts")
		conversations = memory.NewConversationStore()
		threads = memory.NewThreadStore()
		sessions = memory.NewSessionStore()
		secrets = memory.NewSecretStore()
		objects = memory.NewObjectStore()

	default:
		log.Error("unknown storage backend", zap.String("backend", cfg.StorageBackend))
		os.Exit(1)
	}

	// Embeddings are optional; without them knowledge search is lexical.
	var embedder llm.EmbeddingClient
	if cfg.OpenAIAPIKey != "" {
		e, err := llm.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.EmbeddingModel)
		if err != nil {
			log.Warn("failed to create embedder, knowledge search will be lexical", zap.Error(err))
		} else {
			embedder = e
		}
	}

	// Knowledge backend
	var index knowledge.Index
	switch cfg.KnowledgeBackend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("failed to open postgres", zap.Error(err))
			os.Exit(1)
		}
		defer db.Close()
		if err := knowledge.EnsureSchema(ctx, db, embeddingDimensions); err != nil {
			log.Error("failed to ensure knowledge schema", zap.Error(err))
			os.Exit(1)
		}
		index = knowledge.NewPostgresIndex(db)

	case "memory":
		index = knowledge.NewMemoryIndex()

	default:
		log.Error("unknown knowledge backend", zap.String("backend", cfg.KnowledgeBackend))
		os.Exit(1)
	}

	pipeline := knowledge.NewPipeline(index, objects, embedder, log)
	searcher := knowledge.NewSearcher(index, embedder, log)

	// LLM client
	var llmClient llm.Client
	if cfg.AnthropicAPIKey != "" {
		llmClient, err = llm.NewAnthropicClient(cfg.AnthropicAPIKey)
		if err != nil {
			log.Warn("failed to create Anthropic client, agent disabled", zap.Error(err))
		}
	} else if cfg.OpenAIAPIKey != "" {
		llmClient, err = llm.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Warn("failed to create OpenAI client, agent disabled", zap.Error(err))
		}
	} else {
		log.Warn("no LLM API key configured, agent disabled")
	}
	if llmClient != nil {
		pipeline.WithSummarizer(llmClient, cfg.DefaultModel)
	}

	// Services
	conversationSvc := service.NewConversationService(conversations, threads, log)
	sessionSvc := service.NewSessionService(sessions, cfg.SessionTTL, log)
	pluginSvc := service.NewPluginService(secrets, log)

	var runtime *agent.Runtime
	if llmClient != nil {
		runtime, err = agent.NewRuntime(agent.Config{
			LLM:       llmClient,
			Threads:   threads,
			Knowledge: searcher,
			Control:   conversationSvc,
			Model:     cfg.DefaultModel,
			MaxRounds: cfg.AgentMaxRounds,
			Logger:    log,
		})
		if err != nil {
			log.Error("failed to create agent runtime", zap.Error(err))
			os.Exit(1)
		}
	}
	messageSvc := service.NewMessageService(conversationSvc, threads, runtime, cfg.AgentTimeout, log)

	// Handlers
	healthHandler := handler.NewHealthHandler(readiness)
	conversationHandler := handler.NewConversationHandler(conversationSvc, log)
	messageHandler := handler.NewMessageHandler(messageSvc, log)
	knowledgeHandler := handler.NewKnowledgeHandler(pipeline, searcher, log)
	pluginHandler := handler.NewPluginHandler(pluginSvc, log)
	widgetHandler := handler.NewWidgetHandler(sessionSvc, conversationSvc, log)
	streamHandler := handler.NewStreamHandler(messageSvc, conversationSvc, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "X-Contact-Session"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Dashboard surface
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.DashboardAuth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/escalate", conversationHandler.Escalate)
				r.Post("/resolve", conversationHandler.Resolve)
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Post)
			})
		})

		r.Route("/knowledge", func(r chi.Router) {
			r.Post("/files", knowledgeHandler.Upload)
			r.Get("/files", knowledgeHandler.List)
			r.Delete("/files/{id}", knowledgeHandler.Delete)
			r.Get("/search", knowledgeHandler.Search)
		})

		r.Route("/plugins", func(r chi.Router) {
			r.Put("/{service}", pluginHandler.Upsert)
			r.Get("/{service}", pluginHandler.Status)
			r.Delete("/{service}", pluginHandler.Delete)
		})
	})

	// Widget surface
	r.Route("/widget/v1", func(r chi.Router) {
		r.Use(middleware.SessionRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Post("/sessions", widgetHandler.CreateSession)

		r.Group(func(r chi.Router) {
			r.Use(middleware.SessionAuth(sessionSvc))

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", widgetHandler.CreateConversation)
				r.Get("/", widgetHandler.ListConversations)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", conversationHandler.Get)
					r.Get("/messages", messageHandler.List)
					r.Post("/messages", messageHandler.Post)
					r.Get("/stream", streamHandler.Stream)
				})
			})
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
