// Command loomd is the orchestration engine's composition root: it loads
// configuration, opens the database, wires every domain package together,
// and serves the HTTP API until terminated.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loomctl/loom/pkg/activity"
	"github.com/loomctl/loom/pkg/agent"
	"github.com/loomctl/loom/pkg/api"
	"github.com/loomctl/loom/pkg/chat"
	"github.com/loomctl/loom/pkg/config"
	"github.com/loomctl/loom/pkg/eventbus"
	"github.com/loomctl/loom/pkg/heartbeat"
	"github.com/loomctl/loom/pkg/identity"
	"github.com/loomctl/loom/pkg/kb"
	"github.com/loomctl/loom/pkg/modelrouter"
	"github.com/loomctl/loom/pkg/scheduler"
	"github.com/loomctl/loom/pkg/sor"
	"github.com/loomctl/loom/pkg/store"
	"github.com/loomctl/loom/pkg/tools"
	"github.com/loomctl/loom/pkg/vault"
	"github.com/loomctl/loom/pkg/workspace"
)

const (
	defaultMaxIterations  = 15
	defaultCreditsPerCall = 1
	embeddingModelID      = "text-embedding"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.New(ctx, store.Config{
		Host:     cfg.DB.Host,
		Port:     cfg.DB.Port,
		User:     cfg.DB.User,
		Password: cfg.DB.Password,
		Database: cfg.DB.Database,
		SSLMode:  cfg.DB.SSLMode,
	})
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database", "host", cfg.DB.Host, "database", cfg.DB.Database)

	verifier := identity.New(cfg.JWTHS256Secret, cfg.JWKSURL, cfg.JWKSCacheTTL)

	vlt, err := vault.New(cfg.VaultKeyHex)
	if err != nil {
		logger.Error("init credential vault", "error", err)
		os.Exit(1)
	}

	router := modelrouter.New(modelrouter.Config{
		Mode:          modelrouter.Mode(cfg.ModelRouterMode),
		ProviderURL:   cfg.ModelProviderURL,
		ProviderKey:   cfg.ModelProviderKey,
		EmbedBatchMax: cfg.EmbeddingBatchMax,
	})

	bus, err := eventbus.New(eventbus.Config{Port: cfg.NATSEmbeddedPort})
	if err != nil {
		logger.Error("init event bus", "error", err)
		os.Exit(1)
	}
	if err := bus.Start(); err != nil {
		logger.Error("start event bus", "error", err)
		os.Exit(1)
	}
	logger.Info("event bus listening", "port", cfg.NATSEmbeddedPort)

	chatSvc := chat.New(st, bus)
	activitySvc := activity.New(st)
	sorSvc := sor.New(st)
	kbSvc := kb.New(st, router, router, embeddingModelID)
	ws := workspace.New(cfg.WorkspaceRoot)

	buildExec := makeExecCtxBuilder(st, router, chatSvc, activitySvc, sorSvc, kbSvc, ws)

	hbRunner := heartbeat.New(chatSvc, activitySvc, buildExec)
	sched := scheduler.New(st, hbRunner, cfg.ModelRouterMode == string(modelrouter.ModeHosted))
	if err := sched.Start(ctx); err != nil {
		logger.Error("start heartbeat scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("heartbeat scheduler started")

	if _, err := bus.Subscribe(eventbus.SubjectMention, func(payload []byte) {
		var ev chat.MentionEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return
		}
		if err := sched.TriggerNow(ctx, ev.TargetID, ev.TeamID); err != nil {
			logger.Warn("mention trigger failed", "agent_id", ev.TargetID, "error", err)
		}
	}); err != nil {
		logger.Error("subscribe to mention events", "error", err)
		os.Exit(1)
	}

	server := api.NewServer(cfg, st, verifier, chatSvc, activitySvc, sorSvc, kbSvc, ws, vlt, sched, bus, router)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "error", err)
	}
}

// makeExecCtxBuilder returns the closure the scheduler's heartbeat runner
// uses to build a fresh ExecutionContext for one agent: a per-run tool
// registry bound to that agent's team, plus the shared model client,
// approval gate, and credit ledger.
func makeExecCtxBuilder(
	st *store.Store,
	router *modelrouter.Router,
	chatSvc *chat.Service,
	activitySvc *activity.Service,
	sorSvc *sor.Service,
	kbSvc *kb.Service,
	ws *workspace.Store,
) heartbeat.ExecCtxBuilder {
	return func(ctx context.Context, a store.Agent) (*agent.ExecutionContext, error) {
		registry := tools.NewRegistry()
		tools.RegisterBuiltins(registry, tools.Deps{
			TeamID:         a.TeamID,
			AgentID:        a.ID,
			Tasks:          taskStoreAdapter{store: st, teamID: a.TeamID},
			Goals:          goalStoreAdapter{store: st, teamID: a.TeamID},
			Chat:           chatSvc.Bind(a.TeamID, a.ID),
			Memory:         kbSvc.Bind(a.TeamID, a.ID),
			KnowledgeBase:  kbSvc.Bind(a.TeamID, a.ID),
			SourceOfRecord: sorSvc.Bind(a.TeamID, a.ID),
			Workspace:      ws.Bind(a.TeamID, a.ID),
			Approvals:      approvalAdapter{activity: activitySvc, teamID: a.TeamID, agentID: a.ID},
		})

		var fallbackEndpoint, fallbackModel, fallbackKey string
		if a.FallbackEndpoint != nil {
			fallbackEndpoint = *a.FallbackEndpoint
		}
		if a.FallbackModelName != nil {
			fallbackModel = *a.FallbackModelName
		}
		if a.FallbackAPIKey != nil {
			fallbackKey = *a.FallbackAPIKey
		}

		return &agent.ExecutionContext{
			TeamID:           a.TeamID,
			AgentID:          a.ID,
			ModelID:          a.ModelID,
			FallbackEndpoint: fallbackEndpoint,
			FallbackModel:    fallbackModel,
			FallbackAPIKey:   fallbackKey,
			SystemPrompt:     a.SystemPrompt,
			MaxIterations:    defaultMaxIterations,
			SkipCredits:      a.SkipCredits,
			CreditsPerCall:   defaultCreditsPerCall,
			ModelClient:      router,
			ToolExecutor:     registry,
			Approvals:        activitySvc,
			Credits:          creditLedgerAdapter{store: st},
		}, nil
	}
}
