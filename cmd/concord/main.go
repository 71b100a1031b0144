// Command concord runs the constitutional policy governance engine.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/concord-labs/concord/pkg/admission"
	"github.com/concord-labs/concord/pkg/api"
	"github.com/concord-labs/concord/pkg/audit"
	"github.com/concord-labs/concord/pkg/compliance"
	"github.com/concord-labs/concord/pkg/config"
	"github.com/concord-labs/concord/pkg/observability"
	"github.com/concord-labs/concord/pkg/rules"
	"github.com/concord-labs/concord/pkg/schema"
	"github.com/concord-labs/concord/pkg/verification"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		return runServer(stderr)
	}

	switch args[1] {
	case "server", "serve":
		return runServer(stderr)
	case "validate":
		return runValidate(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: concord [command]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve              Run the governance engine API (default)")
	fmt.Fprintln(w, "  validate <file>    Validate a policy document against the schema")
	fmt.Fprintln(w, "  help               Show this help")
}

func runValidate(args []string, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_, _ = fmt.Fprintln(stderr, "Usage: concord validate <policy.json>")
		return 2
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "read %s: %v\n", args[0], err)
		return 1
	}

	validator, err := schema.NewValidator()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "schema: %v\n", err)
		return 1
	}

	policy, err := validator.ValidatePolicy(raw)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "invalid: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintf(stdout, "ok: %s\n", policy.ID)
	return 0
}

// buildScorer wires profile overrides into a compliance scorer: the
// per-risk minimums and any declarative principle rules. A nil profile
// yields the default scorer.
func buildScorer(profile *config.GovernanceProfile) (*compliance.Scorer, error) {
	scorer := compliance.NewScorer()
	if profile == nil {
		return scorer, nil
	}

	scorer.WithThresholds(profile.RiskThresholds(compliance.DefaultThresholds))

	if len(profile.Rules) > 0 {
		engine, err := rules.NewEngine()
		if err != nil {
			return nil, err
		}
		for id, source := range profile.Rules {
			if err := engine.LoadRule(id, source); err != nil {
				return nil, err
			}
		}
		scorer.WithRuleEngine(engine)
	}
	return scorer, nil
}

func runServer(stderr io.Writer) int {
	cfg := config.Load()

	var profile *config.GovernanceProfile
	if cfg.ProfilePath != "" {
		p, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "governance profile: %v\n", err)
			return 1
		}
		p.Apply(cfg)
		profile = p
	}

	if err := cfg.Validate(); err != nil {
		_, _ = fmt.Fprintf(stderr, "fatal: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obsCfg := observability.DefaultConfig()
	obsCfg.OTLPEndpoint = cfg.OTLPEndpoint
	obsCfg.Enabled = os.Getenv("OTEL_ENABLED") == "true"
	obsCfg.Insecure = os.Getenv("OTEL_INSECURE") == "true"
	provider, err := observability.New(ctx, obsCfg)
	if err != nil {
		logger.Error("observability init", "error", err)
		return 1
	}
	defer func() { _ = provider.Shutdown(context.Background()) }()

	metrics, err := observability.NewMetrics(provider.Meter())
	if err != nil {
		logger.Error("metrics init", "error", err)
		return 1
	}

	db, err := sql.Open("sqlite", cfg.AuditDBPath)
	if err != nil {
		logger.Error("audit database open", "path", cfg.AuditDBPath, "error", err)
		return 1
	}
	defer db.Close()

	trailStore, err := audit.NewSQLiteTrailStore(db)
	if err != nil {
		logger.Error("audit trail store init", "error", err)
		return 1
	}

	var solver verification.Solver
	if cfg.SolverEndpoint != "" {
		solver = verification.NewHTTPSolver(cfg.SolverEndpoint)
	} else {
		logger.Warn("no solver endpoint configured, rigorous verification will escalate")
		solver = verification.UnavailableSolver{}
	}

	queue := verification.NewReviewQueue()
	orch, err := verification.NewOrchestrator(cfg.Verification, solver, queue)
	if err != nil {
		logger.Error("orchestrator init", "error", err)
		return 1
	}
	orch.WithTrailSink(trailStore).WithLogger(logger)

	scorer, err := buildScorer(profile)
	if err != nil {
		logger.Error("scorer init", "error", err)
		return 1
	}

	gate := admission.NewGate(scorer, orch).
		WithAuditor(audit.NewLogger()).
		WithMetrics(metrics).
		WithDecisionWait(cfg.DecisionWait)

	validator, err := schema.NewValidator()
	if err != nil {
		logger.Error("schema init", "error", err)
		return 1
	}

	server := api.NewServer(gate, queue).
		WithValidator(validator).
		WithRateLimiter(api.NewGlobalRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst))

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("governance engine listening", "port", cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			return 1
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", "error", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

func logLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
