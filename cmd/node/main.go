// Command node runs the confidential compute node: privacy/attestation
// engine, tool execution dispatcher, job queue, and regime router wired into
// one process context (spec §9 Design Notes — no hidden globals, every
// component receives its dependencies explicitly).
package main

import (
	"context"
	"crypto/ed25519"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/hanzoai/node/infrastructure/logging"
	"github.com/hanzoai/node/internal/config"
	"github.com/hanzoai/node/internal/execution"
	"github.com/hanzoai/node/internal/external"
	"github.com/hanzoai/node/internal/metrics"
	"github.com/hanzoai/node/internal/privacy"
	"github.com/hanzoai/node/internal/queue"
	"github.com/hanzoai/node/internal/router"
)

// processContext bundles every long-lived component the node owns. It is
// built once in main and never stored in a package-level variable.
type processContext struct {
	logger     *logging.Logger
	security   *privacy.SecurityContext
	scheduler  *privacy.RefreshScheduler
	dispatcher *execution.Dispatcher
	queue      *queue.Queue
	router     *router.Router
	registry   *prometheus.Registry
}

func main() {
	logger := logging.NewFromEnv("node")

	loader := config.NewLoader(config.NoSecrets{}, osEnv)
	_, debugBuild := os.LookupEnv("NODE_DEBUG")
	cfg := config.Load(loader, debugBuild)

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	proc, err := build(cfg, logger, m)
	if err != nil {
		log.Fatalf("node: build failed: %v", err)
	}
	defer proc.scheduler.Stop()
	defer proc.queue.Shutdown()

	logger.Info(context.Background(), "node started", nil)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info(context.Background(), "node shutting down", nil)
}

func osEnv(key string) (string, bool) { return os.LookupEnv(key) }

// build wires every component per SPEC_FULL.md's module boundaries. Split
// out of main so it can be exercised without touching signals or the real
// environment.
func build(cfg config.NodeConfig, logger *logging.Logger, m *metrics.Metrics) (*processContext, error) {
	entry := logrus.NewEntry(logger.Logger).WithField("service", "node")

	detector := privacy.NewDetector(nil)
	caps := detector.Detect()

	mode := privacy.Mode(cfg.AttestationMode)
	gen := privacy.NewGenerator(mode, caps)
	ver := privacy.NewVerifier(mode, nil)
	attestCache := privacy.NewLRUStore(1024, nil)

	strict := mode == privacy.ModeProduction
	security := privacy.NewSecurityContext(gen, ver, attestCache, nil, strict, entry)

	if mode == privacy.ModeProduction {
		serviceURLs := map[string]string{
			"sev_snp":          cfg.SevSnpAttestationService,
			"tdx":              cfg.TdxAttestationService,
			"h100cc":           cfg.NvidiaAttestationService,
			"blackwell_tee_io": cfg.NvidiaAttestationService,
		}
		security = security.WithRemoteVerification(privacy.NewRemoteVerificationClient(10*time.Second), serviceURLs)
	}

	requiredTier := privacy.CpuTee
	if err := security.Initialize(caps, &requiredTier); err != nil && strict {
		return nil, err
	}

	scheduler := privacy.NewRefreshScheduler(security, entry)
	if err := scheduler.Start(durationToCron(cfg.AttestationRefreshInterval)); err != nil {
		return nil, err
	}

	// TODO: load from a SecretSource once audit checkpoint signing keys have
	// a provisioning story; a fixed seed is a placeholder wiring point only.
	checkpointSigner := ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))
	audit := privacy.NewAuditLog(cfg.AuditRetentionDays, 100, checkpointSigner)
	policy := privacy.NewPolicyEnforcer(privacy.DefaultTierPolicies(), audit, nil)

	vaultTTL := 5 * time.Minute
	baseVault := external.NewMemorySecretVault()
	vault := external.NewCachingSecretVault(baseVault, vaultTTL)

	toolRepo := external.NewMemoryToolRepository()
	oauthHandler := execution.NewOAuthHandler(vault)

	executors := map[execution.RuntimeKind]execution.Executor{
		execution.RuntimeNative:     execution.NewNativeExecutor(nil),
		execution.RuntimeJavaScript: execution.NewJavaScriptExecutor(),
		execution.RuntimePython:     execution.NewPythonExecutor("/usr/bin/python3"),
	}

	dispatcher := execution.NewDispatcher(
		toolRepo, oauthHandler, security, policy, m, executors,
		"hanzo-node", external.SystemClock, logger,
	)

	q := queue.New(queue.DefaultConfig(), dispatcher.Dispatch, m)

	r := router.New(router.DefaultConfig(), noopInferenceCaller{}, m)

	return &processContext{
		logger:     logger,
		security:   security,
		scheduler:  scheduler,
		dispatcher: dispatcher,
		queue:      q,
		router:     r,
		registry:   registry,
	}, nil
}

// durationToCron renders an interval as the "@every" shorthand RefreshScheduler
// accepts, so any configured ATTESTATION_REFRESH_INTERVAL works without
// requiring operators to author a 5-field cron expression by hand.
func durationToCron(d time.Duration) string {
	if d <= 0 {
		d = time.Minute
	}
	return "@every " + d.String()
}

// noopInferenceCaller is the wiring point for the node's actual inference
// adapter; production deployments replace this with a real backend client.
type noopInferenceCaller struct{}

func (noopInferenceCaller) Call(ctx context.Context, choice router.RoutingChoice, req router.InferenceRequest) (interface{}, error) {
	return nil, nil
}
