// Command server is the API process entrypoint: it wires every
// component (C1-C13) together and serves the HTTP API, grounded on the
// teacher's cmd/engine/main.go requireEnv/getEnvOrDefault startup idiom
// and its "warn and run in a degraded mode" tolerance for non-critical
// dependency failures.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/evoting/core/internal/api"
	"github.com/evoting/core/internal/auditchain"
	"github.com/evoting/core/internal/biometric"
	"github.com/evoting/core/internal/cache"
	"github.com/evoting/core/internal/config"
	"github.com/evoting/core/internal/crypto"
	"github.com/evoting/core/internal/db"
	"github.com/evoting/core/internal/enrollment"
	"github.com/evoting/core/internal/ledger"
	"github.com/evoting/core/internal/models"
	"github.com/evoting/core/internal/polls"
	"github.com/evoting/core/internal/ratelimit"
	"github.com/evoting/core/internal/secrets"
	"github.com/evoting/core/internal/session"
	"github.com/evoting/core/internal/shield"
	"github.com/evoting/core/internal/voting"
	"github.com/evoting/core/internal/workers"
)

func main() {
	log.Println("Starting evoting-core API (anonymous ballot backend)...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}
	secretsProvider := secrets.Load(cfg)
	health := secretsProvider.HealthSummary()
	log.Printf("[secrets] loaded %d secrets from %s", health.SecretCount, health.Source)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: db: %v", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		log.Fatalf("FATAL: db migrate: %v", err)
	}
	if err := store.SeedRegions(ctx, bundledRegions()); err != nil {
		log.Printf("Warning: region seed failed: %v", err)
	}

	cacheStore, err := cache.Connect(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("FATAL: cache: %v", err)
	}
	defer cacheStore.Close()

	pnHasher := crypto.MustHasher(cfg.CryptoHasher, []byte(secretsProvider.Require(secrets.NamePersonalNumberSalt)))
	deviceHasher := crypto.MustHasher(cfg.CryptoHasher, []byte(secretsProvider.Require(secrets.NameDeviceHashSalt)))
	voterHasher := crypto.MustHasher(cfg.CryptoHasher, []byte(secretsProvider.Require(secrets.NameVoterHashSalt)))

	biometricClient := biometric.New(cfg.BiometricServiceURL, time.Duration(cfg.BiometricTimeoutMS)*time.Millisecond)
	enrollEngine := enrollment.New(store, biometricClient, pnHasher, cacheStore)

	nonces := session.NewNonces(cacheStore)
	tokens := session.NewTokens([]byte(secretsProvider.Require(secrets.NameSessionSigningKey)), 24*time.Hour)

	pollsSvc := polls.New(store)

	zkVerifier := crypto.NewZKVerifier(cfg.IsProduction())
	if path := os.Getenv("ZK_VERIFYING_KEY_PATH"); path != "" {
		if err := zkVerifier.LoadVerifyingKey(path); err != nil {
			log.Printf("Warning: zk verifying key load failed, proofs will %s: %v",
				verifyingKeyFailureMode(cfg.IsProduction()), err)
		}
	}

	chainVerifier := auditchain.NewVerifier(store)
	readOnlyGate := auditchain.NewReadOnlyGate(cacheStore)
	ledgerClient := ledger.New(cfg.LedgerURL, secretsProvider.Require(secrets.NameLedgerPrivateKey))
	anchorer := auditchain.NewAnchorer(store, ledgerClient)

	votingPipeline := voting.NewPipeline(store, voterHasher, deviceHasher, readOnlyGate, zkVerifier)
	rewardDispatcher := workers.LoggingRewardDispatcher{}

	limiter := ratelimit.New(cacheStore)
	shieldSignals := shield.NewSignalOnly(cacheStore, cfg.BlockThreshold)

	hub := api.NewHub()
	go hub.Run()

	pollWorker := workers.NewPollStatusWorker(store)
	go pollWorker.Run(ctx)

	anchorWorker := workers.NewAnchorWorker(anchorer)
	go anchorWorker.Run(ctx)

	chainIntegrityWorker := workers.NewChainIntegrityWorker(store, chainVerifier, readOnlyGate)
	go chainIntegrityWorker.Run(ctx)

	deps := &api.Deps{
		Store:          store,
		Cache:          cacheStore,
		Nonces:         nonces,
		Tokens:         tokens,
		Enrollment:     enrollEngine,
		Polls:          pollsSvc,
		Voting:         votingPipeline,
		ChainVerif:     chainVerifier,
		Limiter:        limiter,
		Hub:            hub,
		DeviceHash:     deviceHasher,
		Rewards:        rewardDispatcher,
		Shield:         shieldSignals,
		Biometric:      biometricClient,
		Ledger:         ledgerClient,
		MinKAnonymity:  cfg.MinKAnonymity,
		AllowedOrigins: allowedOrigins(),
	}
	if cfg.EnablePrivacyNoise {
		deps.NoiseEpsilon = 1.0
	}

	router := api.NewRouter(deps)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("API listening on :%s (node=%s env=%s)", cfg.Port, cfg.Hostname, cfg.NodeEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutdown signal received, draining connections...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Warning: graceful shutdown error: %v", err)
	}
}

// verifyingKeyFailureMode describes the zk verifier's fail-closed/fail-open
// posture for the log line above, since the behavior differs by NODE_ENV.
func verifyingKeyFailureMode(production bool) string {
	if production {
		return "be rejected (fail-closed in prod)"
	}
	return "be accepted unverified (fail-open outside prod)"
}

// allowedOrigins reads a comma-separated CORS_ALLOWED_ORIGINS list, or "*"
// when unset (spec.md leaves CORS policy to deployment configuration).
func allowedOrigins() []string {
	raw := os.Getenv("CORS_ALLOWED_ORIGINS")
	if raw == "" {
		return []string{"*"}
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	return origins
}

// bundledRegions is the seed catalog of administrative regions (spec.md
// §4.6's region-restricted audience rules need a stable code list to
// reference). Parent-less entries are top-level regions.
func bundledRegions() []models.Region {
	return []models.Region{
		{Code: "GE-TB", NameEN: "Tbilisi", NameKA: "თბილისი"},
		{Code: "GE-AJ", NameEN: "Adjara", NameKA: "აჭარა"},
		{Code: "GE-GU", NameEN: "Guria", NameKA: "გურია"},
		{Code: "GE-IM", NameEN: "Imereti", NameKA: "იმერეთი"},
		{Code: "GE-KA", NameEN: "Kakheti", NameKA: "კახეთი"},
		{Code: "GE-KK", NameEN: "Kvemo Kartli", NameKA: "ქვემო ქართლი"},
		{Code: "GE-MM", NameEN: "Mtskheta-Mtianeti", NameKA: "მცხეთა-მთიანეთი"},
		{Code: "GE-RL", NameEN: "Racha-Lechkhumi and Kvemo Svaneti", NameKA: "რაჭა-ლეჩხუმი და ქვემო სვანეთი"},
		{Code: "GE-SZ", NameEN: "Samtskhe-Javakheti", NameKA: "სამცხე-ჯავახეთი"},
		{Code: "GE-SK", NameEN: "Shida Kartli", NameKA: "შიდა ქართლი"},
		{Code: "GE-SJ", NameEN: "Samegrelo-Zemo Svaneti", NameKA: "სამეგრელო-ზემო სვანეთი"},
	}
}
