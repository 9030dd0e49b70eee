package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/rawblock/evoctl/internal/api"
	"github.com/rawblock/evoctl/internal/autotuner"
	"github.com/rawblock/evoctl/internal/cycle"
	"github.com/rawblock/evoctl/internal/evaluator"
	"github.com/rawblock/evoctl/internal/ledger"
	"github.com/rawblock/evoctl/internal/motor"
	"github.com/rawblock/evoctl/internal/mutator"
	"github.com/rawblock/evoctl/pkg/models"
)

func main() {
	log.Println("Starting evoctl self-evolutionary controller...")

	// ─── Required Environment Variables ─────────────────────────────────
	// All credentials MUST come from environment variables. No fallback
	// defaults for security-sensitive values. Use a .env file for local
	// development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────

	ledgerDSN := requireEnv("LEDGER_DATABASE_URL")

	led, err := ledger.ConnectPostgres(context.Background(), ledgerDSN)
	if err != nil {
		log.Printf("Warning: failed to connect to the WORM ledger database, falling back to an in-memory ledger (NOT durable, NOT safe for production): %v", err)
	} else {
		defer led.Close()
	}

	var activeLedger ledger.Ledger = led
	if led == nil {
		activeLedger = ledger.NewMemory()
	}

	scoringEndpoint := requireEnv("SCORING_ENDPOINT")
	httpEval := evaluator.NewHTTPEvaluator(scoringEndpoint, &http.Client{})

	suite := &evaluator.Suite{
		Evaluator:            httpEval,
		PerChallengerTimeout: envDuration("EVAL_TIMEOUT", 30*time.Second),
		Concurrency:          envInt("EVAL_CONCURRENCY", 8),
	}

	mut := mutator.New(envFloat("MUTATOR_MIN_DISTANCE", 0.01), envFloat("MUTATOR_SIGMA", 0.05))
	mtr := motor.New(envFloat("CAOS_HALF_LIFE", 5), envFloat("SR_HALF_LIFE", 5))

	ctrl := cycle.New(mut, suite, mtr, activeLedger)

	policy := models.DefaultPolicy()
	tuner, err := autotuner.New(policy, envFloat("AUTOTUNER_ETA", 0.05))
	if err != nil {
		log.Fatalf("FATAL: default policy failed validation: %v", err)
	}

	champion := models.NewGenesisState(envInt("STATE_DIM", 8))

	// Setup WebSocket Hub, mirroring the teacher's boot sequence: build the
	// hub, start its fan-out loop, then hand it to both the handler and the
	// router so a ledger append and a client subscription can never race
	// against an unstarted Run loop.
	wsHub := api.NewHub()
	go wsHub.Run()

	handler := api.NewAPIHandler(ctrl, activeLedger, tuner, wsHub, champion, policy)
	r := api.SetupRouter(handler, wsHub)

	port := getEnvOrDefault("PORT", "8090")
	log.Printf("Controller running on :%s\n", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// requireEnv reads a required environment variable and exits if it is not
// set. This prevents the binary from starting with missing critical
// configuration.
func requireEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		log.Fatalf("FATAL: Required environment variable %s is not set. "+
			"Copy .env.example to .env and fill in your values: cp .env.example .env", key)
	}
	return val
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
