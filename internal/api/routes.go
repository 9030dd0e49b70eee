package api

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/evoctl/internal/autotuner"
	"github.com/rawblock/evoctl/internal/cycle"
	"github.com/rawblock/evoctl/internal/ledger"
	"github.com/rawblock/evoctl/pkg/models"
)

// maxChallengerCount caps a single /cycle/run request to prevent an
// unbounded mutation batch from exhausting the Evaluator's concurrency
// budget.
const maxChallengerCount = 64

// APIHandler is the thin HTTP surface over the Controller/Ledger/Tuner
// collaborators: it never evaluates a challenger or computes a gate
// itself, only marshals requests into a Run call and the result back out.
type APIHandler struct {
	controller *cycle.Controller
	ledger     ledger.Ledger
	tuner      *autotuner.Tuner
	wsHub      *Hub

	mu       chan struct{} // 1-buffered mutex: at most one cycle runs at a time
	champion *models.State
	policy   models.Policy // boot-time default; used for rate limiting and replay when no Tuner is configured
}

// NewAPIHandler wires a Controller, its Ledger, an optional Tuner (nil
// disables the auto-tune endpoint), the broadcast Hub, the initial champion
// State, and the boot-time default Policy (used to size the rate limiter
// and as the pcag_verify policy when no Tuner has produced a fresher one).
func NewAPIHandler(ctrl *cycle.Controller, led ledger.Ledger, tuner *autotuner.Tuner, wsHub *Hub, champion *models.State, policy models.Policy) *APIHandler {
	h := &APIHandler{
		controller: ctrl,
		ledger:     led,
		tuner:      tuner,
		wsHub:      wsHub,
		mu:         make(chan struct{}, 1),
		champion:   champion,
		policy:     policy,
	}
	h.mu <- struct{}{}
	return h
}

// currentPolicy returns the Tuner's live Policy when one is configured,
// otherwise the boot-time default. The rate limiter does not read it: it is
// sized once from the boot-time h.policy in SetupRouter.
func (h *APIHandler) currentPolicy() models.Policy {
	if h.tuner != nil {
		return h.tuner.Policy()
	}
	return h.policy
}

// SetupRouter builds the Gin engine: a public surface for health, the event
// stream, ledger reads/verification and PCAg reads/verification, and a
// bearer-token-protected, rate-limited surface for running cycles and
// reading the Auto-Tuner's policy view.
func SetupRouter(h *APIHandler, wsHub *Hub) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
		pub.GET("/ledger/:sequence", h.handleGetLedgerEntry)
		pub.GET("/ledger/verify", h.handleVerifyLedger)
		pub.GET("/pcag/:cycle_id", h.handleGetPCAg)
		pub.GET("/pcag/:cycle_id/verify", h.handleVerifyPCAg)
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware())
	auth.Use(NewRateLimiterFromPolicy(h.policy).Middleware())
	{
		auth.POST("/cycle/run", h.handleRunCycle)
		auth.POST("/policy/tune", h.handleTunePolicy)
	}

	return r
}

type runCycleRequest struct {
	Policy          models.Policy `json:"policy"`
	Seed            uint64        `json:"seed"`
	ChallengerCount int           `json:"challengerCount"`
	MutationType    string        `json:"mutationType"`
}

// handleRunCycle executes exactly one cycle against the handler's current
// champion State, broadcasts the resulting LedgerEntry over the websocket
// hub, and adopts the returned State as the new champion -- whether or not
// the cycle promoted, since Run already folds "no promotion" into an
// unchanged clone (internal/cycle.Run's own contract).
func (h *APIHandler) handleRunCycle(c *gin.Context) {
	var req runCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ChallengerCount <= 0 || req.ChallengerCount > maxChallengerCount {
		c.JSON(http.StatusBadRequest, gin.H{"error": "challengerCount must be in (0, 64]"})
		return
	}

	select {
	case <-h.mu:
	default:
		c.JSON(http.StatusConflict, gin.H{"error": "a cycle is already running"})
		return
	}
	defer func() { h.mu <- struct{}{} }()

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Minute)
	defer cancel()

	next, entry, err := h.controller.Run(ctx, h.champion, req.Policy, req.Seed, req.ChallengerCount, req.MutationType)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	h.champion = next

	if h.tuner != nil {
		obs := autotuner.Observation{
			Promoted:      entry.Payload.Verdict.AllPassed,
			DeltaLInf:     entry.Payload.DeltaLInf,
			CAOSPlus:      entry.Payload.Dynamics.CAOSPlus,
			SR:            entry.Payload.Dynamics.SR,
			CostTotal:     entry.Payload.Cost.Total(req.Policy.CostScales),
			MetricWeights: req.Policy.MetricWeight,
		}
		if _, terr := h.tuner.Observe(obs); terr != nil {
			// A refused tuning step never blocks the cycle result itself --
			// only the next cycle's Policy is affected, and that Policy is
			// read fresh from the Tuner by the caller.
			c.Writer.Header().Set("X-Autotuner-Warning", terr.Error())
		}
	}

	if h.wsHub != nil {
		h.wsHub.BroadcastLedgerAppend(entry)
	}

	c.JSON(http.StatusOK, gin.H{
		"state":    next,
		"entry":    entry,
		"promoted": entry.Payload.Verdict.AllPassed,
	})
}

func (h *APIHandler) handleTunePolicy(c *gin.Context) {
	if h.tuner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "auto-tuner not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"policy":        h.tuner.Policy(),
		"rounds":        h.tuner.Rounds(),
		"regret":        h.tuner.Regret(),
		"averageRegret": h.tuner.AverageRegret(),
		"rejectedSwaps": h.tuner.RejectedSwaps(),
	})
}

func (h *APIHandler) handleGetLedgerEntry(c *gin.Context) {
	seq, err := strconv.ParseUint(c.Param("sequence"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sequence must be a non-negative integer"})
		return
	}
	entry, ok, err := h.ledger.Get(c.Request.Context(), seq)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entry at that sequence"})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// findPCAg walks the ledger backward from its head looking for the PCAg
// whose CycleID matches cycleID. The Ledger interface has no secondary
// index on CycleID, so a reverse scan is the only option without adding a
// store-specific query path.
func (h *APIHandler) findPCAg(ctx context.Context, cycleID string) (models.PCAg, bool, error) {
	head, ok, err := h.ledger.Head(ctx)
	if err != nil {
		return models.PCAg{}, false, err
	}
	if !ok {
		return models.PCAg{}, false, nil
	}
	for seq := int64(head.Sequence); seq >= 0; seq-- {
		entry, ok, err := h.ledger.Get(ctx, uint64(seq))
		if err != nil {
			return models.PCAg{}, false, err
		}
		if ok && entry.Payload.CycleID == cycleID {
			return entry.Payload, true, nil
		}
	}
	return models.PCAg{}, false, nil
}

func (h *APIHandler) handleGetPCAg(c *gin.Context) {
	pcag, ok, err := h.findPCAg(c.Request.Context(), c.Param("cycle_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no PCAg found for that cycle id"})
		return
	}
	c.JSON(http.StatusOK, pcag)
}

// handleVerifyPCAg replays the named PCAg's recorded evidence through the
// Aggregator, Motor and Guard (ledger.PCAgVerify) and reports whether its
// recorded Verdict is reproducible, not merely whether its bytes are intact.
func (h *APIHandler) handleVerifyPCAg(c *gin.Context) {
	pcag, ok, err := h.findPCAg(c.Request.Context(), c.Param("cycle_id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no PCAg found for that cycle id"})
		return
	}
	report, err := ledger.PCAgVerify(pcag, h.currentPolicy())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !report.OK {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}

func (h *APIHandler) handleVerifyLedger(c *gin.Context) {
	report, err := h.ledger.Verify(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	status := http.StatusOK
	if !report.OK {
		status = http.StatusConflict
	}
	c.JSON(status, report)
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "operational",
		"service":      "evoctl",
		"championVer":  h.champion.Version,
		"tunerEnabled": h.tuner != nil,
	})
}
