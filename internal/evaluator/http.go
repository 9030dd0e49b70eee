package evaluator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// HTTPEvaluator scores a challenger by POSTing its parameter vector to an
// external scoring service and decoding its Evidence back. Grounded on the
// teacher's raw direct-HTTP-POST calls in internal/bitcoin/client.go
// (ScanTxOutset, GetTxOutSetInfoLong): those reach for net/http instead of
// the RPC client's own round-trip because the call needs a timeout the
// shared client doesn't offer, exactly HTTPEvaluator's situation with
// PerChallengerTimeout already owned by Suite -- so HTTPEvaluator leaves
// its own http.Client timeout at zero and lets context cancellation (set by
// Suite.runOne) be the only deadline, rather than racing two timeouts
// against each other the way the teacher's code does not need to.
type HTTPEvaluator struct {
	Endpoint string
	Client   *http.Client
}

// NewHTTPEvaluator returns an HTTPEvaluator posting to endpoint. A nil
// *http.Client defaults to http.DefaultClient.
func NewHTTPEvaluator(endpoint string, client *http.Client) *HTTPEvaluator {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPEvaluator{Endpoint: endpoint, Client: client}
}

type evaluateRequest struct {
	ChallengerID string    `json:"challengerId"`
	MutationType string    `json:"mutationType"`
	Params       []float64 `json:"params"`
	Hash         string    `json:"hash"`
}

type evaluateResponse struct {
	Metrics  models.MetricSet      `json:"metrics"`
	Cost     models.CostComponents `json:"cost"`
	Evidence models.Evidence       `json:"evidence"`
}

// Evaluate implements Evaluator by round-tripping challenger to the
// configured scoring endpoint. A non-200 response or a body that fails to
// decode is reported as evoerrs.ErrEvidenceError -- the same failure class
// Suite.runOne already rescues per-challenger.
func (h *HTTPEvaluator) Evaluate(ctx context.Context, challenger models.Challenger) (models.MetricSet, models.CostComponents, models.Evidence, error) {
	body, err := json.Marshal(evaluateRequest{
		ChallengerID: challenger.ID,
		MutationType: challenger.MutationType,
		Params:       challenger.Params,
		Hash:         challenger.Hash,
	})
	if err != nil {
		return nil, models.CostComponents{}, models.Evidence{}, fmt.Errorf("%w: encode challenger: %v", evoerrs.ErrEvidenceError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, models.CostComponents{}, models.Evidence{}, fmt.Errorf("%w: build scoring request: %v", evoerrs.ErrEvidenceError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.Client.Do(req)
	if err != nil {
		return nil, models.CostComponents{}, models.Evidence{}, fmt.Errorf("%w: scoring request failed: %v", evoerrs.ErrEvidenceError, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.CostComponents{}, models.Evidence{}, fmt.Errorf("%w: read scoring response: %v", evoerrs.ErrEvidenceError, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, models.CostComponents{}, models.Evidence{}, fmt.Errorf("%w: scoring service returned %d: %s", evoerrs.ErrEvidenceError, resp.StatusCode, string(raw))
	}

	var out evaluateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, models.CostComponents{}, models.Evidence{}, fmt.Errorf("%w: decode scoring response: %v", evoerrs.ErrEvidenceError, err)
	}
	return out.Metrics, out.Cost, out.Evidence, nil
}

// WithTimeout returns a copy of h whose underlying *http.Client carries a
// fixed timeout, for callers that want a hard ceiling independent of ctx
// (e.g. a scoring service known to hang rather than honor cancellation).
func (h *HTTPEvaluator) WithTimeout(d time.Duration) *HTTPEvaluator {
	c := *h.Client
	c.Timeout = d
	return &HTTPEvaluator{Endpoint: h.Endpoint, Client: &c}
}
