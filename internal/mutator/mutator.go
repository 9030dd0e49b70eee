// Package mutator generates challengers from a champion state. Grounded on
// the teacher's production/shadow function-pair pattern
// (internal/shadow/shadow_runner.go's ShadowRunner, which runs two
// differently-configured functions over the same input and diffs them): the
// Mutator is the thing that manufactures the "shadow" side of that
// comparison, here a batch of challengers to be scored against the
// champion by the Evaluator and Aggregator.
//
// Every challenger is a pure, deterministic function of (champion, seed,
// index): given the same three inputs, Propose always returns byte-identical
// challengers, so a PCAg can be independently replayed from its recorded
// seed without re-running any randomness live.
package mutator

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"

	"github.com/google/uuid"

	"github.com/rawblock/evoctl/pkg/evoerrs"
	"github.com/rawblock/evoctl/pkg/models"
)

// challengerNamespace is a fixed UUID namespace used to derive each
// challenger's ID deterministically from its content hash via
// uuid.NewSHA1, the same way the teacher derives a stable identity from
// content rather than from a random generator.
var challengerNamespace = uuid.MustParse("6f1b1bba-0000-4000-8000-000000000001")

const maxResampleAttempts = 16

// Mutator proposes challengers around a champion's parameter vector.
type Mutator struct {
	// MinDistance is the minimum Euclidean distance (spec.md Sec 3's
	// Challenger invariant) a proposed challenger must keep from the
	// champion and from every other challenger already proposed this batch.
	MinDistance float64
	// Sigma is the standard deviation of the Gaussian perturbation applied
	// per coordinate before the minimum-distance check.
	Sigma float64
}

// New returns a Mutator with the given distance floor and perturbation
// scale. Both must be positive.
func New(minDistance, sigma float64) *Mutator {
	return &Mutator{MinDistance: minDistance, Sigma: sigma}
}

// Propose generates n challengers from champion using seed as the sole
// source of randomness. mutationType is recorded verbatim on each
// challenger (spec.md's "parametric" | "perturbation" | "prompt_variant").
func (m *Mutator) Propose(champion *models.State, seed uint64, n int, mutationType string) ([]models.Challenger, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: challenger count must be positive, got %d", evoerrs.ErrEvidenceError, n)
	}
	if m.MinDistance <= 0 || m.Sigma <= 0 {
		return nil, fmt.Errorf("%w: mutator requires a positive min_distance and sigma", evoerrs.ErrConfigError)
	}

	challengers := make([]models.Challenger, 0, n)
	for i := 0; i < n; i++ {
		params, err := m.proposeOne(champion.Vector, challengers, seed, i)
		if err != nil {
			return nil, err
		}
		hash := contentHash(champion.SnapshotHash, params, i)
		challengers = append(challengers, models.Challenger{
			ID:           uuid.NewSHA1(challengerNamespace, []byte(hash)).String(),
			MutationType: mutationType,
			Params:       params,
			Hash:         hash,
		})
	}
	return challengers, nil
}

// proposeOne draws Gaussian perturbations of the champion's vector,
// resampling with a growing step size until the candidate clears
// MinDistance from the champion and from every challenger already accepted
// in this batch, or gives up after maxResampleAttempts and returns an
// EvidenceError -- a MinDistance the perturbation scale can't plausibly
// satisfy is a configuration problem, not something to paper over.
func (m *Mutator) proposeOne(championVector []float64, existing []models.Challenger, seed uint64, index int) ([]float64, error) {
	rng := rand.New(rand.NewSource(deriveSeed(seed, index, 0)))
	sigma := m.Sigma

	for attempt := 0; attempt < maxResampleAttempts; attempt++ {
		if attempt > 0 {
			rng = rand.New(rand.NewSource(deriveSeed(seed, index, attempt)))
			sigma *= 1.5
		}
		candidate := make([]float64, len(championVector))
		for i, v := range championVector {
			candidate[i] = v + rng.NormFloat64()*sigma
		}
		if models.Distance(candidate, championVector) < m.MinDistance {
			continue
		}
		tooClose := false
		for _, c := range existing {
			if models.Distance(candidate, c.Params) < m.MinDistance {
				tooClose = true
				break
			}
		}
		if tooClose {
			continue
		}
		return candidate, nil
	}
	return nil, fmt.Errorf(
		"%w: could not produce a challenger >= min_distance %v from champion and peers after %d attempts",
		evoerrs.ErrEvidenceError, m.MinDistance, maxResampleAttempts,
	)
}

// deriveSeed combines the batch seed with the challenger index and the
// resample attempt into a single int64 source, so every resample draws
// from an independent but still fully deterministic stream.
func deriveSeed(seed uint64, index, attempt int) int64 {
	var buf [24]byte
	binary.BigEndian.PutUint64(buf[0:8], seed)
	binary.BigEndian.PutUint64(buf[8:16], uint64(index))
	binary.BigEndian.PutUint64(buf[16:24], uint64(attempt))
	sum := sha256.Sum256(buf[:])
	return int64(binary.BigEndian.Uint64(sum[:8]) &^ (1 << 63))
}

// contentHash mirrors the teacher's createEdge audit-hash pattern
// (sha256 over the previous hash plus payload) by content-addressing a
// challenger from its parent's snapshot hash and its own parameter vector,
// rather than from any generator identity.
func contentHash(championHash string, params []float64, index int) string {
	h := sha256.New()
	h.Write([]byte(championHash))
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], uint64(index))
	h.Write(idxBuf[:])
	for _, p := range params {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(p))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
