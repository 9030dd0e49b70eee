package models

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"time"
)

// State is the mutable object advanced by the Update Engine: a dense
// parameter vector of fixed length per run, a monotonically increasing
// version counter, a content-addressed snapshot hash, and the timestamp of
// the last successful update. Created at genesis; mutated only via the
// Updater; superseded entries are never destroyed, only outlived in the
// ledger.
type State struct {
	Vector        []float64 `json:"vector"`
	Version       uint64    `json:"version"`
	SnapshotHash  string    `json:"snapshotHash"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}

// Norm returns the Euclidean norm of the parameter vector.
func (s *State) Norm() float64 {
	var sumSq float64
	for _, v := range s.Vector {
		sumSq += v * v
	}
	return math.Sqrt(sumSq)
}

// Clone returns a deep copy so callers (Aggregator, Guard, Motor) can hold a
// read-only view without risking a write through shared backing arrays.
func (s *State) Clone() *State {
	vec := make([]float64, len(s.Vector))
	copy(vec, s.Vector)
	return &State{
		Vector:        vec,
		Version:       s.Version,
		SnapshotHash:  s.SnapshotHash,
		LastUpdatedAt: s.LastUpdatedAt,
	}
}

// RecomputeSnapshotHash content-addresses the full state (vector + version)
// and sets SnapshotHash. Called by NewGenesisState and by the Updater
// immediately before a commit.
func (s *State) RecomputeSnapshotHash() {
	h := sha256.New()
	var versionBuf [8]byte
	binary.BigEndian.PutUint64(versionBuf[:], s.Version)
	h.Write(versionBuf[:])
	for _, v := range s.Vector {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(v))
		h.Write(buf[:])
	}
	s.SnapshotHash = hex.EncodeToString(h.Sum(nil))
}

// NewGenesisState builds version-0 state for a fixed-length parameter
// vector, e.g. the all-zero champion at the start of a run.
func NewGenesisState(dim int) *State {
	s := &State{
		Vector:        make([]float64, dim),
		Version:       0,
		LastUpdatedAt: time.Now(),
	}
	s.RecomputeSnapshotHash()
	return s
}
