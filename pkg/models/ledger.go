package models

import "time"

// LedgerEntry is one append-only, hash-chained record of the WORM ledger.
// Payload is the full PCAg for the cycle. Genesis entry has PreviousHash =
// the all-zero digest. Sequence is strictly increasing in commit order;
// entries are never deleted or rewritten.
type LedgerEntry struct {
	Sequence     uint64    `json:"sequence"`
	Timestamp    time.Time `json:"timestamp"`
	PreviousHash string    `json:"previousHash"`
	PayloadHash  string    `json:"payloadHash"`
	Payload      PCAg      `json:"payload"`
	Signature    string    `json:"signature,omitempty"`
}

// PCAg (Proof-Carrying Artifact) is the self-contained decision record for
// one cycle. A verifier holding only the PCAg and the referenced Policy
// must be able to recompute L_inf, CAOS+, SR, re-run every gate, and obtain
// the same Verdict -- or the artifact is fraudulent.
type PCAg struct {
	CycleID         string           `json:"cycleId"` // uuid; ordering comes from the LedgerEntry's Sequence
	ChampionHash    string           `json:"championHash"`
	ChallengerHash  string           `json:"challengerHash"`
	Metrics         MetricSet        `json:"metrics"`
	Cost            CostComponents   `json:"cost"`
	EthicsEvidence  EthicsReport     `json:"ethicsEvidence"`
	Dynamics        DynamicsSnapshot `json:"dynamics"`
	AlphaEff        float64          `json:"alphaEff"`
	LInfChampion    float64          `json:"lInfChampion"`
	LInfChallenger  float64          `json:"lInfChallenger"`
	DeltaLInf       float64          `json:"deltaLInf"`
	Gates           []GateResult     `json:"gates"`
	Verdict         Verdict          `json:"verdict"`
	EvidenceRoot    string           `json:"evidenceMerkleRoot"`
	PolicySnapshot  string           `json:"policySnapshotHash"`
	ErrorChain      []string         `json:"errorChain,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}
