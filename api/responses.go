package api

import (
	"github.com/xraph/tenure"
	"github.com/xraph/tenure/audit"
)

// AuthorizeResponse is the response for an authorization check.
type AuthorizeResponse struct {
	SubjectID     string      `json:"subject_id" description:"Subject identifier"`
	RequiredTier  tenure.Tier `json:"required_tier" description:"Tier that was required"`
	EffectiveTier tenure.Tier `json:"effective_tier" description:"Subject's effective tier"`
	Allowed       bool        `json:"allowed" description:"Whether the subject meets the required tier"`
}

// TierResponse reports a subject's effective tier.
type TierResponse struct {
	SubjectID     string      `json:"subject_id" description:"Subject identifier"`
	EffectiveTier tenure.Tier `json:"effective_tier" description:"Highest tier in force, or none"`
}

// VerifyResponse reports the outcome of an audit chain walk.
type VerifyResponse struct {
	Valid    bool   `json:"valid" description:"Whether every entry links and hashes correctly"`
	Entries  int64  `json:"entries" description:"Entries checked"`
	HeadSeq  int64  `json:"head_seq,omitempty" description:"Sequence of the newest entry"`
	HeadHash string `json:"head_hash,omitempty" description:"Hash of the newest entry"`
	BrokenAt int64  `json:"broken_at,omitempty" description:"First sequence that failed verification"`
	Reason   string `json:"reason,omitempty" description:"Why verification failed"`
}

func toVerifyResponse(r *audit.Report) *VerifyResponse {
	return &VerifyResponse{
		Valid:    true,
		Entries:  r.Entries,
		HeadSeq:  r.HeadSeq,
		HeadHash: r.HeadHash,
	}
}
