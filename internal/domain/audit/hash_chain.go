package audit

import (
	"sort"
	"time"
)

// ChainVerifier checks hash-chain integrity over a sequence of ledger
// entries. A break anywhere in the chain is the system's strongest
// tamper signal.
type ChainVerifier interface {
	VerifySequential(entries []*Entry) (*ChainVerificationResult, error)
	DetectBreaks(entries []*Entry) ([]*ChainBreak, error)
}

// HashChainVerifier implements ChainVerifier.
type HashChainVerifier struct {
	validateTimestamps bool
}

// NewHashChainVerifier creates a verifier with timestamp validation on.
func NewHashChainVerifier() *HashChainVerifier {
	return &HashChainVerifier{validateTimestamps: true}
}

// ChainVerificationResult contains the results of a verification pass.
type ChainVerificationResult struct {
	IsValid          bool          `json:"is_valid"`
	EntriesVerified  int           `json:"entries_verified"`
	ChainBreaks      []*ChainBreak `json:"chain_breaks,omitempty"`
	StartSequence    uint64        `json:"start_sequence,omitempty"`
	EndSequence      uint64        `json:"end_sequence,omitempty"`
	VerificationTime time.Duration `json:"verification_time"`
}

// ChainBreak represents one detected break in the hash chain.
type ChainBreak struct {
	EntryID      string    `json:"entry_id"`
	Sequence     uint64    `json:"sequence"`
	ExpectedHash string    `json:"expected_hash"`
	ActualHash   string    `json:"actual_hash"`
	BreakType    BreakType `json:"break_type"`
	Description  string    `json:"description"`
}

// BreakType categorizes the kind of chain break.
type BreakType string

const (
	BreakTypeHashMismatch     BreakType = "hash_mismatch"
	BreakTypeSequenceGap      BreakType = "sequence_gap"
	BreakTypeTimestampReverse BreakType = "timestamp_reverse"
	BreakTypeMissingHash      BreakType = "missing_hash"
)

// VerifySequential verifies hash-chain integrity for a sequence of
// entries, ordering them by sequence number first.
func (v *HashChainVerifier) VerifySequential(entries []*Entry) (*ChainVerificationResult, error) {
	start := time.Now()

	result := &ChainVerificationResult{
		IsValid:     true,
		ChainBreaks: make([]*ChainBreak, 0),
	}

	if len(entries) == 0 {
		result.VerificationTime = time.Since(start)
		return result, nil
	}

	sorted := make([]*Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Sequence.Before(sorted[j].Sequence)
	})

	result.StartSequence = sorted[0].Sequence.Value()
	result.EndSequence = sorted[len(sorted)-1].Sequence.Value()

	for i, entry := range sorted {
		if entry.EntryHash == "" {
			result.ChainBreaks = append(result.ChainBreaks, &ChainBreak{
				EntryID:     entry.ID.String(),
				Sequence:    entry.Sequence.Value(),
				BreakType:   BreakTypeMissingHash,
				Description: "entry has no hash",
			})
			continue
		}

		if i == 0 {
			result.EntriesVerified++
			continue
		}

		prev := sorted[i-1]

		if entry.Sequence.Value() != prev.Sequence.Value()+1 {
			result.ChainBreaks = append(result.ChainBreaks, &ChainBreak{
				EntryID:     entry.ID.String(),
				Sequence:    entry.Sequence.Value(),
				BreakType:   BreakTypeSequenceGap,
				Description: "non-contiguous sequence numbers",
			})
		}

		if entry.PreviousHash != prev.EntryHash {
			result.ChainBreaks = append(result.ChainBreaks, &ChainBreak{
				EntryID:      entry.ID.String(),
				Sequence:     entry.Sequence.Value(),
				ExpectedHash: prev.EntryHash,
				ActualHash:   entry.PreviousHash,
				BreakType:    BreakTypeHashMismatch,
				Description:  "previous hash does not match preceding entry",
			})
		}

		if v.validateTimestamps && entry.Timestamp.Before(prev.Timestamp) {
			result.ChainBreaks = append(result.ChainBreaks, &ChainBreak{
				EntryID:     entry.ID.String(),
				Sequence:    entry.Sequence.Value(),
				BreakType:   BreakTypeTimestampReverse,
				Description: "timestamp precedes earlier entry",
			})
		}

		result.EntriesVerified++
	}

	result.IsValid = len(result.ChainBreaks) == 0
	result.VerificationTime = time.Since(start)
	return result, nil
}

// DetectBreaks returns only the breaks found in a sequence.
func (v *HashChainVerifier) DetectBreaks(entries []*Entry) ([]*ChainBreak, error) {
	result, err := v.VerifySequential(entries)
	if err != nil {
		return nil, err
	}
	return result.ChainBreaks, nil
}
