package audit

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

func buildChain(t *testing.T, n int) []*Entry {
	t.Helper()
	actor := uuid.New()
	entries := make([]*Entry, 0, n)
	prevHash := ""
	for i := 1; i <= n; i++ {
		entry, err := NewEntry(ActionView, actor)
		require.NoError(t, err)
		hash, err := entry.Seal(values.MustNewSequenceNumber(uint64(i)), prevHash)
		require.NoError(t, err)
		entries = append(entries, entry)
		prevHash = hash
	}
	return entries
}

func TestVerifySequentialValidChain(t *testing.T) {
	v := NewHashChainVerifier()

	result, err := v.VerifySequential(buildChain(t, 5))
	require.NoError(t, err)

	assert.True(t, result.IsValid)
	assert.Equal(t, 5, result.EntriesVerified)
	assert.Empty(t, result.ChainBreaks)
	assert.Equal(t, uint64(1), result.StartSequence)
	assert.Equal(t, uint64(5), result.EndSequence)
}

func TestVerifySequentialEmpty(t *testing.T) {
	v := NewHashChainVerifier()
	result, err := v.VerifySequential(nil)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestVerifySequentialOrdersBySequence(t *testing.T) {
	entries := buildChain(t, 4)
	shuffled := []*Entry{entries[2], entries[0], entries[3], entries[1]}

	result, err := NewHashChainVerifier().VerifySequential(shuffled)
	require.NoError(t, err)
	assert.True(t, result.IsValid)
}

func TestDetectHashMismatch(t *testing.T) {
	entries := buildChain(t, 3)
	entries[2].PreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"

	breaks, err := NewHashChainVerifier().DetectBreaks(entries)
	require.NoError(t, err)
	require.NotEmpty(t, breaks)
	assert.Equal(t, BreakTypeHashMismatch, breaks[0].BreakType)
	assert.Equal(t, uint64(3), breaks[0].Sequence)
}

func TestDetectSequenceGap(t *testing.T) {
	entries := buildChain(t, 3)
	gapped := []*Entry{entries[0], entries[2]}

	result, err := NewHashChainVerifier().VerifySequential(gapped)
	require.NoError(t, err)
	assert.False(t, result.IsValid)

	var foundGap bool
	for _, b := range result.ChainBreaks {
		if b.BreakType == BreakTypeSequenceGap {
			foundGap = true
		}
	}
	assert.True(t, foundGap)
}

func TestDetectMissingHash(t *testing.T) {
	entries := buildChain(t, 2)
	entries[1].EntryHash = ""

	result, err := NewHashChainVerifier().VerifySequential(entries)
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.ChainBreaks, 1)
	assert.Equal(t, BreakTypeMissingHash, result.ChainBreaks[0].BreakType)
}
