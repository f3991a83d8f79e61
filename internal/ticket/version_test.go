package ticket

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memIndex struct {
	numbers []string
}

func (m *memIndex) TicketNumberExists(_ context.Context, number string) (bool, error) {
	for _, n := range m.numbers {
		if strings.EqualFold(n, number) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memIndex) TicketNumbersWithBase(_ context.Context, base string) ([]string, error) {
	var out []string
	for _, n := range m.numbers {
		if strings.HasPrefix(strings.ToLower(n), strings.ToLower(base)) {
			out = append(out, n)
		}
	}
	return out, nil
}

func TestResolveNumberAssignsNextSuffix(t *testing.T) {
	idx := &memIndex{numbers: []string{"1005", "1005.1", "1005.3"}}

	assigned, duplicate, err := ResolveNumber(context.Background(), idx, "1005")

	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, "1005.4", assigned)
}

func TestResolveNumberFreshCandidatePassesThrough(t *testing.T) {
	assigned, duplicate, err := ResolveNumber(context.Background(), &memIndex{}, "77")

	require.NoError(t, err)
	assert.False(t, duplicate)
	assert.Equal(t, "77", assigned)
}

func TestResolveNumberVersionedCandidateSharesBase(t *testing.T) {
	idx := &memIndex{numbers: []string{"1005", "1005.2"}}

	assigned, duplicate, err := ResolveNumber(context.Background(), idx, "1005.2")

	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, "1005.3", assigned)
}

func TestResolveNumberBareBaseCountsAsZero(t *testing.T) {
	idx := &memIndex{numbers: []string{"ab-9"}}

	assigned, duplicate, err := ResolveNumber(context.Background(), idx, "AB-9")

	require.NoError(t, err)
	assert.True(t, duplicate)
	assert.Equal(t, "AB-9.1", assigned)
}

func TestResolveNumberIgnoresUnrelatedPrefixMatches(t *testing.T) {
	// "10051" shares the prefix but is not a version of "1005".
	idx := &memIndex{numbers: []string{"1005", "10051", "1005.x"}}

	assigned, _, err := ResolveNumber(context.Background(), idx, "1005")

	require.NoError(t, err)
	assert.Equal(t, "1005.1", assigned)
}
