package ledger

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
)

func TestVerifyChainClean(t *testing.T) {
	rows := []Entry{
		{ID: 1, Seq: 1, Debit: 500, Balance: 500},
		{ID: 2, Seq: 2, Credit: 200, Balance: 300},
		{ID: 3, Seq: 3, Credit: 300, Balance: 0},
	}
	require.Empty(t, VerifyChain(cash, rows))
}

func TestVerifyChainFindsProblems(t *testing.T) {
	rows := []Entry{
		{ID: 1, Seq: 1, Credit: 500, Balance: 500},
		{ID: 2, Seq: 3, Credit: 100, Balance: 650},
		{ID: 3, Seq: 4, Debit: 50, Credit: 50, Balance: 650},
	}
	issues := VerifyChain(revenue, rows)
	require.Len(t, issues, 3)
	assert.True(t, strings.HasPrefix(issues[0].Reason, "sequence gap"))
	assert.Equal(t, "running balance mismatch", issues[1].Reason)
	assert.Equal(t, shared.Amount(600), issues[1].Expected)
	assert.Equal(t, shared.Amount(650), issues[1].Actual)
	assert.Equal(t, int64(3), issues[2].EntryID)
	assert.Contains(t, issues[2].String(), "seq 4")
}
