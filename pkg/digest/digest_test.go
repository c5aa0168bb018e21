package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSum_DeterministicAcrossInsertionOrder(t *testing.T) {
	a := Record{}
	a["transaction_id"] = "tx-1"
	a["sender_id"] = "alice"
	a["receiver_id"] = "bob"
	a["amount_sent"] = 100.0

	b := Record{}
	b["amount_sent"] = 100.0
	b["receiver_id"] = "bob"
	b["transaction_id"] = "tx-1"
	b["sender_id"] = "alice"

	require.Equal(t, Sum(a), Sum(b))
}

func TestSum_FixedLengthHex(t *testing.T) {
	d := Sum(Record{"transaction_id": "tx-1"})
	assert.Len(t, d, 64)
	assert.Equal(t, strings.ToLower(d), d)
	for _, c := range d {
		assert.Contains(t, "0123456789abcdef", string(c))
	}
}

func TestSum_SensitiveToFieldChanges(t *testing.T) {
	base := Record{"transaction_id": "tx-1", "amount_sent": 100.0}
	changed := Record{"transaction_id": "tx-1", "amount_sent": 100.5}
	assert.NotEqual(t, Sum(base), Sum(changed))
}

func TestSum_NestedRecordsStable(t *testing.T) {
	a := Record{"outer": map[string]interface{}{"x": 1, "y": 2}, "id": "t"}
	b := Record{"id": "t", "outer": map[string]interface{}{"y": 2, "x": 1}}
	assert.Equal(t, Sum(a), Sum(b))
}
