package anchor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bricspay/transfer-core/pkg/digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAnchorServer(t *testing.T, records map[string]map[string]interface{}) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/invoke", func(w http.ResponseWriter, r *http.Request) {
		var inv invocation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&inv))
		require.Equal(t, "RecordTransaction", inv.Function)
		require.Len(t, inv.Args, 1)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(inv.Args[0]), &payload))
		id, _ := payload["transaction_id"].(string)
		if id == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		records[id] = payload
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/query", func(w http.ResponseWriter, r *http.Request) {
		var inv invocation
		require.NoError(t, json.NewDecoder(r.Body).Decode(&inv))
		require.Equal(t, "GetTransaction", inv.Function)

		rec := records[inv.Args[0]]
		json.NewEncoder(w).Encode(map[string]interface{}{"result": rec})
	})
	return httptest.NewServer(mux)
}

func TestRESTClient_HealthProbeSelectsTier(t *testing.T) {
	srv := newAnchorServer(t, map[string]map[string]interface{}{})
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "bricschannel", "bricstransfer")
	require.NoError(t, err)
	assert.Equal(t, TierREST, c.Tier())
}

func TestRESTClient_ProbeFailureRejectsConstruction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewRESTClient(srv.URL, "bricschannel", "bricstransfer")
	require.Error(t, err)
}

func TestRESTClient_RecordAndVerify(t *testing.T) {
	records := map[string]map[string]interface{}{}
	srv := newAnchorServer(t, records)
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "bricschannel", "bricstransfer")
	require.NoError(t, err)

	payload := digest.Record{"transaction_id": "tx-1", "amount_sent": 100.0}
	ok, msg := c.Record(context.Background(), payload)
	require.True(t, ok, msg)

	ok, rec, msg := c.Verify(context.Background(), "tx-1")
	require.True(t, ok, msg)
	assert.Equal(t, "tx-1", rec["transaction_id"])
}

func TestRESTClient_VerifyNotFound(t *testing.T) {
	srv := newAnchorServer(t, map[string]map[string]interface{}{})
	defer srv.Close()

	c, err := NewRESTClient(srv.URL, "bricschannel", "bricstransfer")
	require.NoError(t, err)

	ok, rec, msg := c.Verify(context.Background(), "missing")
	assert.False(t, ok)
	assert.Nil(t, rec)
	assert.Equal(t, "transaction not found on anchor ledger", msg)
}

func TestRESTClient_RecordFailureIsNonFatal(t *testing.T) {
	srv := newAnchorServer(t, map[string]map[string]interface{}{})
	url := srv.URL
	c, err := NewRESTClient(url, "bricschannel", "bricstransfer")
	require.NoError(t, err)
	srv.Close()

	ok, msg := c.Record(context.Background(), digest.Record{"transaction_id": "tx-1"})
	assert.False(t, ok)
	assert.NotEmpty(t, msg)
}

func TestLocalClient_SoftSuccess(t *testing.T) {
	c := NewLocalClient()
	assert.Equal(t, TierLocal, c.Tier())

	ok, msg := c.Record(context.Background(), digest.Record{"transaction_id": "tx-1"})
	assert.True(t, ok)
	assert.Equal(t, "anchoring unavailable, recorded locally only", msg)

	ok, rec, msg := c.Verify(context.Background(), "tx-1")
	assert.False(t, ok)
	assert.Nil(t, rec)
	assert.Equal(t, "verification unavailable", msg)
}
