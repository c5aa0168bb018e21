package anchor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bricspay/transfer-core/pkg/digest"
)

const (
	probeTimeout  = 2 * time.Second
	invokeTimeout = 5 * time.Second
)

// RESTClient is the minimal network tier, speaking to an HTTP gateway in
// front of the anchor ledger.
type RESTClient struct {
	baseURL   string
	channel   string
	chaincode string
	client    *http.Client
}

// invocation is the wire body for both /invoke and /query.
type invocation struct {
	Function    string   `json:"function"`
	Args        []string `json:"args"`
	ChannelID   string   `json:"channelId"`
	ChaincodeID string   `json:"chaincodeId"`
}

// NewRESTClient probes the gateway's health endpoint with a short timeout
// and fails construction if it does not answer, so the resolver can fall
// through to local-only mode.
func NewRESTClient(baseURL, channel, chaincode string) (*RESTClient, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	probe := &http.Client{Timeout: probeTimeout}
	resp, err := probe.Get(baseURL + "/health")
	if err != nil {
		return nil, fmt.Errorf("anchor health probe failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("anchor health probe returned status %d", resp.StatusCode)
	}

	return &RESTClient{
		baseURL:   baseURL,
		channel:   channel,
		chaincode: chaincode,
		client:    &http.Client{Timeout: invokeTimeout},
	}, nil
}

func (c *RESTClient) Tier() Tier {
	return TierREST
}

func (c *RESTClient) Record(ctx context.Context, payload digest.Record) (bool, string) {
	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("failed to serialize anchor payload: %v", err)
	}

	body, err := json.Marshal(invocation{
		Function:    "RecordTransaction",
		Args:        []string{string(data)},
		ChannelID:   c.channel,
		ChaincodeID: c.chaincode,
	})
	if err != nil {
		return false, fmt.Sprintf("failed to serialize invocation: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("anchor request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("anchor unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Sprintf("anchor rejected transaction, status %d", resp.StatusCode)
	}
	return true, "transaction recorded on anchor ledger"
}

func (c *RESTClient) Verify(ctx context.Context, transactionID string) (bool, map[string]interface{}, string) {
	body, err := json.Marshal(invocation{
		Function:    "GetTransaction",
		Args:        []string{transactionID},
		ChannelID:   c.channel,
		ChaincodeID: c.chaincode,
	})
	if err != nil {
		return false, nil, fmt.Sprintf("failed to serialize invocation: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/query", bytes.NewReader(body))
	if err != nil {
		return false, nil, fmt.Sprintf("anchor request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, nil, fmt.Sprintf("anchor unreachable: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil, fmt.Sprintf("anchor verification failed, status %d", resp.StatusCode)
	}

	var out struct {
		Result map[string]interface{} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, nil, fmt.Sprintf("malformed anchor response: %v", err)
	}
	if out.Result == nil {
		return false, nil, "transaction not found on anchor ledger"
	}
	return true, out.Result, ""
}
