package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"
)

// Assumes the transfer service is running locally.
const ServiceURL = "http://localhost:8080"

var rates = map[string]float64{"CN": 4.0, "IN": 2.0, "RU": 1.5, "BR": 2.5, "ZA": 3.0}

func TestTransferFlow(t *testing.T) {
	if _, err := http.Get(ServiceURL + "/health"); err != nil {
		t.Skipf("transfer service not running: %v", err)
	}

	suffix := time.Now().Unix()
	alice := fmt.Sprintf("alice-%d", suffix)
	bob := fmt.Sprintf("bob-%d", suffix)

	register(t, alice, "India", "INR")
	register(t, bob, "China", "CNY")

	aliceToken := login(t, alice)
	bobToken := login(t, bob)

	// Alice sends 100 INR to Bob.
	doJSON(t, "POST", "/transfers", aliceToken, map[string]interface{}{
		"receiver_username": bob,
		"amount":            100,
		"description":       "e2e transfer",
		"rates":             rates,
	}, http.StatusOK)

	// Bob requests 50 CNY from Alice and Alice approves.
	var reqOut struct {
		Data struct {
			TransactionID string `json:"transaction_id"`
		} `json:"data"`
	}
	doJSONInto(t, "POST", "/requests", bobToken, map[string]interface{}{
		"payer_username": alice,
		"amount":         50,
		"basis":          "requester",
		"rates":          rates,
	}, &reqOut)

	doJSON(t, "POST", "/requests/"+reqOut.Data.TransactionID+"/respond", aliceToken, map[string]interface{}{
		"action": "approve",
		"rates":  rates,
	}, http.StatusOK)

	checkBalance(t, aliceToken)
	checkBalance(t, bobToken)
}

func register(t *testing.T, username, country, currency string) {
	t.Helper()
	payload := map[string]string{
		"username": username,
		"password": "e2e-password",
		"country":  country,
		"currency": currency,
	}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(ServiceURL+"/auth/register", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s failed with status: %d", username, resp.StatusCode)
	}
}

func login(t *testing.T, username string) string {
	t.Helper()
	payload := map[string]string{"username": username, "password": "e2e-password"}
	body, _ := json.Marshal(payload)
	resp, err := http.Post(ServiceURL+"/auth/login", "application/json", bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to login %s: %v", username, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s failed with status: %d", username, resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}
	return out.Token
}

func doJSON(t *testing.T, method, path, token string, payload interface{}, wantStatus int) {
	t.Helper()
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(method, ServiceURL+path, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s returned status %d, want %d", method, path, resp.StatusCode, wantStatus)
	}
}

func doJSONInto(t *testing.T, method, path, token string, payload, out interface{}) {
	t.Helper()
	body, _ := json.Marshal(payload)
	req, err := http.NewRequest(method, ServiceURL+path, bytes.NewBuffer(body))
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("%s %s returned status %d", method, path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode %s response: %v", path, err)
	}
}

func checkBalance(t *testing.T, token string) {
	t.Helper()
	req, _ := http.NewRequest("GET", ServiceURL+"/balance", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("balance query failed: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Balance  float64 `json:"balance"`
		Currency string  `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode balance: %v", err)
	}
	t.Logf("balance: %.2f %s", out.Balance, out.Currency)
}
