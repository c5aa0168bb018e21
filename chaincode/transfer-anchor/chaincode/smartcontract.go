package chaincode

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperledger/fabric-contract-api-go/contractapi"
)

// AnchorRecord is what the ledger stores per transaction: the digest of
// the submitted payload plus the payload itself for audit.
type AnchorRecord struct {
	TransactionID string                 `json:"transaction_id"`
	Hash          string                 `json:"hash"`
	Payload       map[string]interface{} `json:"payload"`
	RecordedAt    int64                  `json:"recorded_at"`
}

// SmartContract anchors transfer digests for later integrity checks.
type SmartContract struct {
	contractapi.Contract
}

// RecordTransaction stores the payload keyed by its transaction id. The
// hash is computed over the raw payload bytes as submitted, so a client
// holding the same canonical serialization can recompute and compare it.
func (s *SmartContract) RecordTransaction(ctx contractapi.TransactionContextInterface, payloadJSON string) error {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v", err)
	}

	txID, _ := payload["transaction_id"].(string)
	if txID == "" {
		return fmt.Errorf("payload missing transaction_id")
	}

	// The first record for an id is authoritative; later submissions for
	// the same id (request status updates) are kept under a derived key so
	// the original digest stays queryable.
	key := txID
	existing, err := ctx.GetStub().GetState(txID)
	if err != nil {
		return fmt.Errorf("failed to read state: %v", err)
	}
	if existing != nil {
		key = txID + ":" + ctx.GetStub().GetTxID()
	}

	sum := sha256.Sum256([]byte(payloadJSON))
	record := AnchorRecord{
		TransactionID: txID,
		Hash:          hex.EncodeToString(sum[:]),
		Payload:       payload,
		RecordedAt:    time.Now().Unix(),
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return ctx.GetStub().PutState(key, recordBytes)
}

// GetTransaction returns the anchored record for a transaction id.
func (s *SmartContract) GetTransaction(ctx contractapi.TransactionContextInterface, transactionID string) (*AnchorRecord, error) {
	recordBytes, err := ctx.GetStub().GetState(transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %v", err)
	}
	if recordBytes == nil {
		return nil, fmt.Errorf("transaction %s not found", transactionID)
	}

	var record AnchorRecord
	if err := json.Unmarshal(recordBytes, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// TransactionExists reports whether a transaction id has been anchored.
func (s *SmartContract) TransactionExists(ctx contractapi.TransactionContextInterface, transactionID string) (bool, error) {
	recordBytes, err := ctx.GetStub().GetState(transactionID)
	if err != nil {
		return false, fmt.Errorf("failed to read state: %v", err)
	}
	return recordBytes != nil, nil
}
