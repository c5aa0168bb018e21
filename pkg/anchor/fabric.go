package anchor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bricspay/transfer-core/pkg/digest"
	"github.com/hyperledger/fabric-sdk-go/pkg/core/config"
	"github.com/hyperledger/fabric-sdk-go/pkg/gateway"
)

// FabricClient is the rich tier: a gateway session against the anchor
// channel, invoking the transfer chaincode directly.
type FabricClient struct {
	gw       *gateway.Gateway
	contract *gateway.Contract
}

func NewFabricClient(configPath, channelName, contractName, mspID, certPath, keyPath string) (*FabricClient, error) {
	wallet, err := gateway.NewFileSystemWallet("wallet")
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %v", err)
	}

	if !wallet.Exists("appUser") {
		err = populateWallet(wallet, mspID, certPath, keyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to populate wallet: %v", err)
		}
	}

	gw, err := gateway.Connect(
		gateway.WithConfig(config.FromFile(filepath.Clean(configPath))),
		gateway.WithIdentity(wallet, "appUser"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to gateway: %v", err)
	}

	network, err := gw.GetNetwork(channelName)
	if err != nil {
		gw.Close()
		return nil, fmt.Errorf("failed to get network: %v", err)
	}

	return &FabricClient{
		gw:       gw,
		contract: network.GetContract(contractName),
	}, nil
}

func (c *FabricClient) Tier() Tier {
	return TierFabric
}

func (c *FabricClient) Record(ctx context.Context, payload digest.Record) (bool, string) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Sprintf("anchor submit aborted: %v", err)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("failed to serialize anchor payload: %v", err)
	}

	if _, err := c.contract.SubmitTransaction("RecordTransaction", string(data)); err != nil {
		return false, fmt.Sprintf("anchor submit failed: %v", err)
	}
	return true, "transaction recorded on anchor ledger"
}

func (c *FabricClient) Verify(ctx context.Context, transactionID string) (bool, map[string]interface{}, string) {
	if err := ctx.Err(); err != nil {
		return false, nil, fmt.Sprintf("anchor query aborted: %v", err)
	}

	data, err := c.contract.EvaluateTransaction("GetTransaction", transactionID)
	if err != nil {
		return false, nil, fmt.Sprintf("anchor query failed: %v", err)
	}
	if len(data) == 0 {
		return false, nil, "transaction not found on anchor ledger"
	}

	var record map[string]interface{}
	if err := json.Unmarshal(data, &record); err != nil {
		return false, nil, fmt.Sprintf("malformed anchor record: %v", err)
	}
	return true, record, ""
}

func (c *FabricClient) Close() {
	c.gw.Close()
}

func populateWallet(wallet *gateway.Wallet, mspID, certPath, keyPath string) error {
	cert, err := os.ReadFile(filepath.Clean(certPath))
	if err != nil {
		return err
	}

	key, err := os.ReadFile(filepath.Clean(keyPath))
	if err != nil {
		return err
	}

	identity := gateway.NewX509Identity(mspID, string(cert), string(key))

	return wallet.Put("appUser", identity)
}
