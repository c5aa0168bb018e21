// Package anchor records transaction digests against an external integrity
// ledger. Connectivity comes in three tiers resolved once at construction:
// a rich Fabric gateway session, a minimal REST client, or none. Anchoring
// is always best-effort; no tier ever propagates a failure that could
// abort a committed local transfer.
package anchor

import (
	"context"

	"github.com/bricspay/transfer-core/pkg/common"
	"github.com/bricspay/transfer-core/pkg/digest"
	"go.uber.org/zap"
)

type Tier string

const (
	TierFabric Tier = "fabric"
	TierREST   Tier = "rest"
	TierLocal  Tier = "local"
)

// Client is the integrity anchor. Record and Verify report outcomes as a
// (ok, message) pair instead of errors so remote failures stay advisory.
type Client interface {
	Tier() Tier

	// Record submits the transaction payload to the anchor ledger.
	// In local-only mode it reports a soft success so callers never
	// block on anchor unavailability.
	Record(ctx context.Context, payload digest.Record) (bool, string)

	// Verify fetches the anchored record for a transaction id. On
	// success the remote record is returned alongside ok=true.
	Verify(ctx context.Context, transactionID string) (bool, map[string]interface{}, string)
}

// Resolve tries each connectivity tier in order and returns the first that
// initializes: Fabric gateway, then REST endpoint probe, then local-only.
func Resolve(cfg *common.Config, logger *zap.Logger) Client {
	fc, err := NewFabricClient(cfg.FabricConfig, cfg.AnchorChannel, cfg.AnchorChaincode, cfg.MSP, cfg.CertPath, cfg.KeyPath)
	if err == nil {
		logger.Info("anchor connectivity established", zap.String("tier", string(TierFabric)))
		return fc
	}
	logger.Warn("fabric anchor unavailable", zap.Error(err))

	rc, err := NewRESTClient(cfg.AnchorAPIURL, cfg.AnchorChannel, cfg.AnchorChaincode)
	if err == nil {
		logger.Info("anchor connectivity established", zap.String("tier", string(TierREST)))
		return rc
	}
	logger.Warn("rest anchor unavailable", zap.Error(err))

	logger.Warn("operating in local-only mode, transfers will not be anchored")
	return NewLocalClient()
}
