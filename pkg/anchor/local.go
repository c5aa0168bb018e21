package anchor

import (
	"context"

	"github.com/bricspay/transfer-core/pkg/digest"
)

// LocalClient is the no-connectivity tier. Transfers still function, only
// the integrity anchoring is skipped.
type LocalClient struct{}

func NewLocalClient() *LocalClient {
	return &LocalClient{}
}

func (c *LocalClient) Tier() Tier {
	return TierLocal
}

func (c *LocalClient) Record(ctx context.Context, payload digest.Record) (bool, string) {
	return true, "anchoring unavailable, recorded locally only"
}

func (c *LocalClient) Verify(ctx context.Context, transactionID string) (bool, map[string]interface{}, string) {
	return false, nil, "verification unavailable"
}
