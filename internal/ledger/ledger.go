// Package ledger records which page URLs have been processed and which
// content fingerprints have been counted, so each is handled exactly once.
package ledger

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/carolinuci/spacetime-crawler/internal/config"
)

// Ledger is shared by every worker of a run. MarkSeen and RecordFingerprint
// are atomic test-and-insert operations: for a given value exactly one caller
// observes true.
type Ledger interface {
	Seen(ctx context.Context, url string) (bool, error)
	MarkSeen(ctx context.Context, url string) (bool, error)
	IsDuplicate(ctx context.Context, fingerprint string) (bool, error)
	RecordFingerprint(ctx context.Context, fingerprint string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats reports ledger sizes.
type Stats struct {
	URLs         int64
	Fingerprints int64
}

// New builds the ledger selected by cfg.Backend.
func New(ctx context.Context, cfg config.LedgerConfig, logger *zap.Logger) (Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Backend {
	case "", config.LedgerMemory:
		logger.Debug("using in-memory ledger")
		return NewMemory(), nil
	case config.LedgerRedis:
		l, err := DialRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info("using redis ledger",
			zap.String("addr", cfg.Redis.Addr),
			zap.String("key_prefix", l.prefix),
		)
		return l, nil
	default:
		return nil, fmt.Errorf("unsupported ledger backend %q", cfg.Backend)
	}
}
