package cache

import (
	"time"

	"github.com/epeers/vnmarket/internal/models"
)

// TTLManager resolves cache lifetimes per asset type. Fund NAVs are published
// once a day so they live much longer than intraday-moving assets.
type TTLManager struct {
	ttls       map[models.AssetType]time.Duration
	defaultTTL time.Duration
}

// NewTTLManager creates the manager with the service's standard lifetimes.
func NewTTLManager() *TTLManager {
	return &TTLManager{
		ttls: map[models.AssetType]time.Duration{
			models.AssetTypeFund:  24 * time.Hour,
			models.AssetTypeStock: time.Hour,
			models.AssetTypeIndex: time.Hour,
			models.AssetTypeGold:  time.Hour,
			"CRYPTO":              15 * time.Minute,
		},
		defaultTTL: time.Hour,
	}
}

// TTL returns the lifetime for an asset type.
func (m *TTLManager) TTL(at models.AssetType) time.Duration {
	if ttl, ok := m.ttls[at]; ok {
		return ttl
	}
	return m.defaultTTL
}
