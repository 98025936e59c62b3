package cache

import "time"

const (
	DataTypeActiveAlerts = "active_alerts"
	DataTypeAlert        = "alert"
	DataTypeStatistics   = "statistics"
)

// TagActiveAlerts groups every cached list of live alerts. Lifecycle mutations invalidate it.
const TagActiveAlerts = "alerts:active"

// CacheConfig holds TTLs and key layout for the Redis cache.
type CacheConfig struct {
	ActiveAlertsTTL time.Duration `json:"activeAlertsTTL"`
	AlertTTL        time.Duration `json:"alertTTL"`
	StatisticsTTL   time.Duration `json:"statisticsTTL"`
	KeyPrefix       string        `json:"keyPrefix"`
	TagPrefix       string        `json:"tagPrefix"`
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		ActiveAlertsTTL: 30 * time.Second,
		AlertTTL:        time.Minute,
		StatisticsTTL:   5 * time.Minute,
		KeyPrefix:       "bantay:",
		TagPrefix:       "bantay:tag:",
	}
}

func (c CacheConfig) GetTTLForDataType(dataType string) time.Duration {
	switch dataType {
	case DataTypeActiveAlerts:
		return c.ActiveAlertsTTL
	case DataTypeStatistics:
		return c.StatisticsTTL
	default:
		return c.AlertTTL
	}
}

// tagTTL outlives the longest data TTL so tag sets never expire before their keys.
func (c CacheConfig) tagTTL() time.Duration {
	longest := c.ActiveAlertsTTL
	for _, d := range []time.Duration{c.AlertTTL, c.StatisticsTTL} {
		if d > longest {
			longest = d
		}
	}
	return longest * 2
}
