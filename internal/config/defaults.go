package config

import "time"

// DefaultEngine mirrors the envconfig defaults for callers that build
// services without loading the environment (tests, tooling).
func DefaultEngine() EngineConfig {
	return EngineConfig{
		CascadeDepth:        5,
		PlacementMaxRetries: 5,
		RetryBaseDelay:      25 * time.Millisecond,
		RetryMaxDelay:       800 * time.Millisecond,
		MaxTreeDepth:        8,
	}
}

func DefaultAudit() AuditConfig {
	return AuditConfig{
		PageSize:      500,
		Schedule:      "@every 1h",
		DrainSchedule: "@every 1m",
		Timezone:      "UTC",
	}
}
