package domain

// CleanupResult is the backend report of a navigation cleanup.
type CleanupResult struct {
	RepositoryCacheCleared bool    `json:"repository_cache_cleared"`
	SessionCacheCleared    bool    `json:"session_cache_cleared"`
	ContextCacheCleared    bool    `json:"context_cache_cleared"`
	EntriesCleaned         int     `json:"entries_cleaned"`
	MemoryFreedMB          float64 `json:"memory_freed_mb"`
	CleanupTimeMs          float64 `json:"cleanup_time_ms"`
}

// CacheStats is a read-only snapshot of backend cache usage.
type CacheStats struct {
	TotalEntries      int            `json:"total_entries"`
	MemoryUsageMB     float64        `json:"memory_usage_mb"`
	HitRate           float64        `json:"hit_rate"`
	EntriesByType     map[string]int `json:"entries_by_type,omitempty"`
	LastCleanup       string         `json:"last_cleanup,omitempty"`
	RepositoryEntries int            `json:"repository_entries"`
	SessionEntries    int            `json:"session_entries"`
}

// CacheHealth is a health/connection/memory/error snapshot of the cache service.
type CacheHealth struct {
	Status        string   `json:"status"`
	Connected     bool     `json:"connected"`
	MemoryUsageMB float64  `json:"memory_usage_mb"`
	MemoryLimitMB float64  `json:"memory_limit_mb"`
	ErrorCount    int      `json:"error_count"`
	Errors        []string `json:"errors,omitempty"`
}

// Degraded reports whether the cache service asked for attention.
func (h *CacheHealth) Degraded() bool {
	return h.Status != "" && h.Status != "healthy"
}

// MemoryRatio returns used/limit memory, or 0 when no limit is reported.
func (h *CacheHealth) MemoryRatio() float64 {
	if h.MemoryLimitMB <= 0 {
		return 0
	}
	return h.MemoryUsageMB / h.MemoryLimitMB
}

// OptimizeResult is the backend report of an optimization pass.
type OptimizeResult struct {
	EntriesRemoved  int      `json:"entries_removed"`
	MemoryFreedMB   float64  `json:"memory_freed_mb"`
	OptimizationMs  float64  `json:"optimization_time_ms"`
	Recommendations []string `json:"recommendations,omitempty"`
}
