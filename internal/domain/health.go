package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /readyz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual dependency.
type ServiceHealth struct {
	Name      string `json:"name"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// DialogMetrics is returned by GET /v1/metrics/dialog.
type DialogMetrics struct {
	Turns          int64            `json:"turns"`
	AvgTurnMs      float64          `json:"avgTurnMs"`
	Activities     map[string]int64 `json:"activities"`
	Outcomes       map[string]int64 `json:"outcomes"`
	SearchResults  map[string]int64 `json:"searchResults"`
	FormRejections map[string]int64 `json:"formRejections"`
	ExternalErrors map[string]int64 `json:"externalErrors"`
	Relogins       int64            `json:"relogins"`
	CompletionRate float64          `json:"completionRate"`
	Period         string           `json:"period"`
}
