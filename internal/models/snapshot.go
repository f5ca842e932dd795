package models

// MetricsSnapshot is the serialized form of the usage counters. UptimeSeconds is
// derived at snapshot time from the collector's start time; on restore the start
// time is rebased so uptime keeps accruing.
type MetricsSnapshot struct {
	TotalRequests       int64   `json:"total_requests"`
	SuccessfulRequests  int64   `json:"successful_requests"`
	FailedRequests      int64   `json:"failed_requests"`
	AverageResponseTime float64 `json:"average_response_time"`
	TotalTokensUsed     int64   `json:"total_tokens_used"`
	UptimeSeconds       float64 `json:"uptime"`
}

// SessionSnapshot is the exchange format for exporting and importing a full
// session: usage metrics, every indexed record (embeddings included, so search
// behavior survives a reload without re-embedding), and the conversation
// transcript. All three fields must be present on import.
type SessionSnapshot struct {
	Metrics        *MetricsSnapshot `json:"metrics"`
	VectorDatabase []Record         `json:"vector_database"`
	Messages       []ChatMessage    `json:"messages"`
}
