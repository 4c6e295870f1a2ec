package quote

// Quote is a single point-in-time price snapshot for one symbol,
// normalized from the provider's response. Price is always set; the
// remaining fields may be zero when the provider omits them.
type Quote struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	Volume        float64 `json:"volume,omitempty"`
	Timestamp     int64   `json:"timestamp"` // ms since epoch
}

// Source records where a cached quote came from.
type Source string

const (
	// SourceAPI marks an entry written by a successful provider fetch.
	SourceAPI Source = "api"
	// SourceStaleFallback marks an entry that is past the freshness
	// threshold and whose last refresh attempt failed. Readers still get
	// the old quote, but labeled.
	SourceStaleFallback Source = "stale_fallback"
)

// Frame is the JSON payload pushed to WebSocket subscribers and the Kafka
// topic on every refresh of a symbol.
type Frame struct {
	Type          string  `json:"type"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previousClose"`
	Timestamp     int64   `json:"timestamp"`
	DataSource    string  `json:"dataSource"` // "api" or "cache"
	CacheAgeSec   float64 `json:"cacheAge"`
}
