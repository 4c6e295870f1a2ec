package finnhub

// quoteResponse matches the JSON structure of Finnhub's /quote endpoint.
type quoteResponse struct {
	Current       *float64 `json:"c"`  // current price
	Change        float64  `json:"d"`  // change
	ChangePercent float64  `json:"dp"` // change percent
	High          float64  `json:"h"`  // day high
	Low           float64  `json:"l"`  // day low
	Open          float64  `json:"o"`  // day open
	PreviousClose float64  `json:"pc"` // previous close
	Volume        float64  `json:"v"`  // volume (often absent)
	Timestamp     int64    `json:"t"`  // UNIX seconds, 0 when absent
}
