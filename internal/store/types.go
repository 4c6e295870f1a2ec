package store

import (
	"time"
)

// QuoteRow is one persisted quote snapshot. Rows are append-only: one per
// successful fetch, queryable by symbol and time range.
type QuoteRow struct {
	ID            int       `json:"id" gorm:"primaryKey"`
	Symbol        string    `json:"symbol" gorm:"index;not null"`
	Price         float64   `json:"price" gorm:"not null"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Open          float64   `json:"open"`
	PreviousClose float64   `json:"previous_close"`
	Volume        float64   `json:"volume"`
	CreatedAt     time.Time `json:"created_at" gorm:"index;autoCreateTime"`
}

// Statistics summarizes the persisted history of one symbol.
type Statistics struct {
	Symbol       string    `json:"symbol"`
	TotalRecords int64     `json:"total_records"`
	LatestPrice  float64   `json:"latest_price"`
	AveragePrice float64   `json:"average_price"`
	HighestPrice float64   `json:"highest_price"`
	LowestPrice  float64   `json:"lowest_price"`
	LatestUpdate time.Time `json:"latest_update"`
}
