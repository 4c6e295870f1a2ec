package store

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jaeyoon-dev/stockfeed/internal/quote"
)

// Store is the append-only time-series store for quote snapshots, backed by
// Postgres through GORM. Persistence is best-effort: callers log a failed
// append and keep going, the in-memory cache stays the source of truth for
// live reads.
type Store struct {
	db *gorm.DB
}

func New(connStr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(connStr), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AutoMigrate creates or updates the quote table schema.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&QuoteRow{}); err != nil {
		return fmt.Errorf("failed to auto migrate schema: %w", err)
	}
	return nil
}

// SaveQuote appends one snapshot.
func (s *Store) SaveQuote(q quote.Quote) error {
	row := QuoteRow{
		Symbol:        q.Symbol,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		High:          q.High,
		Low:           q.Low,
		Open:          q.Open,
		PreviousClose: q.PreviousClose,
		Volume:        q.Volume,
	}
	if err := s.db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save quote for %s: %w", q.Symbol, err)
	}
	return nil
}

// GetHistory returns all rows for symbol since the given time, newest first.
func (s *Store) GetHistory(symbol string, since time.Time) ([]QuoteRow, error) {
	var rows []QuoteRow
	err := s.db.Where("symbol = ? AND created_at >= ?", symbol, since).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query history for %s: %w", symbol, err)
	}
	return rows, nil
}

// GetLatest returns the most recent limit rows for symbol, oldest first so
// they chart left to right.
func (s *Store) GetLatest(symbol string, limit int) ([]QuoteRow, error) {
	var rows []QuoteRow
	err := s.db.Where("symbol = ?", symbol).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest quotes for %s: %w", symbol, err)
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

// GetAllSymbols returns the distinct symbols with at least one persisted row.
func (s *Store) GetAllSymbols() ([]string, error) {
	var symbols []string
	err := s.db.Model(&QuoteRow{}).
		Distinct("symbol").
		Order("symbol").
		Pluck("symbol", &symbols).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	return symbols, nil
}

// GetStatistics aggregates count, latest, average, min and max price for one
// symbol. Returns nil when the symbol has no rows.
func (s *Store) GetStatistics(symbol string) (*Statistics, error) {
	var agg struct {
		TotalRecords int64
		AvgPrice     float64
		MinPrice     float64
		MaxPrice     float64
		LatestUpdate time.Time
	}
	err := s.db.Model(&QuoteRow{}).
		Select("COUNT(id) AS total_records, AVG(price) AS avg_price, MIN(price) AS min_price, MAX(price) AS max_price, MAX(created_at) AS latest_update").
		Where("symbol = ?", symbol).
		Scan(&agg).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query statistics for %s: %w", symbol, err)
	}
	if agg.TotalRecords == 0 {
		return nil, nil
	}

	var latest QuoteRow
	err = s.db.Where("symbol = ?", symbol).
		Order("created_at DESC").
		First(&latest).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query latest quote for %s: %w", symbol, err)
	}

	return &Statistics{
		Symbol:       symbol,
		TotalRecords: agg.TotalRecords,
		LatestPrice:  latest.Price,
		AveragePrice: agg.AvgPrice,
		HighestPrice: agg.MaxPrice,
		LowestPrice:  agg.MinPrice,
		LatestUpdate: agg.LatestUpdate,
	}, nil
}

// CleanupOldData deletes rows older than the cutoff and reports how many
// went away. The collector runs this periodically as a retention sweep.
func (s *Store) CleanupOldData(olderThan time.Time) (int64, error) {
	res := s.db.Where("created_at < ?", olderThan).Delete(&QuoteRow{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to clean up old quotes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
