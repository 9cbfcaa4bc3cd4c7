package database

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

// Models

// ExecutionLeg is one submitted (or simulated) copy-trade leg. The journal
// records only the operator's own orders.
type ExecutionLeg struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	OrderID    string `gorm:"index"`
	TxHash     string
	PairIndex  int    `gorm:"index"`
	Symbol     string
	Side       string          // "LONG" or "SHORT"
	Collateral decimal.Decimal `gorm:"type:decimal(20,6)"`
	Leverage   float64
	TP         decimal.Decimal `gorm:"type:decimal(20,8)"`
	SL         decimal.Decimal `gorm:"type:decimal(20,8)"`
	Price      decimal.Decimal `gorm:"type:decimal(20,8)"`
	Status     string          `gorm:"index"` // "simulated", "submitted", "failed"
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	// Check if this is a PostgreSQL connection string
	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		// PostgreSQL connection
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		// SQLite fallback
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&ExecutionLeg{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// Execution leg operations

func (d *Database) RecordLeg(leg *ExecutionLeg) error {
	return d.db.Create(leg).Error
}

func (d *Database) RecentLegs(limit int) ([]ExecutionLeg, error) {
	var legs []ExecutionLeg
	err := d.db.Order("created_at DESC").Limit(limit).Find(&legs).Error
	return legs, err
}

// SubmittedCollateral totals the collateral of every leg that went live.
func (d *Database) SubmittedCollateral() (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := d.db.Model(&ExecutionLeg{}).
		Where("status = ?", "submitted").
		Select("COALESCE(SUM(collateral), 0) as total").
		Scan(&result).Error
	return result.Total, err
}
