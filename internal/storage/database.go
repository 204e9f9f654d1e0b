package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"transformer-losses/internal/losses"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNonFinite is returned when a report carries NaN or infinite losses,
// which sqlite cannot store as numbers.
var ErrNonFinite = errors.New("report has non-finite values")

func checkFinite(r losses.Report) error {
	if names := r.Breakdown.NonFinite(); len(names) > 0 {
		return fmt.Errorf("%w: %s", ErrNonFinite, strings.Join(names, ", "))
	}
	return nil
}

type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&LossRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// NewRecord flattens a report into a storable record.
func NewRecord(r losses.Report, source string, at time.Time) *LossRecord {
	p := r.Parameters
	b := r.Breakdown
	return &LossRecord{
		RunID:     uuid.NewString(),
		Timestamp: at,
		Source:    source,

		PrimaryVoltage:    p.PrimaryVoltage,
		SecondaryVoltage:  p.SecondaryVoltage,
		Frequency:         p.Frequency,
		RatedPower:        p.RatedPower,
		CoreMaterial:      string(p.CoreMaterial),
		WindingResistance: p.WindingResistance,
		LoadPercent:       p.LoadPercent,
		Temperature:       p.Temperature,

		IronLoss:       b.IronLoss,
		CopperLoss:     b.CopperLoss,
		StrayLoss:      b.StrayLoss,
		DielectricLoss: b.DielectricLoss,
		TotalLoss:      b.TotalLoss,

		LoadPower:         r.LoadPower,
		InputPower:        b.InputPower,
		OverallEfficiency: b.OverallEfficiency,
		Current:           r.Current,
		TurnsRatio:        r.TurnsRatio,
	}
}

// Parameters rebuilds the operating parameters a record was computed from.
func (r *LossRecord) Parameters() losses.OperatingParameters {
	return losses.OperatingParameters{
		PrimaryVoltage:    r.PrimaryVoltage,
		SecondaryVoltage:  r.SecondaryVoltage,
		Frequency:         r.Frequency,
		RatedPower:        r.RatedPower,
		CoreMaterial:      losses.CoreMaterial(r.CoreMaterial),
		WindingResistance: r.WindingResistance,
		LoadPercent:       r.LoadPercent,
		Temperature:       r.Temperature,
	}
}

func (d *Database) SaveRecord(r losses.Report, source string) (*LossRecord, error) {
	if err := checkFinite(r); err != nil {
		return nil, err
	}
	record := NewRecord(r, source, time.Now())
	if err := d.db.Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// SaveRecords stores a batch of reports under one run ID, as produced by a
// sweep.
func (d *Database) SaveRecords(runID string, reports []losses.Report, source string) ([]LossRecord, error) {
	if len(reports) == 0 {
		return nil, nil
	}
	for i, r := range reports {
		if err := checkFinite(r); err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
	}
	now := time.Now()
	records := make([]LossRecord, len(reports))
	for i, r := range reports {
		records[i] = *NewRecord(r, source, now)
		if runID != "" {
			records[i].RunID = runID
		}
	}
	if err := d.db.CreateInBatches(records, 500).Error; err != nil {
		return nil, fmt.Errorf("failed to save %d records: %w", len(records), err)
	}
	return records, nil
}

func (d *Database) GetLatestRecord() (*LossRecord, error) {
	var record LossRecord
	result := d.db.Order("timestamp desc").First(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

func (d *Database) GetRecordByRunID(runID string) (*LossRecord, error) {
	var record LossRecord
	result := d.db.Where("run_id = ?", runID).First(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

func (d *Database) GetRecordsByRange(from, to time.Time) ([]LossRecord, error) {
	var records []LossRecord
	result := d.db.Where("timestamp BETWEEN ? AND ?", from, to).
		Order("timestamp desc").
		Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (d *Database) GetRecordsWithLimit(limit int) ([]LossRecord, error) {
	var records []LossRecord
	result := d.db.Order("timestamp desc").Limit(limit).Find(&records)
	if result.Error != nil {
		return nil, result.Error
	}
	return records, nil
}

func (d *Database) GetDailyStats(date time.Time) (*DailyStats, error) {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := DailyStats{Date: startOfDay}

	var agg struct {
		MaxTotalLoss  float64
		AvgEfficiency float64
		MinEfficiency float64
		AvgLoad       float64
		RecordsCount  int64
	}
	result := d.db.Model(&LossRecord{}).
		Select("COALESCE(MAX(total_loss), 0) AS max_total_loss, "+
			"COALESCE(AVG(overall_efficiency), 0) AS avg_efficiency, "+
			"COALESCE(MIN(overall_efficiency), 0) AS min_efficiency, "+
			"COALESCE(AVG(load_percent), 0) AS avg_load, "+
			"COUNT(*) AS records_count").
		Where("timestamp >= ? AND timestamp < ?", startOfDay, endOfDay).
		Scan(&agg)
	if result.Error != nil {
		return nil, result.Error
	}

	stats.MaxTotalLoss = agg.MaxTotalLoss
	stats.AvgEfficiency = agg.AvgEfficiency
	stats.MinEfficiency = agg.MinEfficiency
	stats.AvgLoad = agg.AvgLoad
	stats.RecordsCount = agg.RecordsCount

	return &stats, nil
}

func (d *Database) CleanOldRecords(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	result := d.db.Unscoped().Where("timestamp < ?", cutoff).Delete(&LossRecord{})
	return result.RowsAffected, result.Error
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
