package storage

import (
	"time"

	"gorm.io/gorm"
)

const (
	SourceManual = "manual"
	SourceMeter  = "meter"
	SourceSweep  = "sweep"
)

type LossRecord struct {
	gorm.Model
	RunID     string    `gorm:"index" json:"run_id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Source    string    `gorm:"index" json:"source"`

	// Operating parameters
	PrimaryVoltage    float64 `json:"primary_voltage_v"`
	SecondaryVoltage  float64 `json:"secondary_voltage_v"`
	Frequency         float64 `json:"frequency_hz"`
	RatedPower        float64 `json:"rated_power_kva"`
	CoreMaterial      string  `json:"core_material"`
	WindingResistance float64 `json:"winding_resistance_ohm"`
	LoadPercent       float64 `json:"load_percent"`
	Temperature       float64 `json:"temperature_c"`

	// Losses
	IronLoss       float64 `json:"iron_loss_w"`
	CopperLoss     float64 `json:"copper_loss_w"`
	StrayLoss      float64 `json:"stray_loss_w"`
	DielectricLoss float64 `json:"dielectric_loss_w"`
	TotalLoss      float64 `json:"total_loss_w"`

	// Power
	LoadPower         float64 `json:"load_power_w"`
	InputPower        float64 `json:"input_power_w"`
	OverallEfficiency float64 `json:"overall_efficiency_pct"`
	Current           float64 `json:"current_a"`
	TurnsRatio        float64 `json:"turns_ratio"`
}

type DailyStats struct {
	Date          time.Time `json:"date"`
	MaxTotalLoss  float64   `json:"max_total_loss_w"`
	AvgEfficiency float64   `json:"avg_efficiency_pct"`
	MinEfficiency float64   `json:"min_efficiency_pct"`
	AvgLoad       float64   `json:"avg_load_percent"`
	RecordsCount  int64     `json:"records_count"`
}
