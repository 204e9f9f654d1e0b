package storage

import (
	"path/filepath"
	"testing"
	"time"

	"transformer-losses/internal/losses"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "data", "losses.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func reportAt(load float64) losses.Report {
	p := losses.DefaultParameters()
	p.LoadPercent = load
	return losses.Analyze(p)
}

func TestSaveAndGetLatest(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetLatestRecord()
	require.Error(t, err)

	first, err := db.SaveRecord(reportAt(25), SourceManual)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := db.SaveRecord(reportAt(75), SourceMeter)
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)

	latest, err := db.GetLatestRecord()
	require.NoError(t, err)
	assert.Equal(t, second.RunID, latest.RunID)
	assert.Equal(t, SourceMeter, latest.Source)
	assert.Equal(t, reportAt(75).Breakdown.TotalLoss, latest.TotalLoss)
	assert.Equal(t, reportAt(75).Parameters, latest.Parameters())

	byID, err := db.GetRecordByRunID(first.RunID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, byID.LoadPercent)
}

func TestGetRecordsWithLimitAndRange(t *testing.T) {
	db := newTestDB(t)

	for _, load := range []float64{10, 20, 30, 40} {
		_, err := db.SaveRecord(reportAt(load), SourceManual)
		require.NoError(t, err)
	}

	records, err := db.GetRecordsWithLimit(2)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = db.GetRecordsByRange(time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, records, 4)

	records, err = db.GetRecordsByRange(time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestGetDailyStats(t *testing.T) {
	db := newTestDB(t)

	stats, err := db.GetDailyStats(time.Now())
	require.NoError(t, err)
	assert.Zero(t, stats.RecordsCount)

	low, high := reportAt(20), reportAt(80)
	_, err = db.SaveRecord(low, SourceMeter)
	require.NoError(t, err)
	_, err = db.SaveRecord(high, SourceMeter)
	require.NoError(t, err)

	stats, err = db.GetDailyStats(time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.RecordsCount)
	assert.InDelta(t, high.Breakdown.TotalLoss, stats.MaxTotalLoss, 1e-9)
	assert.InDelta(t, 50.0, stats.AvgLoad, 1e-9)
	assert.InDelta(t, (low.Breakdown.OverallEfficiency+high.Breakdown.OverallEfficiency)/2, stats.AvgEfficiency, 1e-9)
}

func TestCleanOldRecords(t *testing.T) {
	db := newTestDB(t)

	old := NewRecord(reportAt(10), SourceMeter, time.Now().Add(-48*time.Hour))
	require.NoError(t, db.db.Create(old).Error)
	_, err := db.SaveRecord(reportAt(20), SourceMeter)
	require.NoError(t, err)

	removed, err := db.CleanOldRecords(24 * time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	records, err := db.GetRecordsWithLimit(10)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSaveRecords(t *testing.T) {
	db := newTestDB(t)

	saved, err := db.SaveRecords("sweep-1", []losses.Report{reportAt(0), reportAt(50), reportAt(100)}, SourceSweep)
	require.NoError(t, err)
	require.Len(t, saved, 3)
	for _, r := range saved {
		assert.Equal(t, "sweep-1", r.RunID)
		assert.Equal(t, SourceSweep, r.Source)
	}

	records, err := db.GetRecordsWithLimit(10)
	require.NoError(t, err)
	assert.Len(t, records, 3)

	saved, err = db.SaveRecords("", nil, SourceSweep)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestSaveRecord_NonFinite(t *testing.T) {
	db := newTestDB(t)

	p := losses.DefaultParameters()
	p.Frequency = -50
	bad := losses.Analyze(p)

	_, err := db.SaveRecord(bad, SourceManual)
	require.ErrorIs(t, err, ErrNonFinite)
	assert.Contains(t, err.Error(), "iron_loss_w")

	_, err = db.SaveRecords("sweep-2", []losses.Report{reportAt(10), bad}, SourceSweep)
	require.ErrorIs(t, err, ErrNonFinite)

	records, err := db.GetRecordsWithLimit(10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
