package sink

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"senior-connect/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

func readRows(t *testing.T, path, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(sheet)
	require.NoError(t, err)
	return rows
}

func TestExcelSink_CreatesWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_log.xlsx")
	s, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Equal(t, AlertsSheet, sheets[0])
	for _, name := range LogSheets {
		assert.Contains(t, sheets, name)
	}
	assert.NotContains(t, sheets, "Sheet1")

	rows, err := f.GetRows("PIR")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, LogHeader, rows[0])
}

func TestExcelSink_RoutesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_log.xlsx")
	s, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	ts := time.Date(2025, 3, 4, 14, 5, 9, 0, time.UTC)

	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "PIR", Location: "Bathroom", Value: "MOTION", Status: "Active", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "System", Location: "Bathroom", Value: "CRITICAL", Status: "Bathroom CRITICAL Alert", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "Humidity", Location: "Bathroom", Value: "85", Status: "WARNING high", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "Main Entrance", Location: "Front", Value: "ENTER", Status: "Active", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "Gas", Location: "Kitchen", Value: "1", Status: "Active", Timestamp: ts}))

	pir := readRows(t, path, "PIR")
	require.Len(t, pir, 2)
	assert.Equal(t, []string{"2025-03-04", "14:05:09", "14:00", "Bathroom", "MOTION", "Active"}, pir[1])

	alerts := readRows(t, path, AlertsSheet)
	require.Len(t, alerts, 3)
	assert.Equal(t, "CRITICAL", alerts[1][4])
	assert.Equal(t, "WARNING high", alerts[2][5])

	assert.Len(t, readRows(t, path, "Humidity"), 2)
	assert.Len(t, readRows(t, path, "Proximity"), 2)
	assert.Len(t, readRows(t, path, "Gas"), 2)
}

func TestExcelSink_SheetNamesIgnoreCase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_log.xlsx")
	s, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	ts := time.Date(2025, 3, 4, 14, 5, 9, 0, time.UTC)

	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "System", Location: "Bathroom", Value: "CRITICAL", Status: "CRITICAL ALERT 1", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "System", Location: "Bathroom", Value: "CRITICAL", Status: "CRITICAL ALERT 2", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "Alerts", Location: "x", Value: "v", Status: "Active", Timestamp: ts}))
	require.NoError(t, s.Record(ctx, models.LogRecord{SensorType: "mmwave(hr)", Location: "Bedroom", Value: "61", Status: "Active", Timestamp: ts}))

	alerts := readRows(t, path, AlertsSheet)
	require.Len(t, alerts, 4)
	assert.Equal(t, "CRITICAL ALERT 1", alerts[1][5])
	assert.Equal(t, "CRITICAL ALERT 2", alerts[2][5])
	assert.Equal(t, []string{"2025-03-04", "14:05:09", "14:00", "x", "v", "Active"}, alerts[3])

	hr := readRows(t, path, "mmWave(HR)")
	require.Len(t, hr, 2)
	assert.Equal(t, "61", hr[1][4])

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Len(t, f.GetSheetList(), len(LogSheets)+1)
}

func TestExcelSink_ReopenAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_log.xlsx")
	ctx := context.Background()
	rec := models.LogRecord{SensorType: "PIR", Location: "Bathroom", Value: "MOTION", Status: "Active", Timestamp: time.Now()}

	s, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, rec))
	require.NoError(t, s.Close())

	s, err = NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, rec))
	require.NoError(t, s.Close())

	assert.Len(t, readRows(t, path, "PIR"), 3)
}

func TestExcelSink_Bytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master_log.xlsx")
	s, err := NewExcelSink(path, zap.NewNop())
	require.NoError(t, err)
	defer s.Close()

	data, err := s.Bytes()
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), AlertsSheet)
}

func TestSheetFor(t *testing.T) {
	cases := map[string]string{
		"System":        "",
		"PIR":           "PIR",
		"mmWave(HR)":    "mmWave(HR)",
		"Access":        "Proximity",
		"Side Entrance": "Proximity",
		"":              "Unknown",
		"a/b:c":         "a_b_c",
		strings.Repeat("x", 40): strings.Repeat("x", 31),
	}
	for in, want := range cases {
		assert.Equal(t, want, SheetFor(in), in)
	}
}
