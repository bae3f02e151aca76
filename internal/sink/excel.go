package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"senior-connect/internal/models"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// AlertsSheet 告警汇总表
const AlertsSheet = "ALERTS"

// LogHeader 每个工作表的表头
var LogHeader = []string{"Date", "Timestamp", "Hour", "Location", "Value", "Status"}

// LogSheets 预建的传感器工作表
var LogSheets = []string{
	"PIR",
	"Humidity",
	"Temperature",
	"Proximity",
	"mmWave",
	"Camera",
	"mmWave(BR)",
	"mmWave(HR)",
	"mmWave(InBed)",
}

// alertKeywords 状态中含这些词的记录同时写入 ALERTS
var alertKeywords = []string{"ALERT", "WARNING", "CRITICAL", "MINIMAL", "MODERATE", "EMERGENCY"}

// ExcelSink 主日志工作簿：每种传感器一个工作表 + ALERTS
type ExcelSink struct {
	mu     sync.Mutex
	path   string
	file   *excelize.File
	rows   map[string]int    // 每个工作表下一行行号，键为小写表名
	names  map[string]string // 小写表名 -> 工作簿中的实际表名
	logger *zap.Logger
}

// NewExcelSink 打开或创建工作簿
func NewExcelSink(path string, logger *zap.Logger) (*ExcelSink, error) {
	s := &ExcelSink{
		path:   path,
		rows:   make(map[string]int),
		names:  make(map[string]string),
		logger: logger,
	}

	f, err := excelize.OpenFile(path)
	switch {
	case err == nil:
		s.file = f
		for _, sheet := range f.GetSheetList() {
			rows, err := f.GetRows(sheet)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
			}
			s.track(sheet, len(rows)+1)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := s.create(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	return s, nil
}

func (s *ExcelSink) create() error {
	s.file = excelize.NewFile()

	if err := s.file.SetSheetName("Sheet1", AlertsSheet); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to rename default sheet: %w", err)
	}
	if err := s.writeHeader(AlertsSheet); err != nil {
		s.file.Close()
		return err
	}
	for _, sheet := range LogSheets {
		if _, err := s.ensureSheet(sheet); err != nil {
			s.file.Close()
			return err
		}
	}

	if err := s.file.SaveAs(s.path); err != nil {
		s.file.Close()
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	s.logger.Info("Workbook created", zap.String("path", s.path))
	return nil
}

// sheetKey 工作表名不区分大小写（"Alerts" 与 "ALERTS" 是同一张表）
func sheetKey(sheet string) string {
	return strings.ToLower(sheet)
}

func (s *ExcelSink) track(sheet string, next int) {
	key := sheetKey(sheet)
	s.names[key] = sheet
	s.rows[key] = next
}

// ensureSheet 返回工作簿中已有的同名表；不存在时新建并写表头
func (s *ExcelSink) ensureSheet(sheet string) (string, error) {
	if name, ok := s.names[sheetKey(sheet)]; ok {
		return name, nil
	}
	if _, err := s.file.NewSheet(sheet); err != nil {
		return "", fmt.Errorf("failed to create sheet %s: %w", sheet, err)
	}
	return sheet, s.writeHeader(sheet)
}

func (s *ExcelSink) writeHeader(sheet string) error {
	header := make([]interface{}, len(LogHeader))
	for i, h := range LogHeader {
		header[i] = h
	}
	if err := s.file.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header %s: %w", sheet, err)
	}
	s.track(sheet, 2)
	return nil
}

func (s *ExcelSink) appendRow(sheet string, row []interface{}) error {
	name, err := s.ensureSheet(sheet)
	if err != nil {
		return err
	}
	key := sheetKey(name)
	cell, err := excelize.CoordinatesToCellName(1, s.rows[key])
	if err != nil {
		return fmt.Errorf("failed to convert coordinates: %w", err)
	}
	if err := s.file.SetSheetRow(name, cell, &row); err != nil {
		return fmt.Errorf("failed to append row to %s: %w", name, err)
	}
	s.rows[key]++
	return nil
}

// Record 追加一行并保存
func (s *ExcelSink) Record(_ context.Context, rec models.LogRecord) error {
	ts := rec.Timestamp
	row := []interface{}{
		ts.Format("2006-01-02"),
		ts.Format("15:04:05"),
		ts.Format("15:00"),
		rec.Location,
		rec.Value,
		rec.Status,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sheet := SheetFor(rec.SensorType)
	if sheet != "" {
		if err := s.appendRow(sheet, row); err != nil {
			return err
		}
	}
	if sheet == "" || isAlertStatus(rec.Status) {
		if err := s.appendRow(AlertsSheet, row); err != nil {
			return err
		}
	}

	if err := s.file.SaveAs(s.path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Bytes 工作簿当前内容（用于报告附件）
func (s *ExcelSink) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	buf, err := s.file.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Path 工作簿路径
func (s *ExcelSink) Path() string {
	return s.path
}

// Close 关闭工作簿
func (s *ExcelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// SheetFor 传感器类型对应的工作表；System 记录只进 ALERTS（返回空）
func SheetFor(sensorType string) string {
	switch {
	case sensorType == "System":
		return ""
	case strings.Contains(sensorType, "Access"), strings.Contains(sensorType, "Entrance"):
		return "Proximity"
	case sensorType == "":
		return "Unknown"
	}
	return sanitizeSheetName(sensorType)
}

// sanitizeSheetName 工作表名不超过 31 个字符且不含 : \ / ? * [ ]
func sanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, name)
	if len([]rune(name)) > 31 {
		name = string([]rune(name)[:31])
	}
	return name
}

func isAlertStatus(status string) bool {
	upper := strings.ToUpper(status)
	for _, kw := range alertKeywords {
		if strings.Contains(upper, kw) {
			return true
		}
	}
	return false
}
