package sink

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportSender 报告发送端
type ReportSender interface {
	SendReport(ctx context.Context, now time.Time, attachment Attachment) error
}

// WorkbookSource 工作簿来源
type WorkbookSource interface {
	Bytes() ([]byte, error)
	Path() string
}

// WorkbookReporter 定时把主日志工作簿作为附件发出
type WorkbookReporter struct {
	source WorkbookSource
	sender ReportSender
	logger *zap.Logger
}

// NewWorkbookReporter 创建报告任务
func NewWorkbookReporter(source WorkbookSource, sender ReportSender, logger *zap.Logger) *WorkbookReporter {
	return &WorkbookReporter{
		source: source,
		sender: sender,
		logger: logger,
	}
}

// Report 发送一次报告（供 ticker 调用）
func (r *WorkbookReporter) Report(ctx context.Context, now time.Time) error {
	data, err := r.source.Bytes()
	if err != nil {
		return fmt.Errorf("failed to snapshot workbook: %w", err)
	}

	attachment := Attachment{
		Filename:    filepath.Base(r.source.Path()),
		ContentType: xlsxContentType,
		Data:        data,
	}
	if err := r.sender.SendReport(ctx, now, attachment); err != nil {
		return err
	}

	r.logger.Info("Workbook report sent", zap.Int("bytes", len(data)))
	return nil
}
