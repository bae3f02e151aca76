package replay

import (
	"fmt"
	"io"
	"sync"

	"senior-connect/internal/models"
)

// Printer 把回放产生的告警（以及可选的日志记录）写到 w
type Printer struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool
	alerts   []models.Alert
	logs     int
	captures int
}

// NewPrinter 创建输出器；verbose 时同时输出日志记录
func NewPrinter(w io.Writer, verbose bool) *Printer {
	return &Printer{w: w, verbose: verbose}
}

// EmitLog 日志记录
func (p *Printer) EmitLog(rec models.LogRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs++
	if p.verbose {
		fmt.Fprintf(p.w, "%s  LOG    %-14s %-14s %s | %s\n",
			rec.Timestamp.Format("2006-01-02 15:04:05"), rec.SensorType, rec.Location, rec.Value, rec.Status)
	}
}

// EmitAlert 告警
func (p *Printer) EmitAlert(a models.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, a)
	fmt.Fprintf(p.w, "%s  ALERT  %-9s %-14s %s\n",
		a.Time.Format("2006-01-02 15:04:05"), a.Severity.Label(), a.Location, a.Subject)
}

// EmitCapture 摄像头图像（回放时不发送，只计数）
func (p *Printer) EmitCapture(c models.Capture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures++
	if p.verbose {
		fmt.Fprintf(p.w, "%s  IMAGE  %-14s %s (%d bytes)\n",
			c.Time.Format("2006-01-02 15:04:05"), c.Location, c.Filename, len(c.Image))
	}
}

// Alerts 已输出的告警
func (p *Printer) Alerts() []models.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Alert(nil), p.alerts...)
}

// LogCount 日志记录数
func (p *Printer) LogCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logs
}

// CaptureCount 摄像头图像数
func (p *Printer) CaptureCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.captures
}
