package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"senior-connect/internal/models"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// SendFunc 投递一封已构建的邮件（测试时替换）
type SendFunc func(ctx context.Context, msg *mail.Msg) error

// EmailConfig 邮件配置
type EmailConfig struct {
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	To            []string
	ReportTo      []string // 为空时使用 To
	SubjectPrefix string
}

// Attachment 邮件附件
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailSink 告警邮件、摄像头图像、定时报告
type EmailSink struct {
	cfg    EmailConfig
	send   SendFunc
	logger *zap.Logger
}

// NewEmailSink 创建邮件 sink
func NewEmailSink(cfg EmailConfig, logger *zap.Logger) *EmailSink {
	s := &EmailSink{
		cfg:    cfg,
		logger: logger,
	}
	s.send = s.dialAndSend
	return s
}

// WithSendFunc 替换发送函数
func (s *EmailSink) WithSendFunc(send SendFunc) *EmailSink {
	s.send = send
	return s
}

// dialAndSend 每封邮件单独建立 SMTP 连接；服务器支持时升级 STARTTLS
func (s *EmailSink) dialAndSend(ctx context.Context, msg *mail.Msg) error {
	opts := []mail.Option{
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.cfg.Port > 0 {
		opts = append(opts, mail.WithPort(s.cfg.Port))
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}
	return client.DialAndSendWithContext(ctx, msg)
}

// Notify 发送告警邮件
func (s *EmailSink) Notify(ctx context.Context, alert models.Alert) error {
	return s.Send(ctx, s.cfg.To, s.cfg.SubjectPrefix+alert.Subject, alert.Body)
}

// Forward 摄像头图像作为附件发送
func (s *EmailSink) Forward(ctx context.Context, c models.Capture) error {
	subject := fmt.Sprintf("%s%s Image: %s", s.cfg.SubjectPrefix, c.Location, c.Time.Format("2006-01-02 15:04:05"))
	body := fmt.Sprintf("Attached is the latest %s image.", c.Location)
	return s.Send(ctx, s.cfg.To, subject, body, Attachment{
		Filename:    c.Filename,
		ContentType: "image/jpeg",
		Data:        c.Image,
	})
}

// SendReport 发送带工作簿附件的定时报告
func (s *EmailSink) SendReport(ctx context.Context, now time.Time, attachment Attachment) error {
	to := s.cfg.ReportTo
	if len(to) == 0 {
		to = s.cfg.To
	}
	subject := fmt.Sprintf("%sMaster Log Report %s", s.cfg.SubjectPrefix, now.Format("2006-01-02 15:04:05"))
	return s.Send(ctx, to, subject, "Attached is the latest Senior Connect master log.", attachment)
}

// Send 构建并发送邮件；ctx 取消时 SMTP 会话随之中断
func (s *EmailSink) Send(ctx context.Context, to []string, subject, body string, attachments ...Attachment) error {
	if len(to) == 0 {
		return errors.New("no email recipients configured")
	}

	msg, err := buildMessage(s.cfg.From, to, subject, body, attachments...)
	if err != nil {
		return err
	}

	if err := s.send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("Email sent",
		zap.String("subject", subject),
		zap.Int("recipients", len(to)),
		zap.Int("attachments", len(attachments)),
	)
	return nil
}

// buildMessage 构建邮件：纯文本正文 + 附件
func buildMessage(from string, to []string, subject, body string, attachments ...Attachment) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to...); err != nil {
		return nil, fmt.Errorf("invalid recipients: %w", err)
	}
	msg.Subject(subject)
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, body)

	for _, a := range attachments {
		contentType := a.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		err := msg.AttachReader(a.Filename, bytes.NewReader(a.Data), mail.WithFileContentType(mail.ContentType(contentType)))
		if err != nil {
			return nil, fmt.Errorf("failed to attach %s: %w", a.Filename, err)
		}
	}
	return msg, nil
}
