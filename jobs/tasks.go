package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/clinica-central/helpdesk/internal/jobs"
	"github.com/clinica-central/helpdesk/internal/pictures"
	"github.com/clinica-central/helpdesk/internal/platform/mail"
	"github.com/clinica-central/helpdesk/internal/requests"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskRequestNotify mails the parties of a request about a change.
	TaskRequestNotify = "request:notify"
	// TaskPicturePurge retries deleting a picture file whose row is already gone.
	TaskPicturePurge = "pictures:purge"
	// TaskIdempotencyCleanup expires old idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// IdempotencyRetention is how long create keys are remembered.
const IdempotencyRetention = 24 * time.Hour

// PicturePurgePayload names the stored file to delete.
type PicturePurgePayload struct {
	File string `json:"file"`
}

// NewRequestNotifyTask constructs a notification task.
func NewRequestNotifyTask(n requests.Notification) (*asynq.Task, error) {
	data, err := json.Marshal(n)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRequestNotify, data, asynq.MaxRetry(5)), nil
}

// NewPicturePurgeTask constructs a purge task.
func NewPicturePurgeTask(file string) (*asynq.Task, error) {
	data, err := json.Marshal(PicturePurgePayload{File: file})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPicturePurge, data, asynq.MaxRetry(10)), nil
}

// NewIdempotencyCleanupTask constructs the periodic cleanup task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil)
}

// MailSender delivers one message.
type MailSender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// KeyCleaner removes expired idempotency keys.
type KeyCleaner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Handlers processes the helpdesk task types.
type Handlers struct {
	Mailer      MailSender
	Store       pictures.FileStore
	Idempotency KeyCleaner
	Metrics     *jobmetrics.Metrics
	Logger      *slog.Logger
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// TaskHandlers lists the handlers for worker registration.
func (h *Handlers) TaskHandlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskRequestNotify, Handler: h.HandleRequestNotify},
		{Type: TaskPicturePurge, Handler: h.HandlePicturePurge},
		{Type: TaskIdempotencyCleanup, Handler: h.HandleIdempotencyCleanup},
	}
}

// NotificationMessage renders the plain-text mail for n.
func NotificationMessage(n requests.Notification) mail.Message {
	subject := fmt.Sprintf("[Helpdesk] %s: %s", n.Code, n.Subject)
	var body strings.Builder
	fmt.Fprintf(&body, "Solicitud %s\n", n.Code)
	fmt.Fprintf(&body, "Asunto: %s\n", n.Subject)
	fmt.Fprintf(&body, "Estado actual: %s\n", n.Status)
	return mail.Message{To: n.To, Subject: subject, Body: body.String()}
}

// HandleRequestNotify processes TaskRequestNotify tasks.
func (h *Handlers) HandleRequestNotify(ctx context.Context, t *asynq.Task) error {
	var n requests.Notification
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("decode %s: %v: %w", TaskRequestNotify, err, asynq.SkipRetry)
	}
	tracker := h.Metrics.Track(TaskRequestNotify)
	if len(n.To) == 0 {
		return tracker.End(nil)
	}
	if h.Mailer == nil {
		return tracker.End(errors.New("jobs: mailer not configured"))
	}
	if err := h.Mailer.Send(ctx, NotificationMessage(n)); err != nil {
		h.logger().Warn("request notification failed", slog.String("code", n.Code), slog.Any("error", err))
		return tracker.End(err)
	}
	h.Metrics.AddMailsSent(len(n.To))
	return tracker.End(nil)
}

// HandlePicturePurge processes TaskPicturePurge tasks.
func (h *Handlers) HandlePicturePurge(ctx context.Context, t *asynq.Task) error {
	var p PicturePurgePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil || !pictures.ValidFileName(p.File) {
		return fmt.Errorf("decode %s: %w", TaskPicturePurge, asynq.SkipRetry)
	}
	tracker := h.Metrics.Track(TaskPicturePurge)
	if h.Store == nil {
		return tracker.End(errors.New("jobs: picture store not configured"))
	}
	return tracker.End(pictures.Purge(ctx, h.Store, p.File))
}

// HandleIdempotencyCleanup processes TaskIdempotencyCleanup tasks.
func (h *Handlers) HandleIdempotencyCleanup(ctx context.Context, _ *asynq.Task) error {
	tracker := h.Metrics.Track(TaskIdempotencyCleanup)
	if h.Idempotency == nil {
		return tracker.End(nil)
	}
	n, err := h.Idempotency.Cleanup(ctx, IdempotencyRetention)
	if err == nil && n > 0 {
		h.logger().Info("idempotency keys expired", slog.Int64("count", n))
	}
	return tracker.End(err)
}
