package jobs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinica-central/helpdesk/internal/pictures"
	"github.com/clinica-central/helpdesk/internal/platform/mail"
	"github.com/clinica-central/helpdesk/internal/requests"
	"github.com/clinica-central/helpdesk/jobs"
)

type recordingMailer struct {
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type recordingQueue struct {
	tasks []*asynq.Task
}

func (q *recordingQueue) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.tasks = append(q.tasks, task)
	return &asynq.TaskInfo{Type: task.Type(), Queue: jobs.QueueDefault}, nil
}

func (q *recordingQueue) Close() error { return nil }

type countingCleaner struct {
	olderThan time.Duration
}

func (c *countingCleaner) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	c.olderThan = olderThan
	return 3, nil
}

func TestClientEnqueuesNotificationAndPurge(t *testing.T) {
	ctx := context.Background()
	queue := &recordingQueue{}
	client := jobs.NewClientWith(queue)

	require.NoError(t, client.NotifyRequest(ctx, requests.Notification{RequestID: 1, Code: "MT-001", To: []string{"ana@clinica.cl"}}))
	require.NoError(t, client.EnqueuePicturePurge(ctx, "abc.jpg"))

	require.Len(t, queue.tasks, 2)
	assert.Equal(t, jobs.TaskRequestNotify, queue.tasks[0].Type())
	assert.Contains(t, string(queue.tasks[0].Payload()), `"code":"MT-001"`)
	assert.Equal(t, jobs.TaskPicturePurge, queue.tasks[1].Type())
	assert.JSONEq(t, `{"file":"abc.jpg"}`, string(queue.tasks[1].Payload()))
}

func TestHandleRequestNotifySendsMail(t *testing.T) {
	mailer := &recordingMailer{}
	h := &jobs.Handlers{Mailer: mailer}
	task, err := jobs.NewRequestNotifyTask(requests.Notification{
		RequestID: 1, Code: "MT-001", Subject: "AC no enfría", Status: "Pending",
		To: []string{"ana@clinica.cl", "admin@clinica.cl"},
	})
	require.NoError(t, err)

	require.NoError(t, h.HandleRequestNotify(context.Background(), task))
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "[Helpdesk] MT-001: AC no enfría", msg.Subject)
	assert.Equal(t, []string{"ana@clinica.cl", "admin@clinica.cl"}, msg.To)
	assert.True(t, strings.Contains(msg.Body, "Estado actual: Pending"))
}

func TestHandleRequestNotifyEdgeCases(t *testing.T) {
	ctx := context.Background()
	mailer := &recordingMailer{}
	h := &jobs.Handlers{Mailer: mailer}

	err := h.HandleRequestNotify(ctx, asynq.NewTask(jobs.TaskRequestNotify, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	task, err := jobs.NewRequestNotifyTask(requests.Notification{RequestID: 1, Code: "MT-001"})
	require.NoError(t, err)
	require.NoError(t, h.HandleRequestNotify(ctx, task))
	assert.Empty(t, mailer.sent)

	mailer.err = errors.New("smtp down")
	task, err = jobs.NewRequestNotifyTask(requests.Notification{RequestID: 1, Code: "MT-001", To: []string{"a@b.cl"}})
	require.NoError(t, err)
	assert.Error(t, h.HandleRequestNotify(ctx, task))
}

func TestHandlePicturePurge(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := pictures.NewLocalStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "abc.jpg"), []byte("x"), 0o600))
	h := &jobs.Handlers{Store: store}

	task, err := jobs.NewPicturePurgeTask("abc.jpg")
	require.NoError(t, err)
	require.NoError(t, h.HandlePicturePurge(ctx, task))
	_, statErr := os.Stat(filepath.Join(dir, "abc.jpg"))
	assert.True(t, os.IsNotExist(statErr))

	// a second run finds nothing and still succeeds
	require.NoError(t, h.HandlePicturePurge(ctx, task))

	bad, err := jobs.NewPicturePurgeTask("../etc/passwd")
	require.NoError(t, err)
	assert.ErrorIs(t, h.HandlePicturePurge(ctx, bad), asynq.SkipRetry)
}

func TestHandleIdempotencyCleanup(t *testing.T) {
	cleaner := &countingCleaner{}
	h := &jobs.Handlers{Idempotency: cleaner}
	require.NoError(t, h.HandleIdempotencyCleanup(context.Background(), jobs.NewIdempotencyCleanupTask()))
	assert.Equal(t, jobs.IdempotencyRetention, cleaner.olderThan)
}
