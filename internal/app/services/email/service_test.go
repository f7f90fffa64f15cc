package email

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EduShopX/edushop/internal/app/domain/account"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/mail"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/internal/tasks/taskstest"
)

func TestBatches(t *testing.T) {
	emails := make([]string, 1201)
	for i := range emails {
		emails[i] = fmt.Sprintf("u%d@example.com", i)
	}
	batches := Batches(emails, BatchSize)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 500)
	assert.Len(t, batches[2], 201)
	assert.Empty(t, Batches(nil, BatchSize))
}

func TestSendMassRequiresSubjectAndMessage(t *testing.T) {
	svc := New(memory.New(), taskstest.New(), nil, nil)
	_, err := svc.SendMass(context.Background(), "", "body")
	assert.EqualError(t, err, "Subject and message are required")
	_, err = svc.SendMass(context.Background(), "Hi", " ")
	assert.Error(t, err)
}

func TestMassEmailFansOutBatches(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for i := 0; i < 3; i++ {
		_, err := store.CreateUser(ctx, account.User{Username: fmt.Sprintf("u%d", i), Email: fmt.Sprintf("u%d@example.com", i)})
		require.NoError(t, err)
	}
	queue := taskstest.New()
	sender := mail.NewLogSender(nil)
	svc := New(store, queue, sender, nil)

	id, err := svc.SendMass(ctx, "News", "Hello all")
	require.NoError(t, err)
	call := queue.Calls(TaskSendMassEmail)[0]
	assert.Equal(t, id, call.ID)

	ids, err := svc.handleMass(ctx, &tasks.Task{ID: id, Name: TaskSendMassEmail, Args: call.Args})
	require.NoError(t, err)
	assert.Len(t, ids, 1)

	batch := queue.Calls(TaskSendEmailBatch)
	require.Len(t, batch, 1)
	var args BatchArgs
	require.NoError(t, json.Unmarshal(batch[0].Args, &args))
	assert.Len(t, args.Emails, 3)

	out, err := svc.handleBatch(ctx, &tasks.Task{Name: TaskSendEmailBatch, Args: batch[0].Args})
	require.NoError(t, err)
	assert.Equal(t, "Sent 3 emails", out)
	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].To)
	assert.Len(t, sent[0].Bcc, 3)

	status, err := svc.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, tasks.StatusPending, status.Status)
}
