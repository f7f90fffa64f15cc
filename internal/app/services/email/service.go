// Package email broadcasts staff announcements to every user in BCC
// batches.
package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EduShopX/edushop/internal/app/storage"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/mail"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/pkg/logger"
)

const (
	TaskSendMassEmail  = "mail.send_mass_email"
	TaskSendEmailBatch = "mail.send_email_batch"

	// BatchSize caps the BCC list of one message.
	BatchSize = 500
)

// MassArgs is the announcement to send.
type MassArgs struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// BatchArgs is one BCC batch of an announcement.
type BatchArgs struct {
	Subject string   `json:"subject"`
	Message string   `json:"message"`
	Emails  []string `json:"emails"`
}

// Service queues announcements and runs the batch jobs.
type Service struct {
	users  storage.UserStore
	queue  tasks.Queue
	sender mail.Sender
	log    *logger.Logger
}

// New creates the email service. sender is only needed by workers.
func New(users storage.UserStore, queue tasks.Queue, sender mail.Sender, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("email")
	}
	return &Service{users: users, queue: queue, sender: sender, log: log}
}

// SendMass queues an announcement to every user and returns the task id.
func (s *Service) SendMass(ctx context.Context, subject, message string) (string, error) {
	if strings.TrimSpace(subject) == "" || strings.TrimSpace(message) == "" {
		return "", apperrors.BadRequest("Subject and message are required")
	}
	return s.queue.Enqueue(ctx, TaskSendMassEmail, MassArgs{Subject: subject, Message: message})
}

// Status reports the state of a queued announcement.
func (s *Service) Status(ctx context.Context, taskID string) (tasks.Result, error) {
	return s.queue.Status(ctx, taskID)
}

// Batches splits emails into groups of at most size addresses.
func Batches(emails []string, size int) [][]string {
	if size <= 0 {
		size = BatchSize
	}
	out := make([][]string, 0, (len(emails)+size-1)/size)
	for start := 0; start < len(emails); start += size {
		end := start + size
		if end > len(emails) {
			end = len(emails)
		}
		out = append(out, emails[start:end])
	}
	return out
}

// RegisterTasks binds the fan-out and batch jobs.
func (s *Service) RegisterTasks(registry *tasks.Registry) {
	registry.Register(TaskSendMassEmail, s.handleMass, tasks.Options{MaxRetries: 3, RetryDelay: 10 * time.Second})
	registry.Register(TaskSendEmailBatch, s.handleBatch, tasks.Options{MaxRetries: 3, RetryDelay: 10 * time.Second})
}

// handleMass enqueues one batch job per BatchSize users and returns their ids.
func (s *Service) handleMass(ctx context.Context, t *tasks.Task) (interface{}, error) {
	var args MassArgs
	if err := t.Bind(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", tasks.ErrNoRetry, err)
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	emails := make([]string, 0, len(users))
	for _, u := range users {
		if u.Email != "" {
			emails = append(emails, u.Email)
		}
	}

	batches := Batches(emails, BatchSize)
	ids := make([]string, 0, len(batches))
	for i, batch := range batches {
		id, err := s.queue.Enqueue(ctx, TaskSendEmailBatch, BatchArgs{Subject: args.Subject, Message: args.Message, Emails: batch})
		if err != nil {
			return nil, fmt.Errorf("enqueue batch %d: %w", i, err)
		}
		ids = append(ids, id)
		t.Progress(ctx, fmt.Sprintf("queued %d/%d batches", i+1, len(batches)))
	}
	s.log.WithContext(ctx).
		WithField("recipients", len(emails)).
		WithField("batches", len(ids)).
		Info("mass email fanned out")
	return ids, nil
}

func (s *Service) handleBatch(ctx context.Context, t *tasks.Task) (interface{}, error) {
	var args BatchArgs
	if err := t.Bind(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", tasks.ErrNoRetry, err)
	}
	if len(args.Emails) == 0 {
		return "Sent 0 emails", nil
	}
	msg := mail.Message{Bcc: args.Emails, Subject: args.Subject, Body: args.Message}
	if err := s.sender.Send(ctx, msg); err != nil {
		return nil, fmt.Errorf("send batch of %d: %w", len(args.Emails), err)
	}
	return fmt.Sprintf("Sent %d emails", len(args.Emails)), nil
}
