package accounts

import (
	"context"
	"fmt"
	"time"

	"github.com/EduShopX/edushop/internal/mail"
	"github.com/EduShopX/edushop/internal/tasks"
)

// RegisterTasks binds the account jobs to registry.
func RegisterTasks(registry *tasks.Registry, sender mail.Sender) {
	registry.Register(TaskWelcomeEmail, WelcomeEmailHandler(sender), tasks.Options{
		MaxRetries: 5,
		RetryDelay: 10 * time.Second,
		TimeLimit:  30 * time.Second,
	})
}

// WelcomeEmailHandler sends the post-registration greeting.
func WelcomeEmailHandler(sender mail.Sender) tasks.Handler {
	return func(ctx context.Context, t *tasks.Task) (interface{}, error) {
		var args WelcomeArgs
		if err := t.Bind(&args); err != nil {
			return nil, fmt.Errorf("%w: %v", tasks.ErrNoRetry, err)
		}
		msg := mail.Message{
			To:      []string{args.To},
			Subject: args.Subject,
			Body:    fmt.Sprintf("%s dear, Registration was successful.", args.Username),
		}
		if err := sender.Send(ctx, msg); err != nil {
			return nil, fmt.Errorf("send welcome email to %s: %w", args.To, err)
		}
		return map[string]string{"sent_to": args.To}, nil
	}
}
