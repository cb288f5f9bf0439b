package console

import (
	"context"

	"medication-tracker/internal/platform/logger"
	"medication-tracker/internal/ports/notify"
)

// Notifier escribe los recordatorios al log estructurado.
// Es el default cuando no hay canal push configurado.
type Notifier struct {
	log logger.Logger
}

func New(log logger.Logger) *Notifier {
	if log == nil {
		log = logger.NewFromEnv()
	}
	return &Notifier{
		log: log.With(map[string]any{"component": "notifier"}),
	}
}

func (n *Notifier) Notify(ctx context.Context, msg notify.Notification) error {
	n.log.Info("reminder", map[string]any{
		"user_id":   msg.UserID,
		"title":     msg.Title,
		"body":      msg.Body,
		"urgent":    msg.Urgent,
		"dedup_key": msg.DedupKey,
	})
	return nil
}
