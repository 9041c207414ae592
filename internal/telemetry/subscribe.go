package telemetry

import (
	"context"
	"fmt"

	"github.com/mark3labs/acphost/internal/logger"
	"github.com/nats-io/nats.go"
)

// Tail subscribes to subject (typically SubjectForSession(id), or
// subjectPrefix+".>" for every session) on the bus's core NATS connection
// and calls handler for each event published from here on. It is a live
// view only — there is no replay or acknowledgment, matching the bus's
// in-process, non-durable nature. The subscription is cancelled when ctx is
// done.
func (b *Bus) Tail(ctx context.Context, subject string, handler func(subject string, data []byte)) error {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("telemetry: subscribe %s: %w", subject, err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			logger.Debug("telemetry: unsubscribe %s: %v", subject, err)
		}
	}()
	return nil
}
