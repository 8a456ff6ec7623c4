package out

import (
	"context"

	"focuskit/internal/modules/notify/domain"
	notifyout "focuskit/internal/modules/notify/port/out"

	"github.com/rs/zerolog"
)

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) notifyout.Notifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) Type() string { return "builtin" }

func (n *LogNotifier) Send(_ context.Context, msg domain.Message) error {
	event := n.logger.Info()
	if msg.Kind == domain.KindError {
		event = n.logger.Warn()
	}
	event.Str("kind", string(msg.Kind)).Str("title", msg.Title).Msg(msg.Body)
	return nil
}
