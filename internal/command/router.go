package command

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/metrics"
)

// Handler performs the operations behind each command. Errors are reported
// to the operator; none of them stop the router.
type Handler interface {
	Capture(ctx context.Context) error
	Save(ctx context.Context) error
	ResetFront(ctx context.Context) error
	ResetBack(ctx context.Context) error
	OpenSettings(ctx context.Context) error
	Exit(ctx context.Context) error
}

// RouterOptions configures a Router.
type RouterOptions struct {
	// Source labels rejected input in events, e.g. "console".
	Source string
	Events events.Publisher
	Logger *slog.Logger
}

// Router dispatches raw input to a Handler.
type Router struct {
	handler Handler
	source  string
	events  events.Publisher
	logger  *slog.Logger
}

// NewRouter creates a router for h.
func NewRouter(h Handler, opts RouterOptions) *Router {
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("command")
	}
	return &Router{
		handler: h,
		source:  opts.Source,
		events:  opts.Events,
		logger:  logger,
	}
}

// Dispatch parses raw and runs the matching handler method. It returns the
// parsed command along with the parse or handler error. Blank input is a
// no-op.
func (r *Router) Dispatch(ctx context.Context, raw string) (Command, error) {
	cmd, err := Parse(raw)
	if err != nil {
		r.logger.Warn("Unknown command", "input", raw, "source", r.source)
		if r.events != nil {
			r.events.Publish(events.CommandRejectedEvent{
				Input:     raw,
				Source:    r.source,
				Timestamp: events.Now(),
			})
		}
		return cmd, err
	}
	if cmd == CommandNone {
		return cmd, nil
	}

	metrics.IncCommand(cmd.String())
	r.logger.Debug("Dispatching command", "command", cmd.String(), "source", r.source)

	switch cmd {
	case CommandCapture:
		err = r.handler.Capture(ctx)
	case CommandSave:
		err = r.handler.Save(ctx)
	case CommandResetFront:
		err = r.handler.ResetFront(ctx)
	case CommandResetBack:
		err = r.handler.ResetBack(ctx)
	case CommandOpenSettings:
		err = r.handler.OpenSettings(ctx)
	case CommandExit:
		err = r.handler.Exit(ctx)
	default:
		err = fmt.Errorf("no handler for %s", cmd)
	}
	return cmd, err
}
