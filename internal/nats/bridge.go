package nats

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/smazurov/photostation/internal/command"
	"github.com/smazurov/photostation/internal/config"
	"github.com/smazurov/photostation/internal/events"
	"github.com/smazurov/photostation/internal/logging"
	"github.com/smazurov/photostation/internal/persist"
	"github.com/smazurov/photostation/internal/station"
)

// ErrNotAllowedRemotely is returned for commands that need the operator.
var ErrNotAllowedRemotely = errors.New("command not allowed remotely")

// Station is the slot station as remote commands drive it.
type Station interface {
	CaptureInto(choice station.Choice) (station.CaptureResult, error)
	Reset(slot station.Slot) bool
	State() station.State
	persist.Slots
}

// publisher is the publishing half of a NATS connection.
type publisher interface {
	Publish(subject string, data []byte) error
}

// Options configures a Bridge.
type Options struct {
	URL string
	// StationID names this station in subjects. Defaults to "default".
	StationID string
	Station   Station
	Writer    *persist.Writer
	Settings  interface{ Get() config.Settings }
	Events    *events.Bus
	Logger    *slog.Logger
}

// Bridge publishes station events to NATS and runs commands received from it.
type Bridge struct {
	opts   Options
	logger *slog.Logger

	mu          sync.Mutex
	ctx         context.Context
	conn        *nats.Conn
	pub         publisher
	sub         *nats.Subscription
	unsubscribe []func()
}

// NewBridge creates a bridge. Start connects it.
func NewBridge(opts Options) *Bridge {
	if opts.StationID == "" {
		opts.StationID = "default"
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("nats")
	}
	return &Bridge{
		opts:   opts,
		logger: logger.With("station_id", opts.StationID),
		ctx:    context.Background(),
	}
}

// Start connects to NATS, subscribes to commands and begins forwarding
// events. Commands run with ctx.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	conn, err := nats.Connect(b.opts.URL,
		nats.Name("photostation-"+b.opts.StationID),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				b.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			b.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return err
	}

	sub, err := conn.Subscribe(SubjectCommands(b.opts.StationID), b.handleCommand)
	if err != nil {
		conn.Close()
		return err
	}

	b.ctx = ctx
	b.conn = conn
	b.sub = sub
	b.attachLocked(conn)
	b.logger.Info("NATS bridge connected", "url", b.opts.URL, "commands", sub.Subject)
	return nil
}

// attachLocked starts forwarding bus events to pub.
func (b *Bridge) attachLocked(pub publisher) {
	b.pub = pub
	bus := b.opts.Events
	b.unsubscribe = append(b.unsubscribe,
		bus.Subscribe(func(e events.CaptureStateChangedEvent) { b.forward(e) }),
		bus.Subscribe(func(e events.SlotChangedEvent) { b.forward(e) }),
		bus.Subscribe(func(e events.SaveCompletedEvent) { b.forward(e) }),
		bus.Subscribe(func(e events.SaveFailedEvent) { b.forward(e) }),
		bus.Subscribe(func(e events.DeviceChangedEvent) { b.forward(e) }),
		bus.Subscribe(func(e events.SettingsChangedEvent) { b.forward(e) }),
		bus.Subscribe(func(e events.CommandRejectedEvent) { b.forward(e) }),
	)
}

// forward publishes ev. Failures are logged; events are not queued.
func (b *Bridge) forward(ev events.Event) {
	b.mu.Lock()
	pub := b.pub
	b.mu.Unlock()
	if pub == nil {
		return
	}

	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Warn("Failed to encode event", "event", events.Name(ev), "error", err)
		return
	}
	subject := SubjectEvents(b.opts.StationID, events.Name(ev))
	if err := pub.Publish(subject, data); err != nil {
		b.logger.Debug("Failed to publish event", "subject", subject, "error", err)
	}
}

func (b *Bridge) handleCommand(msg *nats.Msg) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()

	reply := b.execute(ctx, msg.Data)
	if msg.Reply == "" {
		return
	}
	data, err := json.Marshal(reply)
	if err != nil {
		b.logger.Warn("Failed to encode reply", "error", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		b.logger.Warn("Failed to send reply", "error", err)
	}
}

// execute runs one request and describes the result.
func (b *Bridge) execute(ctx context.Context, data []byte) Reply {
	req, err := ParseRequest(data)
	if err != nil {
		return Reply{Error: err.Error()}
	}

	call := &remoteCall{b: b, req: req}
	router := command.NewRouter(call, command.RouterOptions{
		Source: "nats",
		Events: b.opts.Events,
		Logger: b.logger,
	})
	cmd, err := router.Dispatch(ctx, req.Command)

	reply := call.reply
	reply.Command = cmd.String()
	reply.OK = err == nil
	if err != nil {
		reply.Error = err.Error()
	}
	st := b.opts.Station.State()
	reply.FrontOccupied, reply.BackOccupied = st.Front, st.Back
	return reply
}

// Stop unsubscribes and closes the connection.
func (b *Bridge) Stop() {
	b.mu.Lock()
	unsubscribe := b.unsubscribe
	sub, conn := b.sub, b.conn
	b.unsubscribe = nil
	b.pub, b.sub, b.conn = nil, nil, nil
	b.mu.Unlock()

	for _, unsub := range unsubscribe {
		unsub()
	}
	if sub != nil {
		_ = sub.Unsubscribe()
	}
	if conn != nil {
		conn.Close()
		b.logger.Info("NATS bridge stopped")
	}
}

// IsConnected returns true if the bridge is connected to NATS.
func (b *Bridge) IsConnected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn != nil && b.conn.IsConnected()
}

// remoteCall runs one command for a remote caller. Arguments the console
// would prompt for come from the request.
type remoteCall struct {
	b     *Bridge
	req   Request
	reply Reply
}

func (c *remoteCall) Capture(context.Context) error {
	choice, err := station.ParseChoice(c.req.Choice)
	if err != nil {
		return err
	}
	res, err := c.b.opts.Station.CaptureInto(choice)
	if err != nil {
		return err
	}
	c.reply.Result = res.Outcome()
	if res.Stored {
		c.reply.Slot = res.Slot.String()
	}
	return nil
}

func (c *remoteCall) Save(context.Context) error {
	var base string
	if c.b.opts.Settings != nil {
		base = c.b.opts.Settings.Get().BasePath
	}
	res, err := c.b.opts.Writer.Save(c.b.opts.Station, base, c.req.Folder)
	if err != nil {
		return err
	}
	c.reply.Folder = res.Folder
	c.reply.FrontPath = res.FrontPath
	c.reply.BackPath = res.BackPath
	return nil
}

func (c *remoteCall) ResetFront(context.Context) error {
	c.reply.Slot = station.Front.String()
	c.reply.Cleared = c.b.opts.Station.Reset(station.Front)
	return nil
}

func (c *remoteCall) ResetBack(context.Context) error {
	c.reply.Slot = station.Back.String()
	c.reply.Cleared = c.b.opts.Station.Reset(station.Back)
	return nil
}

func (c *remoteCall) OpenSettings(context.Context) error { return ErrNotAllowedRemotely }

func (c *remoteCall) Exit(context.Context) error { return ErrNotAllowedRemotely }
