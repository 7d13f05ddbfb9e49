package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/photostation/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time stream of slot changes, saves, capture state and device hotplug",
		Tags:        []string{"events"},
		Security:    public(),
	}, sseEventTypes(), func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 16)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.CaptureStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SlotChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SaveCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SaveFailedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.SettingsChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.CommandRejectedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Initial snapshot so a fresh page can render without polling
		st := s.options.Station.State()
		if err := send.Data(events.SlotChangedEvent{
			Action:        "snapshot",
			FrontOccupied: st.Front,
			BackOccupied:  st.Back,
			Timestamp:     events.Now(),
		}); err != nil {
			return
		}
		if s.options.Capture != nil {
			if err := send.Data(events.CaptureStateChangedEvent{
				Running:   s.options.Capture.Running(),
				DeviceID:  s.options.Capture.DeviceID(),
				Timestamp: events.Now(),
			}); err != nil {
				return
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}

// sseEventTypes maps SSE event names to the payload types sent under them.
func sseEventTypes() map[string]any {
	types := map[string]any{}
	for _, ev := range []events.Event{
		events.CaptureStateChangedEvent{},
		events.SlotChangedEvent{},
		events.SaveCompletedEvent{},
		events.SaveFailedEvent{},
		events.DeviceChangedEvent{},
		events.SettingsChangedEvent{},
		events.CommandRejectedEvent{},
	} {
		types[events.Name(ev)] = ev
	}
	return types
}
