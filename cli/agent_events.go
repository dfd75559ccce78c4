package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"beacon/client"
	"beacon/offline"
	"beacon/services/channels"

	"go.uber.org/zap"
)

// agentMessage is the body of a message event sent to a running agent.
type agentMessage struct {
	Action string `json:"action"`
}

// agentEvents holds what the agent's event handlers act on.
type agentEvents struct {
	store  *offline.Store
	engine *client.EngineClient
	worker *offline.SyncWorker
	logger *zap.Logger

	mu  sync.Mutex
	out io.Writer
}

// register attaches a handler for every event the agent understands.
func (a *agentEvents) register(d *offline.Dispatcher) {
	a.worker.Attach(d)
	d.Register(offline.EventInstall, a.install)
	d.Register(offline.EventActivate, a.activate)
	d.Register(offline.EventPush, a.push)
	d.Register(offline.EventNotificationClick, a.click)
	d.Register(offline.EventMessage, a.message)
}

func (a *agentEvents) printf(format string, args ...interface{}) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// install returns items a previous run left mid-delivery to the queue.
func (a *agentEvents) install(ctx context.Context, _ offline.Event) error {
	n, err := a.store.RecoverInFlight(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		a.logger.Info("Recovered in-flight queue items", zap.Int64("count", n))
	}
	return nil
}

func (a *agentEvents) activate(context.Context, offline.Event) error {
	a.worker.Trigger()
	return nil
}

// push shows a received push payload.
func (a *agentEvents) push(_ context.Context, e offline.Event) error {
	var p channels.PushPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return fmt.Errorf("decode push payload: %w", err)
	}
	a.printf("[%s] %s: %s (%s)\n", p.Priority, p.Title, p.Message, p.URL)
	return nil
}

// click reports the click to the engine and prints where the user should go.
func (a *agentEvents) click(ctx context.Context, e offline.Event) error {
	if e.NotificationID == "" {
		return errors.New("notificationclick without notification_id")
	}
	out, err := a.engine.Click(ctx, e.NotificationID)
	if err != nil {
		return fmt.Errorf("click %s: %w", e.NotificationID, err)
	}
	a.printf("%s %s\n", out.Action, out.URL)
	return nil
}

// message handles control messages: "sync" starts a drain and "status" prints the queue size.
func (a *agentEvents) message(ctx context.Context, e offline.Event) error {
	var m agentMessage
	if err := json.Unmarshal(e.Payload, &m); err != nil {
		return fmt.Errorf("decode message: %w", err)
	}
	switch m.Action {
	case "sync":
		a.worker.Expedite()
	case "status":
		n, err := a.store.Count(ctx)
		if err != nil {
			return err
		}
		a.printf("%d queued\n", n)
	default:
		return fmt.Errorf("unknown message action %q", m.Action)
	}
	return nil
}

// readEvents dispatches newline-delimited JSON events from r until it ends or ctx is done.
func readEvents(ctx context.Context, r io.Reader, d *offline.Dispatcher, logger *zap.Logger) error {
	dec := json.NewDecoder(r)
	for ctx.Err() == nil {
		var e offline.Event
		if err := dec.Decode(&e); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := d.Dispatch(ctx, e); err != nil {
			logger.Warn("Event handlers failed", zap.String("event", string(e.Type)), zap.Error(err))
		}
	}
	return ctx.Err()
}
