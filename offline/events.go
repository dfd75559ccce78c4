package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"go.uber.org/zap"
)

// EventType names a lifecycle or delivery event seen by the background agent.
type EventType string

const (
	EventInstall           EventType = "install"
	EventActivate          EventType = "activate"
	EventPush              EventType = "push"
	EventNotificationClick EventType = "notificationclick"
	EventSync              EventType = "sync"
	EventPeriodic          EventType = "periodic"
	EventOnline            EventType = "online"
	EventMessage           EventType = "message"
)

type Event struct {
	Type           EventType       `json:"type"`
	NotificationID string          `json:"notification_id,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// Handler reacts to one event.
type Handler func(ctx context.Context, e Event) error

// Dispatcher fans events out to registered handlers. Each handler runs in its own goroutine;
// an error or panic in one is logged and never reaches the others.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	logger   *zap.Logger
}

func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{handlers: make(map[EventType][]Handler), logger: logger}
}

func (d *Dispatcher) Register(t EventType, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = append(d.handlers[t], h)
}

// Dispatch runs every handler for e and waits for them. The returned error joins the
// individual handler failures.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers[e.Type]...)
	d.mu.RUnlock()

	if len(handlers) == 0 {
		d.logger.Debug("No handlers for event", zap.String("event", string(e.Type)))
		return nil
	}

	errs := make([]error, len(handlers))
	var wg conc.WaitGroup
	for i, h := range handlers {
		i, h := i, h
		wg.Go(func() {
			errs[i] = d.run(ctx, e, h)
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

func (d *Dispatcher) run(ctx context.Context, e Event, h Handler) (err error) {
	var pc panics.Catcher
	pc.Try(func() { err = h(ctx, e) })
	if r := pc.Recovered(); r != nil {
		err = fmt.Errorf("%s handler panicked: %v", e.Type, r.Value)
	}
	if err != nil {
		d.logger.Error("Event handler failed", zap.String("event", string(e.Type)), zap.Error(err))
	}
	return err
}

// Attach wires the worker to the connectivity events that should start a drain.
func (w *SyncWorker) Attach(d *Dispatcher) {
	trigger := func(context.Context, Event) error {
		w.Trigger()
		return nil
	}
	d.Register(EventOnline, func(context.Context, Event) error {
		w.Expedite()
		return nil
	})
	d.Register(EventSync, trigger)
	d.Register(EventPeriodic, trigger)
}
