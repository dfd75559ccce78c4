package views

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Conn is the part of *websocket.Conn the registry writes through.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// Event is one message pushed to an open view.
type Event struct {
	Type string      `json:"type"`
	URL  string      `json:"url,omitempty"`
	Data interface{} `json:"data,omitempty"`
}

const (
	EventNotification = "notification"
	EventNavigate     = "navigate"
	EventRead         = "read"
)

// View is one open client window for a user.
type View struct {
	UserID     string
	conn       Conn
	writeMu    sync.Mutex
	lastActive time.Time
}

func (v *View) write(e Event) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	return v.conn.WriteJSON(e)
}

// Registry tracks open views per user.
type Registry struct {
	mu     sync.RWMutex
	views  map[string]map[*View]struct{}
	now    func() time.Time
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		views:  make(map[string]map[*View]struct{}),
		now:    time.Now,
		logger: logger,
	}
}

// Add registers a connection for a user and marks it as the most recently active view.
func (r *Registry) Add(userID string, conn Conn) *View {
	v := &View{UserID: userID, conn: conn, lastActive: r.now()}

	r.mu.Lock()
	if _, ok := r.views[userID]; !ok {
		r.views[userID] = make(map[*View]struct{})
	}
	r.views[userID][v] = struct{}{}
	total := len(r.views[userID])
	r.mu.Unlock()

	r.logger.Debug("View opened", zap.String("userID", userID), zap.Int("open", total))
	return v
}

// Remove closes and forgets a view. Safe to call more than once.
func (r *Registry) Remove(v *View) {
	r.mu.Lock()
	conns, ok := r.views[v.UserID]
	if ok {
		if _, present := conns[v]; !present {
			ok = false
		}
		delete(conns, v)
		if len(conns) == 0 {
			delete(r.views, v.UserID)
		}
	}
	r.mu.Unlock()

	if ok {
		_ = v.conn.Close()
		r.logger.Debug("View closed", zap.String("userID", v.UserID))
	}
}

// Touch marks v as the user's most recently active view.
func (r *Registry) Touch(v *View) {
	r.mu.Lock()
	v.lastActive = r.now()
	r.mu.Unlock()
}

// HasOpenView reports whether the user has at least one view open.
func (r *Registry) HasOpenView(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.views[userID]) > 0
}

// byRecency snapshots a user's views, most recently active first.
func (r *Registry) byRecency(userID string) []*View {
	r.mu.RLock()
	out := make([]*View, 0, len(r.views[userID]))
	for v := range r.views[userID] {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].lastActive.After(out[j].lastActive) })
	r.mu.RUnlock()
	return out
}

// Publish sends e to every open view of the user and returns how many received it.
// Views that fail a write are dropped.
func (r *Registry) Publish(userID string, e Event) int {
	sent := 0
	for _, v := range r.byRecency(userID) {
		if err := v.write(e); err != nil {
			r.logger.Warn("View write failed", zap.String("userID", userID), zap.Error(err))
			r.Remove(v)
			continue
		}
		sent++
	}
	return sent
}

// Focus posts a navigate event to the single most recently active view. It returns false when
// the user has no view that accepted the write, in which case the caller should open a new one.
func (r *Registry) Focus(userID, url string) bool {
	for _, v := range r.byRecency(userID) {
		if err := v.write(Event{Type: EventNavigate, URL: url}); err != nil {
			r.logger.Warn("View focus failed", zap.String("userID", userID), zap.Error(err))
			r.Remove(v)
			continue
		}
		r.Touch(v)
		return true
	}
	return false
}
