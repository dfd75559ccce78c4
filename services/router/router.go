package router

import (
	"time"

	"beacon/models"
	"beacon/services/preference"
)

// PolicyBlock names why outbound delivery was suppressed. It is not an error: the
// notification is still recorded in-app.
type PolicyBlock string

const (
	NotBlocked       PolicyBlock = ""
	CategoryDisabled PolicyBlock = "category_disabled"
	QuietHours       PolicyBlock = "quiet_hours"
)

// ChannelPlan is the routing decision for one notification. In-app is always recorded;
// Outbound lists the remaining channels to invoke, in preference order.
type ChannelPlan struct {
	InApp    bool             `json:"in_app"`
	Outbound []models.Channel `json:"outbound"`
	Blocked  PolicyBlock      `json:"blocked,omitempty"`
	Priority models.Priority  `json:"priority"`
}

// Router is the delivery policy engine.
type Router struct {
	supported map[models.Channel]bool
	// Location is the zone quiet hours are read in when the user has not set one.
	Location *time.Location
}

// New builds a router restricted to the globally supported channels. Unknown names are ignored.
func New(supported []string) *Router {
	r := &Router{supported: make(map[models.Channel]bool)}
	for _, name := range supported {
		if ch := models.Channel(name); ch.Valid() {
			r.supported[ch] = true
		}
	}
	return r
}

// Route decides which outbound channels a notification may use for this user right now.
func (r *Router) Route(pref *models.Preference, priority models.Priority, category models.Category, now time.Time) ChannelPlan {
	priority = priority.Normalize()
	plan := ChannelPlan{InApp: true, Outbound: []models.Channel{}, Priority: priority}

	// Category opt-out wins over every priority, critical included.
	if !pref.CategoryEnabled(category) {
		plan.Blocked = CategoryDisabled
		return plan
	}

	if r.Location != nil {
		now = now.In(r.Location)
	}
	if priority != models.PriorityCritical && preference.IsInQuietHours(pref, now) {
		plan.Blocked = QuietHours
		return plan
	}

	methods := pref.Methods(priority)
	plan.Outbound = r.outbound(methods)

	if priority == models.PriorityCritical && len(plan.Outbound) == 0 {
		plan.Outbound = r.outbound(models.DefaultMethods(models.PriorityCritical))
	}
	return plan
}

// outbound intersects methods with the supported set, dropping in-app and duplicates.
func (r *Router) outbound(methods []models.Channel) []models.Channel {
	out := []models.Channel{}
	seen := make(map[models.Channel]bool, len(methods))
	for _, ch := range methods {
		if ch == models.ChannelInApp || seen[ch] || !r.supported[ch] {
			continue
		}
		seen[ch] = true
		out = append(out, ch)
	}
	return out
}
