package models

import "time"

type QuietHours struct {
	Enabled  bool   `bson:"enabled" json:"enabled"`
	Start    string `bson:"start" json:"start" validate:"hhmm"`
	End      string `bson:"end" json:"end" validate:"hhmm"`
	Timezone string `bson:"timezone,omitempty" json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// Preference is one user's delivery policy.
type Preference struct {
	UserID          string                 `bson:"user_id" json:"user_id"`
	Categories      map[Category]bool      `bson:"categories" json:"categories"`
	QuietHours      QuietHours             `bson:"quiet_hours" json:"quiet_hours"`
	DeliveryMethods map[Priority][]Channel `bson:"delivery_methods" json:"delivery_methods" validate:"dive,keys,oneof=critical high normal low,endkeys,dive,oneof=in_app push email"`
	UpdatedAt       time.Time              `bson:"updated_at" json:"updated_at"`
}

// defaultMethods is the channel table applied when a user has not chosen one.
var defaultMethods = map[Priority][]Channel{
	PriorityCritical: {ChannelPush, ChannelEmail},
	PriorityHigh:     {ChannelPush, ChannelEmail},
	PriorityNormal:   {ChannelPush},
	PriorityLow:      {ChannelInApp},
}

// DefaultMethods returns a copy of the default channel list for a priority.
func DefaultMethods(p Priority) []Channel {
	return append([]Channel(nil), defaultMethods[p.Normalize()]...)
}

// DefaultPreference is the policy used when nothing is stored for a user.
func DefaultPreference(userID string) *Preference {
	p := &Preference{
		UserID: userID,
		QuietHours: QuietHours{
			Enabled: false,
			Start:   "22:00",
			End:     "08:00",
		},
	}
	p.Normalize()
	return p
}

// Normalize fills categories and priorities missing from a stored document with defaults.
func (p *Preference) Normalize() {
	if p.Categories == nil {
		p.Categories = make(map[Category]bool, len(AllCategories))
	}
	for _, c := range AllCategories {
		if _, ok := p.Categories[c]; !ok {
			p.Categories[c] = true
		}
	}
	if p.DeliveryMethods == nil {
		p.DeliveryMethods = make(map[Priority][]Channel, len(AllPriorities))
	}
	for _, pr := range AllPriorities {
		if _, ok := p.DeliveryMethods[pr]; !ok {
			p.DeliveryMethods[pr] = DefaultMethods(pr)
		}
	}
}

// CategoryEnabled reports whether the user accepts a category. Unknown categories are enabled.
func (p *Preference) CategoryEnabled(c Category) bool {
	enabled, ok := p.Categories[c]
	return !ok || enabled
}

// Methods returns the configured channels for a priority.
func (p *Preference) Methods(pr Priority) []Channel {
	return p.DeliveryMethods[pr.Normalize()]
}
