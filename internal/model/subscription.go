package model

// Subscription is a per-location preference. Wants is true for an explicit
// subscription, false for a blacklist, and nil to drop the record and fall
// back to the default.
type Subscription struct {
	Where string `json:"where"`
	Wants *bool  `json:"wants"`
}

func NewSubscription(where string, wants *bool) Subscription {
	return Subscription{Where: where, Wants: wants}
}

// Wanted reports whether the subscription explicitly opts in.
func (s Subscription) Wanted() bool {
	return s.Wants != nil && *s.Wants
}

// Blacklisted reports whether the subscription explicitly opts out.
func (s Subscription) Blacklisted() bool {
	return s.Wants != nil && !*s.Wants
}

// Bool returns a pointer to b, for building Subscription.Wants.
func Bool(b bool) *bool {
	return &b
}
