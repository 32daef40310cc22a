package models

import "time"

// EscalationPriority orders responders within a schedule.
type EscalationPriority string

const (
	PriorityPrimary   EscalationPriority = "primary"
	PrioritySecondary EscalationPriority = "secondary"
	PriorityTertiary  EscalationPriority = "tertiary"
)

// escalationOrder maps priorities to their position in the escalation
// chain.
var escalationOrder = map[EscalationPriority]int{
	PriorityPrimary:   0,
	PrioritySecondary: 1,
	PriorityTertiary:  2,
}

// Order returns the escalation position for sorting; unknown priorities
// sort last.
func (p EscalationPriority) Order() int {
	if n, ok := escalationOrder[p]; ok {
		return n
	}
	return len(escalationOrder)
}

// OnCallSchedule is a time-bounded assignment of an engineer to a
// service or team. An empty Service is a wildcard covering everything.
type OnCallSchedule struct {
	ID        string              `json:"id"`
	Engineer  string              `json:"engineer"`
	Service   string              `json:"service,omitempty"` // empty = wildcard
	Team      string              `json:"team,omitempty"`
	StartTime time.Time           `json:"startTime"` // UTC
	EndTime   time.Time           `json:"endTime"`   // UTC, > StartTime
	Priority  EscalationPriority  `json:"priority"`
	Channel   NotificationChannel `json:"channel"`
	Recipient string              `json:"recipient,omitempty"` // address for the channel
	Active    bool                `json:"active"`
}

// CoversAt reports whether the schedule is on call at the given instant.
func (s *OnCallSchedule) CoversAt(now time.Time) bool {
	return s.Active && !now.Before(s.StartTime) && now.Before(s.EndTime)
}

// Matches reports whether the schedule applies to the given service.
func (s *OnCallSchedule) Matches(service string) bool {
	return s.Service == "" || s.Service == service
}
