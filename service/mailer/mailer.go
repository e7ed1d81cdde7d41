package mailer

// Template kinds the email service renders. Mirrors the notification
// kinds; the renderer owns the mapping to actual templates.
const (
	KindAssignment       = "assignment"
	KindMention          = "mention"
	KindComment          = "comment"
	KindStatusChange     = "status_change"
	KindMembershipChange = "membership_change"
)

// Job is one queued email. Context carries the template variables
// (project name, task name, actor display name, ...).
type Job struct {
	To         string         `json:"to" mapstructure:"to"`
	Kind       string         `json:"kind" mapstructure:"kind"`
	Context    map[string]any `json:"context,omitempty" mapstructure:"context"`
	EnqueuedAt int64          `json:"enqueuedAt" mapstructure:"enqueuedAt"`
}

// Mailer accepts email jobs fire-and-forget. Enqueue must return
// quickly; request-handling code never waits on delivery.
type Mailer interface {
	Enqueue(to, kind string, context map[string]any) error
	Close()
}

// Noop drops every job; used when no email transport is configured.
type Noop struct{}

func (Noop) Enqueue(string, string, map[string]any) error { return nil }
func (Noop) Close()                                       {}
