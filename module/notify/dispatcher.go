package notify

import (
	"context"
	"time"

	"TaskFlow/logger"
	"TaskFlow/module/mention"
	"TaskFlow/module/notify/model"
	"TaskFlow/service/mailer"
	"TaskFlow/service/realtime"
	"TaskFlow/tools/errs"
)

// Broadcaster is the live-push surface the dispatcher ends every
// dispatch with.
type Broadcaster interface {
	Broadcast(projectID string, ev realtime.Event, excludeUserID string)
}

// EmailParams makes a dispatch also queue an email. Context carries
// the template variables for the email service.
type EmailParams struct {
	To      string
	Kind    string
	Context map[string]any
}

// Spec describes one notification to dispatch.
type Spec struct {
	RecipientID string
	Kind        string
	Title       string
	Body        string
	Link        string

	ProjectID string
	OrgID     string
	TaskID    string
	ActorID   string

	Email *EmailParams
	Event realtime.Event // pushed to ProjectID's room when set
}

// Dispatcher orchestrates persist -> email -> broadcast with isolated
// failures. It holds no mutable state of its own and does no locking.
type Dispatcher struct {
	store Store
	mail  mailer.Mailer
	bc    Broadcaster
}

func NewDispatcher(store Store, mail mailer.Mailer, bc Broadcaster) *Dispatcher {
	return &Dispatcher{store: store, mail: mail, bc: bc}
}

// Dispatch persists the record, then queues the email and pushes the
// live event best-effort. Only the persistence step can fail the call;
// a created record is never retracted by a downstream failure.
func (d *Dispatcher) Dispatch(ctx context.Context, spec Spec) (*model.Notification, error) {
	n := &model.Notification{
		RecipientID: spec.RecipientID,
		Kind:        spec.Kind,
		Title:       spec.Title,
		Body:        spec.Body,
		Link:        spec.Link,
		ProjectID:   spec.ProjectID,
		OrgID:       spec.OrgID,
		TaskID:      spec.TaskID,
		ActorID:     spec.ActorID,
		CreatedAt:   time.Now(),
	}
	if err := d.store.Insert(ctx, n); err != nil {
		return nil, errs.ErrPersistenceFailed.Wrap(err)
	}

	if spec.Email != nil && d.mail != nil {
		if err := d.mail.Enqueue(spec.Email.To, spec.Email.Kind, spec.Email.Context); err != nil {
			logger.Warnf("[dispatch] email failed recipient=%s kind=%s err=%v",
				spec.RecipientID, spec.Kind, err)
		}
	}

	if d.bc != nil && spec.Event != nil && spec.ProjectID != "" {
		d.bc.Broadcast(spec.ProjectID, spec.Event, spec.ActorID)
	}
	return n, nil
}

// DispatchMentions resolves @-mentions in text against the supplied
// directory and dispatches one mention notification per resolved user,
// skipping the actor and duplicate mentions of the same user. base
// carries title/link/linkage; recipient and email address are filled
// per mention.
func (d *Dispatcher) DispatchMentions(ctx context.Context, text string, directory []mention.User, base Spec) ([]*model.Notification, error) {
	mentions := mention.ParseAndResolve(text, directory)
	seen := make(map[string]struct{})
	var out []*model.Notification

	for _, m := range mentions {
		if !m.Resolved {
			continue
		}
		if m.User.ID == base.ActorID {
			continue
		}
		if _, dup := seen[m.User.ID]; dup {
			continue
		}
		seen[m.User.ID] = struct{}{}

		spec := base
		spec.Kind = model.KindMention
		spec.RecipientID = m.User.ID
		if base.Email != nil && m.User.Email != "" {
			spec.Email = &EmailParams{
				To:      m.User.Email,
				Kind:    mailer.KindMention,
				Context: base.Email.Context,
			}
		} else {
			spec.Email = nil
		}

		n, err := d.Dispatch(ctx, spec)
		if err != nil {
			return out, err
		}
		out = append(out, n)
	}
	return out, nil
}
