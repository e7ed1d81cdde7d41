package realtime

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Kind discriminates the event payloads pushed to a project room.
type Kind string

const (
	KindTaskUpdated    Kind = "task_updated"
	KindTasksSynced    Kind = "tasks_synced"
	KindTaskAssigned   Kind = "task_assigned"
	KindTaskUnassigned Kind = "task_unassigned"
	KindProjectUpdated Kind = "project_updated"
)

// Event is one variant of the room payload catalogue. Adding a kind
// means adding a payload struct here, so consumers break at compile
// time instead of on a stray string.
type Event interface {
	Kind() Kind
}

type UserRef struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type TaskSnapshot struct {
	ID             string    `json:"id"`
	TaskID         string    `json:"taskId"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Status         string    `json:"status"`
	Complexity     string    `json:"complexity,omitempty"`
	EstimatedHours float64   `json:"estimatedHours,omitempty"`
	DependencyIDs  []string  `json:"dependencyIds,omitempty"`
	Assignee       *UserRef  `json:"assignee,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type TaskUpdated struct {
	Task TaskSnapshot `json:"task"`
}

func (TaskUpdated) Kind() Kind { return KindTaskUpdated }

type TasksSynced struct {
	TotalTasks     int     `json:"totalTasks"`
	CompletedTasks int     `json:"completedTasks"`
	Progress       float64 `json:"progress"`
}

func (TasksSynced) Kind() Kind { return KindTasksSynced }

type TaskAssigned struct {
	Task       TaskSnapshot `json:"task"`
	Assignee   UserRef      `json:"assignee"`
	AssignedBy UserRef      `json:"assignedBy"`
}

func (TaskAssigned) Kind() Kind { return KindTaskAssigned }

type TaskUnassigned struct {
	Task               TaskSnapshot `json:"task"`
	PreviousAssigneeID string       `json:"previousAssigneeId"`
	UnassignedBy       UserRef      `json:"unassignedBy"`
}

func (TaskUnassigned) Kind() Kind { return KindTaskUnassigned }

type ProjectUpdated struct {
	Changes   map[string]any `json:"changes"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func (ProjectUpdated) Kind() Kind { return KindProjectUpdated }

// Envelope is the wire shape delivered to every subscriber.
type Envelope struct {
	Type      Kind   `json:"type"`
	ProjectID string `json:"projectId"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data"`
}

// Encode marshals the event once; the same bytes go to every session.
func Encode(projectID string, ev Event) ([]byte, error) {
	return json.Marshal(Envelope{
		Type:      ev.Kind(),
		ProjectID: projectID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      ev,
	})
}

// DecodeEvent turns an inbound (kind, raw payload) pair back into the
// typed variant. The switch is the single place a new kind must be
// wired for callers that submit events over the internal surface.
func DecodeEvent(kind Kind, data []byte) (Event, error) {
	var ev Event
	var err error
	switch kind {
	case KindTaskUpdated:
		var v TaskUpdated
		err = json.Unmarshal(data, &v)
		ev = v
	case KindTasksSynced:
		var v TasksSynced
		err = json.Unmarshal(data, &v)
		ev = v
	case KindTaskAssigned:
		var v TaskAssigned
		err = json.Unmarshal(data, &v)
		ev = v
	case KindTaskUnassigned:
		var v TaskUnassigned
		err = json.Unmarshal(data, &v)
		ev = v
	case KindProjectUpdated:
		var v ProjectUpdated
		err = json.Unmarshal(data, &v)
		ev = v
	default:
		return nil, errors.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s payload", kind)
	}
	return ev, nil
}
