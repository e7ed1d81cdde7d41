package realtime

import (
	"encoding/json"
	"testing"
	"time"
)

func TestEncodeEnvelope(t *testing.T) {
	raw, err := Encode("p1", TaskUpdated{Task: TaskSnapshot{
		ID:     "t-1",
		TaskID: "TASK-42",
		Name:   "ship it",
		Status: "in_progress",
	}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var env struct {
		Type      string          `json:"type"`
		ProjectID string          `json:"projectId"`
		Timestamp string          `json:"timestamp"`
		Data      json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if env.Type != string(KindTaskUpdated) {
		t.Errorf("type = %q", env.Type)
	}
	if env.ProjectID != "p1" {
		t.Errorf("projectId = %q", env.ProjectID)
	}
	if _, err := time.Parse(time.RFC3339, env.Timestamp); err != nil {
		t.Errorf("timestamp not RFC3339: %q", env.Timestamp)
	}

	var data TaskUpdated
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.Task.TaskID != "TASK-42" {
		t.Errorf("task snapshot: %+v", data.Task)
	}
}

func TestDecodeEvent(t *testing.T) {
	payload := []byte(`{"task":{"id":"t-1","taskId":"TASK-1","name":"n","status":"todo","createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-01T00:00:00Z"},"assignee":{"id":"u2"},"assignedBy":{"id":"u1"}}`)
	ev, err := DecodeEvent(KindTaskAssigned, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	ta, ok := ev.(TaskAssigned)
	if !ok {
		t.Fatalf("wrong variant %T", ev)
	}
	if ta.Assignee.ID != "u2" || ta.AssignedBy.ID != "u1" {
		t.Errorf("decoded: %+v", ta)
	}

	if _, err := DecodeEvent(Kind("bogus"), []byte(`{}`)); err == nil {
		t.Fatal("unknown kind must error")
	}
}
