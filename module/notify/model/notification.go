package model

import (
	"time"

	"TaskFlow/service/mgo"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Notification kinds.
const (
	KindAssignment       = "assignment"
	KindMention          = "mention"
	KindComment          = "comment"
	KindStatusChange     = "status_change"
	KindMembershipChange = "membership_change"
)

// Notification collection field constants
const (
	NFieldID          = "_id"
	NFieldRecipientID = "recipient_id"
	NFieldKind        = "kind"
	NFieldReadAt      = "read_at"
	NFieldCreatedAt   = "created_at"
)

// Notification is the durable in-app record. Immutable once written
// except read_at, which flips from unset to set exactly once.
type Notification struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RecipientID string             `bson:"recipient_id" json:"recipientId"`
	Kind        string             `bson:"kind" json:"kind"`
	Title       string             `bson:"title" json:"title"`
	Body        string             `bson:"body,omitempty" json:"body,omitempty"`
	Link        string             `bson:"link,omitempty" json:"link,omitempty"`
	ProjectID   string             `bson:"project_id,omitempty" json:"projectId,omitempty"`
	OrgID       string             `bson:"org_id,omitempty" json:"orgId,omitempty"`
	TaskID      string             `bson:"task_id,omitempty" json:"taskId,omitempty"`
	ActorID     string             `bson:"actor_id,omitempty" json:"actorId,omitempty"`
	ReadAt      *time.Time         `bson:"read_at,omitempty" json:"readAt,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"createdAt"`
}

func (n *Notification) GetTableName() string {
	return "notifications"
}

func (n *Notification) Collection() *mongo.Collection {
	return mgo.GetDB().Collection(n.GetTableName())
}
