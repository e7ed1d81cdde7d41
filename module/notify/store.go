package notify

import (
	"context"
	"time"

	"TaskFlow/module/notify/model"
	"TaskFlow/service/mgo"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the notification-record persistence the dispatcher drives.
type Store interface {
	Insert(ctx context.Context, n *model.Notification) error
	MarkRead(ctx context.Context, id, recipientID string) error
	ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool, limit int64) ([]model.Notification, error)
}

type MongoStore struct{}

func NewMongoStore() *MongoStore { return &MongoStore{} }

// coll resolves the collection through the live manager on every call,
// so a handle from before a reconnect is never reused.
func (s *MongoStore) coll() (*mongo.Collection, error) {
	db := mgo.GetDB()
	if db == nil {
		return nil, errors.New("mongo not connected")
	}
	n := &model.Notification{}
	return db.Collection(n.GetTableName()), nil
}

func (s *MongoStore) Insert(ctx context.Context, n *model.Notification) error {
	coll, err := s.coll()
	if err != nil {
		return err
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if _, err := coll.InsertOne(ctx, n); err != nil {
		return errors.Wrap(err, "insert notification")
	}
	return nil
}

// MarkRead sets read_at once; a second call finds no unread document
// and is a no-op.
func (s *MongoStore) MarkRead(ctx context.Context, id, recipientID string) error {
	coll, err := s.coll()
	if err != nil {
		return err
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errors.Wrap(err, "notification id")
	}
	_, err = coll.UpdateOne(ctx,
		bson.M{
			model.NFieldID:          oid,
			model.NFieldRecipientID: recipientID,
			model.NFieldReadAt:      bson.M{"$exists": false},
		},
		bson.M{"$set": bson.M{model.NFieldReadAt: time.Now()}},
	)
	return errors.Wrap(err, "mark read")
}

func (s *MongoStore) ListByRecipient(ctx context.Context, recipientID string, onlyUnread bool, limit int64) ([]model.Notification, error) {
	coll, err := s.coll()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	filter := bson.M{model.NFieldRecipientID: recipientID}
	if onlyUnread {
		filter[model.NFieldReadAt] = bson.M{"$exists": false}
	}
	cur, err := coll.Find(ctx, filter,
		options.Find().SetSort(bson.M{model.NFieldCreatedAt: -1}).SetLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []model.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, errors.Wrap(err, "decode notifications")
	}
	return out, nil
}
