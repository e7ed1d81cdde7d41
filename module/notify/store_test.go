package notify

import (
	"context"
	"testing"

	"TaskFlow/module/notify/model"
)

// The store must resolve its collection through the live manager on
// every call: with no connection established, each operation returns an
// error instead of holding on to a dead boot-time handle.
func TestMongoStoreResolvesHandlePerCall(t *testing.T) {
	s := NewMongoStore()
	ctx := context.Background()

	n := &model.Notification{RecipientID: "u1", Kind: model.KindMention, Title: "t"}
	if err := s.Insert(ctx, n); err == nil {
		t.Fatal("insert with no mongo connection must fail")
	}
	if err := s.MarkRead(ctx, "64b0c0ffee0000000000aaaa", "u1"); err == nil {
		t.Fatal("mark read with no mongo connection must fail")
	}
	if _, err := s.ListByRecipient(ctx, "u1", false, 10); err == nil {
		t.Fatal("list with no mongo connection must fail")
	}
}
