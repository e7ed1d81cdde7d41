package realtime

import (
	"TaskFlow/logger"
	"TaskFlow/tools/errs"
)

// Broadcaster fans an event out to every session in a project room.
// Fire-and-forget: delivery problems are logged per session and never
// reach the caller. Events submitted sequentially from one call site
// land on each session's queue in submission order.
type Broadcaster struct {
	reg *Registry
}

func NewBroadcaster(reg *Registry) *Broadcaster {
	return &Broadcaster{reg: reg}
}

// Broadcast delivers ev to every subscribed session except those owned
// by excludeUserID (all of that user's tabs, not just one — the actor
// already has the authoritative result from their own request).
func (b *Broadcaster) Broadcast(projectID string, ev Event, excludeUserID string) {
	if b.reg.RoomSize(projectID) == 0 {
		return
	}
	payload, err := Encode(projectID, ev)
	if err != nil {
		logger.Errorf("[broadcast] encode %s project=%s err=%v", ev.Kind(), projectID, err)
		return
	}
	for _, s := range b.reg.Sessions(projectID, excludeUserID) {
		select {
		case s.Send <- payload:
		default:
			// Slow consumer with a full queue: drop rather than stall
			// the rest of the room. The client resyncs on its next fetch.
			logger.Warnf("[broadcast] conn=%s user=%s project=%s type=%s err=%v",
				s.ConnID, s.User.UserID, projectID, ev.Kind(),
				errs.ErrDeliveryFailed.WithDetail("queue full"))
		}
	}
}

// RoomSize reports how many sessions currently hold the room open;
// callers use it to skip optional payload work for empty rooms.
func (b *Broadcaster) RoomSize(projectID string) int {
	return b.reg.RoomSize(projectID)
}
