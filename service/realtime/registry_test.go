package realtime

import (
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"TaskFlow/tools/errs"
)

func testRegistry() *Registry {
	// sweeper disabled; tests drive sweepOnce directly
	return NewRegistry(RegistryConf{SendQueueSize: 8, IdleTTL: time.Minute})
}

func mustRegister(t *testing.T, r *Registry, connID, userID string) *Session {
	t.Helper()
	s, err := r.Register(connID, Identity{UserID: userID, Email: userID + "@example.com", Name: userID})
	if err != nil {
		t.Fatalf("register %s: %v", connID, err)
	}
	return s
}

func TestRegisterRequiresUser(t *testing.T) {
	r := testRegistry()
	defer r.Close()

	_, err := r.Register("c1", Identity{})
	if !errors.Is(err, errs.ErrAuthRequired) {
		t.Fatalf("expected auth required, got %v", err)
	}
}

func TestSubscribeUnknownSession(t *testing.T) {
	r := testRegistry()
	defer r.Close()

	if err := r.Subscribe("ghost", "p1"); !errors.Is(err, errs.ErrUnknownSession) {
		t.Fatalf("expected unknown session, got %v", err)
	}
	if err := r.Touch("ghost"); !errors.Is(err, errs.ErrUnknownSession) {
		t.Fatalf("expected unknown session, got %v", err)
	}
}

func TestRoomPresenceCollapsesUserTabs(t *testing.T) {
	r := testRegistry()
	defer r.Close()

	mustRegister(t, r, "c1", "u1")
	mustRegister(t, r, "c2", "u1")
	mustRegister(t, r, "c3", "u2")
	for _, c := range []string{"c1", "c2", "c3"} {
		if err := r.Subscribe(c, "p1"); err != nil {
			t.Fatalf("subscribe %s: %v", c, err)
		}
	}

	if got := r.RoomSize("p1"); got != 3 {
		t.Fatalf("room size = %d, want 3", got)
	}
	pres := r.RoomPresence("p1")
	if len(pres) != 2 {
		t.Fatalf("presence entries = %d, want 2: %+v", len(pres), pres)
	}
	if pres[0].ID != "u1" || pres[1].ID != "u2" {
		t.Fatalf("presence users: %+v", pres)
	}

	// one of u1's tabs closing must not drop u1 from the room
	r.Unregister("c1")
	pres = r.RoomPresence("p1")
	if len(pres) != 2 {
		t.Fatalf("after one tab closed, presence = %+v", pres)
	}

	// last tab gone: no phantom user may remain
	r.Unregister("c2")
	pres = r.RoomPresence("p1")
	if len(pres) != 1 || pres[0].ID != "u2" {
		t.Fatalf("after all u1 tabs closed, presence = %+v", pres)
	}
}

func TestIdempotentOperations(t *testing.T) {
	r := testRegistry()
	defer r.Close()

	mustRegister(t, r, "c1", "u1")
	if err := r.Subscribe("c1", "p1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := r.Subscribe("c1", "p1"); err != nil {
		t.Fatalf("second subscribe: %v", err)
	}
	if got := r.RoomSize("p1"); got != 1 {
		t.Fatalf("room size after double subscribe = %d", got)
	}

	if err := r.Unsubscribe("c1", "p-never-joined"); err != nil {
		t.Fatalf("unsubscribe absent project: %v", err)
	}

	if !r.Unregister("c1") {
		t.Fatal("first unregister should report removal")
	}
	if r.Unregister("c1") {
		t.Fatal("second unregister must be a no-op")
	}
	if got := r.RoomSize("p1"); got != 0 {
		t.Fatalf("room size after unregister = %d", got)
	}
}

func TestUnsubscribeLeavesRoom(t *testing.T) {
	r := testRegistry()
	defer r.Close()

	mustRegister(t, r, "c1", "u1")
	_ = r.Subscribe("c1", "p1")
	_ = r.Subscribe("c1", "p2")

	if err := r.Unsubscribe("c1", "p1"); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}
	if got := r.RoomSize("p1"); got != 0 {
		t.Fatalf("p1 size = %d", got)
	}
	if got := r.RoomSize("p2"); got != 1 {
		t.Fatalf("p2 size = %d", got)
	}
}

func TestTouchUpdatesPresence(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRegistry(RegistryConf{
		SendQueueSize: 8,
		IdleTTL:       time.Minute,
		Clock:         func() time.Time { return now },
	})
	defer r.Close()

	mustRegister(t, r, "c1", "u1")
	_ = r.Subscribe("c1", "p1")

	now = now.Add(30 * time.Second)
	if err := r.Touch("c1"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	pres := r.RoomPresence("p1")
	if len(pres) != 1 || !pres[0].LastActiveAt.Equal(time.Unix(1030, 0)) {
		t.Fatalf("presence after touch: %+v", pres)
	}
}

func TestSweepEvictsIdleSessions(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRegistry(RegistryConf{
		SendQueueSize: 8,
		IdleTTL:       time.Minute,
		Clock:         func() time.Time { return now },
	})
	defer r.Close()

	s := mustRegister(t, r, "c1", "u1")
	_ = r.Subscribe("c1", "p1")

	r.sweepOnce(now.Add(30 * time.Second))
	if got := r.RoomSize("p1"); got != 1 {
		t.Fatalf("fresh session swept, size = %d", got)
	}

	r.sweepOnce(now.Add(2 * time.Minute))
	if got := r.RoomSize("p1"); got != 0 {
		t.Fatalf("idle session survived sweep, size = %d", got)
	}
	select {
	case <-s.Closed():
	default:
		t.Fatal("swept session not closed")
	}
}

func TestConcurrentSnapshotsStayConsistent(t *testing.T) {
	r := testRegistry()
	defer r.Close()

	stop := make(chan struct{})
	var readers sync.WaitGroup
	for i := 0; i < 2; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				pres := r.RoomPresence("p1")
				seen := make(map[string]bool, len(pres))
				for _, e := range pres {
					if e.ID == "" {
						t.Error("presence entry without a user")
					}
					if seen[e.ID] {
						t.Errorf("user %s listed twice in one snapshot", e.ID)
					}
					seen[e.ID] = true
				}
				_ = r.RoomSize("p1")
			}
		}()
	}

	var writers sync.WaitGroup
	for i := 0; i < 8; i++ {
		i := i
		writers.Add(1)
		go func() {
			defer writers.Done()
			user := "u" + strconv.Itoa(i%4)
			for j := 0; j < 50; j++ {
				connID := "c" + strconv.Itoa(i) + "-" + strconv.Itoa(j)
				if _, err := r.Register(connID, Identity{UserID: user}); err != nil {
					t.Errorf("register %s: %v", connID, err)
					return
				}
				_ = r.Subscribe(connID, "p1")
				_ = r.Touch(connID)
				_ = r.Unsubscribe(connID, "p1")
				_ = r.Subscribe(connID, "p1")
				r.Unregister(connID)
			}
		}()
	}

	writers.Wait()
	close(stop)
	readers.Wait()

	if got := r.RoomSize("p1"); got != 0 {
		t.Fatalf("room size after all writers finished = %d", got)
	}
	if pres := r.RoomPresence("p1"); len(pres) != 0 {
		t.Fatalf("phantom users after all writers finished: %+v", pres)
	}
}

func TestCloseDrainsEverything(t *testing.T) {
	r := testRegistry()

	s1 := mustRegister(t, r, "c1", "u1")
	s2 := mustRegister(t, r, "c2", "u2")
	_ = r.Subscribe("c1", "p1")
	_ = r.Subscribe("c2", "p1")

	r.Close()
	if got := r.RoomSize("p1"); got != 0 {
		t.Fatalf("room size after close = %d", got)
	}
	for _, s := range []*Session{s1, s2} {
		select {
		case <-s.Closed():
		default:
			t.Fatalf("session %s not closed", s.ConnID)
		}
	}
}
