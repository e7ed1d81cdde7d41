package realtime

import (
	"sort"
	"sync"
	"time"

	"TaskFlow/logger"
	"TaskFlow/tools/errs"
	"TaskFlow/tools/safe"

	"github.com/pkg/errors"
)

type RegistryConf struct {
	SendQueueSize int
	IdleTTL       time.Duration    // sessions idle past this are swept
	SweepEvery    time.Duration    // sweep period; <=0 disables the sweeper
	Clock         func() time.Time // injectable for tests; nil => time.Now
}

func (c *RegistryConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 75 * time.Second
	}
}

// PresenceSink receives best-effort presence transitions: a user going
// online in a room (first subscribed session) or offline (last one
// gone). Implementations must tolerate duplicate and late calls.
type PresenceSink interface {
	Online(projectID string, user Identity, at time.Time)
	Offline(projectID, userID string)
}

// Registry owns every live session. Three indexes are kept in
// lock-step under one RWMutex: byConn (primary), byUser (so an
// excluded sender's every tab can be skipped) and byProject (rooms).
type Registry struct {
	mu        sync.RWMutex
	byConn    map[string]*Session
	byUser    map[string]map[string]*Session // user -> conn_id -> session
	byProject map[string]map[string]*Session // project -> conn_id -> session

	conf RegistryConf
	sink PresenceSink

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewRegistry(conf RegistryConf) *Registry {
	conf.norm()
	r := &Registry{
		byConn:    make(map[string]*Session),
		byUser:    make(map[string]map[string]*Session),
		byProject: make(map[string]map[string]*Session),
		conf:      conf,
		stopCh:    make(chan struct{}),
	}
	if conf.SweepEvery > 0 {
		go r.sweeper()
	}
	return r
}

// SetPresenceSink attaches an optional mirror (e.g. Redis). Call before
// serving traffic.
func (r *Registry) SetPresenceSink(s PresenceSink) { r.sink = s }

// Register creates a session for an authenticated connection. The
// subscription set starts empty.
func (r *Registry) Register(connID string, user Identity) (*Session, error) {
	if user.UserID == "" {
		return nil, errs.ErrAuthRequired.WrapMsg("register conn=" + connID)
	}
	now := r.conf.Clock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byConn[connID]; exists {
		return nil, errors.Errorf("conn %s already registered", connID)
	}

	s := newSession(connID, user, r.conf.SendQueueSize, now)
	r.byConn[connID] = s
	mm := r.byUser[user.UserID]
	if mm == nil {
		mm = make(map[string]*Session)
		r.byUser[user.UserID] = mm
	}
	mm[connID] = s
	return s, nil
}

// Subscribe adds the session to a project room. Idempotent.
func (r *Registry) Subscribe(connID, projectID string) error {
	r.mu.Lock()
	s, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return errs.ErrUnknownSession.WrapMsg("subscribe conn=" + connID)
	}
	if _, already := s.projects[projectID]; already {
		r.mu.Unlock()
		return nil
	}
	s.projects[projectID] = struct{}{}
	room := r.byProject[projectID]
	if room == nil {
		room = make(map[string]*Session)
		r.byProject[projectID] = room
	}
	room[connID] = s
	user, at := s.User, s.lastActive
	sink := r.sink
	r.mu.Unlock()

	if sink != nil {
		safe.Go(func() { sink.Online(projectID, user, at) })
	}
	return nil
}

// Unsubscribe removes the session from a room; no-op when absent.
func (r *Registry) Unsubscribe(connID, projectID string) error {
	r.mu.Lock()
	s, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return errs.ErrUnknownSession.WrapMsg("unsubscribe conn=" + connID)
	}
	if _, subscribed := s.projects[projectID]; !subscribed {
		r.mu.Unlock()
		return nil
	}
	delete(s.projects, projectID)
	r.evictFromRoomLocked(projectID, connID)
	gone := !r.userInRoomLocked(projectID, s.User.UserID)
	userID := s.User.UserID
	sink := r.sink
	r.mu.Unlock()

	if sink != nil && gone {
		safe.Go(func() { sink.Offline(projectID, userID) })
	}
	return nil
}

// Unregister drops the session and evicts it from every room. Safe to
// call from every disconnect path; repeat calls are no-ops.
func (r *Registry) Unregister(connID string) bool {
	r.mu.Lock()
	s, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.byConn, connID)

	var wentOffline []string
	for projectID := range s.projects {
		r.evictFromRoomLocked(projectID, connID)
	}
	if mm := r.byUser[s.User.UserID]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.byUser, s.User.UserID)
		}
	}
	// offline only in rooms where no other session of this user remains
	for projectID := range s.projects {
		if !r.userInRoomLocked(projectID, s.User.UserID) {
			wentOffline = append(wentOffline, projectID)
		}
	}
	userID := s.User.UserID
	sink := r.sink
	r.mu.Unlock()

	s.close()
	if sink != nil {
		for _, projectID := range wentOffline {
			p := projectID
			safe.Go(func() { sink.Offline(p, userID) })
		}
	}
	return true
}

// Touch renews the session's activity clock; driven by heartbeats and
// inbound frames.
func (r *Registry) Touch(connID string) error {
	now := r.conf.Clock()
	r.mu.Lock()
	s, ok := r.byConn[connID]
	if !ok {
		r.mu.Unlock()
		return errs.ErrUnknownSession.WrapMsg("touch conn=" + connID)
	}
	s.lastActive = now
	sink := r.sink
	var rooms []string
	if sink != nil {
		for projectID := range s.projects {
			rooms = append(rooms, projectID)
		}
	}
	user := s.User
	r.mu.Unlock()

	// heartbeats also refresh the mirrored rooms' activity and TTL
	if sink != nil && len(rooms) > 0 {
		safe.Go(func() {
			for _, projectID := range rooms {
				sink.Online(projectID, user, now)
			}
		})
	}
	return nil
}

func (r *Registry) RoomSize(projectID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byProject[projectID])
}

// RoomPresence snapshots the room's users, one entry per user, most
// recent activity wins.
func (r *Registry) RoomPresence(projectID string) []PresenceEntry {
	r.mu.RLock()
	byUser := make(map[string]PresenceEntry)
	for _, s := range r.byProject[projectID] {
		e, seen := byUser[s.User.UserID]
		if !seen || s.lastActive.After(e.LastActiveAt) {
			byUser[s.User.UserID] = PresenceEntry{
				ID:           s.User.UserID,
				Email:        s.User.Email,
				Name:         s.User.Name,
				LastActiveAt: s.lastActive,
			}
		}
	}
	r.mu.RUnlock()

	out := make([]PresenceEntry, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Sessions snapshots a room's sessions, skipping every connection of
// excludeUserID.
func (r *Registry) Sessions(projectID, excludeUserID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.byProject[projectID]
	if len(room) == 0 {
		return nil
	}
	out := make([]*Session, 0, len(room))
	for _, s := range room {
		if excludeUserID != "" && s.User.UserID == excludeUserID {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Close stops the sweeper and drains every session.
func (r *Registry) Close() {
	r.stopOnce.Do(func() { close(r.stopCh) })

	r.mu.Lock()
	all := make([]*Session, 0, len(r.byConn))
	for _, s := range r.byConn {
		all = append(all, s)
	}
	r.byConn = make(map[string]*Session)
	r.byUser = make(map[string]map[string]*Session)
	r.byProject = make(map[string]map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.close()
	}
}

func (r *Registry) evictFromRoomLocked(projectID, connID string) {
	if room := r.byProject[projectID]; room != nil {
		delete(room, connID)
		if len(room) == 0 {
			delete(r.byProject, projectID)
		}
	}
}

func (r *Registry) userInRoomLocked(projectID, userID string) bool {
	for _, s := range r.byProject[projectID] {
		if s.User.UserID == userID {
			return true
		}
	}
	return false
}

// sweeper unregisters sessions that stopped heartbeating; a missed
// heartbeat is the only server-initiated disconnect.
func (r *Registry) sweeper() {
	t := time.NewTicker(r.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case now := <-t.C:
			r.sweepOnce(now)
		}
	}
}

func (r *Registry) sweepOnce(now time.Time) {
	r.mu.RLock()
	var idle []string
	for connID, s := range r.byConn {
		if now.Sub(s.lastActive) > r.conf.IdleTTL {
			idle = append(idle, connID)
		}
	}
	r.mu.RUnlock()

	for _, connID := range idle {
		if r.Unregister(connID) {
			logger.Infof("[registry] swept idle conn=%s", connID)
		}
	}
}
