package telegram

import (
	"sync"

	"github.com/vadimtrunov/cinelist/internal/listing"
)

const noResultsMsg = "No movies found."

// chatSession binds one chat to the list it is currently browsing.
type chatSession struct {
	chatID int64

	mu          sync.Mutex
	ctrl        *listing.Controller
	unsubscribe func()
	shown       int   // movies already sent to the chat
	lastErr     error // last error sent, by identity
	reported    bool  // an empty result has been reported
}

// replace installs ctrl as the session's list, closing the previous one.
// deliver runs on ctrl's notifier goroutine for every message to send.
func (s *chatSession) replace(ctrl *listing.Controller, deliver func(pageView)) {
	s.mu.Lock()
	old, oldUnsub := s.ctrl, s.unsubscribe
	s.ctrl = ctrl
	s.unsubscribe = nil
	s.shown = 0
	s.lastErr = nil
	s.reported = false
	s.mu.Unlock()

	if oldUnsub != nil {
		oldUnsub()
	}
	if old != nil {
		old.Close()
	}

	unsub := ctrl.Subscribe(func(st listing.State) {
		if view, ok := s.update(ctrl, st); ok {
			deliver(view)
		}
	})

	s.mu.Lock()
	if s.ctrl == ctrl {
		s.unsubscribe = unsub
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	unsub()
}

// update decides what, if anything, a new state of ctrl should send.
func (s *chatSession) update(ctrl *listing.Controller, st listing.State) (pageView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ctrl != s.ctrl || st.Loading || !st.Loaded {
		return pageView{}, false
	}
	if st.Err != nil && st.Err != s.lastErr {
		s.lastErr = st.Err
		return pageView{Text: "Could not load movies: " + st.ErrorMessage}, true
	}
	if len(st.Movies) > s.shown {
		view := renderMovies(st, s.shown)
		s.shown = len(st.Movies)
		return view, true
	}
	if len(st.Movies) == 0 && st.Err == nil && !s.reported {
		s.reported = true
		return pageView{Text: noResultsMsg}, true
	}
	return pageView{}, false
}

// controller returns the current list, or nil.
func (s *chatSession) controller() *listing.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl
}

// close stops the current list.
func (s *chatSession) close() {
	s.mu.Lock()
	ctrl, unsub := s.ctrl, s.unsubscribe
	s.ctrl, s.unsubscribe = nil, nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if ctrl != nil {
		ctrl.Close()
	}
}

// sessionManager manages per-chat sessions and access control.
type sessionManager struct {
	mu       sync.Mutex
	sessions map[int64]*chatSession
	allowed  map[int64]bool // nil or empty = allow all
}

// newSessionManager creates a session manager.
// If allowedUserIDs is empty, all users are allowed.
func newSessionManager(allowedUserIDs []int64) *sessionManager {
	allowed := make(map[int64]bool, len(allowedUserIDs))
	for _, id := range allowedUserIDs {
		allowed[id] = true
	}
	return &sessionManager{
		sessions: make(map[int64]*chatSession),
		allowed:  allowed,
	}
}

// isAllowed checks if a user is authorized to use the bot.
func (sm *sessionManager) isAllowed(userID int64) bool {
	if len(sm.allowed) == 0 {
		return true
	}
	return sm.allowed[userID]
}

// getOrCreate returns the chat's session, creating an empty one if needed.
func (sm *sessionManager) getOrCreate(chatID int64) *chatSession {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if s, ok := sm.sessions[chatID]; ok {
		return s
	}
	s := &chatSession{chatID: chatID}
	sm.sessions[chatID] = s
	return s
}

// get returns the chat's session if one exists.
func (sm *sessionManager) get(chatID int64) (*chatSession, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	s, ok := sm.sessions[chatID]
	return s, ok
}

// reset closes and forgets a chat's session.
func (sm *sessionManager) reset(chatID int64) {
	sm.mu.Lock()
	s, ok := sm.sessions[chatID]
	delete(sm.sessions, chatID)
	sm.mu.Unlock()
	if ok {
		s.close()
	}
}

// closeAll closes every session; used on shutdown.
func (sm *sessionManager) closeAll() {
	sm.mu.Lock()
	sessions := sm.sessions
	sm.sessions = make(map[int64]*chatSession)
	sm.mu.Unlock()
	for _, s := range sessions {
		s.close()
	}
}
