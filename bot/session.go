package bot

import (
	"context"
	"sync"
	"time"

	"teraleech/internal"
	"teraleech/utils"
)

// SessionState tracks where a transfer is in its lifecycle
type SessionState int

const (
	StateActive SessionState = iota
	StateCancelled
)

// Session is one user's in-flight transfer
type Session struct {
	UserID          int64
	ChatID          int64
	StatusMessageID int
	StartedAt       time.Time

	mu       sync.Mutex
	state    SessionState
	filename string
	workDir  string
	cancel   context.CancelFunc
	cleaned  bool
}

// SetWorkDir records the directory holding the transfer's artifacts
func (s *Session) SetWorkDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workDir = dir
}

// SetFilename records the resolved filename for /stats display
func (s *Session) SetFilename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filename = name
}

// Filename returns the resolved filename, empty until resolution
// completes. The transfer goroutine writes it while the update loop
// reads it for /stats, so access goes through the session lock.
func (s *Session) Filename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filename
}

// State returns the current lifecycle state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Registry tracks active transfers, at most one per user. It owns the
// guarantee that a session's artifacts are deleted exactly once, on
// every terminal path.
type Registry struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	fileOps  *utils.FileOperations
}

// NewRegistry creates an empty session registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[int64]*Session),
		fileOps:  utils.NewFileOperations(),
	}
}

// Begin registers a new active session for the user. A user with a
// transfer already in flight gets a UserBusy error; the existing
// session is untouched.
func (r *Registry) Begin(userID, chatID int64, cancel context.CancelFunc) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[userID]; exists {
		return nil, internal.NewUserBusyError()
	}

	session := &Session{
		UserID:    userID,
		ChatID:    chatID,
		StartedAt: time.Now(),
		state:     StateActive,
		cancel:    cancel,
	}
	r.sessions[userID] = session

	return session, nil
}

// Get returns the user's session, if any
func (r *Registry) Get(userID int64) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[userID]
	return session, ok
}

// Cancel flips the user's session to cancelled and fires its context
// cancel func. Returns false when the user has nothing running.
// Artifact cleanup happens in Finish, driven by the transfer goroutine
// as it unwinds.
func (r *Registry) Cancel(userID int64) bool {
	r.mu.Lock()
	session, ok := r.sessions[userID]
	r.mu.Unlock()

	if !ok {
		return false
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.state == StateCancelled {
		return true
	}
	session.state = StateCancelled
	if session.cancel != nil {
		session.cancel()
	}

	return true
}

// Finish removes the session and deletes its artifacts. Safe to call
// multiple times; the deletion runs once.
func (r *Registry) Finish(userID int64) {
	r.mu.Lock()
	session, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if !ok {
		return
	}

	session.mu.Lock()
	workDir := session.workDir
	cleaned := session.cleaned
	session.cleaned = true
	session.mu.Unlock()

	if cleaned || workDir == "" {
		return
	}

	if err := r.fileOps.RemoveArtifacts(workDir); err != nil {
		internal.LogWarn("Failed to remove artifacts in %s: %v", workDir, err)
	}
}

// ActiveCount returns the number of in-flight transfers
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns a copy of the active sessions for /stats
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
