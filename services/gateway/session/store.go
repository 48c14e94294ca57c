// Copyright (C) 2026 CareMesh AI (dev@caremesh.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package session provides the in-memory conversation store for the gateway.
//
// # Description
//
// The store holds per-session message history, locale preference, and
// activity metadata. History is bounded by a fixed-size sliding window:
// when a session exceeds the configured window the oldest message is
// evicted (FIFO). Nothing is persisted. State lives for the life of the
// process and is reclaimed by Cleanup or Delete.
//
// # Thread Safety
//
// The store is safe for concurrent use. Map membership is guarded by a
// read-write mutex; each session carries its own mutex so appends within
// one session are serialized without blocking unrelated sessions.
//
// # Limitations
//
//   - No persistence; a restart loses all conversations.
//   - Unbounded session count between Cleanup calls.
package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/CareMeshAI/CareMeshGateway/services/gateway/datatypes"
	"github.com/google/uuid"
)

// DefaultWindowSize is the number of messages retained per session before
// FIFO eviction kicks in.
const DefaultWindowSize = 20

// =============================================================================
// Types
// =============================================================================

// Info describes one session's metadata at a point in time.
type Info struct {
	SessionID    string
	CreatedAt    time.Time
	LastActivity time.Time
	MessageCount int
	Locale       string
}

// Stats summarizes the store for the admin surface.
type Stats struct {
	ActiveSessions        int
	TotalMessages         int
	AverageMessagesPerSes float64
	MaxMessagesPerSession int
}

// state is the internal per-session record. All fields are guarded by mu.
type state struct {
	mu           sync.Mutex
	messages     []datatypes.Message
	locale       string
	createdAt    time.Time
	lastActivity time.Time
	messageCount int
}

// Store is the in-memory session store.
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*state
	windowSize int
}

// =============================================================================
// Constructor
// =============================================================================

// New creates a Store with the given history window. A non-positive window
// falls back to DefaultWindowSize.
func New(windowSize int) *Store {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	slog.Info("Session store initialized", "window_size", windowSize)
	return &Store{
		sessions:   make(map[string]*state),
		windowSize: windowSize,
	}
}

// WindowSize returns the configured per-session history window.
func (s *Store) WindowSize() int {
	return s.windowSize
}

// =============================================================================
// Session Lifecycle
// =============================================================================

// CreateSession creates a session and returns its id.
//
// # Description
//
// When id is empty a new 128-bit random identifier is generated, so two
// parameterless calls always yield distinct sessions. When an explicit id is
// given and the session already exists, the call is a no-op and the existing
// session is left untouched.
func (s *Store) CreateSession(id string) string {
	if id == "" {
		id = uuid.NewString()
	}
	s.getOrCreate(id)
	return id
}

// Exists reports whether a session is present in the store.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Delete removes all state for a session. Returns false when the session
// does not exist.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	slog.Info("Deleted session", "session_id", id)
	return true
}

// Clear empties a session's history and resets its counter while keeping
// the session alive. Returns false when the session does not exist.
func (s *Store) Clear(id string) bool {
	st := s.get(id)
	if st == nil {
		return false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	st.messages = nil
	st.messageCount = 0
	st.lastActivity = time.Now().UTC()
	slog.Info("Cleared session", "session_id", id)
	return true
}

// Cleanup removes every session whose last activity predates the cutoff
// (now minus maxAge) and returns the number removed.
func (s *Store) Cleanup(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for id, st := range s.sessions {
		st.mu.Lock()
		stale := st.lastActivity.Before(cutoff)
		st.mu.Unlock()
		if stale {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		delete(s.sessions, id)
	}

	if len(removed) > 0 {
		slog.Info("Cleaned up old sessions", "count", len(removed), "max_age", maxAge)
	}
	return len(removed)
}

// =============================================================================
// Messages
// =============================================================================

// Append adds a message to a session's history, creating the session first
// if it is absent. When the history exceeds the window the oldest message is
// evicted. The message counter and last-activity timestamp are updated.
//
// Callers must only pass sanitized text for user turns; the store does not
// re-check content.
func (s *Store) Append(id, role, content string) {
	st := s.getOrCreate(id)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.messages = append(st.messages, datatypes.Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if len(st.messages) > s.windowSize {
		st.messages = st.messages[len(st.messages)-s.windowSize:]
	}
	st.messageCount++
	st.lastActivity = time.Now().UTC()

	slog.Debug("Appended message to session", "session_id", id, "role", role)
}

// History returns a copy of the session's messages in insertion order.
// An unknown session yields an empty slice.
func (s *Store) History(id string) []datatypes.Message {
	st := s.get(id)
	if st == nil {
		slog.Warn("Session not found", "session_id", id)
		return nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]datatypes.Message, len(st.messages))
	copy(out, st.messages)
	return out
}

// ContextForModel returns the conversation formatted for the language model:
// user and assistant turns only, in order, without timestamps.
func (s *Store) ContextForModel(id string) []datatypes.Message {
	var context []datatypes.Message
	for _, msg := range s.History(id) {
		if msg.Role == "user" || msg.Role == "assistant" {
			context = append(context, datatypes.Message{Role: msg.Role, Content: msg.Content})
		}
	}
	return context
}

// =============================================================================
// Locale
// =============================================================================

// SetLocale records the language preference for a session, creating the
// session first if it is absent.
func (s *Store) SetLocale(id, locale string) {
	st := s.getOrCreate(id)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.locale = locale
	slog.Info("Set locale for session", "session_id", id, "locale", locale)
}

// Locale returns the session's language preference, defaulting to "en" for
// unknown sessions or sessions that never set one.
func (s *Store) Locale(id string) string {
	st := s.get(id)
	if st == nil {
		return "en"
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.locale == "" {
		return "en"
	}
	return st.locale
}

// =============================================================================
// Introspection
// =============================================================================

// Info returns a session's metadata, or ok=false when it does not exist.
func (s *Store) Info(id string) (Info, bool) {
	st := s.get(id)
	if st == nil {
		return Info{}, false
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	locale := st.locale
	if locale == "" {
		locale = "en"
	}
	return Info{
		SessionID:    id,
		CreatedAt:    st.createdAt,
		LastActivity: st.lastActivity,
		MessageCount: st.messageCount,
		Locale:       locale,
	}, true
}

// Stats summarizes the store across all sessions.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, st := range s.sessions {
		st.mu.Lock()
		total += st.messageCount
		st.mu.Unlock()
	}

	avg := 0.0
	if len(s.sessions) > 0 {
		avg = float64(total) / float64(len(s.sessions))
	}
	return Stats{
		ActiveSessions:        len(s.sessions),
		TotalMessages:         total,
		AverageMessagesPerSes: avg,
		MaxMessagesPerSession: s.windowSize,
	}
}

// get returns the session state pointer or nil.
func (s *Store) get(id string) *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// getOrCreate returns the session state, creating it inside a single
// critical section so a concurrent Delete cannot land between the
// existence check and the read. A Delete racing in after the pointer is
// returned leaves the caller writing to an orphaned state, which is
// harmless: the write is simply lost with the session.
func (s *Store) getOrCreate(id string) *state {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		now := time.Now().UTC()
		st = &state{
			locale:       "en",
			createdAt:    now,
			lastActivity: now,
		}
		s.sessions[id] = st
		slog.Info("Created new chat session", "session_id", id)
	}
	return st
}
