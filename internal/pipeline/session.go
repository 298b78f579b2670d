package pipeline

import (
	"context"
	"sync"

	"github.com/kalambet/studyrag/internal/grounded"
)

// SessionState is a snapshot of one user's interactive session.
type SessionState struct {
	Indexed bool             `json:"indexed"`
	Info    *IndexInfo       `json:"index_info"`
	Result  *grounded.Result `json:"result"`
	Error   string           `json:"error,omitempty"`
}

// Session tracks what a single interactive user has indexed and asked, on
// top of a Pipeline. Asking before a successful index fails with
// ErrNotIndexed.
type Session struct {
	mu    sync.Mutex
	p     *Pipeline
	state SessionState
}

func NewSession(p *Pipeline) *Session {
	return &Session{p: p}
}

// Index indexes src. The previous result and error are cleared first; on
// failure the session is no longer indexed.
func (s *Session) Index(ctx context.Context, src Source) (IndexInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Error = ""
	s.state.Result = nil

	info, err := s.p.IndexOnly(ctx, src)
	if err != nil {
		s.state.Indexed = false
		s.state.Info = nil
		s.state.Error = err.Error()
		return IndexInfo{}, err
	}
	s.state.Indexed = true
	s.state.Info = &info
	return info, nil
}

// Ask answers req over src. On failure the previous result is dropped.
func (s *Session) Ask(ctx context.Context, src Source, req AskRequest) (*grounded.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.Error = ""
	if !s.state.Indexed {
		s.state.Error = ErrNotIndexed.Error()
		return nil, ErrNotIndexed
	}

	res, err := s.p.AnswerQuestion(ctx, src, req)
	if err != nil {
		s.state.Result = nil
		s.state.Error = err.Error()
		return nil, err
	}
	s.state.Result = res
	return res, nil
}

// State returns a copy of the session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state
	if st.Info != nil {
		info := *st.Info
		st.Info = &info
	}
	return st
}

// LastResult returns the most recent successful result, or nil.
func (s *Session) LastResult() *grounded.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Result
}

// Forget marks the session as not indexed if it was indexed on notesHash.
func (s *Session) Forget(notesHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Info != nil && s.state.Info.NotesHash == notesHash {
		s.state.Indexed = false
		s.state.Info = nil
	}
}
