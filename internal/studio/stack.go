package studio

import "github.com/digkill/prelook/internal/models"

// Stack is the undo/redo history of sessions for the photo currently open.
// Each entry carries the session its images belong to, so moving the cursor
// also moves the config, summary and unlock state shown with them.
// The cursor is -1 when empty and otherwise indexes the visible entry.
type Stack struct {
	entries []*models.HistorySession
	cursor  int
}

func NewStack() *Stack {
	return &Stack{cursor: -1}
}

// Push drops any redo tail and makes session the current entry.
func (s *Stack) Push(session *models.HistorySession) {
	s.entries = append(s.entries[:s.cursor+1], session)
	s.cursor = len(s.entries) - 1
}

func (s *Stack) Undo() (*models.HistorySession, bool) {
	if s.cursor <= 0 {
		return nil, false
	}
	s.cursor--
	return s.entries[s.cursor], true
}

func (s *Stack) Redo() (*models.HistorySession, bool) {
	if s.cursor >= len(s.entries)-1 {
		return nil, false
	}
	s.cursor++
	return s.entries[s.cursor], true
}

func (s *Stack) Reset() {
	s.entries = nil
	s.cursor = -1
}

// Seed replaces the history with a single entry.
func (s *Stack) Seed(session *models.HistorySession) {
	s.entries = []*models.HistorySession{session}
	s.cursor = 0
}

// Replace swaps in a newer copy of a session already on the stack. Entries of
// other sessions and the cursor are left alone. It reports whether an entry
// with that id was found.
func (s *Stack) Replace(session *models.HistorySession) bool {
	for i, e := range s.entries {
		if e.ID == session.ID {
			s.entries[i] = session
			return true
		}
	}
	return false
}

func (s *Stack) Current() (*models.HistorySession, bool) {
	if s.cursor < 0 {
		return nil, false
	}
	return s.entries[s.cursor], true
}

func (s *Stack) CanUndo() bool { return s.cursor > 0 }

func (s *Stack) CanRedo() bool { return s.cursor < len(s.entries)-1 }

func (s *Stack) Len() int { return len(s.entries) }

func (s *Stack) Cursor() int { return s.cursor }
