package studio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digkill/prelook/internal/models"
)

func entry(id string) *models.HistorySession {
	front := "front-" + id
	return &models.HistorySession{ID: id, ResultImages: models.GeneratedImages{Front: &front}}
}

func idOf(t *testing.T, s *models.HistorySession) string {
	t.Helper()
	require.NotNil(t, s)
	return s.ID
}

func TestStackEmpty(t *testing.T) {
	s := NewStack()
	assert.Equal(t, -1, s.Cursor())
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	_, ok := s.Undo()
	assert.False(t, ok)
	_, ok = s.Redo()
	assert.False(t, ok)
	_, ok = s.Current()
	assert.False(t, ok)
	assert.Equal(t, -1, s.Cursor())
}

func TestStackUndoRedoBounds(t *testing.T) {
	s := NewStack()
	s.Push(entry("A"))
	s.Push(entry("B"))
	s.Push(entry("C"))
	assert.Equal(t, 2, s.Cursor())
	assert.False(t, s.CanRedo())

	r, ok := s.Undo()
	require.True(t, ok)
	assert.Equal(t, "B", idOf(t, r))
	r, ok = s.Undo()
	require.True(t, ok)
	assert.Equal(t, "A", idOf(t, r))

	// The first entry is the floor.
	_, ok = s.Undo()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Cursor())
	assert.False(t, s.CanUndo())

	r, ok = s.Redo()
	require.True(t, ok)
	assert.Equal(t, "B", idOf(t, r))
	r, ok = s.Redo()
	require.True(t, ok)
	assert.Equal(t, "C", idOf(t, r))
	_, ok = s.Redo()
	assert.False(t, ok)
	assert.Equal(t, 2, s.Cursor())
}

func TestStackPushTruncatesRedoTail(t *testing.T) {
	s := NewStack()
	s.Push(entry("A"))
	s.Push(entry("B"))
	s.Push(entry("C"))
	s.Undo()

	s.Push(entry("D"))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, s.Cursor())
	assert.False(t, s.CanRedo())

	r, _ := s.Undo()
	assert.Equal(t, "B", idOf(t, r))
	r, _ = s.Undo()
	assert.Equal(t, "A", idOf(t, r))
}

func TestStackSeedResetReplace(t *testing.T) {
	s := NewStack()
	s.Push(entry("A"))
	s.Push(entry("B"))

	s.Seed(entry("H"))
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.Cursor())
	assert.False(t, s.CanUndo())
	assert.False(t, s.CanRedo())

	left := "L"
	merged := entry("H")
	merged.ResultImages.Left = &left
	merged.UnlockedAngles = true
	assert.True(t, s.Replace(merged))
	cur, ok := s.Current()
	require.True(t, ok)
	require.NotNil(t, cur.ResultImages.Left)
	assert.Equal(t, "L", *cur.ResultImages.Left)
	assert.True(t, cur.UnlockedAngles)

	s.Reset()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, -1, s.Cursor())
	assert.False(t, s.Replace(entry("X")))
	assert.Equal(t, 0, s.Len())
}

func TestStackReplaceTargetsOwnEntry(t *testing.T) {
	s := NewStack()
	a, b := entry("A"), entry("B")
	s.Push(a)
	s.Push(b)

	unlockedB := entry("B")
	unlockedB.UnlockedAngles = true
	s.Undo()
	require.True(t, s.Replace(unlockedB))

	cur, _ := s.Current()
	assert.Same(t, a, cur)
	assert.Equal(t, 0, s.Cursor())
	next, ok := s.Redo()
	require.True(t, ok)
	assert.Same(t, unlockedB, next)
}
