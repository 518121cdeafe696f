package studio

import (
	"sync"

	"github.com/digkill/prelook/internal/gateway"
	"github.com/digkill/prelook/internal/models"
)

// Workspace is the in-memory studio state of one account: the photo being
// styled and its undo/redo stack of sessions.
type Workspace struct {
	mu sync.Mutex

	sourceRef string
	source    *gateway.Image
	stack     *Stack
	loading   bool
	unlocking bool
	lastError string
}

func newWorkspace() *Workspace {
	return &Workspace{stack: NewStack()}
}

func (w *Workspace) busy() bool {
	return w.loading || w.unlocking
}

// session is the session whose result is on screen, or nil.
func (w *Workspace) session() *models.HistorySession {
	s, _ := w.stack.Current()
	return s
}

// settle clears the in-flight flags once an operation returns.
func (w *Workspace) settle() {
	w.mu.Lock()
	w.loading = false
	w.unlocking = false
	w.mu.Unlock()
}

// clear drops the photo and everything derived from it.
func (w *Workspace) clear() {
	w.sourceRef = ""
	w.source = nil
	w.stack.Reset()
	w.lastError = ""
}

// Manager holds one workspace per account email.
type Manager struct {
	mu         sync.RWMutex
	workspaces map[string]*Workspace
}

func NewManager() *Manager {
	return &Manager{workspaces: make(map[string]*Workspace)}
}

func (m *Manager) Get(email string) *Workspace {
	m.mu.RLock()
	ws, ok := m.workspaces[email]
	m.mu.RUnlock()
	if ok {
		return ws
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ws, ok := m.workspaces[email]; ok {
		return ws
	}
	ws = newWorkspace()
	m.workspaces[email] = ws
	return ws
}

// Drop forgets the account's workspace, e.g. on logout.
func (m *Manager) Drop(email string) {
	m.mu.Lock()
	delete(m.workspaces, email)
	m.mu.Unlock()
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.workspaces)
}
