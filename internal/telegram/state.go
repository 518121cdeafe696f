package telegram

import (
	"sync"
)

type ChatState int

const (
	StateIdle ChatState = iota
	StateAwaitingEmail
	StateAwaitingWalkIn
)

// Chat tracks what the bot expects next from a chat. The studio workspace
// itself lives in the orchestrator, keyed by account email.
type Chat struct {
	State ChatState
	Email string
}

type ChatManager struct {
	mu    sync.RWMutex
	chats map[int64]*Chat
}

func NewChatManager() *ChatManager {
	return &ChatManager{
		chats: make(map[int64]*Chat),
	}
}

func (m *ChatManager) Get(chatID int64) Chat {
	m.mu.RLock()
	chat, ok := m.chats[chatID]
	m.mu.RUnlock()
	if ok {
		return *chat
	}
	return Chat{State: StateIdle}
}

func (m *ChatManager) SetState(chatID int64, state ChatState) {
	m.mu.Lock()
	chat := m.ensure(chatID)
	chat.State = state
	m.mu.Unlock()
}

func (m *ChatManager) Bind(chatID int64, email string) {
	m.mu.Lock()
	chat := m.ensure(chatID)
	chat.Email = email
	chat.State = StateIdle
	m.mu.Unlock()
}

func (m *ChatManager) Reset(chatID int64) {
	m.mu.Lock()
	delete(m.chats, chatID)
	m.mu.Unlock()
}

func (m *ChatManager) ensure(chatID int64) *Chat {
	chat, ok := m.chats[chatID]
	if !ok {
		chat = &Chat{State: StateIdle}
		m.chats[chatID] = chat
	}
	return chat
}
