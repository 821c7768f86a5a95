// Package inbox содержит переписку администратора с инструкторами:
// диалоги (по одному на инструктора) и сообщения в них.
package inbox

import (
	"context"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// Status - состояние диалога в списке входящих.
type Status string

const (
	StatusUnread   Status = "unread"
	StatusRead     Status = "read"
	StatusResolved Status = "resolved"
)

// IsValid проверяет, что статус корректен.
func (s Status) IsValid() bool {
	switch s {
	case StatusUnread, StatusRead, StatusResolved:
		return true
	default:
		return false
	}
}

// SenderType - автор сообщения.
type SenderType string

const (
	SenderAdmin      SenderType = "admin"
	SenderInstructor SenderType = "instructor"
)

// IsValid проверяет, что тип отправителя корректен.
func (s SenderType) IsValid() bool {
	return s == SenderAdmin || s == SenderInstructor
}

// MessageIDPrefix - префикс последовательных идентификаторов сообщений.
const MessageIDPrefix = "MSG"

// FormatMessageID форматирует последовательный идентификатор сообщения.
func FormatMessageID(n int) string {
	return fmt.Sprintf("%s-%04d", MessageIDPrefix, n)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONVERSATION
// ══════════════════════════════════════════════════════════════════════════════

// Conversation - диалог с инструктором. LastMessage и LastMessageAt
// денормализованы для отображения списка.
type Conversation struct {
	ID             string    `json:"id"`
	InstructorID   string    `json:"instructorId"`
	InstructorName string    `json:"instructorName"`
	Status         Status    `json:"status"`
	UnreadCount    int       `json:"unreadCount"`
	LastMessage    string    `json:"lastMessage"`
	LastMessageAt  time.Time `json:"lastMessageAt"`
}

// MarkRead помечает диалог прочитанным.
func (c *Conversation) MarkRead() bool {
	return c.setStatus(StatusRead)
}

// MarkResolved закрывает диалог.
func (c *Conversation) MarkResolved() bool {
	return c.setStatus(StatusResolved)
}

// setStatus меняет статус и обнуляет счётчик: у прочитанного или
// закрытого диалога не бывает непрочитанных сообщений.
func (c *Conversation) setStatus(status Status) bool {
	if c.Status == status && c.UnreadCount == 0 {
		return false
	}
	c.Status = status
	c.UnreadCount = 0
	return true
}

// Record обновляет денормализованные поля после нового сообщения.
func (c *Conversation) Record(msg ChatMessage) {
	c.LastMessage = msg.Text
	c.LastMessageAt = msg.SentAt
}

// Validate проверяет инварианты диалога.
func (c *Conversation) Validate() error {
	if !c.Status.IsValid() {
		return fmt.Errorf("conversation %s: invalid status %q", c.ID, c.Status)
	}
	if c.UnreadCount < 0 {
		return fmt.Errorf("conversation %s: negative unread count", c.ID)
	}
	if c.Status != StatusUnread && c.UnreadCount != 0 {
		return fmt.Errorf("conversation %s: %s conversation has unread messages", c.ID, c.Status)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHAT MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// ChatMessage - неизменяемое сообщение, принадлежащее ровно одному диалогу.
type ChatMessage struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversationId"`
	SenderType     SenderType `json:"senderType"`
	Text           string     `json:"text"`
	SentAt         time.Time  `json:"sentAt"`
	Seen           bool       `json:"seen"`
}

// NewAdminMessage создаёт исходящее сообщение администратора.
func NewAdminMessage(id, conversationID, text string, at time.Time) ChatMessage {
	return ChatMessage{
		ID:             id,
		ConversationID: conversationID,
		SenderType:     SenderAdmin,
		Text:           text,
		SentAt:         at,
		Seen:           false,
	}
}

// Reader загружает диалоги и сообщения из источника начальных данных.
type Reader interface {
	ListConversations(ctx context.Context) ([]Conversation, error)
	ListMessages(ctx context.Context) ([]ChatMessage, error)
}
