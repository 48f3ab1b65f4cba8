package models

import "time"

const (
	RoleUser = "user"
	RoleAI   = "ai"

	SessionTypeChat = "chat"

	TagChat = "chat"
)

type Session struct {
	ID        string    `gorm:"type:varchar(26);primaryKey" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index:idx_session_user_type,priority:1;not null" json:"user_id"`
	Type      string    `gorm:"type:varchar(16);index:idx_session_user_type,priority:2;not null" json:"type"`
	StartedAt time.Time `gorm:"not null" json:"started_at"`
}

func (Session) TableName() string { return "chat_sessions" }

// Message is append-only; ordering is by CreatedAt, then ID.
type Message struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	SessionID string    `gorm:"type:varchar(64);not null;index:idx_chat_msg_session_created,priority:1"`
	UserID    string    `gorm:"type:varchar(64);not null;index"`
	Role      string    `gorm:"type:varchar(16);not null"`
	Tag       string    `gorm:"type:varchar(32);not null;default:''"`
	Text      string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_chat_msg_session_created,priority:2"`
}

func (Message) TableName() string { return "chat_messages" }

// MessageView is the wire shape; content and text carry the same value.
type MessageView struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Tag       string    `json:"tag"`
	Content   string    `json:"content"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

func (m Message) View() MessageView {
	return MessageView{
		ID:        m.ID,
		SessionID: m.SessionID,
		UserID:    m.UserID,
		Role:      m.Role,
		Tag:       m.Tag,
		Content:   m.Text,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
