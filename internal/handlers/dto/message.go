package dto

import (
	"time"

	"github.com/google/uuid"
)

type SendMessageRequest struct {
	Content  string     `json:"content" binding:"required,min=1,max=4000"`
	Type     string     `json:"type" binding:"omitempty,oneof=TEXT EMOJI REACTION"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=4000"`
}

type UserInfo struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

type MessageResponse struct {
	ID        uuid.UUID      `json:"id"`
	RoomID    uuid.UUID      `json:"room_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Content   string         `json:"content"`
	Type      string         `json:"type"`
	ParentID  *uuid.UUID     `json:"parent_id,omitempty"`
	IsEdited  bool           `json:"is_edited,omitempty"`
	EditedAt  *time.Time     `json:"edited_at,omitempty"`
	IsDeleted bool           `json:"is_deleted,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	User      *UserInfo      `json:"user,omitempty"`
}

// ChatPageResponse — страница истории; cursor отдается только при has_more.
type ChatPageResponse struct {
	Messages []MessageResponse `json:"messages"`
	HasMore  bool              `json:"has_more"`
	Cursor   *uuid.UUID        `json:"cursor,omitempty"`
}
