package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateRoomRequest struct {
	Name           string     `json:"name" binding:"required,min=1,max=100"`
	MaxCapacity    int        `json:"max_capacity" binding:"omitempty,min=1,max=100"`
	IsPrivate      bool       `json:"is_private"`
	CurrentMediaID *uuid.UUID `json:"current_media_id"`
}

type MemberResponse struct {
	ID         uuid.UUID  `json:"id"`
	RoomID     uuid.UUID  `json:"room_id"`
	UserID     uuid.UUID  `json:"user_id"`
	IsHost     bool       `json:"is_host"`
	JoinedAt   time.Time  `json:"joined_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
}

type JoinResponse struct {
	Status string          `json:"status"`
	Member *MemberResponse `json:"member,omitempty"`
}

type BatchJoinInput struct {
	RoomID uuid.UUID `json:"room_id" binding:"required"`
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

type BatchJoinRequest struct {
	Inputs []BatchJoinInput `json:"inputs" binding:"required,min=1,max=50,dive"`
}

type BatchJoinItemResponse struct {
	Input  BatchJoinInput  `json:"input"`
	Status string          `json:"status,omitempty"`
	Member *MemberResponse `json:"member,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type BatchJoinResponse struct {
	Successful []BatchJoinItemResponse `json:"successful"`
	Failed     []BatchJoinItemResponse `json:"failed"`
}
