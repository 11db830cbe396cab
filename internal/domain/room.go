package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	MaxRoomIDLen = 64

	DefaultTopic    = "Random"
	DefaultLanguage = "Any"
	DefaultLevel    = "Any"
)

var ErrRoomIDInvalid = errors.New("room id invalid")

type RoomID string

func ParseRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > MaxRoomIDLen {
		return "", ErrRoomIDInvalid
	}
	return RoomID(raw), nil
}

// RoomMeta is descriptive and opaque to the core.
type RoomMeta struct {
	Topic    string `json:"topic"`
	Language string `json:"language"`
	Level    string `json:"level"`
	Private  bool   `json:"private"`
}

// DefaultRoomMeta is used for rooms created implicitly by a join.
func DefaultRoomMeta() RoomMeta {
	return RoomMeta{Topic: DefaultTopic, Language: DefaultLanguage, Level: DefaultLevel}
}

type Room struct {
	ID        RoomID
	Meta      RoomMeta
	CreatedAt time.Time
}
