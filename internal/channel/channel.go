// Package channel names the broadcast scopes clients subscribe to. The
// string form is an external contract: group:<id>, private_chat:<id>,
// user:<id>.
package channel

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindGroup       Kind = "group"
	KindPrivateChat Kind = "private_chat"
	KindUser        Kind = "user"
)

// Channel is a parsed channel key.
type Channel struct {
	Kind Kind
	ID   uuid.UUID
}

func Group(groupID uuid.UUID) Channel {
	return Channel{Kind: KindGroup, ID: groupID}
}

func PrivateChat(chatID uuid.UUID) Channel {
	return Channel{Kind: KindPrivateChat, ID: chatID}
}

func User(userID uuid.UUID) Channel {
	return Channel{Kind: KindUser, ID: userID}
}

func (c Channel) String() string {
	return string(c.Kind) + ":" + c.ID.String()
}

func (c Channel) IsZero() bool {
	return c.Kind == "" && c.ID == uuid.Nil
}

// Parse accepts only the three known kinds with a well-formed id.
func Parse(s string) (Channel, error) {
	kind, rawID, ok := strings.Cut(s, ":")
	if !ok {
		return Channel{}, fmt.Errorf("channel %q: missing kind separator", s)
	}

	switch Kind(kind) {
	case KindGroup, KindPrivateChat, KindUser:
	default:
		return Channel{}, fmt.Errorf("channel %q: unknown kind %q", s, kind)
	}

	id, err := uuid.Parse(rawID)
	if err != nil || id == uuid.Nil {
		return Channel{}, fmt.Errorf("channel %q: invalid id", s)
	}

	return Channel{Kind: Kind(kind), ID: id}, nil
}
