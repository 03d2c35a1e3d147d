package event

import "github.com/google/uuid"

// JoinRequestsURL is where admins review pending join requests.
const JoinRequestsURL = "/discover/join-requests"

func GroupURL(groupID uuid.UUID) string {
	return "/groups/" + groupID.String() + "/chat"
}

func ChatURL(chatID uuid.UUID) string {
	return "/chats/" + chatID.String()
}
