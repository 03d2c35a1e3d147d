package dto

// UnreadCounts backs the polling badge. Total leaves out JoinRequests.
type UnreadCounts struct {
	Notifications  int64 `json:"notifications"`
	Messages       int64 `json:"messages"`
	FriendRequests int64 `json:"friend_requests"`
	JoinRequests   int64 `json:"join_requests"`
	Total          int64 `json:"total"`
}
