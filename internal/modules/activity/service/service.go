package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"anoa.com/studyhub/internal/entity"
	activityDto "anoa.com/studyhub/internal/modules/activity/dto"
	activityRepo "anoa.com/studyhub/internal/modules/activity/repository"
	"anoa.com/studyhub/internal/modules/event"
	"anoa.com/studyhub/pkg/textutil"
	"github.com/google/uuid"
)

const (
	DefaultFeedLimit = 8
	MaxFeedLimit     = 50

	groupMessageCap   = 5
	privateMessageCap = 5
	friendEventCap    = 3
	joinRequestCap    = 3

	friendWindow   = 7 * 24 * time.Hour
	previewLen     = 80
	joinPreviewLen = 60
)

// ActivityService builds an approximate "recent highlights" feed. Each
// source is capped, so it is not a complete history.
type ActivityService interface {
	Feed(ctx context.Context, userID uuid.UUID, limit int) ([]activityDto.ActivityItem, error)
}

type activityService struct {
	repo activityRepo.ActivityRepository
	now  func() time.Time
}

func NewActivityService(repo activityRepo.ActivityRepository) ActivityService {
	return &activityService{repo: repo, now: time.Now}
}

func (s *activityService) Feed(ctx context.Context, userID uuid.UUID, limit int) ([]activityDto.ActivityItem, error) {
	if limit <= 0 {
		limit = DefaultFeedLimit
	}
	if limit > MaxFeedLimit {
		limit = MaxFeedLimit
	}

	var items []activityDto.ActivityItem

	groupMsgs, err := s.repo.RecentGroupMessages(ctx, userID, groupMessageCap)
	if err != nil {
		return nil, err
	}
	for _, m := range groupMsgs {
		groupName := ""
		if m.Group != nil {
			groupName = m.Group.Name
		}
		actor := actorOf(m.Sender, m.SenderID)
		items = append(items, activityDto.ActivityItem{
			Type:      "group_message",
			Icon:      "message",
			Color:     "#4A90E2",
			Title:     fmt.Sprintf("%s in %s", actor.DisplayName, groupName),
			Preview:   textutil.Preview(m.Content, previewLen),
			Timestamp: m.CreatedAt,
			URL:       event.GroupURL(m.GroupID),
			Actor:     actor,
		})
	}

	privateMsgs, err := s.repo.RecentPrivateMessages(ctx, userID, privateMessageCap)
	if err != nil {
		return nil, err
	}
	for _, m := range privateMsgs {
		actor := actorOf(m.Sender, m.SenderID)
		items = append(items, activityDto.ActivityItem{
			Type:      "private_message",
			Icon:      "mail",
			Color:     "#10B981",
			Title:     fmt.Sprintf("%s sent you a message", actor.DisplayName),
			Preview:   textutil.Preview(m.Content, previewLen),
			Timestamp: m.CreatedAt,
			URL:       event.ChatURL(m.ChatID),
			Actor:     actor,
		})
	}

	friendEvents, err := s.repo.RecentFriendEvents(ctx, userID, s.now().Add(-friendWindow), friendEventCap)
	if err != nil {
		return nil, err
	}
	for _, f := range friendEvents {
		switch {
		case f.Status == entity.FriendshipPending && f.ToUserID == userID:
			actor := actorOf(f.FromUser, f.FromUserID)
			items = append(items, activityDto.ActivityItem{
				Type:      "friend_request",
				Icon:      "user",
				Color:     "#F59E0B",
				Title:     fmt.Sprintf("%s sent a friend request", actor.DisplayName),
				Preview:   "Tap to accept or decline",
				Timestamp: f.CreatedAt,
				URL:       "/friends",
				Actor:     actor,
			})
		case f.Status == entity.FriendshipAccepted && f.FromUserID == userID:
			actor := actorOf(f.ToUser, f.ToUserID)
			items = append(items, activityDto.ActivityItem{
				Type:      "friend_accepted",
				Icon:      "check",
				Color:     "#10B981",
				Title:     fmt.Sprintf("%s accepted your friend request", actor.DisplayName),
				Preview:   "You are now friends!",
				Timestamp: f.UpdatedAt,
				URL:       "/friends",
				Actor:     actor,
			})
		}
	}

	joinRequests, err := s.repo.PendingJoinRequests(ctx, userID, joinRequestCap)
	if err != nil {
		return nil, err
	}
	for _, jr := range joinRequests {
		groupName := ""
		if jr.Group != nil {
			groupName = jr.Group.Name
		}
		preview := textutil.Preview(jr.Message, joinPreviewLen)
		if preview == "" {
			preview = "Pending your approval"
		}
		actor := actorOf(jr.User, jr.UserID)
		items = append(items, activityDto.ActivityItem{
			Type:      "group_join_request",
			Icon:      "users",
			Color:     "#8B5CF6",
			Title:     fmt.Sprintf("%s wants to join %s", actor.DisplayName, groupName),
			Preview:   preview,
			Timestamp: jr.CreatedAt,
			URL:       event.JoinRequestsURL,
			Actor:     actor,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []activityDto.ActivityItem{}
	}
	return items, nil
}

func actorOf(u *entity.User, id uuid.UUID) activityDto.ActivityActor {
	if u == nil {
		return activityDto.ActivityActor{ID: id}
	}
	return activityDto.ActivityActor{
		ID:          u.ID,
		DisplayName: u.DisplayName(),
		AvatarURL:   u.Avatar(),
	}
}
