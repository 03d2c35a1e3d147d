package service

import (
	"context"

	unreadDto "anoa.com/studyhub/internal/modules/unread/dto"
	unreadRepo "anoa.com/studyhub/internal/modules/unread/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type UnreadService interface {
	Counts(ctx context.Context, userID uuid.UUID) (*unreadDto.UnreadCounts, error)
	// Invalidate drops cached counts; every write that can change a count
	// calls it after commit.
	Invalidate(ctx context.Context, userIDs ...uuid.UUID)
}

type unreadService struct {
	repo  unreadRepo.UnreadRepository
	cache CountCache
	log   zerolog.Logger
}

func NewUnreadService(repo unreadRepo.UnreadRepository, cache CountCache, log zerolog.Logger) UnreadService {
	return &unreadService{repo: repo, cache: cache, log: log}
}

func (s *unreadService) Counts(ctx context.Context, userID uuid.UUID) (*unreadDto.UnreadCounts, error) {
	cached, ok, err := s.cache.Get(ctx, userID)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("unread cache read failed")
	}
	if ok {
		return cached, nil
	}

	counts, err := s.compute(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, userID, counts); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID.String()).Msg("unread cache write failed")
	}
	return counts, nil
}

func (s *unreadService) compute(ctx context.Context, userID uuid.UUID) (*unreadDto.UnreadCounts, error) {
	notifications, err := s.repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return nil, err
	}
	messages, err := s.repo.CountUnreadMessages(ctx, userID)
	if err != nil {
		return nil, err
	}
	friendRequests, err := s.repo.CountPendingFriendRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	joinRequests, err := s.repo.CountPendingJoinRequests(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &unreadDto.UnreadCounts{
		Notifications:  notifications,
		Messages:       messages,
		FriendRequests: friendRequests,
		JoinRequests:   joinRequests,
		// Join requests are an admin concern and stay out of the badge.
		Total: notifications + messages + friendRequests,
	}, nil
}

func (s *unreadService) Invalidate(ctx context.Context, userIDs ...uuid.UUID) {
	if err := s.cache.Delete(ctx, userIDs...); err != nil {
		s.log.Warn().Err(err).Int("users", len(userIDs)).Msg("unread cache invalidation failed")
	}
}
