package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	friendRepo "anoa.com/studyhub/internal/modules/friendship/repository"
	notifService "anoa.com/studyhub/internal/modules/notification/service"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FriendshipService interface {
	SendRequest(ctx context.Context, userID, targetID uuid.UUID) (*entity.Friendship, error)
	Accept(ctx context.Context, userID, requestID uuid.UUID) (*entity.Friendship, error)
	Decline(ctx context.Context, userID, requestID uuid.UUID) error
	Remove(ctx context.Context, userID, otherID uuid.UUID) error
	Block(ctx context.Context, userID, otherID uuid.UUID) error
	ListFriends(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error)
}

type friendshipService struct {
	db         *gorm.DB
	repo       friendRepo.FriendshipRepository
	dispatcher *notifService.Dispatcher
}

func NewFriendshipService(db *gorm.DB, repo friendRepo.FriendshipRepository, dispatcher *notifService.Dispatcher) FriendshipService {
	return &friendshipService{db: db, repo: repo, dispatcher: dispatcher}
}

// SendRequest creates a pending request, or reopens a declined one in the
// new direction.
func (s *friendshipService) SendRequest(ctx context.Context, userID, targetID uuid.UUID) (*entity.Friendship, error) {
	if userID == targetID {
		return nil, apperror.Invalid("cannot send a friend request to yourself")
	}

	var friendship *entity.Friendship
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindUser(ctx, targetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user not found: %w", apperror.ErrNotFound)
			}
			return err
		}
		sender, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := repo.FindByPair(ctx, userID, targetID)
		if err != nil {
			return err
		}

		if existing == nil {
			friendship = &entity.Friendship{FromUserID: userID, ToUserID: targetID, Status: entity.FriendshipPending}
			n, err := repo.CreateIfAbsent(ctx, friendship)
			if err != nil {
				return fmt.Errorf("failed to create friend request: %w", err)
			}
			if n == 0 {
				return apperror.Conflict("friend request already exists")
			}
		} else {
			if err := requestable(existing, userID); err != nil {
				return err
			}
			n, err := repo.Reopen(ctx, existing.ID, userID, targetID, time.Now().UTC())
			if err != nil {
				return err
			}
			if n == 0 {
				return apperror.Conflict("friend request already exists")
			}
			friendship, err = repo.FindByID(ctx, existing.ID)
			if err != nil {
				return err
			}
		}

		outbox, err = s.dispatcher.Stage(ctx, tx, event.FriendRequestSent{
			Actor:        event.ActorOf(sender),
			FriendshipID: friendship.ID,
			RecipientID:  targetID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return friendship, nil
}

// requestable reports why the existing pair row blocks a new request. Only
// declined rows may be reopened.
func requestable(f *entity.Friendship, userID uuid.UUID) error {
	switch f.Status {
	case entity.FriendshipAccepted:
		return apperror.Conflict("you are already friends")
	case entity.FriendshipPending:
		if f.FromUserID == userID {
			return apperror.Conflict("friend request already sent")
		}
		return apperror.Conflict("this user already sent you a friend request")
	case entity.FriendshipBlocked:
		return apperror.Forbidden("you cannot send a friend request to this user")
	}
	return nil
}

func (s *friendshipService) Accept(ctx context.Context, userID, requestID uuid.UUID) (*entity.Friendship, error) {
	var friendship *entity.Friendship
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		f, err := s.incoming(ctx, repo, userID, requestID)
		if err != nil {
			return err
		}

		n, err := repo.Transition(ctx, f.ID, entity.FriendshipPending, entity.FriendshipAccepted, f.FromUserID, f.ToUserID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.Conflict("friend request already resolved")
		}

		accepter, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		outbox, err = s.dispatcher.Stage(ctx, tx, event.FriendRequestAccepted{
			Actor:        event.ActorOf(accepter),
			FriendshipID: f.ID,
			RequesterID:  f.FromUserID,
		})
		if err != nil {
			return err
		}
		outbox.Touch(userID)

		friendship, err = repo.FindByID(ctx, f.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return friendship, nil
}

// Decline is silent: the requester is not notified.
func (s *friendshipService) Decline(ctx context.Context, userID, requestID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		f, err := s.incoming(ctx, repo, userID, requestID)
		if err != nil {
			return err
		}

		n, err := repo.Transition(ctx, f.ID, entity.FriendshipPending, entity.FriendshipDeclined, f.FromUserID, f.ToUserID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.Conflict("friend request already resolved")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.touch(ctx, userID)
	return nil
}

// Remove unfriends, withdraws or dismisses a pending request, or lifts a
// block placed by the user.
func (s *friendshipService) Remove(ctx context.Context, userID, otherID uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		f, err := repo.FindByPair(ctx, userID, otherID)
		if err != nil {
			return err
		}
		if f == nil || f.Status == entity.FriendshipDeclined {
			return fmt.Errorf("friendship not found: %w", apperror.ErrNotFound)
		}
		if f.Status == entity.FriendshipBlocked && f.FromUserID != userID {
			return fmt.Errorf("friendship not found: %w", apperror.ErrNotFound)
		}

		n, err := repo.Delete(ctx, f.ID)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("friendship not found: %w", apperror.ErrNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.touch(ctx, userID, otherID)
	return nil
}

// Block overrides whatever the pair had, including a pending request in
// either direction. An existing block is never rewritten.
func (s *friendshipService) Block(ctx context.Context, userID, otherID uuid.UUID) error {
	if userID == otherID {
		return apperror.Invalid("cannot block yourself")
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindUser(ctx, otherID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user not found: %w", apperror.ErrNotFound)
			}
			return err
		}

		f, err := repo.FindByPair(ctx, userID, otherID)
		if err != nil {
			return err
		}
		if f != nil {
			// A block is terminal whichever side placed it; only the
			// blocker can lift it through Remove.
			if f.Status == entity.FriendshipBlocked {
				return apperror.Conflict("user already blocked")
			}
			return repo.Block(ctx, f.ID, userID, otherID)
		}

		n, err := repo.CreateIfAbsent(ctx, &entity.Friendship{FromUserID: userID, ToUserID: otherID, Status: entity.FriendshipBlocked})
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.Conflict("friendship changed concurrently, try again")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.touch(ctx, userID, otherID)
	return nil
}

func (s *friendshipService) ListFriends(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error) {
	return s.repo.ListFriends(ctx, userID)
}

func (s *friendshipService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]entity.Friendship, error) {
	return s.repo.ListIncoming(ctx, userID)
}

// incoming loads a request addressed to userID. Requests addressed to
// someone else look missing.
func (s *friendshipService) incoming(ctx context.Context, repo friendRepo.FriendshipRepository, userID, requestID uuid.UUID) (*entity.Friendship, error) {
	f, err := repo.FindByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("friend request not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	if f.ToUserID != userID {
		return nil, fmt.Errorf("friend request not found: %w", apperror.ErrNotFound)
	}
	return f, nil
}

// touch drops cached unread counts for users whose pending requests changed.
func (s *friendshipService) touch(ctx context.Context, userIDs ...uuid.UUID) {
	out := &notifService.Outbox{}
	out.Touch(userIDs...)
	s.dispatcher.Deliver(ctx, out)
}
