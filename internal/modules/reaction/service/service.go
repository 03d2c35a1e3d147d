package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	membership "anoa.com/studyhub/internal/modules/membership/service"
	msgRepo "anoa.com/studyhub/internal/modules/message/repository"
	notifService "anoa.com/studyhub/internal/modules/notification/service"
	reactionDto "anoa.com/studyhub/internal/modules/reaction/dto"
	reactionRepo "anoa.com/studyhub/internal/modules/reaction/repository"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

type ReactionService interface {
	Toggle(ctx context.Context, userID uuid.UUID, req reactionDto.ReactionToggleRequest) (*reactionDto.ToggleResponse, error)
	GetReactions(ctx context.Context, userID uuid.UUID, target entity.MessageRef) (*reactionDto.ReactionsResponse, error)
}

type reactionService struct {
	db         *gorm.DB
	repo       reactionRepo.ReactionRepository
	messages   msgRepo.MessageRepository
	authority  membership.Authority
	dispatcher *notifService.Dispatcher
	cache      *CountsCache
	log        zerolog.Logger
}

func NewReactionService(db *gorm.DB, repo reactionRepo.ReactionRepository, messages msgRepo.MessageRepository, authority membership.Authority, dispatcher *notifService.Dispatcher, cache *CountsCache, log zerolog.Logger) ReactionService {
	return &reactionService{
		db:         db,
		repo:       repo,
		messages:   messages,
		authority:  authority,
		dispatcher: dispatcher,
		cache:      cache,
		log:        log,
	}
}

// Toggle removes the user's reaction if present and adds it otherwise.
// Losing an add race to a concurrent identical request is a benign
// conflict.
func (s *reactionService) Toggle(ctx context.Context, userID uuid.UUID, req reactionDto.ReactionToggleRequest) (*reactionDto.ToggleResponse, error) {
	target, err := entity.NewMessageRef(entity.TargetKind(req.TargetKind), req.TargetID)
	if err != nil {
		return nil, apperror.Invalid(err.Error())
	}

	var added bool
	var outbox *notifService.Outbox

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		kind, err := s.resolve(ctx, tx, userID, target)
		if err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		removed, err := repo.Remove(ctx, userID, target, req.Emoji)
		if err != nil {
			return err
		}
		if removed == 0 {
			inserted, err := repo.Add(ctx, entity.NewReaction(userID, target, req.Emoji))
			if err != nil {
				return fmt.Errorf("failed to add reaction: %w", err)
			}
			if inserted == 0 {
				return apperror.Conflict("reaction already added")
			}
			added = true
		}

		actor, err := s.messages.WithTx(tx).FindUser(ctx, userID)
		if err != nil {
			return err
		}
		outbox, err = s.dispatcher.Stage(ctx, tx, event.ReactionToggled{
			Actor:     event.ActorOf(actor),
			Kind:      kind,
			MessageID: target.MessageID(),
			Emoji:     req.Emoji,
			Added:     added,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)

	delta := int64(-1)
	if added {
		delta = 1
	}
	if err := s.cache.Adjust(ctx, target, req.Emoji, delta); err != nil {
		s.log.Warn().Err(err).Str("target", target.MessageID().String()).Msg("reaction count cache update failed")
	}

	return &reactionDto.ToggleResponse{Emoji: req.Emoji, Added: added}, nil
}

func (s *reactionService) GetReactions(ctx context.Context, userID uuid.UUID, target entity.MessageRef) (*reactionDto.ReactionsResponse, error) {
	if _, err := s.resolve(ctx, s.db, userID, target); err != nil {
		return nil, err
	}

	counts, ok, err := s.cache.Get(ctx, target)
	if err != nil {
		s.log.Warn().Err(err).Msg("reaction count cache read failed")
	}
	if !ok {
		counts, err = s.repo.GetReactionsCount(ctx, target)
		if err != nil {
			return nil, err
		}
		if err := s.cache.Set(ctx, target, counts); err != nil {
			s.log.Warn().Err(err).Msg("reaction count cache fill failed")
		}
	}

	mine, err := s.repo.GetUserReactions(ctx, userID, target)
	if err != nil {
		return nil, err
	}
	if mine == nil {
		mine = []string{}
	}

	return &reactionDto.ReactionsResponse{Counts: counts, UserReactions: mine}, nil
}

// resolve finds where the target message lives and checks the user can
// read it there.
func (s *reactionService) resolve(ctx context.Context, db *gorm.DB, userID uuid.UUID, target entity.MessageRef) (event.MessageKind, error) {
	messages := s.messages.WithTx(db)
	authority := s.authority.WithTx(db)

	switch ref := target.(type) {
	case entity.GroupMessageRef:
		msg, err := messages.FindGroupMessage(ctx, ref.ID)
		if err != nil {
			return nil, notFound(err)
		}
		if _, err := authority.RequireMember(ctx, userID, msg.GroupID); err != nil {
			return nil, err
		}
		return event.GroupKind{GroupID: msg.GroupID}, nil

	case entity.PrivateMessageRef:
		msg, err := messages.FindPrivateMessage(ctx, ref.ID)
		if err != nil {
			return nil, notFound(err)
		}
		if _, err := authority.RequireParticipant(ctx, userID, msg.ChatID); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				// A foreign chat's message looks missing.
				return nil, fmt.Errorf("message not found: %w", apperror.ErrNotFound)
			}
			return nil, err
		}
		return event.PrivateKind{ChatID: msg.ChatID}, nil
	}
	return nil, apperror.Invalid("unknown reaction target")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("message not found: %w", apperror.ErrNotFound)
	}
	return err
}
