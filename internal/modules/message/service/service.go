package service

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	membership "anoa.com/studyhub/internal/modules/membership/service"
	msgDto "anoa.com/studyhub/internal/modules/message/dto"
	msgRepo "anoa.com/studyhub/internal/modules/message/repository"
	notifService "anoa.com/studyhub/internal/modules/notification/service"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 100
)

type MessageService interface {
	SendGroupMessage(ctx context.Context, userID, groupID uuid.UUID, req msgDto.SendMessageRequest) (*entity.GroupMessage, error)
	ListGroupMessages(ctx context.Context, userID, groupID uuid.UUID, limit int) ([]entity.GroupMessage, error)
	EditGroupMessage(ctx context.Context, userID, messageID uuid.UUID, req msgDto.EditMessageRequest) (*entity.GroupMessage, error)
	DeleteGroupMessage(ctx context.Context, userID, messageID uuid.UUID) error

	StartChat(ctx context.Context, userID, otherID uuid.UUID) (*entity.PrivateChat, error)
	SendPrivateMessage(ctx context.Context, userID, chatID uuid.UUID, req msgDto.SendMessageRequest) (*entity.PrivateMessage, error)
	ListPrivateMessages(ctx context.Context, userID, chatID uuid.UUID, limit int) ([]entity.PrivateMessage, error)
	MarkChatRead(ctx context.Context, userID, chatID uuid.UUID) (int64, error)
}

type messageService struct {
	db         *gorm.DB
	repo       msgRepo.MessageRepository
	authority  membership.Authority
	dispatcher *notifService.Dispatcher
}

func NewMessageService(db *gorm.DB, repo msgRepo.MessageRepository, authority membership.Authority, dispatcher *notifService.Dispatcher) MessageService {
	return &messageService{
		db:         db,
		repo:       repo,
		authority:  authority,
		dispatcher: dispatcher,
	}
}

func (s *messageService) SendGroupMessage(ctx context.Context, userID, groupID uuid.UUID, req msgDto.SendMessageRequest) (*entity.GroupMessage, error) {
	var msg *entity.GroupMessage
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.authority.WithTx(tx).RequireMember(ctx, userID, groupID); err != nil {
			return err
		}

		if req.ParentID != nil {
			ok, err := repo.GroupMessageInGroup(ctx, *req.ParentID, groupID)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.Invalid("parent message not found in this group")
			}
		}

		sender, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}

		msg = &entity.GroupMessage{
			GroupID:  groupID,
			SenderID: userID,
			ParentID: req.ParentID,
			Content:  req.Content,
		}
		if err := repo.CreateGroupMessage(ctx, msg); err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		msg.Sender = sender

		if err := repo.TouchGroupActivity(ctx, groupID, msg.CreatedAt); err != nil {
			return err
		}

		outbox, err = s.dispatcher.Stage(ctx, tx, event.MessageSent{
			Actor:     event.ActorOf(sender),
			Kind:      event.GroupKind{GroupID: groupID},
			MessageID: msg.ID,
			ParentID:  msg.ParentID,
			Content:   msg.Content,
			SentAt:    msg.CreatedAt,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return msg, nil
}

func (s *messageService) ListGroupMessages(ctx context.Context, userID, groupID uuid.UUID, limit int) ([]entity.GroupMessage, error) {
	if _, err := s.authority.RequireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListGroupMessages(ctx, groupID, clampLimit(limit))
}

func (s *messageService) EditGroupMessage(ctx context.Context, userID, messageID uuid.UUID, req msgDto.EditMessageRequest) (*entity.GroupMessage, error) {
	var msg *entity.GroupMessage
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		msg, err = s.findGroupMessage(ctx, repo, messageID)
		if err != nil {
			return err
		}
		if _, err := s.authority.WithTx(tx).RequireMember(ctx, userID, msg.GroupID); err != nil {
			return err
		}
		if msg.SenderID != userID {
			return apperror.Forbidden("you can only edit your own messages")
		}

		if err := repo.UpdateGroupMessageContent(ctx, messageID, req.Content); err != nil {
			return err
		}
		msg.Content = req.Content
		msg.Edited = true

		outbox, err = s.dispatcher.Stage(ctx, tx, event.MessageEdited{
			Actor:     event.ActorOf(msg.Sender),
			GroupID:   msg.GroupID,
			MessageID: msg.ID,
			Content:   msg.Content,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return msg, nil
}

// DeleteGroupMessage is allowed to the sender and to group managers.
func (s *messageService) DeleteGroupMessage(ctx context.Context, userID, messageID uuid.UUID) error {
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		msg, err := s.findGroupMessage(ctx, repo, messageID)
		if err != nil {
			return err
		}
		rank, err := s.authority.WithTx(tx).RequireMember(ctx, userID, msg.GroupID)
		if err != nil {
			return err
		}
		if msg.SenderID != userID && !rank.CanManage() {
			return apperror.Forbidden("you cannot delete this message")
		}

		actor, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := repo.DeleteGroupMessage(ctx, messageID); err != nil {
			return fmt.Errorf("failed to delete message: %w", err)
		}

		outbox, err = s.dispatcher.Stage(ctx, tx, event.MessageDeleted{
			Actor:     event.ActorOf(actor),
			GroupID:   msg.GroupID,
			MessageID: msg.ID,
		})
		return err
	})
	if err != nil {
		return err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return nil
}

// StartChat returns the chat between the two users, creating it on first
// use. Concurrent first calls converge on the same row.
func (s *messageService) StartChat(ctx context.Context, userID, otherID uuid.UUID) (*entity.PrivateChat, error) {
	if userID == otherID {
		return nil, apperror.Invalid("cannot start a chat with yourself")
	}

	if _, err := s.repo.FindUser(ctx, otherID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	blocked, err := s.repo.IsBlocked(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperror.Forbidden("you cannot message this user")
	}

	low, high := entity.OrderedPair(userID, otherID)
	chat, err := s.repo.FindChatByPair(ctx, low, high)
	if err == nil {
		return chat, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := s.repo.CreateChatIfAbsent(ctx, &entity.PrivateChat{ParticipantLow: low, ParticipantHigh: high}); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}
	return s.repo.FindChatByPair(ctx, low, high)
}

func (s *messageService) SendPrivateMessage(ctx context.Context, userID, chatID uuid.UUID, req msgDto.SendMessageRequest) (*entity.PrivateMessage, error) {
	var msg *entity.PrivateMessage
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		chat, err := s.authority.WithTx(tx).RequireParticipant(ctx, userID, chatID)
		if err != nil {
			return err
		}

		blocked, err := repo.IsBlocked(ctx, userID, chat.Other(userID))
		if err != nil {
			return err
		}
		if blocked {
			return apperror.Forbidden("you cannot message this user")
		}

		if req.ParentID != nil {
			ok, err := repo.PrivateMessageInChat(ctx, *req.ParentID, chatID)
			if err != nil {
				return err
			}
			if !ok {
				return apperror.Invalid("parent message not found in this chat")
			}
		}

		sender, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}

		msg = &entity.PrivateMessage{
			ChatID:   chatID,
			SenderID: userID,
			ParentID: req.ParentID,
			Content:  req.Content,
		}
		if err := repo.CreatePrivateMessage(ctx, msg); err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}
		msg.Sender = sender

		outbox, err = s.dispatcher.Stage(ctx, tx, event.MessageSent{
			Actor:     event.ActorOf(sender),
			Kind:      event.PrivateKind{ChatID: chatID},
			MessageID: msg.ID,
			ParentID:  msg.ParentID,
			Content:   msg.Content,
			SentAt:    msg.CreatedAt,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return msg, nil
}

func (s *messageService) ListPrivateMessages(ctx context.Context, userID, chatID uuid.UUID, limit int) ([]entity.PrivateMessage, error) {
	if _, err := s.authority.RequireParticipant(ctx, userID, chatID); err != nil {
		return nil, err
	}
	return s.repo.ListPrivateMessages(ctx, chatID, clampLimit(limit))
}

// MarkChatRead flags the messages the user received in the chat as read
// and returns how many changed. Re-reading is a no-op.
func (s *messageService) MarkChatRead(ctx context.Context, userID, chatID uuid.UUID) (int64, error) {
	var n int64
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := s.authority.WithTx(tx).RequireParticipant(ctx, userID, chatID); err != nil {
			return err
		}

		var err error
		n, err = repo.MarkChatRead(ctx, chatID, userID)
		if err != nil || n == 0 {
			return err
		}

		reader, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		outbox, err = s.dispatcher.Stage(ctx, tx, event.ChatRead{
			Actor:  event.ActorOf(reader),
			ChatID: chatID,
			Count:  n,
		})
		if err != nil {
			return err
		}
		outbox.Touch(userID)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return n, nil
}

func (s *messageService) findGroupMessage(ctx context.Context, repo msgRepo.MessageRepository, id uuid.UUID) (*entity.GroupMessage, error) {
	msg, err := repo.FindGroupMessage(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("message not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return msg, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
