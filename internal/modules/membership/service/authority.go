package service

import (
	"context"
	"fmt"

	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	memberRepo "anoa.com/studyhub/internal/modules/membership/repository"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Authority answers who may read or write a channel and who belongs to a
// group or chat. It has no side effects.
type Authority interface {
	WithTx(tx *gorm.DB) Authority

	CanRead(ctx context.Context, userID uuid.UUID, ch channel.Channel) (bool, error)
	CanWrite(ctx context.Context, userID uuid.UUID, ch channel.Channel) (bool, error)
	// Rank reports ok=false when the user is not a member.
	Rank(ctx context.Context, userID, groupID uuid.UUID) (rank entity.Rank, ok bool, err error)
	CanManage(ctx context.Context, userID, groupID uuid.UUID) (bool, error)
	CanEdit(ctx context.Context, userID, groupID uuid.UUID) (bool, error)

	GroupMemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	GroupAdminIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error)
	ChatParticipants(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error)

	// RequireMember fails with ErrNotFound for a missing group and
	// ErrForbidden for a non-member.
	RequireMember(ctx context.Context, userID, groupID uuid.UUID) (entity.Rank, error)
	// RequireParticipant reports a missing chat and a foreign chat the same
	// way (ErrNotFound) so chat ids cannot be probed.
	RequireParticipant(ctx context.Context, userID, chatID uuid.UUID) (*entity.PrivateChat, error)
}

type authority struct {
	repo memberRepo.MembershipRepository
}

func NewAuthority(repo memberRepo.MembershipRepository) Authority {
	return &authority{repo: repo}
}

func (a *authority) WithTx(tx *gorm.DB) Authority {
	return &authority{repo: a.repo.WithTx(tx)}
}

func (a *authority) CanRead(ctx context.Context, userID uuid.UUID, ch channel.Channel) (bool, error) {
	switch ch.Kind {
	case channel.KindGroup:
		_, ok, err := a.Rank(ctx, userID, ch.ID)
		return ok, err
	case channel.KindPrivateChat:
		return a.isParticipant(ctx, userID, ch.ID)
	case channel.KindUser:
		return ch.ID == userID, nil
	}
	return false, nil
}

func (a *authority) CanWrite(ctx context.Context, userID uuid.UUID, ch channel.Channel) (bool, error) {
	switch ch.Kind {
	case channel.KindGroup:
		_, ok, err := a.Rank(ctx, userID, ch.ID)
		return ok, err
	case channel.KindPrivateChat:
		return a.isParticipant(ctx, userID, ch.ID)
	}
	// Personal channels are written by the system only.
	return false, nil
}

func (a *authority) Rank(ctx context.Context, userID, groupID uuid.UUID) (entity.Rank, bool, error) {
	m, err := a.repo.FindMembership(ctx, userID, groupID)
	if err != nil {
		return "", false, err
	}
	if m == nil {
		return "", false, nil
	}
	return m.Rank, true, nil
}

func (a *authority) CanManage(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	rank, ok, err := a.Rank(ctx, userID, groupID)
	if err != nil || !ok {
		return false, err
	}
	return rank.CanManage(), nil
}

func (a *authority) CanEdit(ctx context.Context, userID, groupID uuid.UUID) (bool, error) {
	rank, ok, err := a.Rank(ctx, userID, groupID)
	if err != nil || !ok {
		return false, err
	}
	return rank.CanEdit(), nil
}

func (a *authority) GroupMemberIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return a.repo.MemberIDs(ctx, groupID)
}

func (a *authority) GroupAdminIDs(ctx context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return a.repo.MemberIDsWithRank(ctx, groupID, entity.RankAdmin, entity.RankCreator)
}

func (a *authority) ChatParticipants(ctx context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	chat, err := a.repo.FindChat(ctx, chatID)
	if err != nil {
		if memberRepo.IsNotFound(err) {
			return nil, fmt.Errorf("chat not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return []uuid.UUID{chat.ParticipantLow, chat.ParticipantHigh}, nil
}

func (a *authority) RequireMember(ctx context.Context, userID, groupID uuid.UUID) (entity.Rank, error) {
	rank, ok, err := a.Rank(ctx, userID, groupID)
	if err != nil {
		return "", err
	}
	if ok {
		return rank, nil
	}

	exists, err := a.repo.GroupExists(ctx, groupID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("group not found: %w", apperror.ErrNotFound)
	}
	return "", fmt.Errorf("not a member of this group: %w", apperror.ErrForbidden)
}

func (a *authority) RequireParticipant(ctx context.Context, userID, chatID uuid.UUID) (*entity.PrivateChat, error) {
	chat, err := a.repo.FindChat(ctx, chatID)
	if err != nil {
		if memberRepo.IsNotFound(err) {
			return nil, fmt.Errorf("chat not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, fmt.Errorf("chat not found: %w", apperror.ErrNotFound)
	}
	return chat, nil
}

func (a *authority) isParticipant(ctx context.Context, userID, chatID uuid.UUID) (bool, error) {
	chat, err := a.repo.FindChat(ctx, chatID)
	if err != nil {
		if memberRepo.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return chat.HasParticipant(userID), nil
}
