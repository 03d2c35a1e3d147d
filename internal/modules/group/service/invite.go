package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	groupDto "anoa.com/studyhub/internal/modules/group/dto"
	groupRepo "anoa.com/studyhub/internal/modules/group/repository"
	notifService "anoa.com/studyhub/internal/modules/notification/service"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const inviteDenied = "only group admins can manage invites"

func (s *groupService) CreateInvite(ctx context.Context, userID, groupID uuid.UUID, req groupDto.CreateInviteRequest) (*entity.GroupInvite, error) {
	invite := &entity.GroupInvite{
		GroupID:     groupID,
		CreatedByID: userID,
		IsActive:    true,
		MaxUses:     req.MaxUses,
	}
	if req.ExpiresInHours != nil {
		at := time.Now().UTC().Add(time.Duration(*req.ExpiresInHours) * time.Hour)
		invite.ExpiresAt = &at
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.requireManager(ctx, tx, userID, groupID, inviteDenied); err != nil {
			return err
		}
		if _, err := s.findGroup(ctx, repo, groupID); err != nil {
			return err
		}
		if err := repo.CreateInvite(ctx, invite); err != nil {
			return fmt.Errorf("failed to create invite: %w", err)
		}
		creator, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		invite.CreatedBy = creator
		return nil
	})
	if err != nil {
		return nil, err
	}
	return invite, nil
}

func (s *groupService) ListInvites(ctx context.Context, userID, groupID uuid.UUID) ([]entity.GroupInvite, error) {
	if err := s.requireManager(ctx, s.db, userID, groupID, inviteDenied); err != nil {
		return nil, err
	}
	return s.repo.ListActiveInvites(ctx, groupID)
}

func (s *groupService) DeactivateInvite(ctx context.Context, userID, inviteID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invite, err := repo.FindInvite(ctx, inviteID)
		if err != nil {
			return inviteLookupError(err)
		}
		if err := s.requireManager(ctx, tx, userID, invite.GroupID, inviteDenied); err != nil {
			return err
		}

		n, err := repo.DeactivateInvite(ctx, inviteID)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.Conflict("invite already deactivated")
		}
		return nil
	})
}

func (s *groupService) JoinByToken(ctx context.Context, userID, token uuid.UUID) (*entity.StudyGroup, error) {
	return s.joinViaInvite(ctx, userID, func(repo groupRepo.GroupRepository) (*entity.GroupInvite, error) {
		return repo.FindInviteByToken(ctx, token)
	})
}

// JoinByCode accepts codes in any case and with surrounding spaces.
func (s *groupService) JoinByCode(ctx context.Context, userID uuid.UUID, code string) (*entity.StudyGroup, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, apperror.Invalid("invite code is required")
	}
	return s.joinViaInvite(ctx, userID, func(repo groupRepo.GroupRepository) (*entity.GroupInvite, error) {
		return repo.FindInviteByCode(ctx, code)
	})
}

// joinViaInvite admits the user without review. The use is counted by a
// conditional update so concurrent joins never exceed MaxUses. A pending
// join request of the user is settled as approved on the invite creator's
// behalf.
func (s *groupService) joinViaInvite(ctx context.Context, userID uuid.UUID, find func(groupRepo.GroupRepository) (*entity.GroupInvite, error)) (*entity.StudyGroup, error) {
	var group *entity.StudyGroup
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		authority := s.authority.WithTx(tx)

		invite, err := find(repo)
		if err != nil {
			return inviteLookupError(err)
		}
		now := time.Now().UTC()
		if !invite.Usable(now) {
			return apperror.Forbidden("this invite is no longer valid")
		}
		if _, ok, err := authority.Rank(ctx, userID, invite.GroupID); err != nil {
			return err
		} else if ok {
			return apperror.Conflict("you are already a member of this group")
		}

		n, err := repo.ConsumeInvite(ctx, invite.ID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.Forbidden("this invite is no longer valid")
		}

		added, err := repo.AddMember(ctx, &entity.GroupMembership{
			UserID:  userID,
			GroupID: invite.GroupID,
			Rank:    entity.RankMember,
		})
		if err != nil {
			return fmt.Errorf("failed to add member: %w", err)
		}
		if added == 0 {
			return apperror.Conflict("you are already a member of this group")
		}

		group = invite.Group
		joiner, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}

		var touched []uuid.UUID
		pending, err := repo.FindUserJoinRequest(ctx, userID, invite.GroupID)
		if err != nil {
			return err
		}
		if pending != nil && pending.Status == entity.JoinRequestPending {
			if _, err := repo.ResolveJoinRequest(ctx, pending.ID, entity.JoinRequestApproved, invite.CreatedByID, now); err != nil {
				return err
			}
			if touched, err = authority.GroupAdminIDs(ctx, invite.GroupID); err != nil {
				return err
			}
		}

		outbox, err = s.dispatcher.Stage(ctx, tx, event.MemberJoined{
			Actor:     event.ActorOf(joiner),
			GroupID:   invite.GroupID,
			GroupName: group.Name,
			InviteID:  invite.ID,
		})
		if err != nil {
			return err
		}
		outbox.Touch(append(touched, userID)...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return group, nil
}

func inviteLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("invite not found: %w", apperror.ErrNotFound)
	}
	return err
}
