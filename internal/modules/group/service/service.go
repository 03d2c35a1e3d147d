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
	membership "anoa.com/studyhub/internal/modules/membership/service"
	notifService "anoa.com/studyhub/internal/modules/notification/service"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GroupService interface {
	CreateGroup(ctx context.Context, userID uuid.UUID, req groupDto.CreateGroupRequest) (*entity.StudyGroup, error)
	EditGroup(ctx context.Context, userID, groupID uuid.UUID, req groupDto.EditGroupRequest) (*entity.StudyGroup, error)
	DeleteGroup(ctx context.Context, userID, groupID uuid.UUID) error
	ListMyGroups(ctx context.Context, userID uuid.UUID) ([]entity.StudyGroup, error)
	ListMembers(ctx context.Context, userID, groupID uuid.UUID) ([]entity.GroupMembership, error)

	SubmitJoinRequest(ctx context.Context, userID, groupID uuid.UUID, req groupDto.JoinGroupRequest) (*entity.JoinRequest, error)
	ApproveJoinRequest(ctx context.Context, userID, requestID uuid.UUID) (*entity.JoinRequest, error)
	RejectJoinRequest(ctx context.Context, userID, requestID uuid.UUID) (*entity.JoinRequest, error)
	ListJoinRequests(ctx context.Context, userID, groupID uuid.UUID) ([]entity.JoinRequest, error)

	Leave(ctx context.Context, userID, groupID uuid.UUID) error
	RemoveMember(ctx context.Context, userID, groupID, memberID uuid.UUID) error
	SetRank(ctx context.Context, userID, groupID, memberID uuid.UUID, rank entity.Rank) error

	CreateInvite(ctx context.Context, userID, groupID uuid.UUID, req groupDto.CreateInviteRequest) (*entity.GroupInvite, error)
	ListInvites(ctx context.Context, userID, groupID uuid.UUID) ([]entity.GroupInvite, error)
	DeactivateInvite(ctx context.Context, userID, inviteID uuid.UUID) error
	JoinByToken(ctx context.Context, userID, token uuid.UUID) (*entity.StudyGroup, error)
	JoinByCode(ctx context.Context, userID uuid.UUID, code string) (*entity.StudyGroup, error)
}

type groupService struct {
	db         *gorm.DB
	repo       groupRepo.GroupRepository
	authority  membership.Authority
	store      notifService.NotificationStore
	dispatcher *notifService.Dispatcher
}

func NewGroupService(db *gorm.DB, repo groupRepo.GroupRepository, authority membership.Authority, store notifService.NotificationStore, dispatcher *notifService.Dispatcher) GroupService {
	return &groupService{
		db:         db,
		repo:       repo,
		authority:  authority,
		store:      store,
		dispatcher: dispatcher,
	}
}

func (s *groupService) CreateGroup(ctx context.Context, userID uuid.UUID, req groupDto.CreateGroupRequest) (*entity.StudyGroup, error) {
	group := &entity.StudyGroup{
		Name:        req.Name,
		Description: req.Description,
		CreatorID:   userID,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		creator, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		if err := repo.CreateGroup(ctx, group); err != nil {
			return fmt.Errorf("failed to create group: %w", err)
		}
		group.Creator = creator

		_, err = repo.AddMember(ctx, &entity.GroupMembership{
			UserID:  userID,
			GroupID: group.ID,
			Rank:    entity.RankCreator,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// EditGroup renames or redescribes the group. Only managers may edit and
// members hear about it on the group channel.
func (s *groupService) EditGroup(ctx context.Context, userID, groupID uuid.UUID, req groupDto.EditGroupRequest) (*entity.StudyGroup, error) {
	if req.Name == nil && req.Description == nil {
		return nil, apperror.Invalid("nothing to update")
	}

	var group *entity.StudyGroup
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := s.requireManager(ctx, tx, userID, groupID, "only group admins can edit the group"); err != nil {
			return err
		}

		var err error
		group, err = s.findGroup(ctx, repo, groupID)
		if err != nil {
			return err
		}

		name, description := group.Name, group.Description
		if req.Name != nil {
			name = strings.TrimSpace(*req.Name)
			if len(name) < 3 {
				return apperror.Invalid("group name must be at least 3 characters")
			}
		}
		if req.Description != nil {
			description = strings.TrimSpace(*req.Description)
		}
		if name == group.Name && description == group.Description {
			return apperror.Conflict("group already up to date")
		}

		if err := repo.UpdateGroup(ctx, groupID, name, description); err != nil {
			return fmt.Errorf("failed to update group: %w", err)
		}
		group.Name, group.Description = name, description

		actor, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		outbox, err = s.dispatcher.Stage(ctx, tx, event.GroupUpdated{
			Actor:       event.ActorOf(actor),
			GroupID:     groupID,
			Name:        name,
			Description: description,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return group, nil
}

// DeleteGroup is reserved to the creator. Members hear about it before the
// memberships go; notifications pointing at the group are kept with the
// reference cleared.
func (s *groupService) DeleteGroup(ctx context.Context, userID, groupID uuid.UUID) error {
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		authority := s.authority.WithTx(tx)

		rank, err := authority.RequireMember(ctx, userID, groupID)
		if err != nil {
			return err
		}
		if rank != entity.RankCreator {
			return apperror.Forbidden("only the creator can delete this group")
		}

		group, err := repo.FindGroup(ctx, groupID)
		if err != nil {
			return err
		}
		actor, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		members, err := authority.GroupMemberIDs(ctx, groupID)
		if err != nil {
			return err
		}

		outbox, err = s.dispatcher.Stage(ctx, tx, event.GroupDeleted{
			Actor:     event.ActorOf(actor),
			GroupID:   groupID,
			GroupName: group.Name,
		})
		if err != nil {
			return err
		}
		outbox.Touch(members...)

		if err := s.store.DetachGroup(ctx, tx, groupID); err != nil {
			return err
		}
		if err := repo.DeleteGroup(ctx, groupID); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return nil
}

func (s *groupService) ListMyGroups(ctx context.Context, userID uuid.UUID) ([]entity.StudyGroup, error) {
	return s.repo.ListUserGroups(ctx, userID)
}

func (s *groupService) ListMembers(ctx context.Context, userID, groupID uuid.UUID) ([]entity.GroupMembership, error) {
	if _, err := s.authority.RequireMember(ctx, userID, groupID); err != nil {
		return nil, err
	}
	return s.repo.ListMembers(ctx, groupID)
}

// SubmitJoinRequest asks the group's admins to let the user in. A former
// member's approved request is reopened; a rejected one is final.
func (s *groupService) SubmitJoinRequest(ctx context.Context, userID, groupID uuid.UUID, req groupDto.JoinGroupRequest) (*entity.JoinRequest, error) {
	var joinReq *entity.JoinRequest
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		group, err := s.findGroup(ctx, repo, groupID)
		if err != nil {
			return err
		}
		if _, ok, err := s.authority.WithTx(tx).Rank(ctx, userID, groupID); err != nil {
			return err
		} else if ok {
			return apperror.Conflict("you are already a member of this group")
		}

		requester, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}

		existing, err := repo.FindUserJoinRequest(ctx, userID, groupID)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			joinReq = &entity.JoinRequest{UserID: userID, GroupID: groupID, Message: req.Message}
			n, err := repo.CreateJoinRequest(ctx, joinReq)
			if err != nil {
				return fmt.Errorf("failed to create join request: %w", err)
			}
			if n == 0 {
				return apperror.Conflict("join request already pending")
			}
		case existing.Status == entity.JoinRequestPending:
			return apperror.Conflict("join request already pending")
		case existing.Status == entity.JoinRequestRejected:
			return apperror.Forbidden("your request to join this group was rejected")
		default:
			n, err := repo.ReopenJoinRequest(ctx, existing.ID, req.Message)
			if err != nil {
				return err
			}
			if n == 0 {
				return apperror.Conflict("join request already pending")
			}
			joinReq = existing
			joinReq.Status = entity.JoinRequestPending
			joinReq.Message = req.Message
			joinReq.ReviewerID = nil
			joinReq.ResolvedAt = nil
		}

		outbox, err = s.dispatcher.Stage(ctx, tx, event.JoinRequestSubmitted{
			Actor:     event.ActorOf(requester),
			RequestID: joinReq.ID,
			GroupID:   groupID,
			GroupName: group.Name,
			Message:   req.Message,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return joinReq, nil
}

func (s *groupService) ApproveJoinRequest(ctx context.Context, userID, requestID uuid.UUID) (*entity.JoinRequest, error) {
	return s.resolve(ctx, userID, requestID, true)
}

func (s *groupService) RejectJoinRequest(ctx context.Context, userID, requestID uuid.UUID) (*entity.JoinRequest, error) {
	return s.resolve(ctx, userID, requestID, false)
}

// resolve settles a pending request exactly once. Concurrent reviewers race
// on the conditional update; the loser gets a benign conflict and nothing
// is announced twice.
func (s *groupService) resolve(ctx context.Context, userID, requestID uuid.UUID, approve bool) (*entity.JoinRequest, error) {
	var joinReq *entity.JoinRequest
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		authority := s.authority.WithTx(tx)

		var err error
		joinReq, err = repo.FindJoinRequest(ctx, requestID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("join request not found: %w", apperror.ErrNotFound)
			}
			return err
		}
		if joinReq.UserID == userID {
			return apperror.Forbidden("you cannot review your own join request")
		}

		rank, err := authority.RequireMember(ctx, userID, joinReq.GroupID)
		if err != nil {
			return err
		}
		if !rank.CanManage() {
			return apperror.Forbidden("only group admins can review join requests")
		}

		status := entity.JoinRequestRejected
		if approve {
			status = entity.JoinRequestApproved
		}
		now := time.Now().UTC()
		n, err := repo.ResolveJoinRequest(ctx, joinReq.ID, status, userID, now)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperror.Conflict("join request already resolved")
		}
		joinReq.Status = status
		joinReq.ReviewerID = &userID
		joinReq.ResolvedAt = &now

		if approve {
			if _, err := repo.AddMember(ctx, &entity.GroupMembership{
				UserID:  joinReq.UserID,
				GroupID: joinReq.GroupID,
				Rank:    entity.RankMember,
			}); err != nil {
				return fmt.Errorf("failed to add member: %w", err)
			}
		}

		reviewer, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		admins, err := authority.GroupAdminIDs(ctx, joinReq.GroupID)
		if err != nil {
			return err
		}

		outbox, err = s.dispatcher.Stage(ctx, tx, event.JoinRequestResolved{
			Actor:     event.ActorOf(reviewer),
			RequestID: joinReq.ID,
			GroupID:   joinReq.GroupID,
			GroupName: joinReq.Group.Name,
			Requester: event.ActorOf(joinReq.User),
			Approved:  approve,
		})
		if err != nil {
			return err
		}
		outbox.Touch(admins...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return joinReq, nil
}

func (s *groupService) ListJoinRequests(ctx context.Context, userID, groupID uuid.UUID) ([]entity.JoinRequest, error) {
	rank, err := s.authority.RequireMember(ctx, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !rank.CanManage() {
		return nil, apperror.Forbidden("only group admins can review join requests")
	}
	return s.repo.ListPendingJoinRequests(ctx, groupID)
}

func (s *groupService) Leave(ctx context.Context, userID, groupID uuid.UUID) error {
	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rank, err := s.authority.WithTx(tx).RequireMember(ctx, userID, groupID)
		if err != nil {
			return err
		}
		if rank == entity.RankCreator {
			return apperror.Forbidden("the creator cannot leave the group")
		}

		if _, err := repo.RemoveMember(ctx, userID, groupID); err != nil {
			return err
		}

		actor, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		outbox, err = s.dispatcher.Stage(ctx, tx, event.MemberLeft{
			Actor:   event.ActorOf(actor),
			GroupID: groupID,
		})
		if err != nil {
			return err
		}
		outbox.Touch(userID)
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return nil
}

// RemoveMember lets managers remove members. Admins can only be removed by
// the creator, and the creator by nobody.
func (s *groupService) RemoveMember(ctx context.Context, userID, groupID, memberID uuid.UUID) error {
	if userID == memberID {
		return apperror.Invalid("use leave to remove yourself")
	}

	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		group, member, err := s.manage(ctx, tx, userID, groupID, memberID)
		if err != nil {
			return err
		}

		if _, err := repo.RemoveMember(ctx, memberID, groupID); err != nil {
			return err
		}

		actor, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		outbox, err = s.dispatcher.Stage(ctx, tx, event.MemberRemoved{
			Actor:     event.ActorOf(actor),
			GroupID:   groupID,
			GroupName: group.Name,
			Member:    event.ActorOf(member),
		})
		return err
	})
	if err != nil {
		return err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return nil
}

// SetRank changes a member's rank below creator. Granting or revoking admin
// is reserved to the creator.
func (s *groupService) SetRank(ctx context.Context, userID, groupID, memberID uuid.UUID, rank entity.Rank) error {
	if !rank.Valid() || rank == entity.RankCreator {
		return apperror.Invalid("rank must be one of: member, editor, admin")
	}
	if userID == memberID {
		return apperror.Forbidden("you cannot change your own rank")
	}

	var outbox *notifService.Outbox

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		group, member, err := s.manage(ctx, tx, userID, groupID, memberID)
		if err != nil {
			return err
		}

		actorRank, _, err := s.authority.WithTx(tx).Rank(ctx, userID, groupID)
		if err != nil {
			return err
		}
		if rank == entity.RankAdmin && actorRank != entity.RankCreator {
			return apperror.Forbidden("only the creator can appoint admins")
		}

		current, _, err := s.authority.WithTx(tx).Rank(ctx, memberID, groupID)
		if err != nil {
			return err
		}
		if current == rank {
			return apperror.Conflict("member already has this rank")
		}

		if _, err := repo.SetRank(ctx, memberID, groupID, rank); err != nil {
			return err
		}

		actor, err := repo.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		outbox, err = s.dispatcher.Stage(ctx, tx, event.RankChanged{
			Actor:     event.ActorOf(actor),
			GroupID:   groupID,
			GroupName: group.Name,
			Member:    event.ActorOf(member),
			Rank:      rank,
		})
		if err != nil {
			return err
		}
		// Join request counts follow the admin rank.
		outbox.Touch(memberID)
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatcher.Deliver(ctx, outbox)
	return nil
}

func (s *groupService) requireManager(ctx context.Context, tx *gorm.DB, userID, groupID uuid.UUID, denied string) error {
	rank, err := s.authority.WithTx(tx).RequireMember(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if !rank.CanManage() {
		return apperror.Forbidden(denied)
	}
	return nil
}

// manage checks that userID may act on memberID's membership in the group
// and loads both.
func (s *groupService) manage(ctx context.Context, tx *gorm.DB, userID, groupID, memberID uuid.UUID) (*entity.StudyGroup, *entity.User, error) {
	repo := s.repo.WithTx(tx)
	authority := s.authority.WithTx(tx)

	actorRank, err := authority.RequireMember(ctx, userID, groupID)
	if err != nil {
		return nil, nil, err
	}
	if !actorRank.CanManage() {
		return nil, nil, apperror.Forbidden("only group admins can manage members")
	}

	memberRank, ok, err := authority.Rank(ctx, memberID, groupID)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("member not found: %w", apperror.ErrNotFound)
	}
	if memberRank == entity.RankCreator {
		return nil, nil, apperror.Forbidden("the creator's membership cannot be changed")
	}
	if memberRank == entity.RankAdmin && actorRank != entity.RankCreator {
		return nil, nil, apperror.Forbidden("only the creator can manage admins")
	}

	group, err := s.findGroup(ctx, repo, groupID)
	if err != nil {
		return nil, nil, err
	}
	member, err := repo.FindUser(ctx, memberID)
	if err != nil {
		return nil, nil, err
	}
	return group, member, nil
}

func (s *groupService) findGroup(ctx context.Context, repo groupRepo.GroupRepository, groupID uuid.UUID) (*entity.StudyGroup, error) {
	group, err := repo.FindGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("group not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return group, nil
}
