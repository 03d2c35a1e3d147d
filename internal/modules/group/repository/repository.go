package repository

import (
	"context"
	"time"

	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GroupRepository interface {
	WithTx(tx *gorm.DB) GroupRepository

	FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindGroup(ctx context.Context, id uuid.UUID) (*entity.StudyGroup, error)
	CreateGroup(ctx context.Context, group *entity.StudyGroup) error
	// DeleteGroup removes the group with its memberships, requests,
	// messages and the reactions on those messages.
	DeleteGroup(ctx context.Context, id uuid.UUID) error
	ListUserGroups(ctx context.Context, userID uuid.UUID) ([]entity.StudyGroup, error)
	UpdateGroup(ctx context.Context, id uuid.UUID, name, description string) error

	// AddMember reports 0 when the user already belongs to the group.
	AddMember(ctx context.Context, m *entity.GroupMembership) (int64, error)
	RemoveMember(ctx context.Context, userID, groupID uuid.UUID) (int64, error)
	SetRank(ctx context.Context, userID, groupID uuid.UUID, rank entity.Rank) (int64, error)
	ListMembers(ctx context.Context, groupID uuid.UUID) ([]entity.GroupMembership, error)

	FindJoinRequest(ctx context.Context, id uuid.UUID) (*entity.JoinRequest, error)
	// FindUserJoinRequest returns nil, nil when the user never asked.
	FindUserJoinRequest(ctx context.Context, userID, groupID uuid.UUID) (*entity.JoinRequest, error)
	CreateJoinRequest(ctx context.Context, r *entity.JoinRequest) (int64, error)
	ReopenJoinRequest(ctx context.Context, id uuid.UUID, message string) (int64, error)
	// ResolveJoinRequest moves a pending request to status and reports 0
	// when it was no longer pending.
	ResolveJoinRequest(ctx context.Context, id uuid.UUID, status entity.JoinRequestStatus, reviewerID uuid.UUID, at time.Time) (int64, error)
	ListPendingJoinRequests(ctx context.Context, groupID uuid.UUID) ([]entity.JoinRequest, error)

	CreateInvite(ctx context.Context, invite *entity.GroupInvite) error
	FindInvite(ctx context.Context, id uuid.UUID) (*entity.GroupInvite, error)
	FindInviteByToken(ctx context.Context, token uuid.UUID) (*entity.GroupInvite, error)
	FindInviteByCode(ctx context.Context, code string) (*entity.GroupInvite, error)
	ListActiveInvites(ctx context.Context, groupID uuid.UUID) ([]entity.GroupInvite, error)
	// DeactivateInvite reports 0 when the invite was already inactive.
	DeactivateInvite(ctx context.Context, id uuid.UUID) (int64, error)
	// ConsumeInvite counts one use and reports 0 when the invite was no
	// longer usable at now.
	ConsumeInvite(ctx context.Context, id uuid.UUID, now time.Time) (int64, error)
}

type groupRepository struct {
	db *gorm.DB
}

func NewGroupRepository(db *gorm.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) WithTx(tx *gorm.DB) GroupRepository {
	return &groupRepository{db: tx}
}

func selectUser(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "full_name", "avatar_url")
}

func (r *groupRepository) FindUser(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *groupRepository) FindGroup(ctx context.Context, id uuid.UUID) (*entity.StudyGroup, error) {
	var group entity.StudyGroup
	err := r.db.WithContext(ctx).
		Preload("Creator", selectUser).
		Where("id = ?", id).
		First(&group).Error
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (r *groupRepository) CreateGroup(ctx context.Context, group *entity.StudyGroup) error {
	return r.db.WithContext(ctx).Create(group).Error
}

func (r *groupRepository) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	messages := db.Model(&entity.GroupMessage{}).Select("id").Where("group_id = ?", id)
	if err := db.Where("target_kind = ? AND target_id IN (?)", entity.TargetGroupMessage, messages).
		Delete(&entity.Reaction{}).Error; err != nil {
		return err
	}
	for _, model := range []interface{}{&entity.GroupMessage{}, &entity.JoinRequest{}, &entity.GroupInvite{}, &entity.GroupMembership{}} {
		if err := db.Where("group_id = ?", id).Delete(model).Error; err != nil {
			return err
		}
	}
	return db.Where("id = ?", id).Delete(&entity.StudyGroup{}).Error
}

func (r *groupRepository) ListUserGroups(ctx context.Context, userID uuid.UUID) ([]entity.StudyGroup, error) {
	var groups []entity.StudyGroup
	err := r.db.WithContext(ctx).
		Joins("JOIN group_memberships ON group_memberships.group_id = study_groups.id").
		Where("group_memberships.user_id = ?", userID).
		Preload("Creator", selectUser).
		Order("study_groups.last_activity_at desc").
		Find(&groups).Error
	return groups, err
}

func (r *groupRepository) UpdateGroup(ctx context.Context, id uuid.UUID, name, description string) error {
	return r.db.WithContext(ctx).
		Model(&entity.StudyGroup{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"name":        name,
			"description": description,
		}).Error
}

func (r *groupRepository) AddMember(ctx context.Context, m *entity.GroupMembership) (int64, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(m)
	return res.RowsAffected, res.Error
}

func (r *groupRepository) RemoveMember(ctx context.Context, userID, groupID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Delete(&entity.GroupMembership{})
	return res.RowsAffected, res.Error
}

func (r *groupRepository) SetRank(ctx context.Context, userID, groupID uuid.UUID, rank entity.Rank) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.GroupMembership{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Update("rank", rank)
	return res.RowsAffected, res.Error
}

func (r *groupRepository) ListMembers(ctx context.Context, groupID uuid.UUID) ([]entity.GroupMembership, error) {
	var members []entity.GroupMembership
	err := r.db.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("User", selectUser).
		Order("joined_at asc").
		Find(&members).Error
	return members, err
}

func (r *groupRepository) FindJoinRequest(ctx context.Context, id uuid.UUID) (*entity.JoinRequest, error) {
	var req entity.JoinRequest
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("Group").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func (r *groupRepository) FindUserJoinRequest(ctx context.Context, userID, groupID uuid.UUID) (*entity.JoinRequest, error) {
	var reqs []entity.JoinRequest
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Limit(1).
		Find(&reqs).Error
	if err != nil || len(reqs) == 0 {
		return nil, err
	}
	return &reqs[0], nil
}

func (r *groupRepository) CreateJoinRequest(ctx context.Context, req *entity.JoinRequest) (int64, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(req)
	return res.RowsAffected, res.Error
}

// ReopenJoinRequest turns an approved request of a former member back into
// a pending one.
func (r *groupRepository) ReopenJoinRequest(ctx context.Context, id uuid.UUID, message string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.JoinRequest{}).
		Where("id = ? AND status = ?", id, entity.JoinRequestApproved).
		Updates(map[string]interface{}{
			"status":      entity.JoinRequestPending,
			"message":     message,
			"reviewer_id": nil,
			"resolved_at": nil,
			"created_at":  time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *groupRepository) ResolveJoinRequest(ctx context.Context, id uuid.UUID, status entity.JoinRequestStatus, reviewerID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.JoinRequest{}).
		Where("id = ? AND status = ?", id, entity.JoinRequestPending).
		Updates(map[string]interface{}{
			"status":      status,
			"reviewer_id": reviewerID,
			"resolved_at": at,
		})
	return res.RowsAffected, res.Error
}

func (r *groupRepository) ListPendingJoinRequests(ctx context.Context, groupID uuid.UUID) ([]entity.JoinRequest, error) {
	var reqs []entity.JoinRequest
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND status = ?", groupID, entity.JoinRequestPending).
		Preload("User", selectUser).
		Order("created_at asc").
		Find(&reqs).Error
	return reqs, err
}

func (r *groupRepository) CreateInvite(ctx context.Context, invite *entity.GroupInvite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *groupRepository) findInvite(ctx context.Context, query string, arg interface{}) (*entity.GroupInvite, error) {
	var invite entity.GroupInvite
	err := r.db.WithContext(ctx).
		Preload("Group").
		Where(query, arg).
		First(&invite).Error
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *groupRepository) FindInvite(ctx context.Context, id uuid.UUID) (*entity.GroupInvite, error) {
	return r.findInvite(ctx, "id = ?", id)
}

func (r *groupRepository) FindInviteByToken(ctx context.Context, token uuid.UUID) (*entity.GroupInvite, error) {
	return r.findInvite(ctx, "token = ?", token)
}

func (r *groupRepository) FindInviteByCode(ctx context.Context, code string) (*entity.GroupInvite, error) {
	return r.findInvite(ctx, "code = ?", code)
}

func (r *groupRepository) ListActiveInvites(ctx context.Context, groupID uuid.UUID) ([]entity.GroupInvite, error) {
	var invites []entity.GroupInvite
	err := r.db.WithContext(ctx).
		Where("group_id = ? AND is_active = ?", groupID, true).
		Preload("CreatedBy", selectUser).
		Order("created_at desc").
		Find(&invites).Error
	return invites, err
}

func (r *groupRepository) DeactivateInvite(ctx context.Context, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.GroupInvite{}).
		Where("id = ? AND is_active = ?", id, true).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

func (r *groupRepository) ConsumeInvite(ctx context.Context, id uuid.UUID, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.GroupInvite{}).
		Where("id = ? AND is_active = ?", id, true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Where("max_uses IS NULL OR use_count < max_uses").
		Update("use_count", gorm.Expr("use_count + 1"))
	return res.RowsAffected, res.Error
}
