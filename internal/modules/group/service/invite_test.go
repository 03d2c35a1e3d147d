package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	groupDto "anoa.com/studyhub/internal/modules/group/dto"
	"anoa.com/studyhub/internal/testutil"
	"anoa.com/studyhub/pkg/apperror"
)

func intPtr(n int) *int { return &n }

func strPtr(s string) *string { return &s }

func TestEditGroup(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	editor := testutil.CreateUser(t, db, "editor")
	group := testutil.CreateGroup(t, db, "Algorithms", owner)
	testutil.AddMember(t, db, group, editor, entity.RankEditor)

	tests := []struct {
		name    string
		user    *entity.User
		req     groupDto.EditGroupRequest
		wantErr error
	}{
		{"empty request", owner, groupDto.EditGroupRequest{}, apperror.ErrInvalidInput},
		{"editor cannot manage", editor, groupDto.EditGroupRequest{Name: strPtr("Algos")}, apperror.ErrForbidden},
		{"blank name", owner, groupDto.EditGroupRequest{Name: strPtr("   ")}, apperror.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.EditGroup(ctx, tt.user.ID, group.ID, tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if len(recorder.Calls()) != 0 {
		t.Fatal("rejected edits broadcast something")
	}

	updated, err := svc.EditGroup(ctx, owner.ID, group.ID, groupDto.EditGroupRequest{
		Name:        strPtr(" Advanced Algorithms "),
		Description: strPtr("Amortised analysis"),
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if updated.Name != "Advanced Algorithms" || updated.Description != "Amortised analysis" {
		t.Fatalf("updated = %+v", updated)
	}

	var stored entity.StudyGroup
	if err := db.First(&stored, "id = ?", group.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Name != "Advanced Algorithms" {
		t.Fatalf("stored name = %q", stored.Name)
	}

	sent := recorder.Named(event.NameGroupUpdated)
	if len(sent) != 1 || sent[0].Channel != channel.Group(group.ID) {
		t.Fatalf("group-updated = %+v", sent)
	}
	if sent[0].Payload["name"] != "Advanced Algorithms" {
		t.Fatalf("payload name = %v", sent[0].Payload["name"])
	}

	_, err = svc.EditGroup(ctx, owner.ID, group.ID, groupDto.EditGroupRequest{Name: strPtr("Advanced Algorithms")})
	if !apperror.IsConflict(err) {
		t.Fatalf("unchanged edit = %v, want conflict", err)
	}
	if len(recorder.Named(event.NameGroupUpdated)) != 1 {
		t.Fatal("unchanged edit broadcast")
	}
}

func TestInviteLifecycle(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	member := testutil.CreateUser(t, db, "member")
	dina := testutil.CreateUser(t, db, "dina")
	eko := testutil.CreateUser(t, db, "eko")
	group := testutil.CreateGroup(t, db, "Distributed Systems", owner)
	testutil.AddMember(t, db, group, member, entity.RankMember)

	if _, err := svc.CreateInvite(ctx, member.ID, group.ID, groupDto.CreateInviteRequest{}); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("member creating invite = %v, want ErrForbidden", err)
	}

	invite, err := svc.CreateInvite(ctx, owner.ID, group.ID, groupDto.CreateInviteRequest{MaxUses: intPtr(1)})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if len(invite.Code) != entity.InviteCodeLen || invite.Code != strings.ToUpper(invite.Code) {
		t.Fatalf("code = %q", invite.Code)
	}

	joined, err := svc.JoinByToken(ctx, dina.ID, invite.Token)
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if joined.ID != group.ID {
		t.Fatalf("joined %s, want %s", joined.ID, group.ID)
	}
	if n := testutil.Count(t, db, &entity.GroupMembership{}, "group_id = ? AND user_id = ?", group.ID, dina.ID); n != 1 {
		t.Fatalf("dina memberships = %d, want 1", n)
	}

	sent := recorder.Named(event.NameMemberJoined)
	if len(sent) != 1 || sent[0].Channel != channel.Group(group.ID) {
		t.Fatalf("member-joined = %+v", sent)
	}
	if sent[0].Payload["user_id"] != dina.ID.String() || sent[0].Payload["invite_id"] != invite.ID.String() {
		t.Fatalf("member-joined payload = %v", sent[0].Payload)
	}

	if _, err := svc.JoinByToken(ctx, dina.ID, invite.Token); !apperror.IsConflict(err) {
		t.Fatalf("joining twice = %v, want conflict", err)
	}
	if _, err := svc.JoinByToken(ctx, eko.ID, invite.Token); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("exhausted invite = %v, want ErrForbidden", err)
	}

	var stored entity.GroupInvite
	if err := db.First(&stored, "id = ?", invite.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.UseCount != 1 {
		t.Fatalf("use count = %d, want 1", stored.UseCount)
	}
	if len(recorder.Named(event.NameMemberJoined)) != 1 {
		t.Fatal("refused joins broadcast member-joined")
	}
}

func TestJoinByCode(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	fajar := testutil.CreateUser(t, db, "fajar")
	gita := testutil.CreateUser(t, db, "gita")
	group := testutil.CreateGroup(t, db, "Compilers", owner)

	invite, err := svc.CreateInvite(ctx, owner.ID, group.ID, groupDto.CreateInviteRequest{})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if _, err := svc.JoinByCode(ctx, fajar.ID, "  "+strings.ToLower(invite.Code)+" "); err != nil {
		t.Fatalf("join by code: %v", err)
	}
	if _, err := svc.JoinByCode(ctx, gita.ID, "NOPE1234"); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("unknown code = %v, want ErrNotFound", err)
	}
	if _, err := svc.JoinByCode(ctx, gita.ID, " "); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("blank code = %v, want ErrInvalidInput", err)
	}

	invites, err := svc.ListInvites(ctx, owner.ID, group.ID)
	if err != nil || len(invites) != 1 {
		t.Fatalf("invites = %v, %v", invites, err)
	}
	if _, err := svc.ListInvites(ctx, fajar.ID, group.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("member listing invites = %v, want ErrForbidden", err)
	}

	if err := svc.DeactivateInvite(ctx, fajar.ID, invite.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("member deactivating = %v, want ErrForbidden", err)
	}
	if err := svc.DeactivateInvite(ctx, owner.ID, invite.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if err := svc.DeactivateInvite(ctx, owner.ID, invite.ID); !apperror.IsConflict(err) {
		t.Fatalf("deactivate twice = %v, want conflict", err)
	}
	if _, err := svc.JoinByCode(ctx, gita.ID, invite.Code); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("inactive invite = %v, want ErrForbidden", err)
	}

	invites, err = svc.ListInvites(ctx, owner.ID, group.ID)
	if err != nil || len(invites) != 0 {
		t.Fatalf("active invites = %v, %v", invites, err)
	}
}

func TestExpiredInviteIsRefused(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	hana := testutil.CreateUser(t, db, "hana")
	group := testutil.CreateGroup(t, db, "Security", owner)

	invite, err := svc.CreateInvite(ctx, owner.ID, group.ID, groupDto.CreateInviteRequest{ExpiresInHours: intPtr(1)})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	past := time.Now().UTC().Add(-time.Minute)
	if err := db.Model(&entity.GroupInvite{}).Where("id = ?", invite.ID).Update("expires_at", past).Error; err != nil {
		t.Fatalf("expire: %v", err)
	}

	if _, err := svc.JoinByToken(ctx, hana.ID, invite.Token); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("expired invite = %v, want ErrForbidden", err)
	}
	if n := testutil.Count(t, db, &entity.GroupMembership{}, "user_id = ?", hana.ID); n != 0 {
		t.Fatalf("memberships = %d, want 0", n)
	}
}

func TestInviteSettlesPendingJoinRequest(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	indra := testutil.CreateUser(t, db, "indra")
	group := testutil.CreateGroup(t, db, "Databases", owner)

	req, err := svc.SubmitJoinRequest(ctx, indra.ID, group.ID, groupDto.JoinGroupRequest{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	invite, err := svc.CreateInvite(ctx, owner.ID, group.ID, groupDto.CreateInviteRequest{})
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if _, err := svc.JoinByToken(ctx, indra.ID, invite.Token); err != nil {
		t.Fatalf("join: %v", err)
	}

	var stored entity.JoinRequest
	if err := db.First(&stored, "id = ?", req.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != entity.JoinRequestApproved {
		t.Fatalf("status = %s, want approved", stored.Status)
	}
	pending, err := svc.ListJoinRequests(ctx, owner.ID, group.ID)
	if err != nil || len(pending) != 0 {
		t.Fatalf("pending = %v, %v", pending, err)
	}
}
