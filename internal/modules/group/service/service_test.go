package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	groupDto "anoa.com/studyhub/internal/modules/group/dto"
	groupRepo "anoa.com/studyhub/internal/modules/group/repository"
	memberRepo "anoa.com/studyhub/internal/modules/membership/repository"
	membership "anoa.com/studyhub/internal/modules/membership/service"
	notifRepo "anoa.com/studyhub/internal/modules/notification/repository"
	notifService "anoa.com/studyhub/internal/modules/notification/service"
	"anoa.com/studyhub/internal/testutil"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*gorm.DB, GroupService, *testutil.Recorder) {
	t.Helper()
	db := testutil.NewDB(t)
	recorder := &testutil.Recorder{}
	authority := membership.NewAuthority(memberRepo.NewMembershipRepository(db))
	store := notifService.NewNotificationStore(notifRepo.NewNotificationRepository(db), notifService.NopInvalidator())
	dispatcher := notifService.NewDispatcher(authority, store, recorder, notifService.NopInvalidator(), zerolog.Nop())
	return db, NewGroupService(db, groupRepo.NewGroupRepository(db), authority, store, dispatcher), recorder
}

func notificationsFor(t *testing.T, db *gorm.DB, user *entity.User, kind entity.NotificationType) int64 {
	t.Helper()
	return testutil.Count(t, db, &entity.Notification{}, "recipient_id = ? AND type = ?", user.ID, kind)
}

func TestJoinRequestScenario(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	a := testutil.CreateUser(t, db, "ana")
	b := testutil.CreateUser(t, db, "ben")
	c := testutil.CreateUser(t, db, "cleo")

	group, err := svc.CreateGroup(ctx, a.ID, groupDto.CreateGroupRequest{Name: "Operating Systems"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	testutil.AddMember(t, db, group, b, entity.RankMember)

	req, err := svc.SubmitJoinRequest(ctx, c.ID, group.ID, groupDto.JoinGroupRequest{Message: "<b>please</b> let me in"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if n := notificationsFor(t, db, a, entity.NotificationGroupJoinRequest); n != 1 {
		t.Fatalf("admin join request notifications = %d, want 1", n)
	}
	if n := notificationsFor(t, db, b, entity.NotificationGroupJoinRequest); n != 0 {
		t.Fatalf("member join request notifications = %d, want 0", n)
	}
	var note entity.Notification
	if err := db.Where("recipient_id = ?", a.ID).First(&note).Error; err != nil {
		t.Fatalf("load notification: %v", err)
	}
	if note.Message != "cleo Doe wants to join Operating Systems: please let me in" {
		t.Fatalf("message = %q", note.Message)
	}

	if _, err := svc.ApproveJoinRequest(ctx, b.ID, req.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("member approving = %v, want ErrForbidden", err)
	}

	recorder.Reset()
	approved, err := svc.ApproveJoinRequest(ctx, a.ID, req.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != entity.JoinRequestApproved || approved.ResolvedAt == nil {
		t.Fatalf("approved = %+v", approved)
	}

	if n := notificationsFor(t, db, c, entity.NotificationGroupJoinApproved); n != 1 {
		t.Fatalf("requester approvals = %d, want 1", n)
	}
	joined := recorder.Named(event.NameMemberJoined)
	if len(joined) != 1 || joined[0].Channel != channel.Group(group.ID) {
		t.Fatalf("member-joined = %+v", joined)
	}
	if joined[0].Payload["user_id"] != c.ID.String() {
		t.Fatalf("member-joined user = %v", joined[0].Payload["user_id"])
	}
	personal := recorder.Named(event.NameNotification)
	if len(personal) != 1 || personal[0].Channel != channel.User(c.ID) {
		t.Fatalf("approval notification = %+v", personal)
	}
	if n := testutil.Count(t, db, &entity.GroupMembership{}, "user_id = ? AND group_id = ?", c.ID, group.ID); n != 1 {
		t.Fatalf("memberships = %d, want 1", n)
	}

	if _, err := svc.RejectJoinRequest(ctx, a.ID, req.ID); !apperror.IsConflict(err) {
		t.Fatalf("reject after approve = %v, want conflict", err)
	}
}

func TestConcurrentApprovalIsExactlyOnce(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	admin := testutil.CreateUser(t, db, "admin")
	member := testutil.CreateUser(t, db, "member")
	applicant := testutil.CreateUser(t, db, "applicant")

	group := testutil.CreateGroup(t, db, "Distributed Systems", owner)
	testutil.AddMember(t, db, group, admin, entity.RankAdmin)
	testutil.AddMember(t, db, group, member, entity.RankMember)

	req, err := svc.SubmitJoinRequest(ctx, applicant.ID, group.ID, groupDto.JoinGroupRequest{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	recorder.Reset()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, reviewer := range []*entity.User{owner, admin} {
		wg.Add(1)
		go func(i int, reviewer *entity.User) {
			defer wg.Done()
			_, errs[i] = svc.ApproveJoinRequest(ctx, reviewer.ID, req.ID)
		}(i, reviewer)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case apperror.IsConflict(err):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins = %d, conflicts = %d; want 1 and 1", wins, conflicts)
	}

	if n := testutil.Count(t, db, &entity.GroupMembership{}, "user_id = ? AND group_id = ?", applicant.ID, group.ID); n != 1 {
		t.Fatalf("memberships = %d, want 1", n)
	}
	if n := len(recorder.Named(event.NameMemberJoined)); n > 1 {
		t.Fatalf("member-joined broadcasts = %d, want at most 1", n)
	}
	if n := notificationsFor(t, db, applicant, entity.NotificationGroupJoinApproved); n != 1 {
		t.Fatalf("approval notifications = %d, want 1", n)
	}
}

func TestJoinRequestStates(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	applicant := testutil.CreateUser(t, db, "applicant")
	group := testutil.CreateGroup(t, db, "Databases", owner)

	if _, err := svc.SubmitJoinRequest(ctx, owner.ID, group.ID, groupDto.JoinGroupRequest{}); !apperror.IsConflict(err) {
		t.Fatalf("member requesting = %v, want conflict", err)
	}

	req, err := svc.SubmitJoinRequest(ctx, applicant.ID, group.ID, groupDto.JoinGroupRequest{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := svc.SubmitJoinRequest(ctx, applicant.ID, group.ID, groupDto.JoinGroupRequest{}); !apperror.IsConflict(err) {
		t.Fatalf("duplicate = %v, want conflict", err)
	}

	if _, err := svc.ApproveJoinRequest(ctx, owner.ID, req.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := svc.Leave(ctx, applicant.ID, group.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	// A former member asks again through the same row.
	again, err := svc.SubmitJoinRequest(ctx, applicant.ID, group.ID, groupDto.JoinGroupRequest{Message: "back"})
	if err != nil {
		t.Fatalf("resubmit after leaving: %v", err)
	}
	if again.ID != req.ID || again.Status != entity.JoinRequestPending {
		t.Fatalf("reopened = %+v", again)
	}

	if _, err := svc.RejectJoinRequest(ctx, owner.ID, req.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if n := notificationsFor(t, db, applicant, entity.NotificationGroupJoinRejected); n != 1 {
		t.Fatalf("rejections = %d, want 1", n)
	}
	if _, err := svc.SubmitJoinRequest(ctx, applicant.ID, group.ID, groupDto.JoinGroupRequest{}); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("resubmit after rejection = %v, want ErrForbidden", err)
	}
}

func TestMembershipManagement(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	admin := testutil.CreateUser(t, db, "admin")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	group := testutil.CreateGroup(t, db, "Graphics", owner)
	testutil.AddMember(t, db, group, admin, entity.RankAdmin)
	testutil.AddMember(t, db, group, bob, entity.RankMember)
	testutil.AddMember(t, db, group, carol, entity.RankMember)

	if err := svc.Leave(ctx, owner.ID, group.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("creator leaving = %v, want ErrForbidden", err)
	}
	if err := svc.RemoveMember(ctx, bob.ID, group.ID, carol.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("member removing = %v, want ErrForbidden", err)
	}
	if err := svc.RemoveMember(ctx, admin.ID, group.ID, owner.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("removing creator = %v, want ErrForbidden", err)
	}
	if err := svc.SetRank(ctx, admin.ID, group.ID, bob.ID, entity.RankAdmin); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("admin appointing admin = %v, want ErrForbidden", err)
	}

	if err := svc.SetRank(ctx, admin.ID, group.ID, bob.ID, entity.RankEditor); err != nil {
		t.Fatalf("set rank: %v", err)
	}
	if err := svc.SetRank(ctx, admin.ID, group.ID, bob.ID, entity.RankEditor); !apperror.IsConflict(err) {
		t.Fatalf("same rank = %v, want conflict", err)
	}
	if n := notificationsFor(t, db, bob, entity.NotificationRankChanged); n != 1 {
		t.Fatalf("rank notifications = %d, want 1", n)
	}
	if len(recorder.Named(event.NameMemberUpdated)) != 1 {
		t.Fatal("member-updated not broadcast")
	}

	if err := svc.RemoveMember(ctx, admin.ID, group.ID, carol.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if n := notificationsFor(t, db, carol, entity.NotificationMemberRemoved); n != 1 {
		t.Fatalf("removal notifications = %d, want 1", n)
	}
	if err := svc.RemoveMember(ctx, admin.ID, group.ID, carol.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("remove twice = %v, want ErrNotFound", err)
	}

	if err := svc.Leave(ctx, bob.ID, group.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	left := recorder.Named(event.NameMemberLeft)
	if len(left) != 1 || left[0].Payload["user_id"] != bob.ID.String() {
		t.Fatalf("member-left = %+v", left)
	}

	members, err := svc.ListMembers(ctx, owner.ID, group.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
}

func TestDeleteGroup(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	owner := testutil.CreateUser(t, db, "owner")
	admin := testutil.CreateUser(t, db, "admin")
	applicant := testutil.CreateUser(t, db, "applicant")
	group := testutil.CreateGroup(t, db, "Robotics", owner)
	testutil.AddMember(t, db, group, admin, entity.RankAdmin)

	if _, err := svc.SubmitJoinRequest(ctx, applicant.ID, group.ID, groupDto.JoinGroupRequest{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	msg := &entity.GroupMessage{GroupID: group.ID, SenderID: admin.ID, Content: "hello"}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("message: %v", err)
	}
	if err := db.Create(entity.NewReaction(owner.ID, entity.GroupMessageRef{ID: msg.ID}, "👍")).Error; err != nil {
		t.Fatalf("reaction: %v", err)
	}

	if _, err := svc.CreateInvite(ctx, admin.ID, group.ID, groupDto.CreateInviteRequest{}); err != nil {
		t.Fatalf("invite: %v", err)
	}

	if err := svc.DeleteGroup(ctx, admin.ID, group.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("admin deleting = %v, want ErrForbidden", err)
	}
	if err := svc.DeleteGroup(ctx, owner.ID, group.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	deleted := recorder.Named(event.NameGroupDeleted)
	if len(deleted) != 1 || deleted[0].Payload["group_name"] != "Robotics" {
		t.Fatalf("group-deleted = %+v", deleted)
	}

	for name, model := range map[string]interface{}{
		"groups":        &entity.StudyGroup{},
		"memberships":   &entity.GroupMembership{},
		"join requests": &entity.JoinRequest{},
		"invites":       &entity.GroupInvite{},
		"messages":      &entity.GroupMessage{},
		"reactions":     &entity.Reaction{},
	} {
		if n := testutil.Count(t, db, model, ""); n != 0 {
			t.Fatalf("%s left = %d", name, n)
		}
	}

	// The admins' join request notifications survive without the group.
	var notes []entity.Notification
	if err := db.Where("type = ?", entity.NotificationGroupJoinRequest).Find(&notes).Error; err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 2 {
		t.Fatalf("notifications = %d, want 2", len(notes))
	}
	for _, n := range notes {
		if n.GroupID != nil {
			t.Fatalf("notification still references group %s", n.GroupID)
		}
	}

	if err := svc.DeleteGroup(ctx, owner.ID, group.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("delete twice = %v, want ErrNotFound", err)
	}
}
