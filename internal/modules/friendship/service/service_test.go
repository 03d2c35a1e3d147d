package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/modules/event"
	friendRepo "anoa.com/studyhub/internal/modules/friendship/repository"
	memberRepo "anoa.com/studyhub/internal/modules/membership/repository"
	membership "anoa.com/studyhub/internal/modules/membership/service"
	notifRepo "anoa.com/studyhub/internal/modules/notification/repository"
	notifService "anoa.com/studyhub/internal/modules/notification/service"
	"anoa.com/studyhub/internal/testutil"
	"anoa.com/studyhub/pkg/apperror"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func newService(t *testing.T) (*gorm.DB, FriendshipService, *testutil.Recorder) {
	t.Helper()
	db := testutil.NewDB(t)
	recorder := &testutil.Recorder{}
	authority := membership.NewAuthority(memberRepo.NewMembershipRepository(db))
	store := notifService.NewNotificationStore(notifRepo.NewNotificationRepository(db), notifService.NopInvalidator())
	dispatcher := notifService.NewDispatcher(authority, store, recorder, notifService.NopInvalidator(), zerolog.Nop())
	return db, NewFriendshipService(db, friendRepo.NewFriendshipRepository(db), dispatcher), recorder
}

func TestUniquePairInBothDirections(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	_, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if !apperror.IsConflict(err) {
		t.Fatalf("duplicate = %v, want conflict", err)
	}
	_, err = svc.SendRequest(ctx, bob.ID, alice.ID)
	if !apperror.IsConflict(err) {
		t.Fatalf("reverse = %v, want conflict", err)
	}

	// The unique index holds even when the service is bypassed.
	raw := &entity.Friendship{FromUserID: bob.ID, ToUserID: alice.ID, Status: entity.FriendshipPending}
	if err := db.Create(raw).Error; err == nil {
		t.Fatal("reverse row inserted despite unique pair")
	}

	if n := testutil.Count(t, db, &entity.Friendship{}, ""); n != 1 {
		t.Fatalf("friendships = %d, want 1", n)
	}
}

func TestRequestAcceptFlow(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	sent := recorder.Named(event.NameNotification)
	if len(sent) != 1 || sent[0].Channel != channel.User(bob.ID) {
		t.Fatalf("request notification = %+v", sent)
	}
	if sent[0].Payload["type"] != string(entity.NotificationFriendRequest) {
		t.Fatalf("type = %v", sent[0].Payload["type"])
	}

	if _, err := svc.Accept(ctx, alice.ID, req.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("requester accepting = %v, want ErrNotFound", err)
	}

	accepted, err := svc.Accept(ctx, bob.ID, req.ID)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if accepted.Status != entity.FriendshipAccepted {
		t.Fatalf("status = %s", accepted.Status)
	}

	notes := recorder.Named(event.NameNotification)
	if len(notes) != 2 || notes[1].Channel != channel.User(alice.ID) {
		t.Fatalf("accept notification = %+v", notes)
	}

	if _, err := svc.Accept(ctx, bob.ID, req.ID); !apperror.IsConflict(err) {
		t.Fatalf("second accept = %v, want conflict", err)
	}
	if _, err := svc.SendRequest(ctx, bob.ID, alice.ID); !apperror.IsConflict(err) {
		t.Fatalf("request between friends = %v, want conflict", err)
	}

	friends, err := svc.ListFriends(ctx, alice.ID)
	if err != nil || len(friends) != 1 {
		t.Fatalf("friends = %v, %v", friends, err)
	}
}

func TestDeclineThenResend(t *testing.T) {
	db, svc, recorder := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.Decline(ctx, bob.ID, req.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	if len(recorder.Named(event.NameNotification)) != 1 {
		t.Fatal("decline must not notify")
	}
	if err := svc.Decline(ctx, bob.ID, req.ID); !apperror.IsConflict(err) {
		t.Fatalf("second decline = %v, want conflict", err)
	}

	again, err := svc.SendRequest(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	if again.ID != req.ID {
		t.Fatal("resend should reuse the pair row")
	}
	if again.FromUserID != bob.ID || again.ToUserID != alice.ID || again.Status != entity.FriendshipPending {
		t.Fatalf("reopened = %+v", again)
	}

	incoming, err := svc.ListIncoming(ctx, alice.ID)
	if err != nil || len(incoming) != 1 {
		t.Fatalf("incoming = %v, %v", incoming, err)
	}
}

func TestResendRestartsRequestClock(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	req, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.Decline(ctx, bob.ID, req.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}
	old := time.Now().UTC().Add(-48 * time.Hour)
	if err := db.Model(&entity.Friendship{}).Where("id = ?", req.ID).Update("created_at", old).Error; err != nil {
		t.Fatalf("age row: %v", err)
	}

	again, err := svc.SendRequest(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("resend: %v", err)
	}
	var stored entity.Friendship
	if err := db.First(&stored, "id = ?", again.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !stored.CreatedAt.After(old.Add(time.Hour)) {
		t.Fatalf("created_at = %s, want reset after %s", stored.CreatedAt, old)
	}
	if stored.Status != entity.FriendshipPending || stored.FromUserID != alice.ID {
		t.Fatalf("reopened = %+v", stored)
	}
}

func TestBlockAndRemove(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	testutil.MakeFriends(t, db, alice, bob)

	if err := svc.Block(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := svc.Block(ctx, bob.ID, alice.ID); !apperror.IsConflict(err) {
		t.Fatalf("second block = %v, want conflict", err)
	}

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("request to blocker = %v, want ErrForbidden", err)
	}
	if err := svc.Remove(ctx, alice.ID, bob.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("blocked user unblocking = %v, want ErrNotFound", err)
	}

	if err := svc.Remove(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("unblock: %v", err)
	}
	if n := testutil.Count(t, db, &entity.Friendship{}, ""); n != 0 {
		t.Fatalf("friendships = %d, want 0", n)
	}
	if err := svc.Remove(ctx, bob.ID, alice.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("remove twice = %v, want ErrNotFound", err)
	}

	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("request after unblock: %v", err)
	}
}

func TestBlockIsNotOverridden(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")

	if err := svc.Block(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := svc.Block(ctx, alice.ID, bob.ID); !apperror.IsConflict(err) {
		t.Fatalf("counter block = %v, want conflict", err)
	}

	var stored entity.Friendship
	if err := db.First(&stored).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.Status != entity.FriendshipBlocked || stored.FromUserID != bob.ID {
		t.Fatalf("block row rewritten: %+v", stored)
	}

	if err := svc.Remove(ctx, alice.ID, bob.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("blocked user removing = %v, want ErrNotFound", err)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, bob.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Fatalf("request to blocker = %v, want ErrForbidden", err)
	}
	if n := testutil.Count(t, db, &entity.Friendship{}, ""); n != 1 {
		t.Fatalf("friendships = %d, want 1", n)
	}
}

func TestSendRequestValidation(t *testing.T) {
	db, svc, _ := newService(t)
	ctx := context.Background()
	alice := testutil.CreateUser(t, db, "alice")

	if _, err := svc.SendRequest(ctx, alice.ID, alice.ID); !errors.Is(err, apperror.ErrInvalidInput) {
		t.Fatalf("self request = %v, want ErrInvalidInput", err)
	}
	ghost := testutil.CreateUser(t, db, "ghost")
	if err := db.Delete(ghost).Error; err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.SendRequest(ctx, alice.ID, ghost.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("unknown user = %v, want ErrNotFound", err)
	}
}
