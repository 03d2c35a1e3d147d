package service

import (
	"context"
	"testing"
	"time"

	"anoa.com/studyhub/internal/entity"
	unreadRepo "anoa.com/studyhub/internal/modules/unread/repository"
	"anoa.com/studyhub/internal/testutil"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func seedCounts(t *testing.T, db *gorm.DB) (alice, bob *entity.User) {
	t.Helper()
	alice = testutil.CreateUser(t, db, "alice")
	bob = testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	dave := testutil.CreateUser(t, db, "dave")

	// Two unread notifications and one read.
	for i, read := range []bool{false, false, true} {
		n := &entity.Notification{
			RecipientID: alice.ID,
			Type:        entity.NotificationFriendAccepted,
			Title:       "t",
			IsRead:      read,
		}
		if err := db.Create(n).Error; err != nil {
			t.Fatalf("notification %d: %v", i, err)
		}
	}

	// Bob sent alice two unread messages and one read; alice's own message
	// never counts.
	chat := testutil.CreateChat(t, db, alice, bob)
	msgs := []entity.PrivateMessage{
		{ChatID: chat.ID, SenderID: bob.ID, Content: "1"},
		{ChatID: chat.ID, SenderID: bob.ID, Content: "2"},
		{ChatID: chat.ID, SenderID: bob.ID, Content: "3", IsRead: true},
		{ChatID: chat.ID, SenderID: alice.ID, Content: "mine"},
	}
	if err := db.Create(&msgs).Error; err != nil {
		t.Fatalf("messages: %v", err)
	}

	// One pending friend request to alice, one sent by alice.
	reqs := []entity.Friendship{
		{FromUserID: carol.ID, ToUserID: alice.ID, Status: entity.FriendshipPending},
		{FromUserID: alice.ID, ToUserID: dave.ID, Status: entity.FriendshipPending},
	}
	if err := db.Create(&reqs).Error; err != nil {
		t.Fatalf("friendships: %v", err)
	}

	// Alice administers two groups; carol has one pending request in each
	// and dave one approved request.
	g1 := testutil.CreateGroup(t, db, "G1", alice)
	g2 := testutil.CreateGroup(t, db, "G2", bob)
	testutil.AddMember(t, db, g2, alice, entity.RankAdmin)
	joins := []entity.JoinRequest{
		{UserID: carol.ID, GroupID: g1.ID, Status: entity.JoinRequestPending},
		{UserID: carol.ID, GroupID: g2.ID, Status: entity.JoinRequestPending},
		{UserID: dave.ID, GroupID: g1.ID, Status: entity.JoinRequestApproved},
	}
	if err := db.Create(&joins).Error; err != nil {
		t.Fatalf("join requests: %v", err)
	}
	return alice, bob
}

func TestCountsExcludeJoinRequestsFromTotal(t *testing.T) {
	db := testutil.NewDB(t)
	alice, bob := seedCounts(t, db)

	svc := NewUnreadService(unreadRepo.NewUnreadRepository(db), NewNopCountCache(), zerolog.Nop())

	counts, err := svc.Counts(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts.Notifications != 2 || counts.Messages != 2 || counts.FriendRequests != 1 || counts.JoinRequests != 2 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	if counts.Total != 5 {
		t.Fatalf("total = %d, want 5 (join requests excluded)", counts.Total)
	}

	bobCounts, err := svc.Counts(context.Background(), bob.ID)
	if err != nil {
		t.Fatalf("Counts bob: %v", err)
	}
	if bobCounts.Messages != 1 || bobCounts.JoinRequests != 1 {
		t.Fatalf("unexpected bob counts %+v", bobCounts)
	}
}

func TestRedisCacheInvalidation(t *testing.T) {
	db := testutil.NewDB(t)
	alice, _ := seedCounts(t, db)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	svc := NewUnreadService(unreadRepo.NewUnreadRepository(db), NewRedisCountCache(client, time.Minute), zerolog.Nop())

	first, err := svc.Counts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if !mr.Exists("unread_counts:" + alice.ID.String()) {
		t.Fatal("counts were not cached")
	}

	if err := db.Model(&entity.Notification{}).Where("recipient_id = ?", alice.ID).Update("is_read", true).Error; err != nil {
		t.Fatalf("update: %v", err)
	}

	cached, _ := svc.Counts(ctx, alice.ID)
	if cached.Notifications != first.Notifications {
		t.Fatal("expected cached value before invalidation")
	}

	svc.Invalidate(ctx, alice.ID)

	fresh, err := svc.Counts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if fresh.Notifications != 0 || fresh.Total != first.Total-first.Notifications {
		t.Fatalf("stale counts after invalidation: %+v", fresh)
	}
}

func TestCacheFailureFallsBackToDatabase(t *testing.T) {
	db := testutil.NewDB(t)
	alice, _ := seedCounts(t, db)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	svc := NewUnreadService(unreadRepo.NewUnreadRepository(db), NewRedisCountCache(client, time.Minute), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	counts, err := svc.Counts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("Counts should not fail when redis is down: %v", err)
	}
	if counts.Total != 5 {
		t.Fatalf("total = %d, want 5", counts.Total)
	}
	svc.Invalidate(ctx, alice.ID)
}
