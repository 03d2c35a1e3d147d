package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"anoa.com/studyhub/internal/entity"
	activityRepo "anoa.com/studyhub/internal/modules/activity/repository"
	"anoa.com/studyhub/internal/testutil"
	"gorm.io/gorm"
)

func create(t *testing.T, db *gorm.DB, v interface{}) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func TestFeedMergesCappedSources(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	carol := testutil.CreateUser(t, db, "carol")
	dave := testutil.CreateUser(t, db, "dave")
	erin := testutil.CreateUser(t, db, "erin")
	frank := testutil.CreateUser(t, db, "frank")

	group := testutil.CreateGroup(t, db, "Databases", alice)
	testutil.AddMember(t, db, group, bob, entity.RankMember)
	chat := testutil.CreateChat(t, db, alice, bob)

	for i := 0; i < 6; i++ {
		create(t, db, &entity.GroupMessage{
			GroupID: group.ID, SenderID: bob.ID, Content: "group note",
			CreatedAt: base.Add(-time.Duration(i) * time.Minute),
		})
		create(t, db, &entity.PrivateMessage{
			ChatID: chat.ID, SenderID: bob.ID, Content: "private note",
			CreatedAt: base.Add(-time.Duration(i)*time.Minute - 30*time.Second),
		})
	}
	// Alice's own messages never show up.
	create(t, db, &entity.GroupMessage{GroupID: group.ID, SenderID: alice.ID, Content: "mine", CreatedAt: base.Add(time.Minute)})
	create(t, db, &entity.PrivateMessage{ChatID: chat.ID, SenderID: alice.ID, Content: "mine", CreatedAt: base.Add(time.Minute)})

	create(t, db, &entity.Friendship{FromUserID: carol.ID, ToUserID: alice.ID, Status: entity.FriendshipPending, CreatedAt: base.Add(2 * time.Minute)})
	create(t, db, &entity.Friendship{FromUserID: alice.ID, ToUserID: dave.ID, Status: entity.FriendshipAccepted, UpdatedAt: base.Add(-24 * time.Hour)})
	create(t, db, &entity.Friendship{FromUserID: alice.ID, ToUserID: erin.ID, Status: entity.FriendshipAccepted, UpdatedAt: base.Add(-10 * 24 * time.Hour)})

	long := strings.Repeat("please ", 20)
	create(t, db, &entity.JoinRequest{UserID: frank.ID, GroupID: group.ID, Message: long, CreatedAt: base.Add(3 * time.Minute)})

	svc := NewActivityService(activityRepo.NewActivityRepository(db))

	items, err := svc.Feed(ctx, alice.ID, MaxFeedLimit)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}

	byType := map[string]int{}
	for _, it := range items {
		byType[it.Type]++
		if it.Actor.ID == alice.ID {
			t.Fatalf("feed contains alice's own activity: %+v", it)
		}
	}
	want := map[string]int{
		"group_message":      groupMessageCap,
		"private_message":    privateMessageCap,
		"friend_request":     1,
		"friend_accepted":    1,
		"group_join_request": 1,
	}
	for typ, n := range want {
		if byType[typ] != n {
			t.Errorf("%s items = %d, want %d", typ, byType[typ], n)
		}
	}

	for i := 1; i < len(items); i++ {
		if items[i].Timestamp.After(items[i-1].Timestamp) {
			t.Fatalf("feed not sorted newest first at %d", i)
		}
	}

	first := items[0]
	if first.Type != "group_join_request" || first.Color != "#8B5CF6" || first.Icon != "users" {
		t.Fatalf("newest item should be the join request, got %+v", first)
	}
	if first.Title != "frank Doe wants to join Databases" {
		t.Fatalf("join title = %q", first.Title)
	}
	if got := []rune(first.Preview); len(got) != joinPreviewLen+3 || !strings.HasSuffix(first.Preview, "...") {
		t.Fatalf("join preview = %q", first.Preview)
	}
}

func TestFeedDefaultLimit(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	group := testutil.CreateGroup(t, db, "Networks", alice)
	testutil.AddMember(t, db, group, bob, entity.RankMember)
	chat := testutil.CreateChat(t, db, alice, bob)

	for i := 0; i < 6; i++ {
		create(t, db, &entity.GroupMessage{GroupID: group.ID, SenderID: bob.ID, Content: "<p>hi</p>"})
		create(t, db, &entity.PrivateMessage{ChatID: chat.ID, SenderID: bob.ID, Content: "hey"})
	}

	svc := NewActivityService(activityRepo.NewActivityRepository(db))
	items, err := svc.Feed(context.Background(), alice.ID, 0)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(items) != DefaultFeedLimit {
		t.Fatalf("len = %d, want %d", len(items), DefaultFeedLimit)
	}
	for _, it := range items {
		if it.Type == "group_message" && it.Preview != "hi" {
			t.Fatalf("preview not sanitised: %q", it.Preview)
		}
	}

	empty, err := svc.Feed(context.Background(), testutil.CreateUser(t, db, "loner").ID, 0)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("want empty non-nil feed, got %v", empty)
	}
}
