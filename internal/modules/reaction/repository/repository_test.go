package repository

import (
	"context"
	"testing"

	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/internal/testutil"
)

func TestAddIsIdempotentPerEmoji(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	repo := NewReactionRepository(db)

	alice := testutil.CreateUser(t, db, "alice")
	group := testutil.CreateGroup(t, db, "Networks", alice)
	msg := &entity.GroupMessage{GroupID: group.ID, SenderID: alice.ID, Content: "tcp handshake"}
	if err := db.Create(msg).Error; err != nil {
		t.Fatalf("message: %v", err)
	}
	target := entity.GroupMessageRef{ID: msg.ID}

	n, err := repo.Add(ctx, entity.NewReaction(alice.ID, target, "🔥"))
	if err != nil || n != 1 {
		t.Fatalf("first add = %d, %v; want 1, nil", n, err)
	}
	n, err = repo.Add(ctx, entity.NewReaction(alice.ID, target, "🔥"))
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if n != 0 {
		t.Fatalf("second add inserted %d rows, want 0", n)
	}
	if c := testutil.Count(t, db, &entity.Reaction{}, "target_id = ?", msg.ID); c != 1 {
		t.Fatalf("reactions = %d, want 1", c)
	}

	counts, err := repo.GetReactionsCount(ctx, target)
	if err != nil || counts["🔥"] != 1 {
		t.Fatalf("counts = %v, %v", counts, err)
	}

	removed, err := repo.Remove(ctx, alice.ID, target, "🔥")
	if err != nil || removed != 1 {
		t.Fatalf("remove = %d, %v; want 1, nil", removed, err)
	}
	removed, err = repo.Remove(ctx, alice.ID, target, "🔥")
	if err != nil || removed != 0 {
		t.Fatalf("second remove = %d, %v; want 0, nil", removed, err)
	}
}
