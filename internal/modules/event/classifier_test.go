package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"anoa.com/studyhub/internal/broadcast"
	"anoa.com/studyhub/internal/channel"
	"anoa.com/studyhub/internal/entity"
	"github.com/google/uuid"
)

type fakeDirectory struct {
	members map[uuid.UUID][]uuid.UUID
	admins  map[uuid.UUID][]uuid.UUID
	chats   map[uuid.UUID][]uuid.UUID
}

func (d fakeDirectory) GroupMemberIDs(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return d.members[groupID], nil
}

func (d fakeDirectory) GroupAdminIDs(_ context.Context, groupID uuid.UUID) ([]uuid.UUID, error) {
	return d.admins[groupID], nil
}

func (d fakeDirectory) ChatParticipants(_ context.Context, chatID uuid.UUID) ([]uuid.UUID, error) {
	p, ok := d.chats[chatID]
	if !ok {
		return nil, errors.New("chat not found")
	}
	return p, nil
}

type fixture struct {
	a, b, c Actor
	group   uuid.UUID
	chat    uuid.UUID
	dir     fakeDirectory
}

// A admins group G with member B; A and B share a chat; C is an outsider.
func newFixture() fixture {
	f := fixture{
		a:     Actor{ID: uuid.New(), Name: "Ana"},
		b:     Actor{ID: uuid.New(), Name: "Budi"},
		c:     Actor{ID: uuid.New(), Name: "Citra"},
		group: uuid.New(),
		chat:  uuid.New(),
	}
	f.dir = fakeDirectory{
		members: map[uuid.UUID][]uuid.UUID{f.group: {f.a.ID, f.b.ID}},
		admins:  map[uuid.UUID][]uuid.UUID{f.group: {f.a.ID}},
		chats:   map[uuid.UUID][]uuid.UUID{f.chat: {f.a.ID, f.b.ID}},
	}
	return f
}

func persisted(events []NotificationEvent) []NotificationEvent {
	var out []NotificationEvent
	for _, ev := range events {
		if ev.Persist {
			out = append(out, ev)
		}
	}
	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func TestGroupMessageExcludesSender(t *testing.T) {
	f := newFixture()
	c := NewClassifier(f.dir)

	events, err := c.Classify(context.Background(), MessageSent{
		Actor:     f.a,
		Kind:      GroupKind{GroupID: f.group},
		MessageID: uuid.New(),
		Content:   "hello group",
		SentAt:    time.Now(),
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	ev := events[0]
	if ev.Persist {
		t.Fatal("group messages must not persist notifications")
	}
	if ev.Channel != channel.Group(f.group) || ev.Name != NameNewMessage {
		t.Fatalf("unexpected event %s on %s", ev.Name, ev.Channel)
	}
	if contains(ev.Recipients, f.a.ID) || !contains(ev.Recipients, f.b.ID) {
		t.Fatalf("recipients = %v, want only B", ev.Recipients)
	}
	if err := broadcast.ValidatePayload(ev.Payload); err != nil {
		t.Fatalf("payload not flat: %v", err)
	}
}

func TestSingleMemberGroupStillBroadcasts(t *testing.T) {
	f := newFixture()
	solo := uuid.New()
	f.dir.members[solo] = []uuid.UUID{f.a.ID}

	events, err := NewClassifier(f.dir).Classify(context.Background(), MessageSent{
		Actor: f.a, Kind: GroupKind{GroupID: solo}, MessageID: uuid.New(), Content: "anyone?",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(events) != 1 || len(events[0].Recipients) != 0 {
		t.Fatalf("want one transient event with no recipients, got %+v", events)
	}
}

func TestPrivateMessageNotifiesOtherParticipant(t *testing.T) {
	f := newFixture()

	events, err := NewClassifier(f.dir).Classify(context.Background(), MessageSent{
		Actor:     f.a,
		Kind:      PrivateKind{ChatID: f.chat},
		MessageID: uuid.New(),
		Content:   "<b>hello</b> there",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want transient + persisted", len(events))
	}
	if events[0].Channel != channel.PrivateChat(f.chat) || events[0].Persist {
		t.Fatalf("first event should be transient on the chat, got %+v", events[0])
	}

	p := events[1]
	if !p.Persist || p.Type != entity.NotificationPrivateMessage {
		t.Fatalf("second event should persist a private_message, got %+v", p)
	}
	if p.Channel != channel.User(f.b.ID) || len(p.Recipients) != 1 || p.Recipients[0] != f.b.ID {
		t.Fatalf("persisted event should target B only, got %v on %s", p.Recipients, p.Channel)
	}
	if p.Message != "hello there" {
		t.Fatalf("message preview = %q", p.Message)
	}
	if p.ChatID == nil || *p.ChatID != f.chat {
		t.Fatal("chat back-reference missing")
	}
}

func TestReactionReachesReadersExceptActor(t *testing.T) {
	f := newFixture()
	c := NewClassifier(f.dir)

	for _, added := range []bool{true, false} {
		events, err := c.Classify(context.Background(), ReactionToggled{
			Actor: f.b, Kind: PrivateKind{ChatID: f.chat}, MessageID: uuid.New(), Emoji: "👍", Added: added,
		})
		if err != nil {
			t.Fatalf("Classify: %v", err)
		}
		want := NameReactionRemoved
		if added {
			want = NameReactionAdded
		}
		if len(events) != 1 || events[0].Name != want || events[0].Persist {
			t.Fatalf("unexpected events %+v", events)
		}
		if len(events[0].Recipients) != 1 || events[0].Recipients[0] != f.a.ID {
			t.Fatalf("recipients = %v, want A", events[0].Recipients)
		}
	}
}

func TestJoinRequestScenario(t *testing.T) {
	f := newFixture()
	c := NewClassifier(f.dir)
	ctx := context.Background()
	requestID := uuid.New()

	submitted, err := c.Classify(ctx, JoinRequestSubmitted{
		Actor: f.c, RequestID: requestID, GroupID: f.group, GroupName: "G", Message: "let me in",
	})
	if err != nil {
		t.Fatalf("Classify submit: %v", err)
	}
	records := persisted(submitted)
	if len(records) != 1 {
		t.Fatalf("got %d persisted events, want 1", len(records))
	}
	if records[0].Type != entity.NotificationGroupJoinRequest || records[0].Recipients[0] != f.a.ID {
		t.Fatalf("submit should notify admin A with group_join_request, got %+v", records[0])
	}

	// C has joined by the time the approval is classified.
	f.dir.members[f.group] = append(f.dir.members[f.group], f.c.ID)

	approved, err := c.Classify(ctx, JoinRequestResolved{
		Actor: f.a, RequestID: requestID, GroupID: f.group, GroupName: "G", Requester: f.c, Approved: true,
	})
	if err != nil {
		t.Fatalf("Classify approve: %v", err)
	}

	records = persisted(approved)
	if len(records) != 1 || records[0].Type != entity.NotificationGroupJoinApproved {
		t.Fatalf("approve should persist exactly one group_join_approved, got %+v", records)
	}
	if records[0].Channel != channel.User(f.c.ID) || records[0].Recipients[0] != f.c.ID {
		t.Fatalf("approval notification should go to C, got %+v", records[0])
	}

	var joined *NotificationEvent
	for i := range approved {
		if approved[i].Name == NameMemberJoined {
			joined = &approved[i]
		}
	}
	if joined == nil {
		t.Fatal("missing member-joined broadcast")
	}
	if joined.Channel != channel.Group(f.group) || joined.Payload["user_id"] != f.c.ID.String() {
		t.Fatalf("member-joined should carry C on the group channel, got %+v", joined)
	}
	if contains(joined.Recipients, f.a.ID) || contains(joined.Recipients, f.c.ID) || !contains(joined.Recipients, f.b.ID) {
		t.Fatalf("member-joined recipients = %v, want B only", joined.Recipients)
	}
}

func TestJoinRequestRejectedHasNoGroupBroadcast(t *testing.T) {
	f := newFixture()
	events, err := NewClassifier(f.dir).Classify(context.Background(), JoinRequestResolved{
		Actor: f.a, RequestID: uuid.New(), GroupID: f.group, GroupName: "G", Requester: f.c,
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(events) != 1 || events[0].Type != entity.NotificationGroupJoinRejected {
		t.Fatalf("want a single group_join_rejected event, got %+v", events)
	}
}

func TestGroupLifecycleBroadcasts(t *testing.T) {
	f := newFixture()
	c := NewClassifier(f.dir)

	tests := []struct {
		name     string
		mutation Mutation
		event    string
		want     uuid.UUID
	}{
		{"invite join", MemberJoined{Actor: f.b, GroupID: f.group, GroupName: "G", InviteID: uuid.New()}, NameMemberJoined, f.a.ID},
		{"edit", GroupUpdated{Actor: f.a, GroupID: f.group, Name: "G2", Description: "d"}, NameGroupUpdated, f.b.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := c.Classify(context.Background(), tt.mutation)
			if err != nil {
				t.Fatalf("Classify: %v", err)
			}
			if len(events) != 1 {
				t.Fatalf("got %d events, want 1", len(events))
			}
			ev := events[0]
			if ev.Name != tt.event || ev.Channel != channel.Group(f.group) || ev.Persist {
				t.Fatalf("event = %+v", ev)
			}
			if len(ev.Recipients) != 1 || ev.Recipients[0] != tt.want {
				t.Fatalf("recipients = %v, want [%s]", ev.Recipients, tt.want)
			}
		})
	}
}

func TestSelfAddressedPersistedEventIsDropped(t *testing.T) {
	f := newFixture()
	// A is the only admin and submits a request to their own group.
	events, err := NewClassifier(f.dir).Classify(context.Background(), JoinRequestSubmitted{
		Actor: f.a, RequestID: uuid.New(), GroupID: f.group, GroupName: "G",
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("got %d events, want none", len(events))
	}
}

func TestFriendEvents(t *testing.T) {
	f := newFixture()
	c := NewClassifier(f.dir)
	id := uuid.New()

	sent, _ := c.Classify(context.Background(), FriendRequestSent{Actor: f.a, FriendshipID: id, RecipientID: f.c.ID})
	if len(sent) != 1 || sent[0].Type != entity.NotificationFriendRequest || sent[0].Channel != channel.User(f.c.ID) {
		t.Fatalf("unexpected friend request events %+v", sent)
	}

	accepted, _ := c.Classify(context.Background(), FriendRequestAccepted{Actor: f.c, FriendshipID: id, RequesterID: f.a.ID})
	if len(accepted) != 1 || accepted[0].Type != entity.NotificationFriendAccepted || accepted[0].Recipients[0] != f.a.ID {
		t.Fatalf("unexpected friend accepted events %+v", accepted)
	}
}

func TestEveryPayloadIsFlat(t *testing.T) {
	f := newFixture()
	c := NewClassifier(f.dir)
	parent := uuid.New()

	mutations := []Mutation{
		MessageSent{Actor: f.a, Kind: GroupKind{GroupID: f.group}, MessageID: uuid.New(), ParentID: &parent},
		MessageSent{Actor: f.a, Kind: PrivateKind{ChatID: f.chat}, MessageID: uuid.New()},
		MessageEdited{Actor: f.a, GroupID: f.group, MessageID: uuid.New(), Content: "x"},
		MessageDeleted{Actor: f.a, GroupID: f.group, MessageID: uuid.New()},
		ChatRead{Actor: f.b, ChatID: f.chat, Count: 3},
		ReactionToggled{Actor: f.a, Kind: GroupKind{GroupID: f.group}, MessageID: uuid.New(), Emoji: "🔥", Added: true},
		FriendRequestSent{Actor: f.a, FriendshipID: uuid.New(), RecipientID: f.b.ID},
		FriendRequestAccepted{Actor: f.b, FriendshipID: uuid.New(), RequesterID: f.a.ID},
		JoinRequestSubmitted{Actor: f.c, RequestID: uuid.New(), GroupID: f.group},
		JoinRequestResolved{Actor: f.a, RequestID: uuid.New(), GroupID: f.group, Requester: f.c, Approved: true},
		MemberJoined{Actor: f.b, GroupID: f.group, GroupName: "G", InviteID: uuid.New()},
		MemberLeft{Actor: f.b, GroupID: f.group},
		MemberRemoved{Actor: f.a, GroupID: f.group, Member: f.b},
		RankChanged{Actor: f.a, GroupID: f.group, Member: f.b, Rank: entity.RankEditor},
		GroupUpdated{Actor: f.a, GroupID: f.group, Name: "G2"},
		GroupDeleted{Actor: f.a, GroupID: f.group},
	}

	for _, m := range mutations {
		events, err := c.Classify(context.Background(), m)
		if err != nil {
			t.Fatalf("%T: %v", m, err)
		}
		if len(events) == 0 {
			t.Fatalf("%T produced no events", m)
		}
		for _, ev := range events {
			if err := broadcast.ValidatePayload(ev.Payload); err != nil {
				t.Fatalf("%T %s: %v", m, ev.Name, err)
			}
			if contains(ev.Recipients, m.Source().ID) {
				t.Fatalf("%T %s: actor among recipients", m, ev.Name)
			}
		}
	}
}
