package friends

import (
	"context"
	"testing"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

type fakeEdges struct {
	edges map[string]*models.FriendEdge // pair key -> edge
}

func newFakeEdges() *fakeEdges {
	return &fakeEdges{edges: map[string]*models.FriendEdge{}}
}

func (f *fakeEdges) put(sender, receiver, status string) {
	key := models.PairKey(sender, receiver)
	f.edges[key] = &models.FriendEdge{
		ID:         key,
		PairKey:    key,
		SenderID:   sender,
		ReceiverID: receiver,
		Status:     status,
	}
}

func (f *fakeEdges) EdgeBetween(_ context.Context, a, b string) (*models.FriendEdge, error) {
	return f.edges[models.PairKey(a, b)], nil
}

type fakeBlocks struct {
	blocked map[[2]string]bool // [blocker, blocked]
}

func newFakeBlocks() *fakeBlocks {
	return &fakeBlocks{blocked: map[[2]string]bool{}}
}

func (f *fakeBlocks) block(blocker, blocked string) {
	f.blocked[[2]string{blocker, blocked}] = true
}

func (f *fakeBlocks) IsBlocked(_ context.Context, blocker, blocked string) (bool, error) {
	return f.blocked[[2]string{blocker, blocked}], nil
}

func TestAreFriendsOrderIndependent(t *testing.T) {
	edges := newFakeEdges()
	edges.put("alice", "bob", models.FriendStatusAccepted)
	gate := NewGate(edges, newFakeBlocks())
	ctx := context.Background()

	for _, pair := range [][2]string{{"alice", "bob"}, {"bob", "alice"}} {
		ok, err := gate.AreFriends(ctx, pair[0], pair[1])
		if err != nil {
			t.Fatalf("AreFriends(%v): %v", pair, err)
		}
		if !ok {
			t.Fatalf("AreFriends(%v) = false, want true", pair)
		}
	}

	ok, _ := gate.AreFriends(ctx, "alice", "carol")
	if ok {
		t.Fatal("strangers reported as friends")
	}
}

func TestPendingEdgeIsNotFriendship(t *testing.T) {
	edges := newFakeEdges()
	edges.put("alice", "bob", models.FriendStatusPending)
	gate := NewGate(edges, newFakeBlocks())

	ok, _ := gate.AreFriends(context.Background(), "alice", "bob")
	if ok {
		t.Fatal("pending edge counted as friendship")
	}
}

func TestCanMessage(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		setup      func(*fakeEdges, *fakeBlocks)
		wantAllow  bool
		wantSilent bool
	}{
		{
			name: "friends no block",
			setup: func(e *fakeEdges, b *fakeBlocks) {
				e.put("alice", "bob", models.FriendStatusAccepted)
			},
			wantAllow: true,
		},
		{
			name:  "not friends",
			setup: func(e *fakeEdges, b *fakeBlocks) {},
		},
		{
			name: "receiver blocked sender is silent",
			setup: func(e *fakeEdges, b *fakeBlocks) {
				e.put("alice", "bob", models.FriendStatusAccepted)
				b.block("bob", "alice") // bob (receiver) blocked alice (sender)
			},
			wantSilent: true,
		},
		{
			name: "sender blocked receiver is plain denial",
			setup: func(e *fakeEdges, b *fakeBlocks) {
				e.put("alice", "bob", models.FriendStatusAccepted)
				b.block("alice", "bob")
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			edges, blocks := newFakeEdges(), newFakeBlocks()
			tc.setup(edges, blocks)
			gate := NewGate(edges, blocks)

			d, err := gate.CanMessage(ctx, "alice", "bob")
			if err != nil {
				t.Fatalf("CanMessage: %v", err)
			}
			if d.Allow != tc.wantAllow || d.Silent != tc.wantSilent {
				t.Fatalf("decision = %+v, want allow=%v silent=%v", d, tc.wantAllow, tc.wantSilent)
			}
		})
	}
}

func TestRelationshipStatus(t *testing.T) {
	ctx := context.Background()
	edges := newFakeEdges()
	edges.put("alice", "bob", models.FriendStatusPending)
	edges.put("alice", "carol", models.FriendStatusAccepted)
	gate := NewGate(edges, newFakeBlocks())

	tests := []struct {
		a, b, want string
	}{
		{"alice", "bob", RelSent},
		{"bob", "alice", RelReceived},
		{"alice", "carol", RelFriends},
		{"alice", "dave", RelNone},
	}
	for _, tc := range tests {
		got, err := gate.RelationshipStatus(ctx, tc.a, tc.b)
		if err != nil {
			t.Fatalf("RelationshipStatus(%s,%s): %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Fatalf("RelationshipStatus(%s,%s) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestRedactProfileHidesEverythingButFullname(t *testing.T) {
	ctx := context.Background()
	blocks := newFakeBlocks()
	blocks.block("subject", "viewer")
	gate := NewGate(newFakeEdges(), blocks)

	in := models.Profile{
		ID:         "subject",
		Fullname:   "Sam Subject",
		Username:   "sam",
		ProfilePic: "https://pic",
		About:      "hello",
		IsOnline:   true,
		LastSeen:   "online",
	}
	got, err := gate.RedactProfile(ctx, in, "subject", "viewer")
	if err != nil {
		t.Fatalf("RedactProfile: %v", err)
	}
	want := models.Profile{ID: "subject", Fullname: "Sam Subject"}
	if got != want {
		t.Fatalf("redacted profile = %+v, want %+v", got, want)
	}

	// unblocked viewer sees the full profile
	got, err = gate.RedactProfile(ctx, in, "subject", "other")
	if err != nil {
		t.Fatalf("RedactProfile: %v", err)
	}
	if got != in {
		t.Fatalf("profile altered without a block: %+v", got)
	}
}
