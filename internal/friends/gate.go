package friends

import (
	"context"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

// EdgeStore reads friendship edges. The store guarantees at most one edge
// per unordered pair via a unique index on the pair key.
type EdgeStore interface {
	EdgeBetween(ctx context.Context, a, b string) (*models.FriendEdge, error)
}

// BlockStore reads directed block edges.
type BlockStore interface {
	IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error)
}

// Relationship values returned by RelationshipStatus.
const (
	RelFriends  = "friends"
	RelSent     = "sent"
	RelReceived = "received"
	RelNone     = "none"
)

// Decision is the structured outcome of a messaging authorization check.
// Expected denials never surface as errors.
type Decision struct {
	Allow bool
	// Silent marks the blocked-sender case: the caller must report
	// success without persisting or delivering anything, so the sender
	// cannot probe for blocks through failure signals.
	Silent bool
	Reason string
}

// Gate authorizes messaging and profile visibility from friendship and
// block relations.
type Gate struct {
	edges  EdgeStore
	blocks BlockStore
}

func NewGate(edges EdgeStore, blocks BlockStore) *Gate {
	return &Gate{edges: edges, blocks: blocks}
}

// AreFriends is order-independent: true iff an accepted edge joins a and b.
func (g *Gate) AreFriends(ctx context.Context, a, b string) (bool, error) {
	edge, err := g.edges.EdgeBetween(ctx, a, b)
	if err != nil {
		return false, err
	}
	return edge != nil && edge.Status == models.FriendStatusAccepted, nil
}

// IsBlocked is directional: true iff blocker has blocked blocked.
func (g *Gate) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	return g.blocks.IsBlocked(ctx, blockerID, blockedID)
}

// CanMessage decides whether sender may message receiver. Friendship is
// required; a block in either direction vetoes. The receiver-blocked-
// sender case comes back as a silent success.
func (g *Gate) CanMessage(ctx context.Context, senderID, receiverID string) (Decision, error) {
	friends, err := g.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return Decision{}, err
	}
	if !friends {
		return Decision{Reason: "not friends"}, nil
	}
	blocked, err := g.blocks.IsBlocked(ctx, receiverID, senderID)
	if err != nil {
		return Decision{}, err
	}
	if blocked {
		return Decision{Silent: true, Reason: "sender blocked by receiver"}, nil
	}
	blocked, err = g.blocks.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		return Decision{}, err
	}
	if blocked {
		return Decision{Reason: "receiver blocked by sender"}, nil
	}
	return Decision{Allow: true}, nil
}

// RelationshipStatus annotates search results: friends, sent (a sent b a
// pending request), received, or none.
func (g *Gate) RelationshipStatus(ctx context.Context, a, b string) (string, error) {
	edge, err := g.edges.EdgeBetween(ctx, a, b)
	if err != nil {
		return "", err
	}
	switch {
	case edge == nil:
		return RelNone, nil
	case edge.Status == models.FriendStatusAccepted:
		return RelFriends, nil
	case edge.SenderID == a:
		return RelSent, nil
	default:
		return RelReceived, nil
	}
}

// RedactProfile applies the block visibility rule: when the subject has
// blocked the viewer, everything except the fullname is hidden. The same
// rule serves sidebar, friend-list and profile-lookup paths.
func (g *Gate) RedactProfile(ctx context.Context, p models.Profile, subjectID, viewerID string) (models.Profile, error) {
	blocked, err := g.blocks.IsBlocked(ctx, subjectID, viewerID)
	if err != nil {
		return p, err
	}
	if !blocked {
		return p, nil
	}
	return models.Profile{
		ID:       p.ID,
		Fullname: p.Fullname,
	}, nil
}
