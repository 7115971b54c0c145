package friends_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/chat"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/friends"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/notify"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/presence"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

type memEdgeRepo struct {
	byID   map[string]*models.FriendEdge
	nextID int
}

func newMemEdgeRepo() *memEdgeRepo {
	return &memEdgeRepo{byID: map[string]*models.FriendEdge{}}
}

func (m *memEdgeRepo) EdgeBetween(_ context.Context, a, b string) (*models.FriendEdge, error) {
	key := models.PairKey(a, b)
	for _, e := range m.byID {
		if e.PairKey == key {
			return e, nil
		}
	}
	return nil, nil
}

func (m *memEdgeRepo) ByID(_ context.Context, id string) (*models.FriendEdge, error) {
	return m.byID[id], nil
}

func (m *memEdgeRepo) Insert(_ context.Context, e *models.FriendEdge) error {
	for _, existing := range m.byID {
		if existing.PairKey == e.PairKey {
			return apperr.Conflict("request already exists")
		}
	}
	m.nextID++
	e.ID = fmt.Sprintf("req-%d", m.nextID)
	m.byID[e.ID] = e
	return nil
}

func (m *memEdgeRepo) UpdateStatus(_ context.Context, id, status string) error {
	e, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("friend request")
	}
	e.Status = status
	return nil
}

func (m *memEdgeRepo) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

func (m *memEdgeRepo) AcceptedFor(_ context.Context, userID string) ([]models.FriendEdge, error) {
	var out []models.FriendEdge
	for _, e := range m.byID {
		if e.Status == models.FriendStatusAccepted && (e.SenderID == userID || e.ReceiverID == userID) {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memEdgeRepo) PendingTo(_ context.Context, userID string) ([]models.FriendEdge, error) {
	var out []models.FriendEdge
	for _, e := range m.byID {
		if e.Status == models.FriendStatusPending && e.ReceiverID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *memEdgeRepo) PendingFrom(_ context.Context, userID string) ([]models.FriendEdge, error) {
	var out []models.FriendEdge
	for _, e := range m.byID {
		if e.Status == models.FriendStatusPending && e.SenderID == userID {
			out = append(out, *e)
		}
	}
	return out, nil
}

type memBlockRepo struct {
	blocked map[[2]string]bool
}

func (m *memBlockRepo) IsBlocked(_ context.Context, blocker, blocked string) (bool, error) {
	return m.blocked[[2]string{blocker, blocked}], nil
}

func (m *memBlockRepo) Insert(_ context.Context, blocker, blocked string) error {
	m.blocked[[2]string{blocker, blocked}] = true
	return nil
}

func (m *memBlockRepo) Delete(_ context.Context, blocker, blocked string) error {
	delete(m.blocked, [2]string{blocker, blocked})
	return nil
}

type memUserDir struct {
	users map[string]*models.User
}

func (m *memUserDir) ByID(_ context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *memUserDir) Search(_ context.Context, query, excludeID string, limit int64) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if u.ID == excludeID || u.IsDeleted {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

type memMsgStore struct {
	msgs   []models.Message
	nextID int
}

func (m *memMsgStore) Insert(_ context.Context, msg *models.Message) error {
	m.nextID++
	msg.ID = fmt.Sprintf("m-%d", m.nextID)
	m.msgs = append(m.msgs, *msg)
	return nil
}

func (m *memMsgStore) ListConversation(_ context.Context, convID string, limit int64, before time.Time) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.msgs {
		if msg.ConversationID == convID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memMsgStore) MarkConversationRead(_ context.Context, convID, readerID string, at time.Time) (int64, error) {
	var n int64
	for i := range m.msgs {
		msg := &m.msgs[i]
		if msg.ConversationID == convID && msg.ReceiverID == readerID && !msg.IsRead {
			msg.IsRead = true
			msg.ReadAt = at
			n++
		}
	}
	return n, nil
}

func (m *memMsgStore) DeleteConversation(_ context.Context, convID string) (int64, error) {
	var kept []models.Message
	var n int64
	for _, msg := range m.msgs {
		if msg.ConversationID == convID {
			n++
			continue
		}
		kept = append(kept, msg)
	}
	m.msgs = kept
	return n, nil
}

type idleStore struct{}

func (idleStore) SetOnline(context.Context, string) error            { return nil }
func (idleStore) SetOffline(context.Context, string, time.Time) error { return nil }
func (idleStore) Get(context.Context, string) (presence.State, error) {
	return presence.State{}, nil
}

type noTokens struct{}

func (noTokens) TokensFor(context.Context, string) ([]string, error) { return nil, nil }

type memInboxStore struct {
	stored []models.InboxNotification
}

func (m *memInboxStore) Append(_ context.Context, n models.InboxNotification) error {
	m.stored = append(m.stored, n)
	return nil
}

type noPush struct{}

func (noPush) Send(context.Context, []string, notify.PushMessage) error { return nil }

type fixture struct {
	svc    *friends.Service
	chat   *chat.Service
	edges  *memEdgeRepo
	blocks *memBlockRepo
	users  *memUserDir
	msgs   *memMsgStore
	reg    *registry.Registry
	inbox  *memInboxStore
}

func newFixture() *fixture {
	f := &fixture{
		edges:  newMemEdgeRepo(),
		blocks: &memBlockRepo{blocked: map[[2]string]bool{}},
		msgs:   &memMsgStore{},
		reg:    registry.New(),
		inbox:  &memInboxStore{},
	}
	f.users = &memUserDir{users: map[string]*models.User{
		"alice": {ID: "alice", Fullname: "Alice A", Username: "alice"},
		"bob":   {ID: "bob", Fullname: "Bob B", Username: "bob"},
		"carol": {ID: "carol", Fullname: "Carol C", Username: "carol"},
	}}
	gate := friends.NewGate(f.edges, f.blocks)
	tracker := presence.NewTracker(f.reg, idleStore{}, nil, zap.NewNop())
	router := notify.NewRouter(config.NotificationCfg{
		SocketEnabled:        true,
		StoreUndelivered:     true,
		NewMessageEnabled:    true,
		FriendRequestEnabled: true,
		FriendAcceptEnabled:  true,
	}, f.reg, noTokens{}, f.inbox, noPush{},
		notify.NewMetrics(prometheus.NewRegistry()), zap.NewNop())
	f.svc = friends.NewService(f.edges, f.blocks, f.users, f.msgs, gate, f.reg, tracker, router, zap.NewNop())
	f.chat = chat.NewService(f.msgs, f.users, gate, f.reg, router, nil, zap.NewNop())
	return f
}

func eventsOf(t *testing.T, h *registry.Handle) map[string]int {
	t.Helper()
	out := map[string]int{}
	for {
		select {
		case data := <-h.Send:
			var env struct {
				Event string `json:"event"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			out[env.Event]++
		default:
			return out
		}
	}
}

func TestSendRequestRejectsSelfAndLongMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.SendRequest(ctx, "alice", "alice", ""); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("self request err = %v", err)
	}
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := f.svc.SendRequest(ctx, "alice", "bob", string(long)); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("long message err = %v", err)
	}
}

func TestSendRequestToUnknownOrDeletedUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.SendRequest(ctx, "alice", "ghost", ""); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("unknown receiver err = %v", err)
	}
	f.users.users["bob"].IsDeleted = true
	if _, err := f.svc.SendRequest(ctx, "alice", "bob", ""); !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("deleted receiver err = %v", err)
	}
}

func TestDuplicateRequestConflicts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.SendRequest(ctx, "alice", "bob", "hi"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	// same direction
	if _, err := f.svc.SendRequest(ctx, "alice", "bob", ""); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("duplicate err = %v", err)
	}
	// reverse direction hits the same unordered pair
	if _, err := f.svc.SendRequest(ctx, "bob", "alice", ""); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("reverse duplicate err = %v", err)
	}
}

func TestAcceptRequestOnlyByReceiver(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	edge, err := f.svc.SendRequest(ctx, "alice", "bob", "")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	if err := f.svc.AcceptRequest(ctx, edge.ID, "alice"); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("sender accepting own request err = %v", err)
	}
	if err := f.svc.AcceptRequest(ctx, edge.ID, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	// accepting twice is a conflict, not a silent no-op
	if err := f.svc.AcceptRequest(ctx, edge.ID, "bob"); !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("double accept err = %v", err)
	}

	ok, err := friends.NewGate(f.edges, f.blocks).AreFriends(ctx, "bob", "alice")
	if err != nil || !ok {
		t.Fatalf("AreFriends after accept = %v, %v", ok, err)
	}
}

func TestRejectDeletesEdgeSoPairCanRetry(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	edge, _ := f.svc.SendRequest(ctx, "alice", "bob", "")
	if err := f.svc.RejectRequest(ctx, edge.ID, "bob"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.SendRequest(ctx, "bob", "alice", ""); err != nil {
		t.Fatalf("retry after reject: %v", err)
	}
}

func TestCancelRequestOnlyBySender(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	edge, _ := f.svc.SendRequest(ctx, "alice", "bob", "")
	if err := f.svc.CancelRequest(ctx, edge.ID, "bob"); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("receiver cancelling err = %v", err)
	}
	if err := f.svc.CancelRequest(ctx, edge.ID, "alice"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	incoming, _ := f.svc.IncomingRequests(ctx, "bob")
	if len(incoming) != 0 {
		t.Fatalf("incoming after cancel = %d", len(incoming))
	}
}

func TestRemoveFriendPurgesConversation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	edge, _ := f.svc.SendRequest(ctx, "alice", "bob", "")
	f.svc.AcceptRequest(ctx, edge.ID, "bob")
	f.chat.Send(ctx, "alice", "bob", "hello", "")
	f.chat.Send(ctx, "bob", "alice", "hey", "")

	purged, err := f.svc.RemoveFriend(ctx, "alice", "bob")
	if err != nil {
		t.Fatalf("remove friend: %v", err)
	}
	if purged != 2 {
		t.Fatalf("purged = %d, want 2", purged)
	}
	if _, err := f.chat.Send(ctx, "alice", "bob", "still there?", ""); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("send after removal err = %v", err)
	}
}

func TestFriendsListRedactsDeletedAccounts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	edge, _ := f.svc.SendRequest(ctx, "alice", "bob", "")
	f.svc.AcceptRequest(ctx, edge.ID, "bob")
	f.users.users["bob"].IsDeleted = true

	list, err := f.svc.Friends(ctx, "alice")
	if err != nil {
		t.Fatalf("Friends: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("friends = %d, want 1", len(list))
	}
	if list[0].Fullname != models.DeletedDisplayName || list[0].Username != "" {
		t.Fatalf("deleted friend not redacted: %+v", list[0])
	}
}

func TestSidebarAttachesLastMessage(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	edge, _ := f.svc.SendRequest(ctx, "alice", "bob", "")
	f.svc.AcceptRequest(ctx, edge.ID, "bob")
	edge2, _ := f.svc.SendRequest(ctx, "alice", "carol", "")
	f.svc.AcceptRequest(ctx, edge2.ID, "carol")
	f.chat.Send(ctx, "alice", "bob", "first", "")
	f.chat.Send(ctx, "bob", "alice", "latest", "")

	list, err := f.svc.Sidebar(ctx, "alice")
	if err != nil {
		t.Fatalf("Sidebar: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("sidebar rows = %d, want 2", len(list))
	}
	byID := map[string]friends.SidebarEntry{}
	for _, e := range list {
		byID[e.ID] = e
	}
	bob := byID["bob"]
	if bob.LastMessage == nil || bob.LastMessage.Text != "latest" {
		t.Fatalf("bob preview = %+v, want latest message", bob.LastMessage)
	}
	if carol := byID["carol"]; carol.LastMessage != nil {
		t.Fatalf("carol preview = %+v, want none", carol.LastMessage)
	}
}

func TestSearchAnnotatesRelationship(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	edge, _ := f.svc.SendRequest(ctx, "alice", "bob", "")
	f.svc.AcceptRequest(ctx, edge.ID, "bob")
	f.svc.SendRequest(ctx, "alice", "carol", "")

	if _, err := f.svc.Search(ctx, "alice", "x"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("short query err = %v", err)
	}

	results, err := f.svc.Search(ctx, "alice", "name")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	rels := map[string]string{}
	for _, r := range results {
		rels[r.ID] = r.RelationshipStatus
	}
	if rels["bob"] != friends.RelFriends || rels["carol"] != friends.RelSent {
		t.Fatalf("relationships = %v", rels)
	}
}

func TestFriendProfileRequiresFriendship(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.FriendProfile(context.Background(), "alice", "bob"); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("err = %v", err)
	}
}

// The full lifecycle: request, accept, message, read receipt, with the
// receiver online the whole way.
func TestRequestAcceptMessageReadFlow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	bobHandle := registry.NewHandle("b1", "bob")
	f.reg.Register(bobHandle)
	aliceHandle := registry.NewHandle("a1", "alice")
	f.reg.Register(aliceHandle)

	edge, err := f.svc.SendRequest(ctx, "alice", "bob", "let's chat")
	if err != nil {
		t.Fatalf("send request: %v", err)
	}
	bobEvents := eventsOf(t, bobHandle)
	if bobEvents[events.EvtNewFriendRequest] != 1 {
		t.Fatalf("bob events after request: %v", bobEvents)
	}

	if err := f.svc.AcceptRequest(ctx, edge.ID, "bob"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	aliceEvents := eventsOf(t, aliceHandle)
	if aliceEvents[events.EvtFriendRequestAccepted] != 1 {
		t.Fatalf("alice events after accept: %v", aliceEvents)
	}
	bobEvents = eventsOf(t, bobHandle)
	if bobEvents[events.EvtFriendRequestProcessed] != 1 {
		t.Fatalf("bob events after accept: %v", bobEvents)
	}

	msg, err := f.chat.Send(ctx, "alice", "bob", "hello bob", "")
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	bobEvents = eventsOf(t, bobHandle)
	if bobEvents[events.EvtNewMessage] != 1 {
		t.Fatalf("bob events after message: %v", bobEvents)
	}

	count, err := f.chat.MarkRead(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if count != 1 {
		t.Fatalf("read count = %d, want 1", count)
	}
	aliceEvents = eventsOf(t, aliceHandle)
	if aliceEvents[events.EvtMessagesRead] != 1 {
		t.Fatalf("alice events after read: %v", aliceEvents)
	}

	hist, err := f.chat.History(ctx, "alice", "bob", 50, time.Time{})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].ID != msg.ID || !hist[0].IsRead {
		t.Fatalf("history = %+v", hist)
	}
}
