package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/notify"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

type memUsers struct {
	byID map[string]*models.User
}

func newMemUsers() *memUsers {
	return &memUsers{byID: map[string]*models.User{}}
}

func (m *memUsers) Insert(_ context.Context, u *models.User) error {
	for _, existing := range m.byID {
		if existing.Email == u.Email || existing.Username == u.Username {
			return apperr.Conflict("user already exists")
		}
	}
	m.byID[u.ID] = u
	return nil
}

func (m *memUsers) ByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *memUsers) ByUsername(_ context.Context, username string) (*models.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *memUsers) ByVerifyToken(_ context.Context, token string) (*models.User, error) {
	for _, u := range m.byID {
		if u.VerifyToken == token && u.VerifyExpires.After(time.Now()) {
			return u, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (m *memUsers) MarkVerified(_ context.Context, id string) error {
	u, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.IsVerified = true
	u.VerifyToken = ""
	return nil
}

func (m *memUsers) SetVerifyToken(_ context.Context, id, token string, expires time.Time) error {
	u, ok := m.byID[id]
	if !ok {
		return apperr.NotFound("user")
	}
	u.VerifyToken = token
	u.VerifyExpires = expires
	return nil
}

func (m *memUsers) UpdateProfile(_ context.Context, id, fullname, about, profilePic string) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	if fullname != "" {
		u.Fullname = fullname
	}
	if about != "" {
		u.About = about
	}
	if profilePic != "" {
		u.ProfilePic = profilePic
	}
	return u, nil
}

func (m *memUsers) Delete(_ context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

type stubMailer struct {
	sent []string
	fail bool
}

func (m *stubMailer) SendVerification(_ context.Context, to, name, token string) error {
	if m.fail {
		return errors.New("smtp down")
	}
	m.sent = append(m.sent, to)
	return nil
}

type stubDeleter struct {
	res    *DeletionResult
	err    error
	called []string
}

func (d *stubDeleter) DeleteAccount(_ context.Context, userID string) (*DeletionResult, error) {
	d.called = append(d.called, userID)
	if d.err != nil {
		return nil, d.err
	}
	return d.res, nil
}

type noTokens struct{}

func (noTokens) TokensFor(context.Context, string) ([]string, error) { return nil, nil }

type noInbox struct{}

func (noInbox) Append(context.Context, models.InboxNotification) error { return nil }

type noPush struct{}

func (noPush) Send(context.Context, []string, notify.PushMessage) error { return nil }

type authFixture struct {
	svc     *Service
	users   *memUsers
	mailer  *stubMailer
	deleter *stubDeleter
	reg     *registry.Registry
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		users:   newMemUsers(),
		mailer:  &stubMailer{},
		deleter: &stubDeleter{res: &DeletionResult{DeletedAt: time.Now()}},
		reg:     registry.New(),
	}
	router := notify.NewRouter(config.NotificationCfg{
		SocketEnabled:          true,
		AccountActivityEnabled: true,
	}, f.reg, noTokens{}, noInbox{}, noPush{},
		notify.NewMetrics(prometheus.NewRegistry()), zap.NewNop())
	f.svc = NewService(f.users, f.mailer, f.deleter, f.reg, router, time.Minute, zap.NewNop())
	return f
}

func (f *authFixture) seedVerified(t *testing.T, id, email, password string) *models.User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &models.User{
		ID:         id,
		Fullname:   "User " + id,
		Username:   id,
		Email:      email,
		Password:   string(hashed),
		IsVerified: true,
	}
	f.users.byID[id] = u
	return u
}

func TestSignupStoresHashedPasswordAndSendsEmail(t *testing.T) {
	f := newAuthFixture()

	u, err := f.svc.Signup(context.Background(), "Alice A", "Alice", "ALICE@Example.com", "secret1")
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.Email != "alice@example.com" || u.Username != "alice" {
		t.Fatalf("identifiers not normalized: %+v", u)
	}
	if u.Password == "secret1" || u.Password == "" {
		t.Fatal("password stored in the clear")
	}
	if u.IsVerified {
		t.Fatal("new account must start unverified")
	}
	if u.VerifyToken == "" || !u.VerifyExpires.After(time.Now()) {
		t.Fatalf("verification token not set: %+v", u)
	}
	if len(f.mailer.sent) != 1 || f.mailer.sent[0] != "alice@example.com" {
		t.Fatalf("mailer sent = %v", f.mailer.sent)
	}
}

func TestSignupValidation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	cases := []struct {
		name     string
		fullname string
		username string
		email    string
		passwd   string
	}{
		{"missing fullname", "", "alice", "a@b.com", "secret1"},
		{"bad email", "Alice", "alice", "not-an-email", "secret1"},
		{"short password", "Alice", "alice", "a@b.com", "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Signup(ctx, tc.fullname, tc.username, tc.email, tc.passwd)
			if !apperr.IsKind(err, apperr.KindValidation) {
				t.Fatalf("err = %v, want validation", err)
			}
		})
	}
}

func TestSignupRollsBackWhenEmailFails(t *testing.T) {
	f := newAuthFixture()
	f.mailer.fail = true

	_, err := f.svc.Signup(context.Background(), "Alice A", "alice", "a@b.com", "secret1")
	if !apperr.IsKind(err, apperr.KindInternal) {
		t.Fatalf("err = %v, want internal", err)
	}
	if len(f.users.byID) != 0 {
		t.Fatal("user not rolled back after email failure")
	}

	// the address is free for a retry once email works again
	f.mailer.fail = false
	if _, err := f.svc.Signup(context.Background(), "Alice A", "alice", "a@b.com", "secret1"); err != nil {
		t.Fatalf("retry after rollback: %v", err)
	}
}

func TestVerifyEmailFlow(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	u, _ := f.svc.Signup(ctx, "Alice A", "alice", "a@b.com", "secret1")

	if _, err := f.svc.VerifyEmail(ctx, "bogus"); !apperr.IsKind(err, apperr.KindValidation) {
		t.Fatalf("bogus token err = %v", err)
	}
	verified, err := f.svc.VerifyEmail(ctx, u.VerifyToken)
	if err != nil {
		t.Fatalf("VerifyEmail: %v", err)
	}
	if !verified.IsVerified {
		t.Fatal("account not flipped verified")
	}
	if _, err := f.svc.Login(ctx, "a@b.com", "secret1"); err != nil {
		t.Fatalf("login after verify: %v", err)
	}
}

func TestLoginRejections(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.seedVerified(t, "alice", "a@b.com", "secret1")

	if _, err := f.svc.Login(ctx, "a@b.com", "wrong"); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("wrong password err = %v", err)
	}
	if _, err := f.svc.Login(ctx, "nobody@b.com", "secret1"); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("unknown email err = %v", err)
	}

	f.users.byID["alice"].IsDeleted = true
	if _, err := f.svc.Login(ctx, "a@b.com", "secret1"); !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("deleted account err = %v", err)
	}
}

func TestLoginUnverifiedIsDistinguishable(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.svc.Signup(ctx, "Alice A", "alice", "a@b.com", "secret1")
	_, err := f.svc.Login(ctx, "a@b.com", "secret1")
	if !errors.Is(err, ErrEmailUnverified) {
		t.Fatalf("err = %v, want ErrEmailUnverified", err)
	}
}

// stalledUsers blocks lookups until the caller's deadline fires, the
// shape of a wedged store.
type stalledUsers struct {
	*memUsers
}

func (s stalledUsers) ByEmail(ctx context.Context, _ string) (*models.User, error) {
	<-ctx.Done()
	return nil, apperr.Timeout("users lookup", ctx.Err())
}

func TestLoginBoundsStoreCallsWithTimeout(t *testing.T) {
	f := newAuthFixture()
	f.svc.users = stalledUsers{f.users}
	f.svc.storeTimeout = 10 * time.Millisecond

	_, err := f.svc.Login(context.Background(), "a@b.com", "secret1")
	if !apperr.IsKind(err, apperr.KindTimeout) {
		t.Fatalf("login err = %v, want timeout kind", err)
	}
	if code := apperr.StatusCode(err); code != 503 {
		t.Fatalf("status = %d, want 503", code)
	}
}

func TestResendVerificationDoesNotProbeAccounts(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	if err := f.svc.ResendVerification(ctx, "ghost@b.com"); err != nil {
		t.Fatalf("unknown address must look like success, got %v", err)
	}

	u, _ := f.svc.Signup(ctx, "Alice A", "alice", "a@b.com", "secret1")
	oldToken := u.VerifyToken
	if err := f.svc.ResendVerification(ctx, "a@b.com"); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if f.users.byID[u.ID].VerifyToken == oldToken {
		t.Fatal("token not regenerated")
	}

	// verified accounts are left alone
	f.users.byID[u.ID].IsVerified = true
	sent := len(f.mailer.sent)
	f.svc.ResendVerification(ctx, "a@b.com")
	if len(f.mailer.sent) != sent {
		t.Fatal("resend emailed a verified account")
	}
}

func TestDeleteAccountRequiresPassword(t *testing.T) {
	f := newAuthFixture()
	f.seedVerified(t, "alice", "a@b.com", "secret1")

	err := f.svc.DeleteAccount(context.Background(), "alice", "wrong")
	if !apperr.IsKind(err, apperr.KindAuthorization) {
		t.Fatalf("err = %v, want authorization", err)
	}
	if len(f.deleter.called) != 0 {
		t.Fatal("cascade ran despite failed password check")
	}
}

func TestDeleteAccountNotifiesPartnersAndClosesSockets(t *testing.T) {
	f := newAuthFixture()
	f.seedVerified(t, "alice", "a@b.com", "secret1")
	f.deleter.res = &DeletionResult{
		Partners:  []string{"bob"},
		DeletedAt: time.Now(),
	}

	aliceHandle := registry.NewHandle("a1", "alice")
	f.reg.Register(aliceHandle)
	bobHandle := registry.NewHandle("b1", "bob")
	f.reg.Register(bobHandle)

	if err := f.svc.DeleteAccount(context.Background(), "alice", "secret1"); err != nil {
		t.Fatalf("DeleteAccount: %v", err)
	}
	if len(f.deleter.called) != 1 || f.deleter.called[0] != "alice" {
		t.Fatalf("deleter calls = %v", f.deleter.called)
	}

	got := map[string]int{}
	for {
		select {
		case data := <-bobHandle.Send:
			var env struct {
				Event string `json:"event"`
			}
			if err := json.Unmarshal(data, &env); err != nil {
				t.Fatalf("bad frame: %v", err)
			}
			got[env.Event]++
			continue
		default:
		}
		break
	}
	if got[events.EvtUserAccountDeleted] != 1 || got[events.EvtRefreshFriendsList] != 1 {
		t.Fatalf("partner events = %v", got)
	}

	if aliceHandle.Deliver("anything", nil) {
		t.Fatal("deleted user's handle still accepts frames")
	}
}

func TestDeleteAccountSurfacesCascadeFailureUntouched(t *testing.T) {
	f := newAuthFixture()
	f.seedVerified(t, "alice", "a@b.com", "secret1")
	f.deleter.err = apperr.Timeout("delete account", context.DeadlineExceeded)

	err := f.svc.DeleteAccount(context.Background(), "alice", "secret1")
	if !apperr.IsKind(err, apperr.KindTimeout) {
		t.Fatalf("err = %v, want timeout passthrough", err)
	}
}
