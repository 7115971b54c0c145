package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/events"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/notify"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/registry"
)

const (
	minPasswordLen    = 6
	verifyTokenExpiry = 24 * time.Hour
)

// ErrEmailUnverified distinguishes the login failure that should prompt
// the client to offer a resend-verification action.
var ErrEmailUnverified = apperr.Authorization("email not verified")

// UserStore is the account repository surface the service needs.
type UserStore interface {
	Insert(ctx context.Context, u *models.User) error
	ByID(ctx context.Context, id string) (*models.User, error)
	ByEmail(ctx context.Context, email string) (*models.User, error)
	ByUsername(ctx context.Context, username string) (*models.User, error)
	ByVerifyToken(ctx context.Context, token string) (*models.User, error)
	MarkVerified(ctx context.Context, id string) error
	SetVerifyToken(ctx context.Context, id, token string, expires time.Time) error
	UpdateProfile(ctx context.Context, id, fullname, about, profilePic string) (*models.User, error)
	Delete(ctx context.Context, id string) error
}

// Mailer sends account emails.
type Mailer interface {
	SendVerification(ctx context.Context, to, name, token string) error
}

// AccountDeleter runs the deletion cascade atomically.
type AccountDeleter interface {
	DeleteAccount(ctx context.Context, userID string) (*DeletionResult, error)
}

// DeletionResult mirrors the store result without importing it.
type DeletionResult struct {
	Partners  []string
	DeletedAt time.Time
}

// Service owns signup, verification, login and account deletion.
type Service struct {
	users        UserStore
	mailer       Mailer
	deleter      AccountDeleter
	reg          *registry.Registry
	router       *notify.Router
	storeTimeout time.Duration
	log          *zap.Logger
	now          func() time.Time
}

func NewService(users UserStore, mailer Mailer, deleter AccountDeleter, reg *registry.Registry, router *notify.Router, storeTimeout time.Duration, log *zap.Logger) *Service {
	return &Service{
		users:        users,
		mailer:       mailer,
		deleter:      deleter,
		reg:          reg,
		router:       router,
		storeTimeout: storeTimeout,
		log:          log,
		now:          time.Now,
	}
}

// storeCtx bounds repository calls so a wedged store surfaces as a
// retryable timeout instead of hanging the request.
func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}

// Signup creates an unverified account and emails the verification link.
// If the email cannot be sent the account is rolled back so the address
// stays free for a retry.
func (s *Service) Signup(ctx context.Context, fullname, username, email, password string) (*models.User, error) {
	fullname = strings.TrimSpace(fullname)
	username = strings.ToLower(strings.TrimSpace(username))
	email = strings.ToLower(strings.TrimSpace(email))
	switch {
	case fullname == "" || username == "" || email == "":
		return nil, apperr.Validation("all fields are required")
	case !strings.Contains(email, "@"):
		return nil, apperr.Validation("invalid email address")
	case len(password) < minPasswordLen:
		return nil, apperr.Validation("password must be at least %d characters", minPasswordLen)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}
	token, err := newVerifyToken()
	if err != nil {
		return nil, apperr.Internal("verification token", err)
	}

	u := &models.User{
		ID:            uuid.NewString(),
		Fullname:      fullname,
		Username:      username,
		Email:         email,
		Password:      string(hashed),
		VerifyToken:   token,
		VerifyExpires: s.now().Add(verifyTokenExpiry),
	}
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.users.Insert(sctx, u); err != nil {
		return nil, err
	}

	if err := s.mailer.SendVerification(ctx, email, fullname, token); err != nil {
		rctx, rcancel := s.storeCtx(ctx)
		delErr := s.users.Delete(rctx, u.ID)
		rcancel()
		if delErr != nil {
			s.log.Error("signup rollback failed",
				zap.String("user_id", u.ID), zap.Error(delErr))
		}
		return nil, apperr.Internal("send verification email", err)
	}
	return u, nil
}

// VerifyEmail activates the account holding the token.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.Validation("verification token is required")
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	u, err := s.users.ByVerifyToken(ctx, token)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Validation("invalid or expired verification token")
		}
		return nil, err
	}
	if err := s.users.MarkVerified(ctx, u.ID); err != nil {
		return nil, err
	}
	u.IsVerified = true
	return u, nil
}

// ResendVerification regenerates the token for an unverified account. It
// reports success for unknown addresses so the endpoint cannot be used to
// probe which emails exist.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	u, err := s.users.ByEmail(sctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil
		}
		return err
	}
	if u.IsVerified || u.IsDeleted {
		return nil
	}
	token, err := newVerifyToken()
	if err != nil {
		return apperr.Internal("verification token", err)
	}
	if err := s.users.SetVerifyToken(sctx, u.ID, token, s.now().Add(verifyTokenExpiry)); err != nil {
		return err
	}
	return s.mailer.SendVerification(ctx, u.Email, u.Fullname, token)
}

// Login checks credentials and rejects unverified or deleted accounts.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	u, err := s.users.ByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Authorization("invalid credentials")
		}
		return nil, err
	}
	if u.IsDeleted {
		return nil, apperr.Authorization("invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, apperr.Authorization("invalid credentials")
	}
	if !u.IsVerified {
		return nil, ErrEmailUnverified
	}
	return u, nil
}

// Me returns the authenticated user's own account.
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	u, err := s.users.ByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsDeleted {
		return nil, apperr.NotFound("user")
	}
	return u, nil
}

// UpdateProfile applies profile edits. The picture is already uploaded;
// only its URL lands here.
func (s *Service) UpdateProfile(ctx context.Context, userID, fullname, about, profilePic string) (*models.User, error) {
	fullname = strings.TrimSpace(fullname)
	about = strings.TrimSpace(about)
	if fullname == "" && about == "" && profilePic == "" {
		return nil, apperr.Validation("nothing to update")
	}
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.users.UpdateProfile(ctx, userID, fullname, about, profilePic)
}

// DeleteAccount verifies the password, runs the cascade, then notifies
// the affected friends best-effort.
func (s *Service) DeleteAccount(ctx context.Context, userID, password string) error {
	sctx, cancel := s.storeCtx(ctx)
	u, err := s.users.ByID(sctx, userID)
	cancel()
	if err != nil {
		return err
	}
	if u.IsDeleted {
		return apperr.NotFound("user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return apperr.Authorization("incorrect password")
	}

	res, err := s.deleter.DeleteAccount(ctx, userID)
	if err != nil {
		return err
	}

	payload := map[string]any{"userId": userID, "deletedAt": res.DeletedAt}
	for _, partnerID := range res.Partners {
		s.reg.DeliverToUser(partnerID, events.EvtUserAccountDeleted, payload)
		s.reg.DeliverToUser(partnerID, events.EvtRefreshFriendsList, nil)
		out, err := s.router.Send(ctx, notify.Notification{
			UserID:   partnerID,
			Title:    "Account deleted",
			Body:     u.Fullname + " has deleted their account",
			Priority: notify.PriorityNormal,
			Payload:  notify.AccountActivityPayload{UserID: userID, Event: "account_deleted"},
		})
		if err == nil && !out.Delivered && out.Reason != "" {
			s.log.Debug("account deletion notification skipped",
				zap.String("partner", partnerID), zap.String("reason", out.Reason))
		}
	}
	for _, h := range s.reg.HandlesFor(userID) {
		h.Close()
	}
	s.log.Info("account deleted", zap.String("user_id", userID),
		zap.Int("partners", len(res.Partners)))
	return nil
}

func newVerifyToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
