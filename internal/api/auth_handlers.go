package api

import (
	"errors"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/auth"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/media"
)

// AuthHandlers owns the account endpoints.
type AuthHandlers struct {
	svc          *auth.Service
	tokens       *auth.TokenManager
	uploader     *media.Uploader
	secureCookie bool
	log          *zap.Logger
}

func NewAuthHandlers(svc *auth.Service, tokens *auth.TokenManager, uploader *media.Uploader, secureCookie bool, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		svc:          svc,
		tokens:       tokens,
		uploader:     uploader,
		secureCookie: secureCookie,
		log:          log,
	}
}

type signupRequest struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) Signup(c *fiber.Ctx) error {
	var req signupRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, h.log, "signup", apperr.Validation("invalid request body"))
	}
	u, err := h.svc.Signup(c.UserContext(), req.Fullname, req.Username, req.Email, req.Password)
	if err != nil {
		return fail(c, h.log, "signup", err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "account created, check your email to verify",
		"user":    u,
	})
}

func (h *AuthHandlers) VerifyEmail(c *fiber.Ctx) error {
	u, err := h.svc.VerifyEmail(c.UserContext(), c.Query("token"))
	if err != nil {
		return fail(c, h.log, "verify email", err)
	}
	return c.JSON(fiber.Map{"message": "email verified", "user": u})
}

func (h *AuthHandlers) ResendVerification(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, h.log, "resend verification", apperr.Validation("invalid request body"))
	}
	if err := h.svc.ResendVerification(c.UserContext(), req.Email); err != nil {
		return fail(c, h.log, "resend verification", err)
	}
	return c.JSON(fiber.Map{"message": "verification email sent if the account exists"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandlers) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, h.log, "login", apperr.Validation("invalid request body"))
	}
	u, err := h.svc.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrEmailUnverified) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":                "email not verified",
				"requiresVerification": true,
			})
		}
		return fail(c, h.log, "login", err)
	}
	if err := h.setSessionCookie(c, u.ID); err != nil {
		return fail(c, h.log, "login", apperr.Internal("issue token", err))
	}
	return c.JSON(u)
}

func (h *AuthHandlers) Logout(c *fiber.Ctx) error {
	h.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "logged out"})
}

func (h *AuthHandlers) Check(c *fiber.Ctx) error {
	u, err := h.svc.Me(c.UserContext(), auth.UserID(c))
	if err != nil {
		return fail(c, h.log, "check auth", err)
	}
	return c.JSON(u)
}

func (h *AuthHandlers) UpdateProfile(c *fiber.Ctx) error {
	userID := auth.UserID(c)
	fullname := c.FormValue("fullname")
	about := c.FormValue("about")

	var picURL string
	if file, err := c.FormFile("profilePic"); err == nil {
		f, err := file.Open()
		if err != nil {
			return fail(c, h.log, "update profile", apperr.Validation("unreadable upload"))
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return fail(c, h.log, "update profile", apperr.Validation("unreadable upload"))
		}
		picURL, err = h.uploader.UploadAvatar(c.UserContext(), userID, data)
		if err != nil {
			return fail(c, h.log, "update profile", err)
		}
	}

	u, err := h.svc.UpdateProfile(c.UserContext(), userID, fullname, about, picURL)
	if err != nil {
		return fail(c, h.log, "update profile", err)
	}
	return c.JSON(u)
}

func (h *AuthHandlers) DeleteAccount(c *fiber.Ctx) error {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, h.log, "delete account", apperr.Validation("invalid request body"))
	}
	if err := h.svc.DeleteAccount(c.UserContext(), auth.UserID(c), req.Password); err != nil {
		return fail(c, h.log, "delete account", err)
	}
	h.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "account deleted"})
}

func (h *AuthHandlers) setSessionCookie(c *fiber.Ctx, userID string) error {
	token, expires, err := h.tokens.Issue(userID)
	if err != nil {
		return err
	}
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Expires:  expires,
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return nil
}

func (h *AuthHandlers) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
