package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/playhouse-booking/internal/auth"
	"github.com/iliyamo/playhouse-booking/internal/middleware"
	"github.com/iliyamo/playhouse-booking/internal/model"
	"github.com/iliyamo/playhouse-booking/internal/repository"
	"github.com/iliyamo/playhouse-booking/internal/utils"
)

// UserStore is the account storage used by the auth and admin handlers.
type UserStore interface {
	auth.Users
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context, search string, limit, offset int) ([]model.User, error)
	SetAdmin(ctx context.Context, id uint64, admin bool) error
	SetActive(ctx context.Context, id uint64, active bool) error
	PromoteFirstAdmin(ctx context.Context, id uint64) error
}

// TokenStore keeps refresh token hashes.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	Validate(ctx context.Context, tokenHash string, now time.Time) (uint64, error)
	Rotate(ctx context.Context, userID uint64, oldHash, newHash string, exp time.Time) error
	Revoke(ctx context.Context, tokenHash string) error
	RevokeAll(ctx context.Context, userID uint64) error
}

type AuthConfig struct {
	JWTSecret      string
	AccessTTLMin   int
	RefreshTTLDays int
	BcryptCost     int
	CountryCode    string
	BootstrapToken string
}

// AuthHandler bundles dependencies for auth endpoints.  The Google
// resolver is optional.
type AuthHandler struct {
	cfg      AuthConfig
	users    UserStore
	tokens   TokenStore
	otp      *auth.OTPService
	password auth.Resolver
	otpLogin auth.Resolver
	google   auth.Resolver
}

func NewAuthHandler(cfg AuthConfig, users UserStore, tokens TokenStore, otp *auth.OTPService, google auth.Resolver) *AuthHandler {
	return &AuthHandler{
		cfg:      cfg,
		users:    users,
		tokens:   tokens,
		otp:      otp,
		password: auth.NewPasswordResolver(users),
		otpLogin: auth.NewOTPResolver(users, otp),
		google:   google,
	}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Phone    string `json:"phone"`
}

type loginReq struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type otpRequestReq struct {
	Phone string `json:"phone" validate:"required"`
}

type otpVerifyReq struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code"  validate:"required,numeric"`
	Name  string `json:"name"  validate:"max=100"`
}

type googleReq struct {
	IDToken string `json:"id_token" validate:"required"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

type userPart struct {
	ID      uint64  `json:"id"`
	Name    string  `json:"name"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
	IsAdmin bool    `json:"is_admin"`
}

type authResp struct {
	User    userPart  `json:"user"`
	Access  tokenPart `json:"access"`
	Refresh tokenPart `json:"refresh"`
}

func toUserPart(u *model.User) userPart {
	return userPart{ID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone, IsAdmin: u.IsAdmin}
}

func timeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), 5*time.Second)
}

// issue signs an access token and stores a new refresh token for id.
func (h *AuthHandler) issue(ctx context.Context, id auth.Identity) (tokenPart, tokenPart, error) {
	now := time.Now()
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, id.UserID, id.IsAdmin, h.cfg.AccessTTLMin, now)
	if err != nil {
		return tokenPart{}, tokenPart{}, err
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays, now)
	if err != nil {
		return tokenPart{}, tokenPart{}, err
	}
	if err := h.tokens.Store(ctx, id.UserID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return tokenPart{}, tokenPart{}, err
	}
	return tokenPart{Token: access.Token, Expires: access.Exp}, tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, nil
}

// signIn resolves credentials and answers with a token pair.
func (h *AuthHandler) signIn(c echo.Context, r auth.Resolver, cred auth.Credentials, status int) error {
	ctx, cancel := timeout(c)
	defer cancel()

	id, err := r.Resolve(ctx, cred)
	if err != nil {
		return respondErr(c, err)
	}
	u, err := h.users.GetByID(ctx, id.UserID)
	if err != nil {
		return respondErr(c, err)
	}
	access, refresh, err := h.issue(ctx, id)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(status, authResp{User: toUserPart(u), Access: access, Refresh: refresh})
}

// Register creates a password account and signs it in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	if err := utils.CheckPassword(req.Password); err != nil {
		return respondErr(c, err)
	}

	u := &model.User{Name: strings.TrimSpace(req.Name), IsActive: true}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	u.Email = &email
	if req.Phone != "" {
		phone, err := utils.NormalizePhone(req.Phone, h.cfg.CountryCode)
		if err != nil {
			return respondErr(c, err)
		}
		u.Phone = &phone
	}
	hash, err := utils.HashPassword(req.Password, h.cfg.BcryptCost)
	if err != nil {
		return respondErr(c, err)
	}
	u.PasswordHash = &hash

	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.users.Create(ctx, u); err != nil {
		return respondErr(c, err)
	}
	return h.signIn(c, h.password, auth.Credentials{Email: email, Password: req.Password}, http.StatusCreated)
}

// Login signs in with email and password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	return h.signIn(c, h.password, auth.Credentials{Email: req.Email, Password: req.Password}, http.StatusOK)
}

// RequestOTP sends a login code over WhatsApp.
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req otpRequestReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	phone, err := h.otp.Request(ctx, req.Phone)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"phone": phone, "expires_in": int(h.otp.TTL().Seconds())})
}

// VerifyOTP signs in with a login code, creating the account on first use.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpVerifyReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	return h.signIn(c, h.otpLogin, auth.Credentials{Phone: req.Phone, Code: req.Code, Name: req.Name}, http.StatusOK)
}

// Google signs in with a Google ID token.
func (h *AuthHandler) Google(c echo.Context) error {
	if h.google == nil {
		return fail(c, http.StatusNotImplemented, "google_disabled", "google sign-in is not configured")
	}
	var req googleReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	return h.signIn(c, h.google, auth.Credentials{IDToken: req.IDToken}, http.StatusOK)
}

// Refresh rotates a refresh token and returns a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	oldHash := utils.HashToken(req.RefreshToken)
	uid, err := h.tokens.Validate(ctx, oldHash, time.Now())
	if err != nil {
		return fail(c, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid or expired")
	}
	u, err := h.users.GetByID(ctx, uid)
	if err != nil {
		return respondErr(c, err)
	}
	id, err := auth.IdentityOf(u)
	if err != nil {
		return respondErr(c, err)
	}

	now := time.Now()
	access, err := utils.NewAccessToken(h.cfg.JWTSecret, id.UserID, id.IsAdmin, h.cfg.AccessTTLMin, now)
	if err != nil {
		return respondErr(c, err)
	}
	refresh, err := utils.NewRefreshToken(h.cfg.RefreshTTLDays, now)
	if err != nil {
		return respondErr(c, err)
	}
	if err := h.tokens.Rotate(ctx, uid, oldHash, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
		return fail(c, http.StatusUnauthorized, "invalid_refresh_token", "refresh token is invalid or expired")
	}
	return c.JSON(http.StatusOK, authResp{
		User:    toUserPart(u),
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	})
}

// Logout revokes a refresh token, or every token of its owner with
// ?all=true.  Unknown tokens are not an error.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return respondErr(c, err)
	}
	ctx, cancel := timeout(c)
	defer cancel()

	hash := utils.HashToken(req.RefreshToken)
	uid, err := h.tokens.Validate(ctx, hash, time.Now())
	if err != nil {
		return c.NoContent(http.StatusNoContent)
	}
	if c.QueryParam("all") == "true" {
		err = h.tokens.RevokeAll(ctx, uid)
	} else {
		err = h.tokens.Revoke(ctx, hash)
	}
	if err != nil {
		return respondErr(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "missing identity")
	}
	ctx, cancel := timeout(c)
	defer cancel()

	u, err := h.users.GetByID(ctx, uid)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, toUserPart(u))
}

// Bootstrap promotes the caller to admin when the request carries the
// configured bootstrap token and no admin exists yet.  It answers with
// a token pair carrying the admin claim.
func (h *AuthHandler) Bootstrap(c echo.Context) error {
	if h.cfg.BootstrapToken == "" {
		return fail(c, http.StatusNotFound, "not_found", "bootstrap is disabled")
	}
	uid, ok := middleware.UserID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized", "missing identity")
	}
	given := c.Request().Header.Get("X-Bootstrap-Token")
	if subtle.ConstantTimeCompare([]byte(given), []byte(h.cfg.BootstrapToken)) != 1 {
		return fail(c, http.StatusForbidden, "forbidden", "invalid bootstrap token")
	}

	ctx, cancel := timeout(c)
	defer cancel()
	if err := h.users.PromoteFirstAdmin(ctx, uid); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusForbidden, "admin_exists", "an admin already exists")
		}
		return respondErr(c, err)
	}
	u, err := h.users.GetByID(ctx, uid)
	if err != nil {
		return respondErr(c, err)
	}
	access, refresh, err := h.issue(ctx, auth.Identity{UserID: u.ID, IsAdmin: u.IsAdmin, Name: u.Name})
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(http.StatusOK, authResp{User: toUserPart(u), Access: access, Refresh: refresh})
}
