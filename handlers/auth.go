package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"

	"quickpad/config"
	"quickpad/crypto"
	"quickpad/database"
	"quickpad/metrics"
	"quickpad/utils"
)

// AuthHandler implements registration, login and profile management
type AuthHandler struct {
	db    database.Database
	redis *redis.Client
	cfg   *config.Config
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db database.Database, rdb *redis.Client, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, redis: rdb, cfg: cfg}
}

type registerRequest struct {
	Email     string `json:"email"`
	Username  string `json:"username"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileUpdateRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Avatar    *string `json:"avatar"`
}

// Register creates a new account. Emails and usernames are unique among
// active and soft-deleted accounts alike.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return respondValidationError(c, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if req.Email == "" || !strings.Contains(req.Email, "@") {
		return respondValidationError(c, "A valid email is required")
	}
	if len(req.Username) < 3 || len(req.Username) > 32 {
		return respondValidationError(c, "Username must be between 3 and 32 characters")
	}
	if len(req.Password) < 8 {
		return respondValidationError(c, "Password must be at least 8 characters")
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return respondStorageError(c, "REGISTER_SALT", err, "Registration failed")
	}
	passwordHash := crypto.HashPassword(req.Password, salt)

	userID := uuid.New().String()
	_, err = h.db.Exec(c.Context(), `
		INSERT INTO users (id, email, username, password_hash, first_name, last_name, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, true, NOW(), NOW())`,
		userID, req.Email, req.Username, passwordHash, req.FirstName, req.LastName)
	if err != nil {
		if isUniqueViolation(err) {
			return respondError(c, fiber.StatusConflict, "Email or username is already in use")
		}
		return respondStorageError(c, "REGISTER", err, "Registration failed")
	}

	metrics.IncrementDatabaseQuery("insert")
	utils.LogInfo("User registered", "user_id", userID)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"user": fiber.Map{
			"id":       userID,
			"email":    req.Email,
			"username": req.Username,
		},
		"message": "Account created successfully",
	})
}

// Login verifies credentials, issues a signed token and records the session
// in Redis so logout can revoke it before expiry.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return respondValidationError(c, "Invalid request body")
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return respondValidationError(c, "Email and password are required")
	}

	var (
		userID, username, passwordHash string
	)
	err := h.db.QueryRow(c.Context(), `
		SELECT id, username, password_hash FROM users
		WHERE email = $1 AND is_active = true`, req.Email).
		Scan(&userID, &username, &passwordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondUnauthorized(c, "Invalid credentials")
		}
		return respondStorageError(c, "LOGIN", err, "Login failed")
	}

	if !crypto.VerifyPassword(req.Password, passwordHash) {
		return respondUnauthorized(c, "Invalid credentials")
	}

	token, err := h.issueToken(userID)
	if err != nil {
		return respondStorageError(c, "LOGIN_TOKEN", err, "Login failed")
	}

	if h.redis != nil {
		if err := h.redis.Set(c.Context(), crypto.SessionKey(token), userID, h.cfg.SessionDuration).Err(); err != nil {
			return respondStorageError(c, "LOGIN_SESSION", err, "Login failed")
		}
	}

	metrics.IncrementDatabaseQuery("select")

	return respondOK(c, fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":       userID,
			"email":    req.Email,
			"username": username,
		},
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return respondUnauthorized(c, "Authentication required")
	}

	var (
		email, username             string
		firstName, lastName, avatar *string
		createdAt                   time.Time
	)
	err := h.db.QueryRow(c.Context(), `
		SELECT email, username, first_name, last_name, avatar, created_at
		FROM users WHERE id = $1 AND is_active = true`, userID).
		Scan(&email, &username, &firstName, &lastName, &avatar, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return respondUnauthorized(c, "Account not found")
		}
		return respondStorageError(c, "PROFILE", err, "Failed to load profile")
	}

	metrics.IncrementDatabaseQuery("select")

	return respondOK(c, fiber.Map{
		"user": fiber.Map{
			"id":        userID,
			"email":     email,
			"username":  username,
			"firstName": derefOrEmpty(firstName),
			"lastName":  derefOrEmpty(lastName),
			"avatar":    derefOrEmpty(avatar),
			"createdAt": utils.FormatTime(createdAt),
		},
	})
}

// UpdateProfile changes the mutable profile fields. Omitted fields are left
// untouched.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return respondUnauthorized(c, "Authentication required")
	}

	var req profileUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return respondValidationError(c, "Invalid request body")
	}
	if req.FirstName == nil && req.LastName == nil && req.Avatar == nil {
		return respondValidationError(c, "Nothing to update")
	}

	_, err := h.db.Exec(c.Context(), `
		UPDATE users SET
			first_name = COALESCE($1, first_name),
			last_name = COALESCE($2, last_name),
			avatar = COALESCE($3, avatar),
			updated_at = NOW()
		WHERE id = $4 AND is_active = true`,
		req.FirstName, req.LastName, req.Avatar, userID)
	if err != nil {
		return respondStorageError(c, "UPDATE_PROFILE", err, "Failed to update profile")
	}

	metrics.IncrementDatabaseQuery("update")
	return respondOK(c, fiber.Map{"message": "Profile updated successfully"})
}

// Logout revokes the current session token.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	token := BearerToken(c)
	if token == "" {
		return respondUnauthorized(c, "Authentication required")
	}
	if h.redis != nil {
		if err := h.redis.Del(c.Context(), crypto.SessionKey(token)).Err(); err != nil {
			return respondStorageError(c, "LOGOUT", err, "Logout failed")
		}
	}
	return respondOK(c, fiber.Map{"message": "Logged out successfully"})
}

// DeleteAccount soft-deletes the authenticated user and revokes the session.
// The row stays behind with is_active=false; no data is physically removed.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return respondUnauthorized(c, "Authentication required")
	}

	tag, err := h.db.Exec(c.Context(), `
		UPDATE users SET is_active = false, updated_at = NOW()
		WHERE id = $1 AND is_active = true`, userID)
	if err != nil {
		return respondStorageError(c, "DELETE_ACCOUNT", err, "Failed to delete account")
	}
	if tag.RowsAffected() == 0 {
		return respondNotFound(c, "Account not found")
	}

	if token := BearerToken(c); token != "" && h.redis != nil {
		if err := h.redis.Del(c.Context(), crypto.SessionKey(token)).Err(); err != nil {
			utils.LogRequestError(c, "DELETE_ACCOUNT_SESSION", err, "user_id", userID)
		}
	}

	metrics.IncrementDatabaseQuery("update")
	return respondOK(c, fiber.Map{"message": "Account deleted successfully"})
}

func (h *AuthHandler) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(h.cfg.SessionDuration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(h.cfg.JWTSecret)
}

// BearerToken extracts the bearer token from the Authorization header.
func BearerToken(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
