package database

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"media-catalog/internal/logging"
)

// Roles for authenticated principals. Admins take the fast-path publish on
// upload; reviewers may create approval decisions.
const (
	RoleAdmin    = "admin"
	RoleReviewer = "reviewer"
	RoleUploader = "uploader"
)

// User is an authenticated principal.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsPrivileged reports whether the user's uploads bypass the review queue.
func (u *User) IsPrivileged() bool {
	return u.Role == RoleAdmin
}

// SessionDuration is the length of time a session remains valid.
const SessionDuration = 7 * 24 * time.Hour

// ErrInvalidCredentials is returned for unknown users or wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// CreateUser creates a user with a bcrypt-hashed password.
func (d *Database) CreateUser(ctx context.Context, username, password, role string) (*User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &User{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		CreatedAt: time.Now(),
	}

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = d.db.ExecContext(qCtx,
		"INSERT INTO users (id, username, password_hash, role) VALUES (?, ?, ?, ?)",
		user.ID, username, string(hash), role)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// SetPassword replaces a user's password hash.
func (d *Database) SetPassword(ctx context.Context, username, password string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(qCtx,
		"UPDATE users SET password_hash = ?, updated_at = strftime('%s', 'now') WHERE username = ?",
		string(hash), username)
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ValidateCredentials checks a username/password pair and returns the user.
func (d *Database) ValidateCredentials(ctx context.Context, username, password string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	user, err := d.getUserByUsername(qCtx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (d *Database) getUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	var createdAt int64
	err := d.db.QueryRowContext(ctx,
		"SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?",
		username).Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// HasUsers reports whether any account exists yet.
func (d *Database) HasUsers(ctx context.Context) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	if err := d.db.QueryRowContext(qCtx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return false
	}
	return count > 0
}

// CreateSession creates a session token for a user.
func (d *Database) CreateSession(ctx context.Context, userID string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("create_session", start, err) }()

	d.mu.Lock()
	defer d.mu.Unlock()

	token, err := generateToken()
	if err != nil {
		return "", err
	}

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	expires := time.Now().Add(SessionDuration)
	_, err = d.db.ExecContext(qCtx,
		"INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, token, expires.Unix())
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return token, nil
}

// ValidateSession resolves a session token to its user, rejecting expired
// sessions.
func (d *Database) ValidateSession(ctx context.Context, token string) (*User, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("validate_session", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var user User
	var createdAt, expiresAt int64
	err = d.db.QueryRowContext(qCtx, `
		SELECT u.id, u.username, u.password_hash, u.role, u.created_at, s.expires_at
		FROM sessions s JOIN users u ON u.id = s.user_id
		WHERE s.token = ?`, token).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Role, &createdAt, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if time.Now().Unix() >= expiresAt {
		err = ErrNotFound
		return nil, ErrNotFound
	}

	user.CreatedAt = time.Unix(createdAt, 0)
	return &user, nil
}

// DeleteSession removes a session token (logout).
func (d *Database) DeleteSession(ctx context.Context, token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	qCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(qCtx, "DELETE FROM sessions WHERE token = ?", token)
	return err
}

// CleanExpiredSessions removes sessions past their expiry.
func (d *Database) CleanExpiredSessions() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		"DELETE FROM sessions WHERE expires_at < ?", time.Now().Unix())
	if err != nil {
		logging.Warn("failed to clean expired sessions: %v", err)
		return
	}
	if removed, err := res.RowsAffected(); err == nil && removed > 0 {
		logging.Debug("Cleaned %d expired sessions", removed)
	}
}

// generateToken returns a random 256-bit session token, hex encoded.
func generateToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}
