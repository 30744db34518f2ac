// Package credentials holds user identities and performs authentication.
package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/fatimaafzal05/medi-trax/domain"
)

const minPasswordLength = 8

// Store is the credential store.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// New constructs a Store.
func New(db *sqlx.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// RegisterInput carries the fields for a new user.
type RegisterInput struct {
	Username string
	Password string
	FullName string
	Email    string
	Phone    string
	Role     domain.Role
}

// Register creates a user with a bcrypt password hash. A taken username
// fails with ErrConflict.
func (s *Store) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	username := strings.TrimSpace(in.Username)
	fullname := strings.TrimSpace(in.FullName)
	switch {
	case username == "":
		return domain.User{}, fmt.Errorf("%w: username is required", domain.ErrValidation)
	case fullname == "":
		return domain.User{}, fmt.Errorf("%w: full name is required", domain.ErrValidation)
	case len(in.Password) < minPasswordLength:
		return domain.User{}, fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	case !in.Role.Valid():
		return domain.User{}, fmt.Errorf("%w: role must be admin or pharmacist", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}

	var taken int
	if err := s.db.GetContext(ctx, &taken,
		`SELECT COUNT(*) FROM users WHERE username = ?`, username); err != nil {
		s.logger.Error("check username", "username", username, "error", err)
		return domain.User{}, fmt.Errorf("check username: %w", err)
	}
	if taken > 0 {
		return domain.User{}, fmt.Errorf("%w: username %q already exists", domain.ErrConflict, username)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, fullname, email, phone, role) VALUES (?, ?, ?, ?, ?, ?)`,
		username, string(hash), fullname, in.Email, in.Phone, in.Role)
	if err != nil {
		// The UNIQUE constraint closes the gap between check and insert.
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.User{}, fmt.Errorf("%w: username %q already exists", domain.ErrConflict, username)
		}
		s.logger.Error("register user", "username", username, "error", err)
		return domain.User{}, fmt.Errorf("register user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.User{}, fmt.Errorf("register user: %w", err)
	}

	return domain.User{
		ID:       id,
		Username: username,
		FullName: fullname,
		Email:    in.Email,
		Phone:    in.Phone,
		Role:     in.Role,
		Active:   true,
	}, nil
}

// Authenticate verifies a username and password against active users. Every
// failure mode returns the same ErrAuthFailed.
func (s *Store) Authenticate(ctx context.Context, username, password string) (domain.User, error) {
	var user domain.User
	err := s.db.GetContext(ctx, &user,
		`SELECT id, username, password_hash, fullname, email, phone, role, active, created_at
         FROM users WHERE username = ? AND active = 1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrAuthFailed
	}
	if err != nil {
		s.logger.Error("authenticate", "username", username, "error", err)
		return domain.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return domain.User{}, domain.ErrAuthFailed
	}
	user.PasswordHash = ""
	return user, nil
}

// ListUsers returns all users, newest last, without password hashes.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	users := []domain.User{}
	err := s.db.SelectContext(ctx, &users,
		`SELECT id, username, fullname, email, phone, role, active, created_at FROM users ORDER BY id`)
	if err != nil {
		s.logger.Error("list users", "error", err)
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Deactivate soft-deletes a user. History attribution stays intact.
func (s *Store) Deactivate(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET active = 0 WHERE id = ?`, id)
	if err != nil {
		s.logger.Error("deactivate user", "user_id", id, "error", err)
		return fmt.Errorf("deactivate user %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate user %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return nil
}

// UpdateProfile edits a user's contact fields.
func (s *Store) UpdateProfile(ctx context.Context, id int64, fullname, email, phone string) error {
	fullname = strings.TrimSpace(fullname)
	if fullname == "" {
		return fmt.Errorf("%w: full name is required", domain.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET fullname = ?, email = ?, phone = ? WHERE id = ?`,
		fullname, email, phone, id)
	if err != nil {
		s.logger.Error("update profile", "user_id", id, "error", err)
		return fmt.Errorf("update profile for user %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update profile for user %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user %d", domain.ErrNotFound, id)
	}
	return nil
}

// ChangePassword replaces a user's password after verifying the current one.
func (s *Store) ChangePassword(ctx context.Context, id int64, current, next string) error {
	if len(next) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	var storedHash string
	err := s.db.GetContext(ctx, &storedHash,
		`SELECT password_hash FROM users WHERE id = ? AND active = 1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrAuthFailed
	}
	if err != nil {
		s.logger.Error("change password", "user_id", id, "error", err)
		return fmt.Errorf("change password for user %d: %w", id, err)
	}
	if bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(current)) != nil {
		return domain.ErrAuthFailed
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ? WHERE id = ?`, string(hash), id); err != nil {
		s.logger.Error("change password", "user_id", id, "error", err)
		return fmt.Errorf("change password for user %d: %w", id, err)
	}
	return nil
}
