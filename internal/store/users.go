package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/google/uuid"
)

func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT id, username, password, role, created_at FROM users WHERE username = ?`
	return s.getUser(ctx, query, username)
}

func (s *SQLiteStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT id, username, password, role, created_at FROM users WHERE id = ?`
	return s.getUser(ctx, query, id)
}

func (s *SQLiteStore) getUser(ctx context.Context, query string, arg string) (*models.User, error) {
	var user models.User
	err := s.DB.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.Password, &user.Role, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// CreateUser stores an account whose password is already hashed.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	prepareUser(u)
	query := `INSERT INTO users (id, username, password, role, created_at) VALUES (?, ?, ?, ?, ?)`
	_, err := s.DB.ExecContext(ctx, query, u.ID, u.Username, u.Password, u.Role, u.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrUserExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func prepareUser(u *models.User) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
}
