package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/worklance/backend/internal/models"
)

type UserRepo struct {
	db DBTX
}

func NewUserRepo(db DBTX) *UserRepo {
	return &UserRepo{db: db}
}

// UpsertByWallet creates the user on first sign-in; repeat sign-ins refresh
// activity. Role is set once and never downgraded by a login.
func (r *UserRepo) UpsertByWallet(ctx context.Context, wallet, role string, displayName *string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		INSERT INTO users (wallet_address, role, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE SET
			display_name = COALESCE(EXCLUDED.display_name, users.display_name),
			last_active_at = now()
		RETURNING id, wallet_address, role, display_name, created_at, last_active_at
	`, wallet, role, displayName).Scan(
		&u.ID, &u.WalletAddress, &u.Role, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, wallet_address, role, display_name, created_at, last_active_at
		FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.WalletAddress, &u.Role, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByWallet(ctx context.Context, wallet string) (*models.User, error) {
	var u models.User
	err := r.db.QueryRow(ctx, `
		SELECT id, wallet_address, role, display_name, created_at, last_active_at
		FROM users WHERE wallet_address = $1
	`, wallet).Scan(&u.ID, &u.WalletAddress, &u.Role, &u.DisplayName, &u.CreatedAt, &u.LastActiveAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) UpdateLastActive(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `UPDATE users SET last_active_at = $1 WHERE id = $2`, time.Now(), id)
	return err
}
