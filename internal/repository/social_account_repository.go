package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
)

const accountColumns = `id, platform, platform_user_id, handle, access_token, refresh_token,
	token_expires_at, status, metadata, last_synced_at, created_at, updated_at`

type socialAccountRepository struct {
	db     *sql.DB
	cipher TokenCipher
}

func NewSocialAccountRepository(db *sql.DB, cipher TokenCipher) SocialAccountRepository {
	return &socialAccountRepository{db: db, cipher: cipher}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *socialAccountRepository) scan(row rowScanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := row.Scan(&sa.ID, &sa.Platform, &sa.PlatformUserID, &sa.Handle, &sa.AccessToken,
		&sa.RefreshToken, &sa.TokenExpiresAt, &sa.Status, &sa.Metadata, &sa.LastSyncedAt,
		&sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if sa.AccessToken, err = r.cipher.Decrypt(sa.AccessToken); err != nil {
		return nil, fmt.Errorf("account %d access token: %w", sa.ID, err)
	}
	if sa.RefreshToken, err = r.cipher.Decrypt(sa.RefreshToken); err != nil {
		return nil, fmt.Errorf("account %d refresh token: %w", sa.ID, err)
	}

	return &sa, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE id = $1`

	sa, err := r.scan(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get account %d: %w", id, err)
	}

	return sa, nil
}

func (r *socialAccountRepository) ListActive(ctx context.Context) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + ` FROM social_accounts WHERE status = $1 ORDER BY id`
	return r.list(ctx, query, models.AccountStatusActive)
}

func (r *socialAccountRepository) ListRefreshCandidates(ctx context.Context, before time.Time) ([]*models.SocialAccount, error) {
	query := `SELECT ` + accountColumns + `
		FROM social_accounts
		WHERE status = $1
		AND token_expires_at IS NOT NULL
		AND token_expires_at <= $2
		ORDER BY token_expires_at`
	return r.list(ctx, query, models.AccountStatusActive, before)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("list accounts: %w", err)
		}
		accounts = append(accounts, sa)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	return accounts, nil
}

func (r *socialAccountRepository) UpdateToken(ctx context.Context, id int64, token *models.AccountToken) error {
	accessToken, err := r.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return err
	}
	refreshToken, err := r.cipher.Encrypt(token.RefreshToken)
	if err != nil {
		return err
	}

	query := `
		UPDATE social_accounts
		SET
			access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	return r.exec(ctx, "update token", id, query, id, accessToken, refreshToken, token.ExpiresAt)
}

func (r *socialAccountRepository) SetStatus(ctx context.Context, id int64, status models.AccountStatus) error {
	query := `UPDATE social_accounts SET status = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	return r.exec(ctx, "set status", id, query, id, status)
}

func (r *socialAccountRepository) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE social_accounts SET last_synced_at = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $1`
	return r.exec(ctx, "mark synced", id, query, id, at)
}

func (r *socialAccountRepository) exec(ctx context.Context, op string, id int64, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s for account %d: %w", op, id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s for account %d: %w", op, id, err)
	}
	if affected != 1 {
		return fmt.Errorf("%s: account %d not found", op, id)
	}
	return nil
}
