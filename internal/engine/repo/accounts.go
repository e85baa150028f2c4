package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Saldo inicial de toda conta nova e valor do bônus reivindicável.
const (
	InitialBalance int64 = 100
	ClaimableBonus int64 = 30
)

// CreateMember cria uma conta de membro com o saldo inicial padrão.
func (p *Postgres) CreateMember(ctx context.Context, name string) (*Account, error) {
	a := &Account{
		ID:       uuid.NewString(),
		Kind:     KindMember,
		Name:     name,
		Balance:  InitialBalance,
		IsActive: true,
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, kind, name, balance)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		a.ID, a.Kind, a.Name, a.Balance).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// CreateGuest cria uma conta efêmera administrada. O código curto serve
// para o administrador identificar o convidado no evento.
func (p *Postgres) CreateGuest(ctx context.Context, name string, initialPoints int64, expiresAt *time.Time) (*Account, error) {
	if initialPoints <= 0 {
		initialPoints = InitialBalance
	}
	code := strings.ToUpper(uuid.NewString()[:8])
	a := &Account{
		ID:        uuid.NewString(),
		Kind:      KindGuest,
		Name:      name,
		Balance:   initialPoints,
		GuestCode: code,
		IsActive:  true,
		ExpiresAt: expiresAt,
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO accounts (id, kind, name, balance, guest_code, is_active, expires_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		RETURNING created_at, updated_at`,
		a.ID, a.Kind, a.Name, a.Balance, a.GuestCode, a.ExpiresAt).Scan(&a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetAccount retorna uma conta pelo id.
func (p *Postgres) GetAccount(ctx context.Context, id string) (*Account, error) {
	return getAccount(ctx, p.db.QueryRowContext, id, false)
}

type queryRowFn func(ctx context.Context, query string, args ...any) *sql.Row

func getAccount(ctx context.Context, queryRow queryRowFn, id string, forUpdate bool) (*Account, error) {
	q := `
		SELECT id, kind, name, balance, bonus_claimed, guest_code, is_active, expires_at, created_at, updated_at
		FROM accounts WHERE id = $1`
	if forUpdate {
		q += " FOR UPDATE"
	}
	var a Account
	var code sql.NullString
	err := queryRow(ctx, q, id).Scan(&a.ID, &a.Kind, &a.Name, &a.Balance, &a.BonusClaimed,
		&code, &a.IsActive, &a.ExpiresAt, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	a.GuestCode = code.String
	return &a, nil
}

// ClaimBonus credita o bônus único da conta. A flag é checada e marcada
// sob lock para que duas reivindicações concorrentes não dupliquem.
func (p *Postgres) ClaimBonus(ctx context.Context, accountID string) (newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	a, err := getAccount(ctx, tx.QueryRowContext, accountID, true)
	if err != nil {
		return 0, err
	}
	if a.BonusClaimed {
		return 0, ErrBonusClaimed
	}

	if err = adjustBalance(ctx, tx, accountID, ClaimableBonus, "BONUS", "one-time bonus", nil); err != nil {
		return 0, err
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE accounts SET bonus_claimed = TRUE WHERE id = $1`, accountID); err != nil {
		return 0, err
	}
	if err = tx.QueryRowContext(ctx,
		`SELECT balance FROM accounts WHERE id = $1`, accountID).Scan(&newBalance); err != nil {
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return newBalance, nil
}

// SetGuestActive ativa ou desativa uma conta de convidado. A trava só
// vale para admissão de novas apostas; liquidações não a consultam.
func (p *Postgres) SetGuestActive(ctx context.Context, accountID string, active bool, expiresAt *time.Time) (*Account, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	a, err := getAccount(ctx, tx.QueryRowContext, accountID, true)
	if err != nil {
		return nil, err
	}
	if a.Kind != KindGuest {
		return nil, ErrNotGuest
	}

	if expiresAt == nil {
		expiresAt = a.ExpiresAt
	}
	if _, err = tx.ExecContext(ctx,
		`UPDATE accounts SET is_active = $1, expires_at = $2, updated_at = NOW() WHERE id = $3`,
		active, expiresAt, accountID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	a.IsActive = active
	a.ExpiresAt = expiresAt
	return a, nil
}

// guestMayWager decide se a conta pode admitir apostas novas.
func guestMayWager(a *Account, now time.Time) bool {
	if a.Kind != KindGuest {
		return true
	}
	if !a.IsActive {
		return false
	}
	if a.ExpiresAt != nil && now.After(*a.ExpiresAt) {
		return false
	}
	return true
}
