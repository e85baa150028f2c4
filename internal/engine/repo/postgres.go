package repo

import (
	"context"
	"database/sql"
	"errors"
)

// Erros de domínio surfaced pelos repositórios. A camada HTTP mapeia cada
// um para o status apropriado; nenhum deles é retryable internamente.
var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrNotGuest          = errors.New("account is not a guest")
	ErrGuestInactive     = errors.New("guest account inactive or expired")
	ErrBonusClaimed      = errors.New("bonus already claimed")
	ErrInsufficientFunds = errors.New("insufficient funds")

	ErrRaceNotFound     = errors.New("race not found")
	ErrRaceNotOpen      = errors.New("race is not open")
	ErrRaceNotDeletable = errors.New("race already finished, cannot delete")
	ErrDuplicateEntrant = errors.New("account already has a horse in this race")
	ErrDuplicateName    = errors.New("horse name already taken in this race")
	ErrSlotTaken        = errors.New("slot already taken")
	ErrSlotInvalid      = errors.New("slot out of range")
	ErrNoSlotAvailable  = errors.New("no free slot available")
	ErrHorseNotFound    = errors.New("horse not registered in this race")

	ErrDuplicateWager  = errors.New("account already wagered on this race")
	ErrAlreadyFinished = errors.New("race already finished")
	ErrRaceNotFinished = errors.New("race not finished")
	ErrAlreadySettled  = errors.New("race already settled")
)

// Postgres implementa o armazenamento do motor sobre um único banco.
// Toda sequência check-then-act roda numa transação com lock de linha,
// sempre na ordem corrida -> conta para evitar deadlock entre admissão
// e liquidação.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Ping delega ao pool, usado pelo healthz
func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// adjustBalance aplica uma mutação de saldo dentro da transação corrente
// e registra a operação no ledger de auditoria.
func adjustBalance(ctx context.Context, tx *sql.Tx, accountID string, delta int64, op, description string, wagerID *string) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance = balance + $1, updated_at = NOW() WHERE id = $2`,
		delta, accountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAccountNotFound
	}

	amount := delta
	if amount < 0 {
		amount = -amount
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO account_ledger (account_id, operation_type, amount, description, related_wager_id)
		 VALUES ($1, $2, $3, $4, $5)`,
		accountID, op, amount, description, wagerID)
	return err
}

// lockRace carrega e trava a linha da corrida (sem os cavalos).
func lockRace(ctx context.Context, tx *sql.Tx, raceID string) (*Race, error) {
	var r Race
	var winner, settledBy sql.NullString
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, scheduled_at, slot_count, status, winner_horse, finished_at, settled_at, settled_by, created_at
		FROM races WHERE id = $1 FOR UPDATE`, raceID).
		Scan(&r.ID, &r.Name, &r.ScheduledAt, &r.SlotCount, &r.Status, &winner, &r.FinishedAt, &r.SettledAt, &settledBy, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, err
	}
	r.WinnerHorse = winner.String
	r.SettledBy = settledBy.String
	return &r, nil
}

// raceHorses carrega os cavalos de uma corrida dentro da transação.
func raceHorses(ctx context.Context, tx *sql.Tx, raceID string) ([]Horse, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, race_id, name, owner_account_id, slot, created_at
		FROM horses WHERE race_id = $1 ORDER BY slot`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Horse
	for rows.Next() {
		var h Horse
		if err := rows.Scan(&h.ID, &h.RaceID, &h.Name, &h.OwnerAccountID, &h.Slot, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// raceWagers carrega as apostas de uma corrida dentro da transação.
func raceWagers(ctx context.Context, tx *sql.Tx, raceID string) ([]Wager, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, account_id, race_id, horse_name, amount, odds, finished, won, winnings, created_at, settled_at
		FROM wagers WHERE race_id = $1 ORDER BY created_at`, raceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *w)
	}
	return out, rows.Err()
}

type rowScanner interface{ Scan(dest ...any) error }

func scanWager(rs rowScanner) (*Wager, error) {
	var w Wager
	var won sql.NullBool
	if err := rs.Scan(&w.ID, &w.AccountID, &w.RaceID, &w.HorseName, &w.Amount, &w.Odds,
		&w.Finished, &won, &w.Winnings, &w.CreatedAt, &w.SettledAt); err != nil {
		return nil, err
	}
	w.Won = won.Bool
	return &w, nil
}
