package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Limites do número de slots de uma corrida.
const (
	MinSlots = 3
	MaxSlots = 16
)

// CreateRace cria uma corrida aberta com todos os slots livres.
func (p *Postgres) CreateRace(ctx context.Context, name string, scheduledAt time.Time, slotCount int) (*Race, error) {
	r := &Race{
		ID:          uuid.NewString(),
		Name:        name,
		ScheduledAt: scheduledAt,
		SlotCount:   slotCount,
		Status:      StatusOpen,
	}
	err := p.db.QueryRowContext(ctx, `
		INSERT INTO races (id, name, scheduled_at, slot_count, status)
		VALUES ($1, $2, $3, $4, 'OPEN')
		RETURNING created_at`,
		r.ID, r.Name, r.ScheduledAt, r.SlotCount).Scan(&r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRaces retorna todas as corridas ordenadas pela data programada,
// com os cavalos carregados.
func (p *Postgres) ListRaces(ctx context.Context) ([]Race, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, scheduled_at, slot_count, status, winner_horse, finished_at, settled_at, settled_by, created_at
		FROM races ORDER BY scheduled_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Race
	for rows.Next() {
		var r Race
		var winner, settledBy sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.ScheduledAt, &r.SlotCount, &r.Status,
			&winner, &r.FinishedAt, &r.SettledAt, &settledBy, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.WinnerHorse = winner.String
		r.SettledBy = settledBy.String
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if out[i].Horses, err = p.horsesOf(ctx, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetRace retorna uma corrida com os cavalos carregados.
func (p *Postgres) GetRace(ctx context.Context, raceID string) (*Race, error) {
	var r Race
	var winner, settledBy sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT id, name, scheduled_at, slot_count, status, winner_horse, finished_at, settled_at, settled_by, created_at
		FROM races WHERE id = $1`, raceID).
		Scan(&r.ID, &r.Name, &r.ScheduledAt, &r.SlotCount, &r.Status,
			&winner, &r.FinishedAt, &r.SettledAt, &settledBy, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrRaceNotFound
	}
	if err != nil {
		return nil, err
	}
	r.WinnerHorse = winner.String
	r.SettledBy = settledBy.String

	if r.Horses, err = p.horsesOf(ctx, raceID); err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Postgres) horsesOf(ctx context.Context, raceID string) ([]Horse, error) {
	rows, err := p.db.QueryContext(ctx, `
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

// RegisterHorse inscreve um cavalo num slot da corrida. Todas as checagens
// (corrida aberta, um cavalo por conta, nome único sem case, slot livre)
// rodam sob o lock da linha da corrida; os índices únicos são o respaldo.
func (p *Postgres) RegisterHorse(ctx context.Context, raceID, accountID, horseName string, requestedSlot int) (*Horse, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	race, err := lockRace(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}
	if race.Status != StatusOpen {
		return nil, ErrRaceNotOpen
	}

	if _, err := getAccount(ctx, tx.QueryRowContext, accountID, false); err != nil {
		return nil, err
	}

	horses, err := raceHorses(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}

	taken := make(map[int]bool, len(horses))
	for _, h := range horses {
		if h.OwnerAccountID == accountID {
			return nil, ErrDuplicateEntrant
		}
		if strings.EqualFold(h.Name, horseName) {
			return nil, ErrDuplicateName
		}
		taken[h.Slot] = true
	}

	slot, err := pickSlot(race.SlotCount, taken, requestedSlot)
	if err != nil {
		return nil, err
	}

	h := &Horse{
		ID:             uuid.NewString(),
		RaceID:         raceID,
		Name:           horseName,
		OwnerAccountID: accountID,
		Slot:           slot,
	}
	if err = tx.QueryRowContext(ctx, `
		INSERT INTO horses (id, race_id, name, owner_account_id, slot)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`,
		h.ID, h.RaceID, h.Name, h.OwnerAccountID, h.Slot).Scan(&h.CreatedAt); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return h, nil
}

// RemoveHorse retira o cavalo da conta e libera o slot, só com a corrida
// aberta. Apostas já admitidas sobre o nome permanecem no ledger.
func (p *Postgres) RemoveHorse(ctx context.Context, raceID, accountID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	race, err := lockRace(ctx, tx, raceID)
	if err != nil {
		return err
	}
	if race.Status != StatusOpen {
		return ErrRaceNotOpen
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM horses WHERE race_id = $1 AND owner_account_id = $2`,
		raceID, accountID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrHorseNotFound
	}

	return tx.Commit()
}

// DeleteRace remove uma corrida ainda aberta. As apostas pendentes são
// estornadas (o montante volta para cada conta) e removidas na mesma
// transação; corridas finalizadas ou liquidadas são rejeitadas.
func (p *Postgres) DeleteRace(ctx context.Context, raceID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	race, err := lockRace(ctx, tx, raceID)
	if err != nil {
		return err
	}
	if race.Status != StatusOpen {
		return ErrRaceNotDeletable
	}

	wagers, err := raceWagers(ctx, tx, raceID)
	if err != nil {
		return err
	}
	for _, w := range wagers {
		wid := w.ID
		if err = adjustBalance(ctx, tx, w.AccountID, w.Amount, "REFUND", "race deleted: "+race.Name, &wid); err != nil {
			return err
		}
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM wagers WHERE race_id = $1`, raceID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM horses WHERE race_id = $1`, raceID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM races WHERE id = $1`, raceID); err != nil {
		return err
	}

	return tx.Commit()
}
