package repo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/odds"
)

// PlaceWager admite uma aposta: valida corrida, cavalo, conta e saldo,
// calcula a cota corrente a partir dos volumes vivos, debita o montante e
// insere a aposta com a cota capturada — tudo numa única transação.
//
// O lock da corrida serializa admissões concorrentes na mesma corrida
// (o que torna o feedback das cotas determinístico por ordem de chegada)
// e o índice único (account_id, race_id) garante no máximo uma aposta
// por conta mesmo se duas chegarem juntas.
func (p *Postgres) PlaceWager(ctx context.Context, accountID, raceID, horseName string, amount int64) (*Wager, error) {
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

	horses, err := raceHorses(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}
	horse := findHorse(horses, horseName)
	if horse == nil {
		return nil, ErrHorseNotFound
	}
	// nome canônico do cavalo, para o casamento exato na liquidação
	horseName = horse.Name

	account, err := getAccount(ctx, tx.QueryRowContext, accountID, true)
	if err != nil {
		return nil, err
	}
	if !guestMayWager(account, time.Now()) {
		return nil, ErrGuestInactive
	}
	if account.Balance < amount {
		return nil, ErrInsufficientFunds
	}

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM wagers WHERE account_id = $1 AND race_id = $2`,
		accountID, raceID).Scan(&existing)
	if err == nil {
		return nil, ErrDuplicateWager
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	// Cota corrente: volumes de todas as apostas já admitidas na corrida.
	// Capturada aqui e nunca mais recalculada para esta aposta.
	stakeOnHorse, totalStake, err := volumesTx(ctx, tx, raceID, horseName)
	if err != nil {
		return nil, err
	}
	captured := odds.Compute(len(horses), stakeOnHorse, totalStake)

	w := &Wager{
		ID:        uuid.NewString(),
		AccountID: accountID,
		RaceID:    raceID,
		HorseName: horseName,
		Amount:    amount,
		Odds:      captured,
	}

	wid := w.ID
	if err = adjustBalance(ctx, tx, accountID, -amount, "DEBIT", "wager on "+horseName, &wid); err != nil {
		return nil, err
	}

	err = tx.QueryRowContext(ctx, `
		INSERT INTO wagers (id, account_id, race_id, horse_name, amount, odds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		w.ID, w.AccountID, w.RaceID, w.HorseName, w.Amount, w.Odds).Scan(&w.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code.Name() == "unique_violation" {
			return nil, ErrDuplicateWager
		}
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return w, nil
}

func volumesTx(ctx context.Context, tx *sql.Tx, raceID, horseName string) (stakeOnHorse, totalStake int64, err error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT horse_name, COALESCE(SUM(amount), 0) FROM wagers WHERE race_id = $1 GROUP BY horse_name`,
		raceID)
	if err != nil {
		return 0, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var sum int64
		if err := rows.Scan(&name, &sum); err != nil {
			return 0, 0, err
		}
		totalStake += sum
		if name == horseName {
			stakeOnHorse = sum
		}
	}
	return stakeOnHorse, totalStake, rows.Err()
}

// RaceVolumes retorna montante e contagem de apostas por cavalo, usados
// no snapshot de cotas exibido ao público.
func (p *Postgres) RaceVolumes(ctx context.Context, raceID string) (stakes map[string]int64, counts map[string]int, err error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT horse_name, COALESCE(SUM(amount), 0), COUNT(*) FROM wagers WHERE race_id = $1 GROUP BY horse_name`,
		raceID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	stakes = make(map[string]int64)
	counts = make(map[string]int)
	for rows.Next() {
		var name string
		var sum int64
		var n int
		if err := rows.Scan(&name, &sum, &n); err != nil {
			return nil, nil, err
		}
		stakes[name] = sum
		counts[name] = n
	}
	return stakes, counts, rows.Err()
}

// ListWagers retorna as apostas de uma conta, por padrão só as em curso.
func (p *Postgres) ListWagers(ctx context.Context, accountID string, includeFinished bool) ([]Wager, error) {
	q := `
		SELECT id, account_id, race_id, horse_name, amount, odds, finished, won, winnings, created_at, settled_at
		FROM wagers WHERE account_id = $1`
	if !includeFinished {
		q += " AND finished = FALSE"
	}
	q += " ORDER BY created_at DESC"

	rows, err := p.db.QueryContext(ctx, q, accountID)
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

// findHorse localiza um cavalo pelo nome, sem diferenciar maiúsculas.
// Quem chama usa o nome canônico retornado, não o que veio na requisição.
func findHorse(horses []Horse, name string) *Horse {
	for i := range horses {
		if strings.EqualFold(horses[i].Name, name) {
			return &horses[i]
		}
	}
	return nil
}
