package repo

import (
	"context"

	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/settlement"
)

// FinalizeRace declara o vencedor e muda OPEN -> FINISHED. Não move
// nenhum ponto; a liquidação é um passo separado e explícito.
func (p *Postgres) FinalizeRace(ctx context.Context, raceID, winnerHorseName string) (*Race, error) {
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
		return nil, ErrAlreadyFinished
	}

	horses, err := raceHorses(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}
	winner := findHorse(horses, winnerHorseName)
	if winner == nil {
		return nil, ErrHorseNotFound
	}

	err = tx.QueryRowContext(ctx, `
		UPDATE races SET status = 'FINISHED', winner_horse = $1, finished_at = NOW()
		WHERE id = $2
		RETURNING finished_at`,
		winner.Name, raceID).Scan(&race.FinishedAt)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	race.Status = StatusFinished
	race.WinnerHorse = winner.Name
	race.Horses = horses
	return race, nil
}

// SettleRace aplica os pagamentos de uma corrida finalizada, tudo ou
// nada: o plano inteiro (resultados por aposta, créditos aos vencedores
// e bônus do dono) é aplicado numa transação que segura o lock da linha
// da corrida. A troca de status para SETTLED sob esse lock é o guardião
// de idempotência — a segunda chamada recebe ErrAlreadySettled, nunca
// paga de novo.
func (p *Postgres) SettleRace(ctx context.Context, raceID, actor string) (*SettlementSummary, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	race, err := lockRace(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}
	switch race.Status {
	case StatusFinished:
		// segue
	case StatusSettled:
		return nil, ErrAlreadySettled
	default:
		return nil, ErrRaceNotFinished
	}

	horses, err := raceHorses(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}
	ownerID := ""
	if h := findHorse(horses, race.WinnerHorse); h != nil {
		ownerID = h.OwnerAccountID
	}

	wagers, err := raceWagers(ctx, tx, raceID)
	if err != nil {
		return nil, err
	}

	plan := settlement.Compute(toPlanWagers(wagers), race.WinnerHorse, ownerID)

	for _, c := range plan.Credits {
		desc := "winnings: " + race.Name
		op := "CREDIT"
		var wid *string
		if c.WagerID != "" {
			w := c.WagerID
			wid = &w
		} else {
			desc = "winning horse owner bonus: " + race.Name
			op = "BONUS"
		}
		if err = adjustBalance(ctx, tx, c.AccountID, c.Delta, op, desc, wid); err != nil {
			return nil, err
		}
	}

	for _, o := range plan.Outcomes {
		if _, err = tx.ExecContext(ctx, `
			UPDATE wagers SET finished = TRUE, won = $1, winnings = $2, settled_at = NOW()
			WHERE id = $3`,
			o.Won, o.Winnings, o.WagerID); err != nil {
			return nil, err
		}
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE races SET status = 'SETTLED', settled_at = NOW(), settled_by = $1
		WHERE id = $2`,
		actor, raceID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &SettlementSummary{
		RaceID:      raceID,
		RaceName:    race.Name,
		Winner:      race.WinnerHorse,
		TotalWagers: len(wagers),
		Winners:     plan.Winners,
		Losers:      plan.Losers,
		TotalPaid:   plan.TotalPaid,
		OwnerBonus:  plan.OwnerBonus,
	}, nil
}

// CorrectWinner troca o vencedor de uma corrida já finalizada. Se a
// corrida foi liquidada, os efeitos financeiros anteriores são
// integralmente revertidos primeiro (ganhos debitados, bônus do dono
// debitado, apostas de volta à forma pré-liquidação) e o status volta a
// FINISHED — na mesma transação. SettleRace pode então rodar de novo.
func (p *Postgres) CorrectWinner(ctx context.Context, raceID, newWinnerHorseName string) (*Race, bool, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	race, err := lockRace(ctx, tx, raceID)
	if err != nil {
		return nil, false, err
	}
	if race.Status == StatusOpen {
		return nil, false, ErrRaceNotFinished
	}

	horses, err := raceHorses(ctx, tx, raceID)
	if err != nil {
		return nil, false, err
	}
	newWinner := findHorse(horses, newWinnerHorseName)
	if newWinner == nil {
		return nil, false, ErrHorseNotFound
	}

	reversed := false
	if race.Status == StatusSettled {
		wagers, err := raceWagers(ctx, tx, raceID)
		if err != nil {
			return nil, false, err
		}
		oldOwnerID := ""
		if h := findHorse(horses, race.WinnerHorse); h != nil {
			oldOwnerID = h.OwnerAccountID
		}

		for _, c := range settlement.Reversal(toPlanWagers(wagers), oldOwnerID, settlement.OwnerBonus) {
			desc := "settlement reversed: " + race.Name
			var wid *string
			if c.WagerID != "" {
				w := c.WagerID
				wid = &w
			}
			if err = adjustBalance(ctx, tx, c.AccountID, c.Delta, "DEBIT", desc, wid); err != nil {
				return nil, false, err
			}
		}

		if _, err = tx.ExecContext(ctx, `
			UPDATE wagers SET finished = FALSE, won = NULL, winnings = 0, settled_at = NULL
			WHERE race_id = $1`, raceID); err != nil {
			return nil, false, err
		}
		reversed = true
	}

	if _, err = tx.ExecContext(ctx, `
		UPDATE races SET status = 'FINISHED', winner_horse = $1, settled_at = NULL, settled_by = NULL
		WHERE id = $2`,
		newWinner.Name, raceID); err != nil {
		return nil, false, err
	}

	if err = tx.Commit(); err != nil {
		return nil, false, err
	}
	race.Status = StatusFinished
	race.WinnerHorse = newWinner.Name
	race.SettledAt = nil
	race.SettledBy = ""
	race.Horses = horses
	return race, reversed, nil
}

func toPlanWagers(ws []Wager) []settlement.Wager {
	out := make([]settlement.Wager, 0, len(ws))
	for _, w := range ws {
		out = append(out, settlement.Wager{
			ID:        w.ID,
			AccountID: w.AccountID,
			HorseName: w.HorseName,
			Amount:    w.Amount,
			Odds:      w.Odds,
			Finished:  w.Finished,
			Won:       w.Won,
			Winnings:  w.Winnings,
		})
	}
	return out
}
