package settlement

import "math"

// OwnerBonus é o crédito fixo dado ao dono do cavalo vencedor, uma vez
// por liquidação e revertido junto com ela numa correção.
const OwnerBonus int64 = 20

// Wager é a projeção de uma aposta suficiente para liquidar ou reverter.
// Odds é a cota capturada na admissão; Won/Winnings só têm significado
// quando Finished é verdadeiro.
type Wager struct {
	ID        string
	AccountID string
	HorseName string
	Amount    int64
	Odds      float64
	Finished  bool
	Won       bool
	Winnings  int64
}

// Outcome é o resultado calculado de uma aposta numa liquidação.
type Outcome struct {
	WagerID   string
	AccountID string
	Won       bool
	Winnings  int64
}

// Credit é uma mutação de saldo a aplicar. Delta negativo é débito
// (usado na reversão). WagerID vazio indica o bônus do dono.
type Credit struct {
	AccountID string
	WagerID   string
	Delta     int64
}

// Plan é o conjunto completo de efeitos de uma liquidação, calculado de
// uma vez para ser aplicado numa única transação.
type Plan struct {
	Winner         string
	Outcomes       []Outcome
	Credits        []Credit
	OwnerAccountID string
	OwnerBonus     int64
	Winners        int
	Losers         int
	TotalPaid      int64
}

// Payout calcula o prêmio de uma aposta vencedora: montante vezes a cota
// capturada na admissão, arredondado para o inteiro mais próximo.
func Payout(amount int64, odds float64) int64 {
	return int64(math.Round(float64(amount) * odds))
}

// Compute monta o plano de liquidação de uma corrida: resultado por
// aposta na cota capturada, créditos aos vencedores e o bônus fixo ao
// dono do cavalo vencedor. Não toca em nada, só calcula.
func Compute(wagers []Wager, winner string, ownerAccountID string) Plan {
	p := Plan{
		Winner:         winner,
		OwnerAccountID: ownerAccountID,
	}

	for _, w := range wagers {
		won := w.HorseName == winner
		var winnings int64
		if won {
			winnings = Payout(w.Amount, w.Odds)
			p.Winners++
			p.TotalPaid += winnings
			p.Credits = append(p.Credits, Credit{AccountID: w.AccountID, WagerID: w.ID, Delta: winnings})
		} else {
			p.Losers++
		}
		p.Outcomes = append(p.Outcomes, Outcome{
			WagerID:   w.ID,
			AccountID: w.AccountID,
			Won:       won,
			Winnings:  winnings,
		})
	}

	if ownerAccountID != "" {
		p.OwnerBonus = OwnerBonus
		p.Credits = append(p.Credits, Credit{AccountID: ownerAccountID, Delta: OwnerBonus})
	}

	return p
}

// Reversal monta os débitos que desfazem uma liquidação já aplicada,
// a partir dos campos gravados nas apostas: cada conta volta exatamente
// ao saldo que tinha antes da liquidação, bônus do dono incluído.
func Reversal(wagers []Wager, ownerAccountID string, ownerBonus int64) []Credit {
	var out []Credit
	for _, w := range wagers {
		if !w.Finished {
			continue
		}
		if w.Won && w.Winnings > 0 {
			out = append(out, Credit{AccountID: w.AccountID, WagerID: w.ID, Delta: -w.Winnings})
		}
	}
	if ownerAccountID != "" && ownerBonus > 0 {
		out = append(out, Credit{AccountID: ownerAccountID, Delta: -ownerBonus})
	}
	return out
}
