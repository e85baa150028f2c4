package settlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWagers() []Wager {
	return []Wager{
		{ID: "w1", AccountID: "alice", HorseName: "Relampago", Amount: 10, Odds: 3.0},
		{ID: "w2", AccountID: "bob", HorseName: "Trovao", Amount: 20, Odds: 2.5},
		{ID: "w3", AccountID: "carol", HorseName: "Relampago", Amount: 15, Odds: 2.6},
	}
}

func TestPayout(t *testing.T) {
	assert.Equal(t, int64(30), Payout(10, 3.0))
	// arredonda para o inteiro mais próximo: 15 * 1.1 = 16.5 -> 17
	assert.Equal(t, int64(17), Payout(15, 1.1))
	assert.Equal(t, int64(39), Payout(15, 2.6))
}

func TestComputePlan(t *testing.T) {
	plan := Compute(sampleWagers(), "Relampago", "dave")

	assert.Equal(t, "Relampago", plan.Winner)
	assert.Equal(t, 2, plan.Winners)
	assert.Equal(t, 1, plan.Losers)
	assert.Equal(t, int64(30+39), plan.TotalPaid)
	assert.Equal(t, OwnerBonus, plan.OwnerBonus)

	require.Len(t, plan.Outcomes, 3)
	byWager := map[string]Outcome{}
	for _, o := range plan.Outcomes {
		byWager[o.WagerID] = o
	}
	assert.True(t, byWager["w1"].Won)
	assert.Equal(t, int64(30), byWager["w1"].Winnings)
	assert.False(t, byWager["w2"].Won)
	assert.Equal(t, int64(0), byWager["w2"].Winnings)
	assert.True(t, byWager["w3"].Won)
	assert.Equal(t, int64(39), byWager["w3"].Winnings)

	// créditos: um por aposta vencedora mais o bônus do dono
	require.Len(t, plan.Credits, 3)
	var creditTotal int64
	for _, c := range plan.Credits {
		creditTotal += c.Delta
	}
	assert.Equal(t, plan.TotalPaid+plan.OwnerBonus, creditTotal)
}

func TestComputeNoOwner(t *testing.T) {
	plan := Compute(sampleWagers(), "Relampago", "")

	assert.Equal(t, int64(0), plan.OwnerBonus)
	require.Len(t, plan.Credits, 2)
	for _, c := range plan.Credits {
		assert.NotEmpty(t, c.WagerID)
	}
}

func TestComputeNoWinners(t *testing.T) {
	plan := Compute(sampleWagers(), "Furacao", "dave")

	assert.Equal(t, 0, plan.Winners)
	assert.Equal(t, 3, plan.Losers)
	assert.Equal(t, int64(0), plan.TotalPaid)
	// mesmo sem apostas vencedoras o dono do cavalo vencedor recebe o bônus
	require.Len(t, plan.Credits, 1)
	assert.Equal(t, "dave", plan.Credits[0].AccountID)
	assert.Equal(t, OwnerBonus, plan.Credits[0].Delta)
}

// aplica a liquidação sobre saldos e depois a reversão: cada conta deve
// voltar exatamente ao saldo inicial
func TestReversalRestoresBalances(t *testing.T) {
	wagers := sampleWagers()
	plan := Compute(wagers, "Relampago", "dave")

	balances := map[string]int64{"alice": 90, "bob": 80, "carol": 85, "dave": 100}
	initial := map[string]int64{}
	for k, v := range balances {
		initial[k] = v
	}

	for _, c := range plan.Credits {
		balances[c.AccountID] += c.Delta
	}
	assert.Equal(t, int64(120), balances["alice"])
	assert.Equal(t, int64(124), balances["carol"])
	assert.Equal(t, int64(120), balances["dave"])

	// grava nos wagers o que a liquidação gravaria no banco
	settled := make([]Wager, len(wagers))
	copy(settled, wagers)
	for i := range settled {
		for _, o := range plan.Outcomes {
			if o.WagerID == settled[i].ID {
				settled[i].Finished = true
				settled[i].Won = o.Won
				settled[i].Winnings = o.Winnings
			}
		}
	}

	for _, c := range Reversal(settled, "dave", plan.OwnerBonus) {
		balances[c.AccountID] += c.Delta
	}
	assert.Equal(t, initial, balances)
}

func TestReversalSkipsLosersAndUnfinished(t *testing.T) {
	wagers := []Wager{
		{ID: "w1", AccountID: "alice", HorseName: "Relampago", Amount: 10, Odds: 3.0, Finished: true, Won: true, Winnings: 30},
		{ID: "w2", AccountID: "bob", HorseName: "Trovao", Amount: 20, Odds: 2.5, Finished: true, Won: false},
		{ID: "w3", AccountID: "carol", HorseName: "Relampago", Amount: 15, Odds: 2.6},
	}

	credits := Reversal(wagers, "", 0)
	require.Len(t, credits, 1)
	assert.Equal(t, "w1", credits[0].WagerID)
	assert.Equal(t, int64(-30), credits[0].Delta)
}

// corrigir o vencedor e reliquidar deve produzir o mesmo estado final de
// uma liquidação direta com o vencedor certo
func TestCorrectionEquivalence(t *testing.T) {
	wagers := sampleWagers()
	balances := map[string]int64{"alice": 90, "bob": 80, "carol": 85, "dave": 100, "erin": 50}

	direct := map[string]int64{}
	for k, v := range balances {
		direct[k] = v
	}
	for _, c := range Compute(wagers, "Trovao", "erin").Credits {
		direct[c.AccountID] += c.Delta
	}

	// caminho com erro: liquida Relampago, reverte, liquida Trovao
	wrong := Compute(wagers, "Relampago", "dave")
	for _, c := range wrong.Credits {
		balances[c.AccountID] += c.Delta
	}
	settled := make([]Wager, len(wagers))
	copy(settled, wagers)
	for i := range settled {
		for _, o := range wrong.Outcomes {
			if o.WagerID == settled[i].ID {
				settled[i].Finished = true
				settled[i].Won = o.Won
				settled[i].Winnings = o.Winnings
			}
		}
	}
	for _, c := range Reversal(settled, "dave", wrong.OwnerBonus) {
		balances[c.AccountID] += c.Delta
	}
	for _, c := range Compute(wagers, "Trovao", "erin").Credits {
		balances[c.AccountID] += c.Delta
	}

	assert.Equal(t, direct, balances)
}
