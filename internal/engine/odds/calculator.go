package odds

import "math"

// Limites da cota: nunca abaixo de 1.1 (sempre algum prêmio) e nunca
// acima de 2x a cota base (limita o risco de pagamento).
const (
	Floor      = 1.1
	DampFactor = 0.7
)

// Compute calcula a cota corrente de um cavalo a partir dos volumes
// apostados na corrida. A cota base é o número de cavalos inscritos:
// sem nenhuma informação, o multiplicador justo é n.
//
// Quanto maior a fatia do cavalo no volume total, menor a cota.
// O resultado é arredondado para uma casa decimal.
func Compute(horseCount int, stakeOnHorse, totalStake int64) float64 {
	base := float64(horseCount)
	if totalStake == 0 || stakeOnHorse == 0 {
		return round1(base)
	}

	ratio := float64(stakeOnHorse) / float64(totalStake)
	odds := base * (1 - DampFactor*ratio)
	odds = math.Max(Floor, odds)
	odds = math.Min(odds, base*2)

	return round1(odds)
}

// round1 arredonda para uma casa decimal (half away from zero)
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
