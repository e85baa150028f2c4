package odds

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBaseOdds(t *testing.T) {
	// sem volume, a cota é o número de cavalos
	assert.Equal(t, 3.0, Compute(3, 0, 0))
	assert.Equal(t, 8.0, Compute(8, 0, 0))

	// cavalo sem aposta numa corrida com volume também fica na base
	assert.Equal(t, 5.0, Compute(5, 0, 200))
}

func TestComputeDampensWithShare(t *testing.T) {
	// 25% do volume: 4 * (1 - 0.7*0.25) = 3.3
	assert.Equal(t, 3.3, Compute(4, 50, 200))

	// metade do volume: 4 * (1 - 0.35) = 2.6
	assert.Equal(t, 2.6, Compute(4, 100, 200))
}

func TestComputeFloor(t *testing.T) {
	// todo o volume num cavalo de corrida pequena bateria 0.9; o piso segura em 1.1
	assert.Equal(t, 1.1, Compute(3, 100, 100))
	assert.Equal(t, 1.1, Compute(2, 500, 500))
}

func TestComputeRounding(t *testing.T) {
	// 5 * (1 - 0.7/3) = 3.8333... -> 3.8
	assert.Equal(t, 3.8, Compute(5, 100, 300))
}

func TestComputeMonotonicInStake(t *testing.T) {
	// mais volume no cavalo nunca aumenta a cota
	const total = int64(1000)
	prev := Compute(8, 0, total)
	for stake := int64(100); stake <= total; stake += 100 {
		cur := Compute(8, stake, total)
		assert.LessOrEqual(t, cur, prev, "stake=%d", stake)
		prev = cur
	}
}

func TestComputeWithinBounds(t *testing.T) {
	for n := 3; n <= 16; n++ {
		for stake := int64(0); stake <= 500; stake += 50 {
			got := Compute(n, stake, 500)
			assert.GreaterOrEqual(t, got, Floor)
			assert.LessOrEqual(t, got, float64(2*n))
		}
	}
}
