package odds

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// HorseOdds é uma entrada do snapshot de cotas de uma corrida.
// Odds é o valor que seria capturado por uma aposta admitida agora.
type HorseOdds struct {
	Name       string  `json:"name"`
	Slot       int     `json:"slot"`
	Odds       float64 `json:"odds"`
	TotalStake int64   `json:"total_stake"`
	WagerCount int     `json:"wager_count"`
}

// Cache guarda snapshots de cotas por corrida no Redis.
// O TTL é curto e toda admissão invalida a chave: leve desatualização na
// exibição é tolerada, a cota capturada na aposta nunca vem daqui.
type Cache struct {
	R   *redis.Client
	TTL time.Duration
}

func NewCache(r *redis.Client, ttl time.Duration) *Cache {
	return &Cache{R: r, TTL: ttl}
}

func keyRace(raceID string) string { return "odds:race:" + raceID }

func (c *Cache) Get(ctx context.Context, raceID string, dst *[]HorseOdds) (bool, error) {
	b, err := c.R.Get(ctx, keyRace(raceID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *Cache) Set(ctx context.Context, raceID string, snapshot []HorseOdds) error {
	b, _ := json.Marshal(snapshot)
	return c.R.Set(ctx, keyRace(raceID), b, c.TTL).Err()
}

// Invalidate remove o snapshot após uma admissão mudar os volumes
func (c *Cache) Invalidate(ctx context.Context, raceID string) error {
	return c.R.Del(ctx, keyRace(raceID)).Err()
}
