package events

// Evento publicado no tópico "wager_placed" a cada admissão de aposta.
// Odds é a cota capturada no momento da admissão (imutável).
type WagerPlaced struct {
	WagerID   string  `json:"wager_id"`
	AccountID string  `json:"account_id"`
	RaceID    string  `json:"race_id"`
	HorseName string  `json:"horse_name"`
	Amount    int64   `json:"amount"`
	Odds      float64 `json:"odds"`
	TsUnixMs  int64   `json:"ts_unix_ms"`
}
