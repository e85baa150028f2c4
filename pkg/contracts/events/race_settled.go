package events

import "time"

// Evento publicado no tópico "race_settled" após a liquidação aplicar
// todos os pagamentos de uma corrida.
type RaceSettled struct {
	RaceID          string    `json:"race_id"`
	WinnerHorseName string    `json:"winner_horse_name"`
	TotalWagers     int       `json:"total_wagers"`
	Winners         int       `json:"winners"`
	Losers          int       `json:"losers"`
	TotalPaid       int64     `json:"total_paid"`
	OwnerBonus      int64     `json:"owner_bonus"`
	SettledBy       string    `json:"settled_by"`
	Ts              time.Time `json:"ts"`
}
