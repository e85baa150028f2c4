package events

import "time"

// Evento publicado no tópico "race_finalized" quando um administrador
// declara o vencedor. A liquidação ainda não aconteceu nesse ponto.
type RaceFinalized struct {
	RaceID          string    `json:"race_id"`
	RaceName        string    `json:"race_name"`
	WinnerHorseName string    `json:"winner_horse_name"`
	FinalizedBy     string    `json:"finalized_by"`
	Ts              time.Time `json:"ts"`
}
