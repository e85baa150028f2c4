package dto

import "time"

type AccountResponse struct {
	ID           string     `json:"id"`
	Kind         string     `json:"kind"`
	Name         string     `json:"name"`
	Balance      int64      `json:"balance"`
	BonusClaimed bool       `json:"bonus_claimed"`
	GuestCode    string     `json:"guest_code,omitempty"`
	IsActive     bool       `json:"is_active"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type BonusResponse struct {
	BonusPoints int64 `json:"bonus_points"`
	Balance     int64 `json:"balance"`
}

type HorseResponse struct {
	ID      string `json:"id"`
	RaceID  string `json:"raceId"`
	Name    string `json:"name"`
	OwnerID string `json:"owner_account_id"`
	Slot    int    `json:"slot"`
}

type SlotResponse struct {
	Slot  int    `json:"slot"`
	Taken bool   `json:"taken"`
	Horse string `json:"horse,omitempty"`
}

type RaceResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	SlotCount   int             `json:"slot_count"`
	Status      string          `json:"status"`
	WinnerHorse string          `json:"winner_horse,omitempty"`
	FinishedAt  *time.Time      `json:"finished_at,omitempty"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
	Slots       []SlotResponse  `json:"slots"`
	Horses      []HorseResponse `json:"horses"`
}

type HorseOddsResponse struct {
	Name       string  `json:"name"`
	Slot       int     `json:"slot"`
	Odds       float64 `json:"odds"`
	TotalStake int64   `json:"total_stake"`
	WagerCount int     `json:"wager_count"`
}

type WagerResponse struct {
	ID        string     `json:"id"`
	AccountID string     `json:"accountId"`
	RaceID    string     `json:"raceId"`
	HorseName string     `json:"horse_name"`
	Amount    int64      `json:"amount"`
	Odds      float64    `json:"odds"` // capturada na admissão, imutável
	Finished  bool       `json:"finished"`
	Won       *bool      `json:"won,omitempty"`
	Winnings  int64      `json:"winnings"`
	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

type SettlementSummaryResponse struct {
	RaceID      string `json:"raceId"`
	RaceName    string `json:"race_name"`
	Winner      string `json:"winner"`
	TotalWagers int    `json:"total_wagers"`
	Winners     int    `json:"winners"`
	Losers      int    `json:"losers"`
	TotalPaid   int64  `json:"total_paid"`
	OwnerBonus  int64  `json:"owner_bonus"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
