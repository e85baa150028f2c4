package dto

import "time"

type CreateAccountRequest struct {
	Name string `json:"name"`
}

type CreateGuestRequest struct {
	Name          string     `json:"name"`
	InitialPoints int64      `json:"initial_points,omitempty"` // default 100
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

type UpdateGuestRequest struct {
	IsActive  *bool      `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type CreateRaceRequest struct {
	Name        string    `json:"name"`
	ScheduledAt time.Time `json:"scheduled_at"`
	SlotCount   int       `json:"slot_count"` // 3..16
}

type RegisterHorseRequest struct {
	AccountID string `json:"accountId"`
	HorseName string `json:"horse_name"`
	Slot      int    `json:"slot,omitempty"` // 0 = menor slot livre
}

type RemoveHorseRequest struct {
	AccountID string `json:"accountId"`
}

type PlaceWagerRequest struct {
	AccountID string `json:"accountId"`
	RaceID    string `json:"raceId"`
	HorseName string `json:"horse_name"`
	Amount    int64  `json:"amount"`
}

type FinalizeRaceRequest struct {
	WinnerHorseName string `json:"winner_horse_name"`
}

type CorrectWinnerRequest struct {
	NewWinnerHorseName string `json:"new_winner_horse_name"`
}
