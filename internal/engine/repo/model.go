package repo

import "time"

// Tipos de conta. Guests compartilham a mesma semântica de ledger e só
// diferem nas regras de ativação/expiração checadas na admissão.
const (
	KindMember = "MEMBER"
	KindGuest  = "GUEST"
)

// Estados do ciclo de vida de uma corrida.
const (
	StatusOpen     = "OPEN"
	StatusFinished = "FINISHED"
	StatusSettled  = "SETTLED"
)

// Account é o modelo persistido de um participante (membro ou convidado).
type Account struct {
	ID           string
	Kind         string
	Name         string
	Balance      int64
	BonusClaimed bool
	GuestCode    string
	IsActive     bool
	ExpiresAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Race é o modelo persistido de uma corrida, com os cavalos carregados.
type Race struct {
	ID          string
	Name        string
	ScheduledAt time.Time
	SlotCount   int
	Status      string
	WinnerHorse string
	FinishedAt  *time.Time
	SettledAt   *time.Time
	SettledBy   string
	CreatedAt   time.Time
	Horses      []Horse
}

// Horse ocupa exatamente um slot de uma corrida.
type Horse struct {
	ID             string
	RaceID         string
	Name           string
	OwnerAccountID string
	Slot           int
	CreatedAt      time.Time
}

// Wager é o modelo persistido de uma aposta. Odds é capturada na admissão
// e nunca recalculada; Finished/Won/Winnings são escritos uma única vez,
// na liquidação (ou zerados por uma reversão).
type Wager struct {
	ID        string
	AccountID string
	RaceID    string
	HorseName string
	Amount    int64
	Odds      float64
	Finished  bool
	Won       bool
	Winnings  int64
	CreatedAt time.Time
	SettledAt *time.Time
}

// SettlementSummary é o retorno de uma liquidação aplicada.
type SettlementSummary struct {
	RaceID      string
	RaceName    string
	Winner      string
	TotalWagers int
	Winners     int
	Losers      int
	TotalPaid   int64
	OwnerBonus  int64
}
