package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/dto"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/odds"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/repo"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/ws"
	"github.com/ElrumbisDev/Horse-bet-race/pkg/contracts/events"
)

// Store define as operações de persistência usadas pelos handlers.
// Implementada por repo.Postgres; os testes usam um fake em memória.
type Store interface {
	CreateMember(ctx context.Context, name string) (*repo.Account, error)
	CreateGuest(ctx context.Context, name string, initialPoints int64, expiresAt *time.Time) (*repo.Account, error)
	GetAccount(ctx context.Context, id string) (*repo.Account, error)
	ClaimBonus(ctx context.Context, accountID string) (int64, error)
	SetGuestActive(ctx context.Context, accountID string, active bool, expiresAt *time.Time) (*repo.Account, error)

	CreateRace(ctx context.Context, name string, scheduledAt time.Time, slotCount int) (*repo.Race, error)
	ListRaces(ctx context.Context) ([]repo.Race, error)
	GetRace(ctx context.Context, raceID string) (*repo.Race, error)
	DeleteRace(ctx context.Context, raceID string) error
	RegisterHorse(ctx context.Context, raceID, accountID, horseName string, requestedSlot int) (*repo.Horse, error)
	RemoveHorse(ctx context.Context, raceID, accountID string) error

	PlaceWager(ctx context.Context, accountID, raceID, horseName string, amount int64) (*repo.Wager, error)
	ListWagers(ctx context.Context, accountID string, includeFinished bool) ([]repo.Wager, error)
	RaceVolumes(ctx context.Context, raceID string) (map[string]int64, map[string]int, error)

	FinalizeRace(ctx context.Context, raceID, winnerHorseName string) (*repo.Race, error)
	SettleRace(ctx context.Context, raceID, actor string) (*repo.SettlementSummary, error)
	CorrectWinner(ctx context.Context, raceID, newWinnerHorseName string) (*repo.Race, bool, error)
}

// Publisher publica os eventos de domínio no Kafka.
type Publisher interface {
	PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error
	PublishRaceFinalized(ctx context.Context, e events.RaceFinalized) error
	PublishRaceSettled(ctx context.Context, e events.RaceSettled) error
}

// OddsCache guarda snapshots de cotas por corrida.
type OddsCache interface {
	Get(ctx context.Context, raceID string, dst *[]odds.HorseOdds) (bool, error)
	Set(ctx context.Context, raceID string, snapshot []odds.HorseOdds) error
	Invalidate(ctx context.Context, raceID string) error
}

// Broadcaster envia snapshots ao canal Pub/Sub consumido pelo hub WS.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Server expõe a API HTTP do motor de apostas.
type Server struct {
	log     *zap.Logger
	store   Store
	cache   OddsCache
	publ    Publisher
	bc      Broadcaster
	channel string
	hub     *ws.Hub
}

func NewServer(log *zap.Logger, store Store, cache OddsCache, publ Publisher, bc Broadcaster, channel string, hub *ws.Hub) *Server {
	return &Server{log: log, store: store, cache: cache, publ: publ, bc: bc, channel: channel, hub: hub}
}

// Router retorna o roteador HTTP com os endpoints do motor
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/v1/accounts", s.createAccount)
	r.Post("/v1/accounts/guests", s.createGuest)
	r.Get("/v1/accounts/{id}", s.getAccount)
	r.Post("/v1/accounts/{id}/bonus", s.claimBonus)
	r.Patch("/v1/accounts/guests/{id}", s.updateGuest)

	r.Post("/v1/races", s.createRace)
	r.Get("/v1/races", s.listRaces)
	r.Get("/v1/races/{id}", s.getRace)
	r.Delete("/v1/races/{id}", s.deleteRace)
	r.Post("/v1/races/{id}/horses", s.registerHorse)
	r.Delete("/v1/races/{id}/horses", s.removeHorse)
	r.Get("/v1/races/{id}/odds", s.getOdds)

	r.Post("/v1/wagers", s.placeWager)
	r.Get("/v1/wagers", s.listWagers)

	r.Post("/v1/races/{id}/finalize", s.finalizeRace)
	r.Post("/v1/races/{id}/settle", s.settleRace)
	r.Post("/v1/races/{id}/winner", s.correctWinner)

	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
	return r
}

// actor identifica quem chamou; a camada de apresentação (colaborador
// externo) injeta a identidade já verificada neste header.
func actor(r *http.Request) string {
	if a := r.Header.Get("X-Account-Id"); a != "" {
		return a
	}
	return "system"
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr mapeia os erros de domínio para status HTTP num lugar só:
// conflito (perdeu uma corrida para outro ator) -> 409, não encontrado
// -> 404, validação -> 400.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, repo.ErrAccountNotFound),
		errors.Is(err, repo.ErrRaceNotFound),
		errors.Is(err, repo.ErrHorseNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repo.ErrDuplicateWager),
		errors.Is(err, repo.ErrDuplicateEntrant),
		errors.Is(err, repo.ErrDuplicateName),
		errors.Is(err, repo.ErrSlotTaken),
		errors.Is(err, repo.ErrNoSlotAvailable),
		errors.Is(err, repo.ErrAlreadySettled),
		errors.Is(err, repo.ErrAlreadyFinished),
		errors.Is(err, repo.ErrRaceNotDeletable),
		errors.Is(err, repo.ErrBonusClaimed):
		status = http.StatusConflict
	case errors.Is(err, repo.ErrInsufficientFunds),
		errors.Is(err, repo.ErrRaceNotOpen),
		errors.Is(err, repo.ErrRaceNotFinished),
		errors.Is(err, repo.ErrGuestInactive),
		errors.Is(err, repo.ErrSlotInvalid),
		errors.Is(err, repo.ErrNotGuest):
		status = http.StatusBadRequest
	default:
		s.log.Error("internal error", zap.Error(err))
	}
	writeJSON(w, status, dto.ErrorResponse{Error: err.Error()})
}
