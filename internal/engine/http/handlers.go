package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/dto"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/odds"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/repo"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/ws"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/metrics"
	"github.com/ElrumbisDev/Horse-bet-race/pkg/contracts/events"
)

// ---- contas ----

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "name is required"})
		return
	}
	acc, err := s.store.CreateMember(r.Context(), req.Name)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (s *Server) createGuest(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "name is required"})
		return
	}
	if req.InitialPoints < 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "initial_points must not be negative"})
		return
	}
	acc, err := s.store.CreateGuest(r.Context(), req.Name, req.InitialPoints, req.ExpiresAt)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := s.store.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (s *Server) claimBonus(w http.ResponseWriter, r *http.Request) {
	balance, err := s.store.ClaimBonus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.BonusResponse{BonusPoints: repo.ClaimableBonus, Balance: balance})
}

func (s *Server) updateGuest(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateGuestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IsActive == nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "is_active is required"})
		return
	}
	acc, err := s.store.SetGuestActive(r.Context(), chi.URLParam(r, "id"), *req.IsActive, req.ExpiresAt)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountResponse(acc))
}

// ---- corridas ----

func (s *Server) createRace(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "name is required"})
		return
	}
	if req.SlotCount < repo.MinSlots || req.SlotCount > repo.MaxSlots {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "slot_count out of range"})
		return
	}
	race, err := s.store.CreateRace(r.Context(), req.Name, req.ScheduledAt, req.SlotCount)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRaceResponse(race))
}

func (s *Server) listRaces(w http.ResponseWriter, r *http.Request) {
	races, err := s.store.ListRaces(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]dto.RaceResponse, 0, len(races))
	for i := range races {
		out = append(out, toRaceResponse(&races[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getRace(w http.ResponseWriter, r *http.Request) {
	race, err := s.store.GetRace(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRaceResponse(race))
}

func (s *Server) deleteRace(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "id")
	if err := s.store.DeleteRace(r.Context(), raceID); err != nil {
		s.writeErr(w, err)
		return
	}
	_ = s.cache.Invalidate(r.Context(), raceID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) registerHorse(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterHorseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" || req.HorseName == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "accountId and horse_name are required"})
		return
	}
	raceID := chi.URLParam(r, "id")
	horse, err := s.store.RegisterHorse(r.Context(), raceID, req.AccountID, req.HorseName, req.Slot)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	// entrada nova muda a cota base (n cavalos)
	s.refreshOdds(r, raceID)
	writeJSON(w, http.StatusCreated, toHorseResponse(horse))
}

func (s *Server) removeHorse(w http.ResponseWriter, r *http.Request) {
	var req dto.RemoveHorseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccountID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "accountId is required"})
		return
	}
	raceID := chi.URLParam(r, "id")
	if err := s.store.RemoveHorse(r.Context(), raceID, req.AccountID); err != nil {
		s.writeErr(w, err)
		return
	}
	s.refreshOdds(r, raceID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getOdds(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "id")

	var snapshot []odds.HorseOdds
	hit, err := s.cache.Get(r.Context(), raceID, &snapshot)
	if err != nil {
		s.log.Warn("odds cache read failed", zap.Error(err))
	}
	if !hit {
		snapshot, err = s.buildOddsSnapshot(r, raceID)
		if err != nil {
			s.writeErr(w, err)
			return
		}
		if err := s.cache.Set(r.Context(), raceID, snapshot); err != nil {
			s.log.Warn("odds cache write failed", zap.Error(err))
		}
	}

	out := make([]dto.HorseOddsResponse, 0, len(snapshot))
	for _, h := range snapshot {
		out = append(out, dto.HorseOddsResponse(h))
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- apostas ----

func (s *Server) placeWager(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceWagerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil ||
		req.AccountID == "" || req.RaceID == "" || req.HorseName == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "accountId, raceId and horse_name are required"})
		return
	}
	if req.Amount <= 0 {
		metrics.WagersRejected.WithLabelValues("invalid_amount").Inc()
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "amount must be positive"})
		return
	}

	wager, err := s.store.PlaceWager(r.Context(), req.AccountID, req.RaceID, req.HorseName, req.Amount)
	if err != nil {
		metrics.WagersRejected.WithLabelValues(rejectionReason(err)).Inc()
		s.writeErr(w, err)
		return
	}
	metrics.WagersAdmitted.Inc()

	// efeitos pós-admissão são melhor esforço: a aposta já está no ledger
	s.refreshOdds(r, req.RaceID)
	if err := s.publ.PublishWagerPlaced(r.Context(), events.WagerPlaced{
		WagerID:   wager.ID,
		AccountID: wager.AccountID,
		RaceID:    wager.RaceID,
		HorseName: wager.HorseName,
		Amount:    wager.Amount,
		Odds:      wager.Odds,
		TsUnixMs:  time.Now().UnixMilli(),
	}); err != nil {
		s.log.Warn("failed to publish wager_placed", zap.Error(err), zap.String("wagerId", wager.ID))
	}

	writeJSON(w, http.StatusCreated, toWagerResponse(wager))
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("accountId")
	if accountID == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "accountId is required"})
		return
	}
	includeFinished := r.URL.Query().Get("include_finished") == "true"

	wagers, err := s.store.ListWagers(r.Context(), accountID, includeFinished)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	out := make([]dto.WagerResponse, 0, len(wagers))
	for i := range wagers {
		out = append(out, toWagerResponse(&wagers[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// ---- finalização e liquidação ----

func (s *Server) finalizeRace(w http.ResponseWriter, r *http.Request) {
	var req dto.FinalizeRaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WinnerHorseName == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "winner_horse_name is required"})
		return
	}
	raceID := chi.URLParam(r, "id")

	race, err := s.store.FinalizeRace(r.Context(), raceID, req.WinnerHorseName)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	if err := s.publ.PublishRaceFinalized(r.Context(), events.RaceFinalized{
		RaceID:          race.ID,
		RaceName:        race.Name,
		WinnerHorseName: race.WinnerHorse,
		FinalizedBy:     actor(r),
		Ts:              time.Now().UTC(),
	}); err != nil {
		// sem o evento o worker não liquida sozinho; /settle continua disponível
		s.log.Error("failed to publish race_finalized", zap.Error(err), zap.String("raceId", race.ID))
	}

	writeJSON(w, http.StatusOK, toRaceResponse(race))
}

func (s *Server) settleRace(w http.ResponseWriter, r *http.Request) {
	raceID := chi.URLParam(r, "id")

	sum, err := s.store.SettleRace(r.Context(), raceID, actor(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	metrics.Settlements.Inc()
	metrics.PointsPaid.Add(float64(sum.TotalPaid + sum.OwnerBonus))

	if err := s.publ.PublishRaceSettled(r.Context(), events.RaceSettled{
		RaceID:          sum.RaceID,
		WinnerHorseName: sum.Winner,
		TotalWagers:     sum.TotalWagers,
		Winners:         sum.Winners,
		Losers:          sum.Losers,
		TotalPaid:       sum.TotalPaid,
		OwnerBonus:      sum.OwnerBonus,
		SettledBy:       actor(r),
		Ts:              time.Now().UTC(),
	}); err != nil {
		s.log.Warn("failed to publish race_settled", zap.Error(err), zap.String("raceId", sum.RaceID))
	}

	writeJSON(w, http.StatusOK, dto.SettlementSummaryResponse(*sum))
}

func (s *Server) correctWinner(w http.ResponseWriter, r *http.Request) {
	var req dto.CorrectWinnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewWinnerHorseName == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "new_winner_horse_name is required"})
		return
	}
	raceID := chi.URLParam(r, "id")

	race, reversed, err := s.store.CorrectWinner(r.Context(), raceID, req.NewWinnerHorseName)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if reversed {
		metrics.SettlementReversals.Inc()
	}

	if err := s.publ.PublishRaceFinalized(r.Context(), events.RaceFinalized{
		RaceID:          race.ID,
		RaceName:        race.Name,
		WinnerHorseName: race.WinnerHorse,
		FinalizedBy:     actor(r),
		Ts:              time.Now().UTC(),
	}); err != nil {
		s.log.Error("failed to publish race_finalized", zap.Error(err), zap.String("raceId", race.ID))
	}

	writeJSON(w, http.StatusOK, toRaceResponse(race))
}

// ---- helpers ----

// buildOddsSnapshot recalcula as cotas correntes a partir dos volumes.
// Mesma fórmula da admissão; aqui só para exibição.
func (s *Server) buildOddsSnapshot(r *http.Request, raceID string) ([]odds.HorseOdds, error) {
	race, err := s.store.GetRace(r.Context(), raceID)
	if err != nil {
		return nil, err
	}
	stakes, counts, err := s.store.RaceVolumes(r.Context(), raceID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, v := range stakes {
		total += v
	}

	snapshot := make([]odds.HorseOdds, 0, len(race.Horses))
	for _, h := range race.Horses {
		snapshot = append(snapshot, odds.HorseOdds{
			Name:       h.Name,
			Slot:       h.Slot,
			Odds:       odds.Compute(len(race.Horses), stakes[h.Name], total),
			TotalStake: stakes[h.Name],
			WagerCount: counts[h.Name],
		})
	}
	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Slot < snapshot[j].Slot })
	return snapshot, nil
}

// refreshOdds invalida o cache, reconstrói o snapshot e o difunde via
// Pub/Sub para os clientes WebSocket inscritos na corrida.
func (s *Server) refreshOdds(r *http.Request, raceID string) {
	ctx := r.Context()
	if err := s.cache.Invalidate(ctx, raceID); err != nil {
		s.log.Warn("odds cache invalidation failed", zap.Error(err), zap.String("raceId", raceID))
	}

	snapshot, err := s.buildOddsSnapshot(r, raceID)
	if err != nil {
		s.log.Warn("odds snapshot rebuild failed", zap.Error(err), zap.String("raceId", raceID))
		return
	}
	if err := s.cache.Set(ctx, raceID, snapshot); err != nil {
		s.log.Warn("odds cache write failed", zap.Error(err))
	}

	payload, err := json.Marshal(ws.OddsUpdate{RaceID: raceID, Payload: snapshot})
	if err != nil {
		return
	}
	if err := s.bc.Publish(ctx, s.channel, payload); err != nil {
		s.log.Warn("odds broadcast failed", zap.Error(err), zap.String("raceId", raceID))
	}
}

// rejectionReason rotula o motivo da rejeição para o contador de métricas
func rejectionReason(err error) string {
	switch {
	case errors.Is(err, repo.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, repo.ErrDuplicateWager):
		return "duplicate_wager"
	case errors.Is(err, repo.ErrRaceNotOpen):
		return "race_not_open"
	case errors.Is(err, repo.ErrGuestInactive):
		return "guest_inactive"
	case errors.Is(err, repo.ErrHorseNotFound):
		return "horse_not_found"
	case errors.Is(err, repo.ErrAccountNotFound), errors.Is(err, repo.ErrRaceNotFound):
		return "not_found"
	default:
		return "other"
	}
}

func toAccountResponse(a *repo.Account) dto.AccountResponse {
	return dto.AccountResponse{
		ID:           a.ID,
		Kind:         a.Kind,
		Name:         a.Name,
		Balance:      a.Balance,
		BonusClaimed: a.BonusClaimed,
		GuestCode:    a.GuestCode,
		IsActive:     a.IsActive,
		ExpiresAt:    a.ExpiresAt,
		CreatedAt:    a.CreatedAt,
	}
}

func toHorseResponse(h *repo.Horse) dto.HorseResponse {
	return dto.HorseResponse{
		ID:      h.ID,
		RaceID:  h.RaceID,
		Name:    h.Name,
		OwnerID: h.OwnerAccountID,
		Slot:    h.Slot,
	}
}

func toRaceResponse(race *repo.Race) dto.RaceResponse {
	horses := make([]dto.HorseResponse, 0, len(race.Horses))
	bySlot := make(map[int]string, len(race.Horses))
	for i := range race.Horses {
		horses = append(horses, toHorseResponse(&race.Horses[i]))
		bySlot[race.Horses[i].Slot] = race.Horses[i].Name
	}

	slots := make([]dto.SlotResponse, 0, race.SlotCount)
	for slot := 1; slot <= race.SlotCount; slot++ {
		name, taken := bySlot[slot]
		slots = append(slots, dto.SlotResponse{Slot: slot, Taken: taken, Horse: name})
	}

	return dto.RaceResponse{
		ID:          race.ID,
		Name:        race.Name,
		ScheduledAt: race.ScheduledAt,
		SlotCount:   race.SlotCount,
		Status:      race.Status,
		WinnerHorse: race.WinnerHorse,
		FinishedAt:  race.FinishedAt,
		SettledAt:   race.SettledAt,
		Slots:       slots,
		Horses:      horses,
	}
}

func toWagerResponse(w *repo.Wager) dto.WagerResponse {
	resp := dto.WagerResponse{
		ID:        w.ID,
		AccountID: w.AccountID,
		RaceID:    w.RaceID,
		HorseName: w.HorseName,
		Amount:    w.Amount,
		Odds:      w.Odds,
		Finished:  w.Finished,
		Winnings:  w.Winnings,
		CreatedAt: w.CreatedAt,
		SettledAt: w.SettledAt,
	}
	if w.Finished {
		won := w.Won
		resp.Won = &won
	}
	return resp
}
