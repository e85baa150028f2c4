package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/dto"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/odds"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/repo"
	"github.com/ElrumbisDev/Horse-bet-race/pkg/contracts/events"
)

// fakeStore implementa Store em memória, com erros injetáveis por operação
type fakeStore struct {
	accounts map[string]*repo.Account
	races    map[string]*repo.Race
	wagers   []repo.Wager
	stakes   map[string]int64
	counts   map[string]int

	placeErr  error
	placed    *repo.Wager
	settleErr error
	summary   *repo.SettlementSummary
	reversed  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts: map[string]*repo.Account{},
		races:    map[string]*repo.Race{},
		stakes:   map[string]int64{},
		counts:   map[string]int{},
	}
}

func (f *fakeStore) CreateMember(_ context.Context, name string) (*repo.Account, error) {
	a := &repo.Account{ID: "acc-1", Kind: repo.KindMember, Name: name, Balance: repo.InitialBalance, IsActive: true}
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeStore) CreateGuest(_ context.Context, name string, initialPoints int64, expiresAt *time.Time) (*repo.Account, error) {
	if initialPoints == 0 {
		initialPoints = repo.InitialBalance
	}
	a := &repo.Account{ID: "guest-1", Kind: repo.KindGuest, Name: name, Balance: initialPoints, GuestCode: "AB12CD34", IsActive: true, ExpiresAt: expiresAt}
	f.accounts[a.ID] = a
	return a, nil
}

func (f *fakeStore) GetAccount(_ context.Context, id string) (*repo.Account, error) {
	a, ok := f.accounts[id]
	if !ok {
		return nil, repo.ErrAccountNotFound
	}
	return a, nil
}

func (f *fakeStore) ClaimBonus(_ context.Context, accountID string) (int64, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return 0, repo.ErrAccountNotFound
	}
	if a.BonusClaimed {
		return 0, repo.ErrBonusClaimed
	}
	a.BonusClaimed = true
	a.Balance += repo.ClaimableBonus
	return a.Balance, nil
}

func (f *fakeStore) SetGuestActive(_ context.Context, accountID string, active bool, expiresAt *time.Time) (*repo.Account, error) {
	a, ok := f.accounts[accountID]
	if !ok {
		return nil, repo.ErrAccountNotFound
	}
	if a.Kind != repo.KindGuest {
		return nil, repo.ErrNotGuest
	}
	a.IsActive = active
	a.ExpiresAt = expiresAt
	return a, nil
}

func (f *fakeStore) CreateRace(_ context.Context, name string, scheduledAt time.Time, slotCount int) (*repo.Race, error) {
	r := &repo.Race{ID: "race-1", Name: name, ScheduledAt: scheduledAt, SlotCount: slotCount, Status: repo.StatusOpen}
	f.races[r.ID] = r
	return r, nil
}

func (f *fakeStore) ListRaces(_ context.Context) ([]repo.Race, error) {
	out := make([]repo.Race, 0, len(f.races))
	for _, r := range f.races {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeStore) GetRace(_ context.Context, raceID string) (*repo.Race, error) {
	r, ok := f.races[raceID]
	if !ok {
		return nil, repo.ErrRaceNotFound
	}
	return r, nil
}

func (f *fakeStore) DeleteRace(_ context.Context, raceID string) error {
	r, ok := f.races[raceID]
	if !ok {
		return repo.ErrRaceNotFound
	}
	if r.Status != repo.StatusOpen {
		return repo.ErrRaceNotDeletable
	}
	delete(f.races, raceID)
	return nil
}

func (f *fakeStore) RegisterHorse(_ context.Context, raceID, accountID, horseName string, requestedSlot int) (*repo.Horse, error) {
	r, ok := f.races[raceID]
	if !ok {
		return nil, repo.ErrRaceNotFound
	}
	h := repo.Horse{ID: "horse-x", RaceID: raceID, Name: horseName, OwnerAccountID: accountID, Slot: requestedSlot}
	if h.Slot == 0 {
		h.Slot = len(r.Horses) + 1
	}
	r.Horses = append(r.Horses, h)
	return &h, nil
}

func (f *fakeStore) RemoveHorse(_ context.Context, raceID, accountID string) error {
	if _, ok := f.races[raceID]; !ok {
		return repo.ErrRaceNotFound
	}
	return nil
}

func (f *fakeStore) PlaceWager(_ context.Context, accountID, raceID, horseName string, amount int64) (*repo.Wager, error) {
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	if f.placed != nil {
		return f.placed, nil
	}
	return &repo.Wager{ID: "wager-1", AccountID: accountID, RaceID: raceID, HorseName: horseName, Amount: amount, Odds: 3.0}, nil
}

func (f *fakeStore) ListWagers(_ context.Context, accountID string, includeFinished bool) ([]repo.Wager, error) {
	var out []repo.Wager
	for _, w := range f.wagers {
		if w.AccountID != accountID {
			continue
		}
		if w.Finished && !includeFinished {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeStore) RaceVolumes(_ context.Context, raceID string) (map[string]int64, map[string]int, error) {
	if _, ok := f.races[raceID]; !ok {
		return nil, nil, repo.ErrRaceNotFound
	}
	return f.stakes, f.counts, nil
}

func (f *fakeStore) FinalizeRace(_ context.Context, raceID, winnerHorseName string) (*repo.Race, error) {
	r, ok := f.races[raceID]
	if !ok {
		return nil, repo.ErrRaceNotFound
	}
	if r.Status != repo.StatusOpen {
		return nil, repo.ErrAlreadyFinished
	}
	r.Status = repo.StatusFinished
	r.WinnerHorse = winnerHorseName
	return r, nil
}

func (f *fakeStore) SettleRace(_ context.Context, raceID, actor string) (*repo.SettlementSummary, error) {
	if f.settleErr != nil {
		return nil, f.settleErr
	}
	return f.summary, nil
}

func (f *fakeStore) CorrectWinner(_ context.Context, raceID, newWinnerHorseName string) (*repo.Race, bool, error) {
	r, ok := f.races[raceID]
	if !ok {
		return nil, false, repo.ErrRaceNotFound
	}
	r.Status = repo.StatusFinished
	r.WinnerHorse = newWinnerHorseName
	return r, f.reversed, nil
}

type fakeCache struct{ data map[string][]odds.HorseOdds }

func newFakeCache() *fakeCache { return &fakeCache{data: map[string][]odds.HorseOdds{}} }

func (c *fakeCache) Get(_ context.Context, raceID string, dst *[]odds.HorseOdds) (bool, error) {
	v, ok := c.data[raceID]
	if ok {
		*dst = v
	}
	return ok, nil
}

func (c *fakeCache) Set(_ context.Context, raceID string, snapshot []odds.HorseOdds) error {
	c.data[raceID] = snapshot
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, raceID string) error {
	delete(c.data, raceID)
	return nil
}

type fakePublisher struct {
	wagers    []events.WagerPlaced
	finalized []events.RaceFinalized
	settled   []events.RaceSettled
}

func (p *fakePublisher) PublishWagerPlaced(_ context.Context, e events.WagerPlaced) error {
	p.wagers = append(p.wagers, e)
	return nil
}

func (p *fakePublisher) PublishRaceFinalized(_ context.Context, e events.RaceFinalized) error {
	p.finalized = append(p.finalized, e)
	return nil
}

func (p *fakePublisher) PublishRaceSettled(_ context.Context, e events.RaceSettled) error {
	p.settled = append(p.settled, e)
	return nil
}

type fakeBroadcaster struct{ payloads [][]byte }

func (b *fakeBroadcaster) Publish(_ context.Context, _ string, payload []byte) error {
	b.payloads = append(b.payloads, payload)
	return nil
}

type env struct {
	store *fakeStore
	cache *fakeCache
	publ  *fakePublisher
	bc    *fakeBroadcaster
	srv   http.Handler
}

func newEnv() *env {
	store := newFakeStore()
	cache := newFakeCache()
	publ := &fakePublisher{}
	bc := &fakeBroadcaster{}
	s := NewServer(zap.NewNop(), store, cache, publ, bc, "odds_updates", nil)
	return &env{store: store, cache: cache, publ: publ, bc: bc, srv: s.Router()}
}

func (e *env) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestCreateAccount(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodPost, "/v1/accounts", dto.CreateAccountRequest{Name: "Alice"})

	require.Equal(t, http.StatusCreated, rec.Code)
	acc := decode[dto.AccountResponse](t, rec)
	assert.Equal(t, "MEMBER", acc.Kind)
	assert.Equal(t, int64(repo.InitialBalance), acc.Balance)
}

func TestCreateAccountMissingName(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodPost, "/v1/accounts", dto.CreateAccountRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateGuest(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodPost, "/v1/accounts/guests", dto.CreateGuestRequest{Name: "Visitante"})

	require.Equal(t, http.StatusCreated, rec.Code)
	acc := decode[dto.AccountResponse](t, rec)
	assert.Equal(t, "GUEST", acc.Kind)
	assert.NotEmpty(t, acc.GuestCode)
}

func TestGetAccountNotFound(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodGet, "/v1/accounts/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClaimBonusOnce(t *testing.T) {
	e := newEnv()
	e.store.accounts["acc-1"] = &repo.Account{ID: "acc-1", Kind: repo.KindMember, Balance: 100}

	rec := e.do(t, http.MethodPost, "/v1/accounts/acc-1/bonus", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[dto.BonusResponse](t, rec)
	assert.Equal(t, int64(repo.ClaimableBonus), resp.BonusPoints)
	assert.Equal(t, int64(130), resp.Balance)

	// segunda chamada é conflito, não paga de novo
	rec = e.do(t, http.MethodPost, "/v1/accounts/acc-1/bonus", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateRaceSlotCountOutOfRange(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodPost, "/v1/races", dto.CreateRaceRequest{Name: "GP", SlotCount: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/races", dto.CreateRaceRequest{Name: "GP", SlotCount: 17})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetRaceSlots(t *testing.T) {
	e := newEnv()
	e.store.races["race-1"] = &repo.Race{
		ID: "race-1", Name: "GP", SlotCount: 4, Status: repo.StatusOpen,
		Horses: []repo.Horse{{ID: "h1", RaceID: "race-1", Name: "Relampago", Slot: 2}},
	}

	rec := e.do(t, http.MethodGet, "/v1/races/race-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	race := decode[dto.RaceResponse](t, rec)

	require.Len(t, race.Slots, 4)
	assert.False(t, race.Slots[0].Taken)
	assert.True(t, race.Slots[1].Taken)
	assert.Equal(t, "Relampago", race.Slots[1].Horse)
}

func TestPlaceWager(t *testing.T) {
	e := newEnv()
	e.store.races["race-1"] = &repo.Race{
		ID: "race-1", Name: "GP", SlotCount: 4, Status: repo.StatusOpen,
		Horses: []repo.Horse{{Name: "Relampago", Slot: 1}, {Name: "Trovao", Slot: 2}},
	}

	rec := e.do(t, http.MethodPost, "/v1/wagers", dto.PlaceWagerRequest{
		AccountID: "acc-1", RaceID: "race-1", HorseName: "Relampago", Amount: 10,
	})

	require.Equal(t, http.StatusCreated, rec.Code)
	wager := decode[dto.WagerResponse](t, rec)
	assert.Equal(t, 3.0, wager.Odds)
	assert.Nil(t, wager.Won)

	// admissão publica o evento e difunde o novo snapshot de cotas
	require.Len(t, e.publ.wagers, 1)
	assert.Equal(t, "wager-1", e.publ.wagers[0].WagerID)
	assert.Len(t, e.bc.payloads, 1)
	assert.Contains(t, e.cache.data, "race-1")
}

func TestPlaceWagerInvalidAmount(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodPost, "/v1/wagers", dto.PlaceWagerRequest{
		AccountID: "acc-1", RaceID: "race-1", HorseName: "Relampago", Amount: 0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlaceWagerInsufficientFunds(t *testing.T) {
	e := newEnv()
	e.store.placeErr = repo.ErrInsufficientFunds

	rec := e.do(t, http.MethodPost, "/v1/wagers", dto.PlaceWagerRequest{
		AccountID: "acc-1", RaceID: "race-1", HorseName: "Relampago", Amount: 999,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, e.publ.wagers)
}

func TestPlaceWagerDuplicate(t *testing.T) {
	e := newEnv()
	e.store.placeErr = repo.ErrDuplicateWager

	rec := e.do(t, http.MethodPost, "/v1/wagers", dto.PlaceWagerRequest{
		AccountID: "acc-1", RaceID: "race-1", HorseName: "Relampago", Amount: 10,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetOddsComputesSnapshot(t *testing.T) {
	e := newEnv()
	e.store.races["race-1"] = &repo.Race{
		ID: "race-1", Name: "GP", SlotCount: 4, Status: repo.StatusOpen,
		Horses: []repo.Horse{{Name: "Relampago", Slot: 1}, {Name: "Trovao", Slot: 2}, {Name: "Furacao", Slot: 3}},
	}
	e.store.stakes = map[string]int64{"Relampago": 100}
	e.store.counts = map[string]int{"Relampago": 1}

	rec := e.do(t, http.MethodGet, "/v1/races/race-1/odds", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snapshot := decode[[]dto.HorseOddsResponse](t, rec)

	require.Len(t, snapshot, 3)
	// todo o volume em Relampago: 3 * 0.3 = 0.9, segurado no piso 1.1
	assert.Equal(t, "Relampago", snapshot[0].Name)
	assert.Equal(t, 1.1, snapshot[0].Odds)
	assert.Equal(t, int64(100), snapshot[0].TotalStake)
	// sem apostas, cota base = número de cavalos
	assert.Equal(t, 3.0, snapshot[1].Odds)

	// segunda leitura vem do cache
	assert.Contains(t, e.cache.data, "race-1")
}

func TestFinalizeAndSettle(t *testing.T) {
	e := newEnv()
	e.store.races["race-1"] = &repo.Race{
		ID: "race-1", Name: "GP", SlotCount: 4, Status: repo.StatusOpen,
		Horses: []repo.Horse{{Name: "Relampago", Slot: 1}},
	}
	e.store.summary = &repo.SettlementSummary{
		RaceID: "race-1", RaceName: "GP", Winner: "Relampago",
		TotalWagers: 3, Winners: 2, Losers: 1, TotalPaid: 69, OwnerBonus: 20,
	}

	rec := e.do(t, http.MethodPost, "/v1/races/race-1/finalize", dto.FinalizeRaceRequest{WinnerHorseName: "Relampago"})
	require.Equal(t, http.StatusOK, rec.Code)
	race := decode[dto.RaceResponse](t, rec)
	assert.Equal(t, repo.StatusFinished, race.Status)
	require.Len(t, e.publ.finalized, 1)

	rec = e.do(t, http.MethodPost, "/v1/races/race-1/settle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sum := decode[dto.SettlementSummaryResponse](t, rec)
	assert.Equal(t, int64(69), sum.TotalPaid)
	assert.Equal(t, int64(20), sum.OwnerBonus)
	require.Len(t, e.publ.settled, 1)
	assert.Equal(t, "Relampago", e.publ.settled[0].WinnerHorseName)
}

func TestSettleAlreadySettled(t *testing.T) {
	e := newEnv()
	e.store.settleErr = repo.ErrAlreadySettled

	rec := e.do(t, http.MethodPost, "/v1/races/race-1/settle", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, e.publ.settled)
}

func TestSettleNotFinished(t *testing.T) {
	e := newEnv()
	e.store.settleErr = repo.ErrRaceNotFinished

	rec := e.do(t, http.MethodPost, "/v1/races/race-1/settle", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCorrectWinner(t *testing.T) {
	e := newEnv()
	e.store.races["race-1"] = &repo.Race{
		ID: "race-1", Name: "GP", SlotCount: 4, Status: repo.StatusSettled, WinnerHorse: "Relampago",
		Horses: []repo.Horse{{Name: "Relampago", Slot: 1}, {Name: "Trovao", Slot: 2}},
	}
	e.store.reversed = true

	rec := e.do(t, http.MethodPost, "/v1/races/race-1/winner", dto.CorrectWinnerRequest{NewWinnerHorseName: "Trovao"})
	require.Equal(t, http.StatusOK, rec.Code)
	race := decode[dto.RaceResponse](t, rec)
	assert.Equal(t, repo.StatusFinished, race.Status)
	assert.Equal(t, "Trovao", race.WinnerHorse)
	// a corrida volta a FINISHED e o evento dispara nova liquidação
	require.Len(t, e.publ.finalized, 1)
}

func TestDeleteRaceNotOpen(t *testing.T) {
	e := newEnv()
	e.store.races["race-1"] = &repo.Race{ID: "race-1", Status: repo.StatusFinished}

	rec := e.do(t, http.MethodDelete, "/v1/races/race-1", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListWagersFilter(t *testing.T) {
	e := newEnv()
	e.store.wagers = []repo.Wager{
		{ID: "w1", AccountID: "acc-1", RaceID: "race-1", Finished: false},
		{ID: "w2", AccountID: "acc-1", RaceID: "race-2", Finished: true, Won: true},
		{ID: "w3", AccountID: "acc-2", RaceID: "race-1", Finished: false},
	}

	rec := e.do(t, http.MethodGet, "/v1/wagers?accountId=acc-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	open := decode[[]dto.WagerResponse](t, rec)
	require.Len(t, open, 1)
	assert.Equal(t, "w1", open[0].ID)

	rec = e.do(t, http.MethodGet, "/v1/wagers?accountId=acc-1&include_finished=true", nil)
	all := decode[[]dto.WagerResponse](t, rec)
	require.Len(t, all, 2)
	require.NotNil(t, all[1].Won)
	assert.True(t, *all[1].Won)
}

func TestListWagersRequiresAccount(t *testing.T) {
	e := newEnv()
	rec := e.do(t, http.MethodGet, "/v1/wagers", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
