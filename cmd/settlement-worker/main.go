package main

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/repo"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/config"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/db"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/kafka"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/logger"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/metrics"
	ev "github.com/ElrumbisDev/Horse-bet-race/pkg/contracts/events"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	repository := repo.NewPostgres(pg)

	// Consome race_finalized; o group ID garante uma liquidação por evento
	// mesmo com múltiplas réplicas do worker.
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicRaceFinalized, "settlement-worker")
	defer reader.Close()

	settledWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceSettled)
	defer settledWriter.Close()

	var dlqWriter *kafkago.Writer
	if cfg.TopicRaceFinalizedDLQ != "" {
		dlqWriter = kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceFinalizedDLQ)
		defer dlqWriter.Close()
	}

	metrics.StartMetricsServer(cfg.MetricsPort, repository.Ping)

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicRaceFinalized),
		zap.String("publish", cfg.TopicRaceSettled),
	)

	ctx := context.Background()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		var finalized ev.RaceFinalized
		if jerr := json.Unmarshal(msg.Value, &finalized); jerr != nil {
			log.Error("unmarshal race_finalized", zap.Error(jerr))
			continue
		}

		if err := processOne(ctx, log, repository, settledWriter, dlqWriter, &finalized); err != nil {
			log.Error("settle race", zap.String("raceId", finalized.RaceID), zap.Error(err))
			time.Sleep(500 * time.Millisecond)
		}
	}
}

// processOne liquida uma corrida finalizada e publica race_settled.
// A liquidação no banco é idempotente, então reentregas do Kafka (ou uma
// liquidação manual via API que chegou antes) viram no-ops aqui.
func processOne(
	ctx context.Context,
	log *zap.Logger,
	repository *repo.Postgres,
	settledWriter *kafkago.Writer,
	dlqWriter *kafkago.Writer,
	finalized *ev.RaceFinalized,
) error {
	sum, err := settleWithRetry(ctx, repository, finalized.RaceID)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrAlreadySettled):
			log.Info("race already settled", zap.String("raceId", finalized.RaceID))
			return nil
		case errors.Is(err, repo.ErrRaceNotFinished):
			// vencedor corrigido e reliquidado antes deste evento chegar
			log.Info("race no longer finished", zap.String("raceId", finalized.RaceID))
			return nil
		case errors.Is(err, repo.ErrRaceNotFound):
			log.Warn("race not found", zap.String("raceId", finalized.RaceID))
			return nil
		}
		if dlqWriter != nil {
			b, _ := json.Marshal(finalized)
			_ = kafka.WriteJSON(ctx, dlqWriter, finalized.RaceID, b)
		}
		return err
	}

	metrics.Settlements.Inc()
	metrics.PointsPaid.Add(float64(sum.TotalPaid + sum.OwnerBonus))
	log.Info("race settled",
		zap.String("raceId", sum.RaceID),
		zap.String("winner", sum.Winner),
		zap.Int("winners", sum.Winners),
		zap.Int64("totalPaid", sum.TotalPaid),
	)

	evs := ev.RaceSettled{
		RaceID:          sum.RaceID,
		WinnerHorseName: sum.Winner,
		TotalWagers:     sum.TotalWagers,
		Winners:         sum.Winners,
		Losers:          sum.Losers,
		TotalPaid:       sum.TotalPaid,
		OwnerBonus:      sum.OwnerBonus,
		SettledBy:       "settlement-worker",
		Ts:              time.Now(),
	}
	b, _ := json.Marshal(evs)
	return kafka.WriteJSON(ctx, settledWriter, sum.RaceID, b)
}

// settleWithRetry tenta a liquidação algumas vezes antes de desistir.
// Só erros transitórios (banco fora, deadlock) chegam a repetir; erros de
// domínio retornam direto na primeira tentativa.
func settleWithRetry(ctx context.Context, repository *repo.Postgres, raceID string) (*repo.SettlementSummary, error) {
	const retries = 3
	var (
		sum *repo.SettlementSummary
		err error
	)
	for i := 0; i < retries; i++ {
		sum, err = repository.SettleRace(ctx, raceID, "settlement-worker")
		if err == nil ||
			errors.Is(err, repo.ErrAlreadySettled) ||
			errors.Is(err, repo.ErrRaceNotFinished) ||
			errors.Is(err, repo.ErrRaceNotFound) {
			return sum, err
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return nil, err
}
