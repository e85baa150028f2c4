package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	ehttp "github.com/ElrumbisDev/Horse-bet-race/internal/engine/http"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/odds"
	kpub "github.com/ElrumbisDev/Horse-bet-race/internal/engine/producer"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/repo"
	"github.com/ElrumbisDev/Horse-bet-race/internal/engine/ws"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/cache"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/config"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/db"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/kafka"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/logger"
	"github.com/ElrumbisDev/Horse-bet-race/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	// Redis (cache de cotas + Pub/Sub do hub WS)
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	// Kafka writers, um por tópico
	wagerW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicWagerPlaced)
	defer wagerW.Close()
	finalizedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceFinalized)
	defer finalizedW.Close()
	settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicRaceSettled)
	defer settledW.Close()

	// deps
	repository := repo.NewPostgres(pg)
	oddsCache := odds.NewCache(rdb, 10*time.Second)
	publ := kpub.NewKafkaPublisher(wagerW, finalizedW, settledW)
	bc := kpub.NewRedisBroadcaster(rdb)

	hub := ws.NewHub(func(r *http.Request) bool { return true })
	ws.StartRedisSubscriber(context.Background(), log, rdb, cfg.RedisPubSubChannel, hub)

	// HTTP público
	api := ehttp.NewServer(log, repository, oddsCache, publ, bc, cfg.RedisPubSubChannel, hub)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := repository.Ping(ctx); err != nil {
			return err
		}
		return rdb.Ping(ctx).Err()
	})
	log.Info("metrics/health", zap.String("addr", ":"+cfg.MetricsPort))

	log.Info("race-engine listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
