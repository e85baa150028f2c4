package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ElrumbisDev/Horse-bet-race/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de domínio do motor. Um writer por
// tópico, como cada serviço os consome em ritmos diferentes.
type KafkaPublisher struct {
	WagerWriter     *kafka.Writer
	FinalizedWriter *kafka.Writer
	SettledWriter   *kafka.Writer
}

func NewKafkaPublisher(wagerW, finalizedW, settledW *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{
		WagerWriter:     wagerW,
		FinalizedWriter: finalizedW,
		SettledWriter:   settledW,
	}
}

func (p *KafkaPublisher) PublishWagerPlaced(ctx context.Context, e events.WagerPlaced) error {
	e.TsUnixMs = time.Now().UnixMilli()
	b, _ := json.Marshal(e)
	return p.WagerWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.RaceID), Value: b})
}

func (p *KafkaPublisher) PublishRaceFinalized(ctx context.Context, e events.RaceFinalized) error {
	e.Ts = time.Now()
	b, _ := json.Marshal(e)
	return p.FinalizedWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.RaceID), Value: b})
}

func (p *KafkaPublisher) PublishRaceSettled(ctx context.Context, e events.RaceSettled) error {
	e.Ts = time.Now()
	b, _ := json.Marshal(e)
	return p.SettledWriter.WriteMessages(ctx, kafka.Message{Key: []byte(e.RaceID), Value: b})
}
