package repository

import (
	"context"
	"fmt"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	pkgkafka "EpiPulse/pkg/kafka"
)

// KafkaReportPublisher publishes analysis events keyed by country and
// disease so one series' events stay on one partition.
type KafkaReportPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)

func NewKafkaReportPublisher(p *pkgkafka.Producer, topic string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: p, topic: topic}
}

func (k *KafkaReportPublisher) PublishAnalysis(ctx context.Context, ev models.AnalysisEvent) error {
	key := []byte(ev.Country + "|" + ev.Disease)
	if err := k.producer.Publish(ctx, k.topic, key, ev); err != nil {
		return fmt.Errorf("publish analysis %s: %w", ev.ID, err)
	}
	return nil
}

func (k *KafkaReportPublisher) Close() error {
	return k.producer.Close()
}

// NopReportPublisher drops events; used when Kafka is disabled.
type NopReportPublisher struct{}

func (NopReportPublisher) PublishAnalysis(context.Context, models.AnalysisEvent) error { return nil }

func (NopReportPublisher) Close() error { return nil }
