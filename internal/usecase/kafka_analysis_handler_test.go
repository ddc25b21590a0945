package usecase

import (
	"context"
	"errors"
	"testing"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaAnalysisHandler(t *testing.T) {
	src := &stubSource{name: domrepo.SourceOWID, rows: caseRows(45, func(i int) float64 { return float64(10 + i%7) })}
	pub := &capturePublisher{}
	m := &captureMetrics{}
	h := NewKafkaAnalysisHandler("analysis.requests", newAnalyzer(t, src, WithPublisher(pub)), m, nil)
	ctx := context.Background()

	assert.Equal(t, "analysis.requests", h.Topic())

	require.NoError(t, h.Handle(ctx, []byte(`{"country":"India","disease":"COVID-19","method":"simple"}`)))
	require.Len(t, pub.events, 1)
	assert.Equal(t, models.ForecastSimple, pub.events[0].ForecastMethod)

	// defaults fill data_source, method and horizon
	require.NoError(t, h.Handle(ctx, []byte(`{"country":"India","disease":"COVID-19"}`)))
	require.Len(t, pub.events, 2)
	assert.Equal(t, "owid", pub.events[1].Source)

	// unusable requests are acknowledged, not retried
	assert.NoError(t, h.Handle(ctx, []byte(`{not json`)))
	assert.NoError(t, h.Handle(ctx, []byte(`{"country":"India"}`)))
	assert.NoError(t, h.Handle(ctx, []byte(`{"country":"India","disease":"x","horizon":500}`)))
	assert.Equal(t, []string{"consumer_unmarshal", "consumer_validate", "consumer_validate"}, m.errors)
	assert.Len(t, pub.events, 2)
}

func TestKafkaAnalysisHandlerRetriesTransientErrors(t *testing.T) {
	boom := errors.New("connection refused")
	h := NewKafkaAnalysisHandler("t", newAnalyzer(t, &stubSource{name: domrepo.SourceOWID, err: boom}), nil, nil)

	err := h.Handle(context.Background(), []byte(`{"country":"India","disease":"COVID-19"}`))
	assert.ErrorIs(t, err, boom)

	h = NewKafkaAnalysisHandler("t", newAnalyzer(t, &stubSource{name: domrepo.SourceOWID, err: models.ErrNoData}), nil, nil)
	assert.NoError(t, h.Handle(context.Background(), []byte(`{"country":"India","disease":"COVID-19"}`)))
}
