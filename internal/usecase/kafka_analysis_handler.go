package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"EpiPulse/internal/domain/models"
	domrepo "EpiPulse/internal/domain/repository"
	xhttp "EpiPulse/pkg/http"
	pkgkafka "EpiPulse/pkg/kafka"
	applogger "EpiPulse/pkg/logger"
)

// KafkaAnalysisHandler runs analyses requested on a Kafka topic. Results
// leave through the analyzer's report publisher.
type KafkaAnalysisHandler struct {
	topic    string
	analyzer *OutbreakAnalyzer
	metrics  domrepo.Metrics
	log      applogger.Interface
}

var _ pkgkafka.MessageHandler = (*KafkaAnalysisHandler)(nil)

func NewKafkaAnalysisHandler(topic string, analyzer *OutbreakAnalyzer, metrics domrepo.Metrics, l applogger.Interface) *KafkaAnalysisHandler {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &KafkaAnalysisHandler{topic: topic, analyzer: analyzer, metrics: metrics, log: l}
}

func (h *KafkaAnalysisHandler) Topic() string { return h.topic }

// Handle accepts the POST /api/analyze body. Requests that can never
// succeed (bad JSON, validation, missing data) are logged and acknowledged
// instead of being retried.
func (h *KafkaAnalysisHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AnalyzeRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		h.log.Warn("analysis request dropped", applogger.String("reason", "invalid json"), applogger.Error(err))
		return nil
	}
	if err := xhttp.ValidateStruct(ctx, &req); err != nil {
		h.metrics.RecordError("consumer_validate")
		h.log.Warn("analysis request dropped", applogger.String("reason", "validation"), applogger.Error(err))
		return nil
	}

	params, err := ParamsFromRequest(req)
	if err != nil {
		h.log.Warn("analysis request dropped", applogger.String("reason", "parameters"), applogger.Error(err))
		return nil
	}

	res, err := h.analyzer.Analyze(ctx, params)
	if err != nil {
		if permanent(err) {
			h.log.Warn("analysis request rejected",
				applogger.String("country", req.Country),
				applogger.String("disease", req.Disease),
				applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
				applogger.Error(err),
			)
			return nil
		}
		return fmt.Errorf("analyze %s/%s: %w", req.Country, req.Disease, err)
	}

	h.log.Info("analysis request served",
		applogger.String("id", res.ID),
		applogger.String("trace_id", pkgkafka.TraceIDFrom(ctx)),
	)
	return nil
}

// permanent reports errors that a retry cannot fix.
func permanent(err error) bool {
	for _, target := range []error{
		models.ErrInsufficientData,
		models.ErrInvalidRequest,
		models.ErrUnknownDataSource,
		models.ErrUnknownForecastMethod,
		models.ErrNoData,
		models.ErrDatasetNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
