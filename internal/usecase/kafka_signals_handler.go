package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"OrdreBook/internal/domain/models"
	domrepo "OrdreBook/internal/domain/repository"
	pkgkafka "OrdreBook/pkg/kafka"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// KafkaSignalsHandler feeds externally produced trade signals into the engine.
type KafkaSignalsHandler struct {
	topic   string
	engine  SignalSubmitter
	metrics domrepo.Metrics
}

func NewKafkaSignalsHandler(topic string, engine SignalSubmitter, metrics domrepo.Metrics) *KafkaSignalsHandler {
	return &KafkaSignalsHandler{topic: topic, engine: engine, metrics: metrics}
}

func (h *KafkaSignalsHandler) Topic() string { return h.topic }

// incoming message schema: {id?, action, symbol, price, stop_loss, source?, t?}
// price and stop_loss may be numbers or decimal strings. Malformed or invalid
// signals are permanent failures and go to the DLQ without retries.
func (h *KafkaSignalsHandler) Handle(ctx context.Context, b []byte) error {
	var m struct {
		ID       string          `json:"id"`
		Action   string          `json:"action"`
		Symbol   string          `json:"symbol"`
		Price    decimal.Decimal `json:"price"`
		StopLoss decimal.Decimal `json:"stop_loss"`
		Source   string          `json:"source"`
		T        int64           `json:"t"`
	}
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("decode signal: %w", err))
	}

	action, err := models.ParseAction(m.Action)
	if err != nil {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(err)
	}
	sig := models.TradeSignal{
		ID:        m.ID,
		Action:    action,
		Symbol:    strings.ToUpper(m.Symbol),
		Price:     m.Price.InexactFloat64(),
		StopLoss:  m.StopLoss.InexactFloat64(),
		Source:    m.Source,
		CreatedAt: time.Now().UTC(),
	}
	if sig.ID == "" {
		sig.ID = uuid.NewString()
	}
	if sig.Source == "" {
		sig.Source = "kafka"
	}
	if m.T > 0 {
		if m.T > 1e11 { // ms
			m.T = m.T / 1000
		}
		h.metrics.RecordLatency("signal_ingest_e2e", time.Since(time.Unix(m.T, 0)).Seconds())
	}
	if err := sig.Validate(); err != nil {
		h.metrics.RecordError("consumer_validate")
		return pkgkafka.Permanent(err)
	}

	if err := h.engine.Submit(sig); err != nil {
		h.metrics.RecordError("consumer_submit")
		return fmt.Errorf("submit signal %s: %w", sig.ID, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaSignalsHandler)(nil)
