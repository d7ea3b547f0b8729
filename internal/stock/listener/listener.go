package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fekuna/omnipos-ledger-service/internal/stock"
	"github.com/fekuna/omnipos-ledger-service/internal/stock/dto"
	"github.com/fekuna/omnipos-ledger-service/pkg/logger"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	EventOrderCreated = "OrderCreated"
	systemActor       = "system"
	dedupeTTL         = 24 * time.Hour
)

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

// Deduper claims an order line so redelivered messages are applied once.
// A claim is released when the line fails, so a redelivery can retry it.
type Deduper interface {
	AcquireLock(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, value string) error
}

type SalesListener struct {
	reader  MessageReader
	dedupe  Deduper
	uc      stock.UseCase
	logger  logger.ZapLogger
	backoff time.Duration
}

// NewSalesListener builds the listener. dedupe may be nil.
func NewSalesListener(reader MessageReader, dedupe Deduper, uc stock.UseCase, log logger.ZapLogger) *SalesListener {
	return &SalesListener{
		reader:  reader,
		dedupe:  dedupe,
		uc:      uc,
		logger:  log,
		backoff: time.Second,
	}
}

func (l *SalesListener) Start(ctx context.Context) {
	l.logger.Info("Starting stock sales listener")
	for {
		select {
		case <-ctx.Done():
			l.logger.Info("Stopping stock sales listener")
			return
		default:
			msg, err := l.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Error("Failed to read kafka message", zap.Error(err))
				time.Sleep(l.backoff)
				continue
			}
			if err := l.processMessage(ctx, msg.Value); err != nil {
				l.logger.Error("OrderCreated event not fully applied", zap.Error(err))
			}
		}
	}
}

type OrderCreatedEvent struct {
	EventID   string       `json:"event_id"`
	EventType string       `json:"event_type"`
	Payload   OrderPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

type OrderPayload struct {
	ID     string             `json:"id"`
	UserID string             `json:"user_id"`
	Items  []OrderItemPayload `json:"items"`
}

type OrderItemPayload struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

func (l *SalesListener) processMessage(ctx context.Context, value []byte) error {
	var event OrderCreatedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		l.logger.Error("Failed to unmarshal event", zap.Error(err))
		return nil
	}

	if event.EventType != EventOrderCreated {
		return nil
	}

	l.logger.Info("Processing OrderCreated event", zap.String("order_id", event.Payload.ID))

	var errs []error
	for i, item := range event.Payload.Items {
		if item.VariantID == "" || item.Quantity <= 0 {
			l.logger.Warn("Skipping order item without variant or quantity",
				zap.String("order_id", event.Payload.ID),
				zap.String("product_id", item.ProductID),
			)
			continue
		}

		key, claimed := l.claim(ctx, event, i)
		if !claimed {
			continue
		}

		_, err := l.uc.RecordSale(ctx, &dto.SaleInput{
			VariantID: item.VariantID,
			Qty:       item.Quantity,
			OrderID:   event.Payload.ID,
			ActorID:   systemActor,
		})
		if err != nil {
			l.logger.Error("Failed to record sale for order item",
				zap.String("order_id", event.Payload.ID),
				zap.String("variant_id", item.VariantID),
				zap.Error(err),
			)
			l.release(ctx, key, event.Payload.ID)
			errs = append(errs, fmt.Errorf("order %s variant %s: %w", event.Payload.ID, item.VariantID, err))
		}
	}
	return errors.Join(errs...)
}

// claim marks line i of the event as taken. It reports false when the line
// was already applied by an earlier delivery. The returned key is empty when
// no claim is held.
func (l *SalesListener) claim(ctx context.Context, event OrderCreatedEvent, i int) (string, bool) {
	if l.dedupe == nil || event.EventID == "" {
		return "", true
	}
	key := fmt.Sprintf("stock:event:%s:%d", event.EventID, i)
	ok, err := l.dedupe.AcquireLock(ctx, key, event.Payload.ID, dedupeTTL)
	if err != nil {
		l.logger.Warn("Event dedupe unavailable, processing anyway", zap.String("event_id", event.EventID), zap.Error(err))
		return "", true
	}
	if !ok {
		l.logger.Info("Skipping duplicate order line", zap.String("event_id", event.EventID), zap.Int("line", i))
		return "", false
	}
	return key, true
}

func (l *SalesListener) release(ctx context.Context, key, owner string) {
	if key == "" {
		return
	}
	if err := l.dedupe.ReleaseLock(context.WithoutCancel(ctx), key, owner); err != nil {
		l.logger.Warn("Failed to release order line claim", zap.String("key", key), zap.Error(err))
	}
}
