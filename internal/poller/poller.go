package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const retryDelay = time.Second

var errInvalidEvent = errors.New("invalid checkout event")

// CartClearer empties a user's cart once its checkout has completed.
type CartClearer interface {
	ClearUserCart(ctx context.Context, userID string) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type checkoutCompleted struct {
	CheckoutID string `json:"checkout_id"`
	UserID     string `json:"user_id"`
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Poller consumes checkout-completed events and clears the matching carts.
type Poller struct {
	carts  CartClearer
	reader messageReader
	logger *zap.Logger

	retryDelay time.Duration
}

func NewPoller(carts CartClearer, cfg Config, logger *zap.Logger) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(carts, reader, logger)
}

func newPoller(carts CartClearer, reader messageReader, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{
		carts:      carts,
		reader:     reader,
		logger:     logger.Named("checkout-poller"),
		retryDelay: retryDelay,
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("checkout poller started")
	for {
		if ctx.Err() != nil {
			p.logger.Info("checkout poller stopped")
			return
		}
		p.poll(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn("error closing reader", zap.Error(err))
	}
}

func (p *Poller) poll(ctx context.Context) {
	m, err := p.reader.FetchMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("error reading message", zap.Error(err))
		p.wait(ctx)
		return
	}

	// the reader does not redeliver within a session, so a failed clear is retried in place
	for {
		err := p.handleMessage(ctx, m)
		if err == nil {
			break
		}
		if errors.Is(err, errInvalidEvent) {
			p.logger.Error("skipping invalid checkout event",
				zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
			break
		}

		p.logger.Error("checkout event not applied, will retry",
			zap.Int("partition", m.Partition), zap.Int64("offset", m.Offset), zap.Error(err))
		p.wait(ctx)
		if ctx.Err() != nil {
			// uncommitted; the group hands it out again after restart
			return
		}
	}

	if err := p.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		p.logger.Warn("failed to commit message", zap.Int64("offset", m.Offset), zap.Error(err))
	}
}

// handleMessage clears the cart named by the event. A cart that no longer exists is not an error.
func (p *Poller) handleMessage(ctx context.Context, m kafka.Message) error {
	var event checkoutCompleted
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if event.UserID == "" {
		return fmt.Errorf("%w: missing user_id", errInvalidEvent)
	}

	err := p.carts.ClearUserCart(ctx, event.UserID)
	if errors.Is(err, domain.ErrCartNotFound) {
		p.logger.Debug("no cart to clear", zap.String("user_id", event.UserID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to clear cart of user %s: %w", event.UserID, err)
	}

	p.logger.Info("cart cleared after checkout",
		zap.String("user_id", event.UserID), zap.String("checkout_id", event.CheckoutID))
	return nil
}

func (p *Poller) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.retryDelay):
	}
}
