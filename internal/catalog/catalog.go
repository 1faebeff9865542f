// Package catalog reads products on behalf of the cart. The catalog itself is owned elsewhere.
package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"github.com/hy-aurora/unimart-sub000/internal/repository"
	"github.com/hy-aurora/unimart-sub000/pkg/circuitbreaker"
	"go.uber.org/zap"
)

type Config struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Client guards product lookups with a circuit breaker. Missing products do not count as failures.
type Client struct {
	repo    repository.ProductRepository
	breaker *circuitbreaker.Breaker[*domain.Product]
}

func NewClient(repo repository.ProductRepository, cfg Config, logger *zap.Logger) *Client {
	return &Client{
		repo: repo,
		breaker: circuitbreaker.New[*domain.Product](circuitbreaker.Config{
			Name:                "product-catalog",
			ConsecutiveFailures: cfg.ConsecutiveFailures,
			OpenTimeout:         cfg.OpenTimeout,
			IsSuccessful: func(err error) bool {
				return errors.Is(err, domain.ErrProductNotFound)
			},
		}, logger),
	}
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return c.breaker.Execute(func() (*domain.Product, error) {
		return c.repo.GetProduct(ctx, id)
	})
}
