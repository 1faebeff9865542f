package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/cache"
	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"github.com/hy-aurora/unimart-sub000/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPlaceholderImage  = "/images/placeholder.png"
	DefaultEnrichConcurrency = 8

	backgroundTimeout = 2 * time.Second
	loadTimeout       = 10 * time.Second
)

// IdentityProvider resolves the caller of the current request.
type IdentityProvider interface {
	Subject(ctx context.Context) (string, bool)
}

// ProductCatalog is the read side of the product catalog.
type ProductCatalog interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
}

type Deps struct {
	Carts    repository.CartRepository
	Users    repository.UserRepository
	Insights repository.InsightRepository
	Catalog  ProductCatalog
	Cache    cache.CartCache
	Guests   cache.GuestStore
	Identity IdentityProvider
	Logger   *zap.Logger
}

type Options struct {
	PlaceholderImage  string
	EnrichConcurrency int
}

type CartService struct {
	repo     repository.CartRepository
	users    repository.UserRepository
	insights repository.InsightRepository
	catalog  ProductCatalog
	cache    cache.CartCache
	guests   cache.GuestStore
	identity IdentityProvider
	logger   *zap.Logger

	placeholderImage  string
	enrichConcurrency int

	sfg        singleflight.Group // Prevents cache stampede
	background sync.WaitGroup
	now        func() time.Time
}

func NewCartService(deps Deps, opts Options) *CartService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if opts.PlaceholderImage == "" {
		opts.PlaceholderImage = DefaultPlaceholderImage
	}
	if opts.EnrichConcurrency <= 0 {
		opts.EnrichConcurrency = DefaultEnrichConcurrency
	}

	return &CartService{
		repo:              deps.Carts,
		users:             deps.Users,
		insights:          deps.Insights,
		catalog:           deps.Catalog,
		cache:             deps.Cache,
		guests:            deps.Guests,
		identity:          deps.Identity,
		logger:            deps.Logger,
		placeholderImage:  opts.PlaceholderImage,
		enrichConcurrency: opts.EnrichConcurrency,
		now:               time.Now,
	}
}

type AddItemRequest struct {
	ProductID  string
	Quantity   int
	Size       string
	CustomSize *domain.CustomSize
	// GuestID selects the anonymous cart. Empty means the authenticated caller's cart.
	GuestID string
}

type AddItemResult struct {
	// GuestItems is the guest cart after the append; nil for authenticated adds.
	GuestItems []domain.CartItem
}

// AddItem appends a line to the guest cart or to the caller's cart.
// Stock is not checked here; UpdateItem enforces it.
func (s *CartService) AddItem(ctx context.Context, req AddItemRequest) (*AddItemResult, error) {
	if req.Quantity <= 0 {
		return nil, domain.ErrInvalidQuantity
	}

	item := domain.CartItem{
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		Size:       req.Size,
		CustomSize: req.CustomSize,
	}

	if req.GuestID != "" {
		items, err := s.guests.Append(ctx, req.GuestID, item)
		if err != nil {
			s.logger.Error("guest cart append failed", zap.String("guest_id", req.GuestID), zap.Error(err))
			return nil, err
		}
		return &AddItemResult{GuestItems: items}, nil
	}

	user, err := s.resolveUser(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.repo.AppendItems(ctx, user.ID, item); err != nil {
		s.logger.Error("repo append item error", zap.String("user_id", user.ID), zap.Error(err))
		return nil, err
	}

	s.invalidateCache(user.ID)
	return &AddItemResult{}, nil
}

// UpdateItem changes every line of productID in the caller's cart.
func (s *CartService) UpdateItem(ctx context.Context, productID string, patch domain.ItemPatch) error {
	user, err := s.resolveUser(ctx)
	if err != nil {
		return err
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	if patch.Quantity != nil {
		qty := *patch.Quantity
		if qty <= 0 {
			return domain.ErrInvalidQuantity
		}
		if qty > product.Stock {
			return &domain.InsufficientStockError{
				ProductID: productID,
				Requested: qty,
				Available: product.Stock,
			}
		}
	}

	if err := s.repo.PatchItems(ctx, user.ID, productID, patch); err != nil {
		if !errors.Is(err, domain.ErrCartNotFound) {
			s.logger.Error("repo patch items error", zap.String("user_id", user.ID), zap.Error(err))
		}
		return err
	}

	s.invalidateCache(user.ID)
	s.recordInsight(domain.Insight{Metric: domain.MetricCartUpdate, Value: 1, Timestamp: s.now()})
	return nil
}

// RemoveItem drops every line of productID from the caller's cart.
func (s *CartService) RemoveItem(ctx context.Context, productID string) error {
	user, err := s.resolveUser(ctx)
	if err != nil {
		return err
	}

	if err := s.repo.RemoveItem(ctx, user.ID, productID); err != nil {
		if !errors.Is(err, domain.ErrCartNotFound) {
			s.logger.Error("repo remove item error", zap.String("user_id", user.ID), zap.Error(err))
		}
		return err
	}

	s.invalidateCache(user.ID)
	return nil
}

func (s *CartService) ClearCart(ctx context.Context) error {
	user, err := s.resolveUser(ctx)
	if err != nil {
		return err
	}
	return s.ClearUserCart(ctx, user.ID)
}

// ClearUserCart empties the cart of userID without resolving the caller. Used after checkout.
func (s *CartService) ClearUserCart(ctx context.Context, userID string) error {
	if err := s.repo.ClearItems(ctx, userID); err != nil {
		if !errors.Is(err, domain.ErrCartNotFound) {
			s.logger.Error("repo clear cart error", zap.String("user_id", userID), zap.Error(err))
		}
		return err
	}

	s.invalidateCache(userID)
	return nil
}

// MergeGuestCart moves the guest cart into the caller's cart and returns the number of lines moved.
// The caller is resolved before the guest cart is touched, and drained items are put back
// if they could not be written to the user's cart.
func (s *CartService) MergeGuestCart(ctx context.Context, guestID string) (int, error) {
	user, err := s.resolveUser(ctx)
	if err != nil {
		return 0, err
	}

	items, err := s.guests.Drain(ctx, guestID)
	if err != nil {
		s.logger.Error("guest cart drain failed", zap.String("guest_id", guestID), zap.Error(err))
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	if err := s.repo.AppendItems(ctx, user.ID, items...); err != nil {
		s.logger.Error("merge into user cart failed, restoring guest cart",
			zap.String("guest_id", guestID), zap.String("user_id", user.ID), zap.Error(err))
		s.restoreGuestItems(guestID, items)
		return 0, err
	}

	s.invalidateCache(user.ID)
	s.logger.Info("guest cart merged",
		zap.String("guest_id", guestID), zap.String("user_id", user.ID), zap.Int("items", len(items)))
	return len(items), nil
}

// GetCart returns the enriched guest cart when guestID is set, otherwise the caller's cart.
// Anonymous callers and callers without a user record get an empty cart.
func (s *CartService) GetCart(ctx context.Context, guestID string) (*domain.CartView, error) {
	if guestID != "" {
		items, err := s.guests.Items(ctx, guestID)
		if err != nil {
			s.logger.Warn("guest cart read failed", zap.String("guest_id", guestID), zap.Error(err))
			return domain.EmptyCartView(), nil
		}
		return s.enrich(ctx, items), nil
	}

	user, err := s.resolveUser(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrUserNotFound) {
			return domain.EmptyCartView(), nil
		}
		return nil, err
	}

	cart, err := s.loadCart(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, cart.ItemsOrEmpty()), nil
}

// Close waits for pending insight records to finish.
func (s *CartService) Close() {
	s.background.Wait()
}

func (s *CartService) resolveUser(ctx context.Context) (*domain.User, error) {
	subject, ok := s.identity.Subject(ctx)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	user, err := s.users.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return user, nil
}

// loadCart reads the raw cart through the cache. A missing cart is returned as an empty one.
func (s *CartService) loadCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		// shared by every coalesced caller; detached from the first caller's cancellation
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}

		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache get error", zap.String("user_id", userID), zap.Error(err))
		}

		cart, errGet := s.repo.GetCart(ctx, userID)
		if errors.Is(errGet, domain.ErrCartNotFound) {
			return &domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
		}
		if errGet != nil {
			return nil, errGet
		}

		// set before returning so a write issued right after this read always invalidates it
		if errSet := s.cache.Set(ctx, userID, cart); errSet != nil {
			s.logger.Warn("cache set error", zap.String("user_id", userID), zap.Error(errSet))
		}

		return cart, nil
	})

	if err != nil {
		return nil, err
	}

	return v.(*domain.Cart), nil
}

func (s *CartService) invalidateCache(userID string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID); err != nil {
		s.logger.Warn("cache invalidate error", zap.String("user_id", userID), zap.Error(err))
	}
}

// recordInsight never fails the calling operation.
func (s *CartService) recordInsight(insight domain.Insight) {
	s.goBackground(func(ctx context.Context) {
		if err := s.insights.Record(ctx, insight); err != nil {
			s.logger.Warn("insight record failed", zap.String("metric", insight.Metric), zap.Error(err))
		}
	})
}

func (s *CartService) restoreGuestItems(guestID string, items []domain.CartItem) {
	ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
	defer cancel()
	if _, err := s.guests.Append(ctx, guestID, items...); err != nil {
		s.logger.Error("guest cart restore failed, items lost",
			zap.String("guest_id", guestID), zap.Int("items", len(items)), zap.Error(err))
	}
}

func (s *CartService) goBackground(fn func(ctx context.Context)) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		fn(ctx)
	}()
}
