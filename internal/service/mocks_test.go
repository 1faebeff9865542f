package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/cache"
	"github.com/hy-aurora/unimart-sub000/internal/domain"
)

type mockRepository struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: map[string]*domain.Cart{}}
}

func (m *mockRepository) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, domain.ErrCartNotFound
	}
	copied := *cart
	copied.Items = append([]domain.CartItem{}, cart.Items...)
	return &copied, nil
}

func (m *mockRepository) AppendItems(_ context.Context, userID string, items ...domain.CartItem) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	now := time.Now()
	cart, ok := m.carts[userID]
	if !ok {
		cart = &domain.Cart{UserID: userID, Items: []domain.CartItem{}, CreatedAt: now}
		m.carts[userID] = cart
	}
	cart.Items = append(cart.Items, items...)
	cart.UpdatedAt = now
	return nil
}

func (m *mockRepository) PatchItems(_ context.Context, userID, productID string, patch domain.ItemPatch) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return domain.ErrCartNotFound
	}
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			cart.Items[i] = applyPatch(cart.Items[i], patch)
		}
	}
	cart.UpdatedAt = time.Now()
	return nil
}

func applyPatch(item domain.CartItem, p domain.ItemPatch) domain.CartItem {
	if p.Quantity != nil {
		item.Quantity = *p.Quantity
	}
	if p.Size != nil {
		item.Size = *p.Size
	}
	if p.CustomSize != nil {
		cs := *p.CustomSize
		item.CustomSize = &cs
	}
	return item
}

func (m *mockRepository) RemoveItem(_ context.Context, userID, productID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return domain.ErrCartNotFound
	}
	kept := cart.Items[:0]
	for _, item := range cart.Items {
		if item.ProductID != productID {
			kept = append(kept, item)
		}
	}
	cart.Items = kept
	cart.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepository) ClearItems(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return domain.ErrCartNotFound
	}
	cart.Items = []domain.CartItem{}
	cart.UpdatedAt = time.Now()
	return nil
}

func (m *mockRepository) items(userID string) []domain.CartItem {
	m.m.RLock()
	defer m.m.RUnlock()
	cart, ok := m.carts[userID]
	if !ok {
		return nil
	}
	return append([]domain.CartItem{}, cart.Items...)
}

func (m *mockRepository) setErr(err error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.err = err
}

type mockUsers struct {
	users map[string]*domain.User
	err   error
}

func (m *mockUsers) FindBySubject(_ context.Context, subject string) (*domain.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	user, ok := m.users[subject]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

type mockCatalog struct {
	m        sync.Mutex
	products map[string]*domain.Product
	errs     map[string]error
	calls    map[string]int
}

func newMockCatalog(products ...*domain.Product) *mockCatalog {
	c := &mockCatalog{
		products: map[string]*domain.Product{},
		errs:     map[string]error{},
		calls:    map[string]int{},
	}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.calls[id]++
	if err, ok := m.errs[id]; ok {
		return nil, err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *mockCatalog) setPrice(id string, price float64) {
	m.m.Lock()
	defer m.m.Unlock()
	m.products[id].Price = price
}

func (m *mockCatalog) callCount(id string) int {
	m.m.Lock()
	defer m.m.Unlock()
	return m.calls[id]
}

type mockInsights struct {
	m       sync.Mutex
	records []domain.Insight
	err     error
}

func (m *mockInsights) Record(_ context.Context, insight domain.Insight) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, insight)
	return nil
}

func (m *mockInsights) count() int {
	m.m.Lock()
	defer m.m.Unlock()
	return len(m.records)
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, userID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, userID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[userID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, userID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, userID)
	return m.err
}

func (m *mockCache) getCart(userID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[userID]
}

type staticIdentity struct {
	subject string
}

func (s staticIdentity) Subject(context.Context) (string, bool) {
	return s.subject, s.subject != ""
}

// failingGuestStore wraps a real store and fails the selected operations.
type failingGuestStore struct {
	cache.GuestStore
	drainErr error
	itemsErr error
}

func (f *failingGuestStore) Drain(ctx context.Context, guestID string) ([]domain.CartItem, error) {
	if f.drainErr != nil {
		return nil, f.drainErr
	}
	return f.GuestStore.Drain(ctx, guestID)
}

func (f *failingGuestStore) Items(ctx context.Context, guestID string) ([]domain.CartItem, error) {
	if f.itemsErr != nil {
		return nil, f.itemsErr
	}
	return f.GuestStore.Items(ctx, guestID)
}

var errDatabase = errors.New("database error")

// ctxAwareRepository fails reads whose context is already done, like a real driver.
type ctxAwareRepository struct {
	*mockRepository
}

func (r ctxAwareRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.mockRepository.GetCart(ctx, userID)
}
