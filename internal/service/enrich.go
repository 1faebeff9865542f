package service

import (
	"context"
	"errors"

	"github.com/hy-aurora/unimart-sub000/internal/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	NameUnavailable = "Product Not Available"
	NameLoadError   = "Error Loading Product"
)

type lookupOutcome int

const (
	productFound lookupOutcome = iota
	productMissing
	lookupFailed
)

type productLookup struct {
	outcome lookupOutcome
	product *domain.Product
	err     error
}

func classifyLookup(product *domain.Product, err error) productLookup {
	switch {
	case err == nil && product != nil:
		return productLookup{outcome: productFound, product: product}
	case err == nil, errors.Is(err, domain.ErrProductNotFound):
		return productLookup{outcome: productMissing}
	default:
		return productLookup{outcome: lookupFailed, err: err}
	}
}

// lookupProducts fetches each distinct product once. It never fails; problems are carried in the results.
func (s *CartService) lookupProducts(ctx context.Context, items []domain.CartItem) map[string]productLookup {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	results := make([]productLookup, len(ids))
	var g errgroup.Group
	g.SetLimit(s.enrichConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			product, err := s.catalog.GetProduct(ctx, id)
			results[i] = classifyLookup(product, err)
			return nil
		})
	}
	_ = g.Wait()

	lookups := make(map[string]productLookup, len(ids))
	for i, id := range ids {
		lookups[id] = results[i]
		if results[i].outcome == lookupFailed {
			s.logger.Warn("product lookup failed during enrichment",
				zap.String("product_id", id), zap.Error(results[i].err))
		}
	}
	return lookups
}

func (s *CartService) enrichItem(item domain.CartItem, lookup productLookup) domain.EnrichedItem {
	switch lookup.outcome {
	case productFound:
		image := lookup.product.PrimaryImage()
		if image == "" {
			image = s.placeholderImage
		}
		return domain.EnrichedItem{
			CartItem:  item,
			Name:      lookup.product.Name,
			Price:     lookup.product.Price,
			Image:     image,
			Available: true,
		}
	case productMissing:
		return domain.EnrichedItem{CartItem: item, Name: NameUnavailable, Image: s.placeholderImage}
	default:
		return domain.EnrichedItem{CartItem: item, Name: NameLoadError, Image: s.placeholderImage}
	}
}

// enrich joins items with live product data. Order and duplicates are preserved.
func (s *CartService) enrich(ctx context.Context, items []domain.CartItem) *domain.CartView {
	if len(items) == 0 {
		return domain.EmptyCartView()
	}

	lookups := s.lookupProducts(ctx, items)

	enriched := make([]domain.EnrichedItem, 0, len(items))
	for _, item := range items {
		enriched = append(enriched, s.enrichItem(item, lookups[item.ProductID]))
	}
	return buildView(enriched)
}

func buildView(items []domain.EnrichedItem) *domain.CartView {
	count := 0
	subtotal := decimal.Zero
	for _, item := range items {
		count += item.Quantity
		line := decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity)))
		subtotal = subtotal.Add(line)
	}
	return &domain.CartView{
		Items:     items,
		ItemCount: count,
		Subtotal:  subtotal.Round(2).InexactFloat64(),
	}
}
