package domain

// EnrichedItem is a cart line joined with the product data current at read time.
type EnrichedItem struct {
	CartItem
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image"`
	Available bool    `json:"available"`
}

type CartView struct {
	Items     []EnrichedItem `json:"items"`
	ItemCount int            `json:"itemCount"`
	Subtotal  float64        `json:"subtotal"`
}

func EmptyCartView() *CartView {
	return &CartView{Items: []EnrichedItem{}}
}
