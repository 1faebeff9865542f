package domain

import "time"

type Cart struct {
	ID        string     `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    string     `bson:"user_id" json:"userId"`
	Items     []CartItem `bson:"items" json:"items"`
	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

// CartItem is one line of a cart. Guest carts and user carts store the same shape.
type CartItem struct {
	ProductID  string      `bson:"product_id" json:"productId"`
	Quantity   int         `bson:"quantity" json:"quantity"`
	Size       string      `bson:"size,omitempty" json:"size,omitempty"`
	CustomSize *CustomSize `bson:"custom_size,omitempty" json:"customSize,omitempty"`
}

// CustomSize holds made-to-measure values. None of the fields are bounded.
type CustomSize struct {
	Chest  *float64 `bson:"chest,omitempty" json:"chest,omitempty"`
	Waist  *float64 `bson:"waist,omitempty" json:"waist,omitempty"`
	Height *float64 `bson:"height,omitempty" json:"height,omitempty"`
	Notes  string   `bson:"notes,omitempty" json:"notes,omitempty"`
}

// ItemPatch carries the optional fields of an item update. Nil fields are left untouched.
type ItemPatch struct {
	Quantity   *int
	Size       *string
	CustomSize *CustomSize
}

// IsEmpty reports whether the patch changes no item field.
func (p ItemPatch) IsEmpty() bool {
	return p.Quantity == nil && p.Size == nil && p.CustomSize == nil
}

// ItemsOrEmpty never returns nil so callers can render the cart as a JSON array.
func (c *Cart) ItemsOrEmpty() []CartItem {
	if c == nil || c.Items == nil {
		return []CartItem{}
	}
	return c.Items
}
