package domain

type Product struct {
	ID        string   `bson:"_id" json:"id"`
	Name      string   `bson:"name" json:"name"`
	Price     float64  `bson:"price" json:"price"`
	ImageURLs []string `bson:"image_urls" json:"imageUrls"`
	Stock     int      `bson:"stock" json:"stock"`
}

// PrimaryImage returns the first image url or "" when the product has none.
func (p *Product) PrimaryImage() string {
	if p == nil || len(p.ImageURLs) == 0 {
		return ""
	}
	return p.ImageURLs[0]
}

type User struct {
	ID      string `bson:"_id" json:"id"`
	Subject string `bson:"subject" json:"subject"`
	Email   string `bson:"email,omitempty" json:"email,omitempty"`
	Name    string `bson:"name,omitempty" json:"name,omitempty"`
}
