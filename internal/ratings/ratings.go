package ratings

import (
	"github.com/skorokhod/furniture_shop/internal/models"
)

// FurnitureView is the serialization contract for furniture in list and
// detail responses: rating aggregates instead of the raw review collection.
type FurnitureView struct {
	ID            uint           `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	PriceCents    int64          `json:"price_cents"`
	SKU           string         `json:"sku"`
	WidthCM       float64        `json:"width_cm"`
	HeightCM      float64        `json:"height_cm"`
	DepthCM       float64        `json:"depth_cm"`
	CategoryID    uint           `json:"category_id"`
	Images        []models.Image `json:"images"`
	AverageRating *float64       `json:"average_rating"`
	ReviewCount   int            `json:"review_count"`
	CreatedAt     string         `json:"created_at"`
}

// Average returns the arithmetic mean of the ratings, or nil for an empty
// collection, together with the review count.
func Average(reviews []models.Review) (*float64, int) {
	if len(reviews) == 0 {
		return nil, 0
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	avg := float64(sum) / float64(len(reviews))
	return &avg, len(reviews)
}

// View builds the output DTO by value; reviews are consumed for the
// aggregates and never serialized.
func View(f models.Furniture) FurnitureView {
	avg, count := Average(f.Reviews)
	images := f.Images
	if images == nil {
		images = []models.Image{}
	}
	return FurnitureView{
		ID:            f.ID,
		Name:          f.Name,
		Description:   f.Description,
		PriceCents:    f.PriceCents,
		SKU:           f.SKU,
		WidthCM:       f.WidthCM,
		HeightCM:      f.HeightCM,
		DepthCM:       f.DepthCM,
		CategoryID:    f.CategoryID,
		Images:        images,
		AverageRating: avg,
		ReviewCount:   count,
		CreatedAt:     f.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func Views(items []models.Furniture) []FurnitureView {
	out := make([]FurnitureView, 0, len(items))
	for _, f := range items {
		out = append(out, View(f))
	}
	return out
}
