package recommend

import (
	"context"
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/skorokhod/furniture_shop/internal/apperr"
	"github.com/skorokhod/furniture_shop/internal/models"
	"github.com/skorokhod/furniture_shop/internal/ratings"
)

// Strategy labels the algorithm that produced a recommendation list.
type Strategy string

const (
	StrategyHybrid   Strategy = "hybrid"
	StrategyPopular  Strategy = "popular"
	StrategyCategory Strategy = "category-based"
	StrategyContent  Strategy = "content-based"
)

const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 10

	// Similar items must price within ±30% of the reference item.
	priceBandRatio = 0.30
)

type Result struct {
	Strategy Strategy                `json:"algorithm"`
	Items    []ratings.FurnitureView `json:"items"`
}

// Composer runs the four recommendation strategies against the catalog.
// Every call re-executes the full query chain; there is no caching.
type Composer struct {
	DB *gorm.DB
	// Timeout bounds each strategy's database work; zero disables it.
	Timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *Composer {
	return &Composer{DB: db, Timeout: timeout}
}

func (c *Composer) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

func CheckLimit(limit int) error {
	if limit < MinLimit || limit > MaxLimit {
		return apperr.Newf(apperr.KindBadRequest, "limit must be between %d and %d", MinLimit, MaxLimit)
	}
	return nil
}

// reviewRank orders candidates by review count, then recency. Secondary
// order among fully tied rows is left to the database.
const reviewRank = "(SELECT COUNT(*) FROM reviews WHERE reviews.furniture_id = furnitures.id) DESC, furnitures.created_at DESC"

// popularityRank puts times-ordered first, then falls back to reviewRank.
const popularityRank = "(SELECT COUNT(*) FROM order_items WHERE order_items.furniture_id = furnitures.id) DESC, " + reviewRank

func (c *Composer) base(ctx context.Context) *gorm.DB {
	return c.DB.WithContext(ctx).Model(&models.Furniture{}).
		Preload("Reviews").
		Preload("Images")
}

// excludeIDs adds a NOT IN clause; gorm renders an empty slice as NOT IN
// (NULL) which matches nothing, so guard it.
func excludeIDs(q *gorm.DB, ids []uint) *gorm.DB {
	if len(ids) == 0 {
		return q
	}
	return q.Where("furnitures.id NOT IN ?", ids)
}

// ForUser composes the personalized list: collaborative candidates first,
// then the user's categories by purchase frequency, then popularity padding.
// A user with no completed purchases gets the straight popularity list.
func (c *Composer) ForUser(ctx context.Context, userID uint, limit int, excludeID uint) (*Result, error) {
	if err := CheckLimit(limit); err != nil {
		return nil, err
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	var user models.User
	if err := c.DB.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "user %d not found", userID)
		}
		return nil, err
	}

	history, err := c.purchaseHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		items, err := c.popularItems(ctx, limit, skipSet(excludeID, nil))
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: StrategyPopular, Items: ratings.Views(items)}, nil
	}

	purchased := make([]uint, 0, len(history))
	categoryOrder := make([]uint, 0)
	categoryFreq := make(map[uint]int)
	for _, p := range history {
		purchased = append(purchased, p.FurnitureID)
		if categoryFreq[p.CategoryID] == 0 {
			categoryOrder = append(categoryOrder, p.CategoryID)
		}
		categoryFreq[p.CategoryID]++
	}

	collected := make([]models.Furniture, 0, limit)
	seen := make(map[uint]bool)
	if excludeID != 0 {
		seen[excludeID] = true
	}
	for _, id := range purchased {
		seen[id] = true
	}

	// Collaborative tier: anything unpurchased from the user's categories.
	collab, err := c.findRanked(ctx, reviewRank, limit, seen, func(q *gorm.DB) *gorm.DB {
		return q.Where("furnitures.category_id IN ?", categoryOrder)
	})
	if err != nil {
		return nil, err
	}
	collected = collect(collected, collab, seen)

	// Category tier: refill from the most frequently purchased categories
	// first. Stable sort keeps the first-seen order between equal counts.
	// With purchased ids excluded here as well, this scans the same pool the
	// collaborative tier already drained, so it only yields rows if the two
	// tiers' exclusion rules ever diverge; the popularity tier below does
	// the actual padding.
	if len(collected) < limit {
		sort.SliceStable(categoryOrder, func(i, j int) bool {
			return categoryFreq[categoryOrder[i]] > categoryFreq[categoryOrder[j]]
		})
		for _, catID := range categoryOrder {
			if len(collected) >= limit {
				break
			}
			more, err := c.findRanked(ctx, reviewRank, limit-len(collected), seen, func(q *gorm.DB) *gorm.DB {
				return q.Where("furnitures.category_id = ?", catID)
			})
			if err != nil {
				return nil, err
			}
			collected = collect(collected, more, seen)
		}
	}

	// Popularity tier pads the remainder; previously purchased items may
	// reappear here.
	if len(collected) < limit {
		for _, id := range purchased {
			delete(seen, id)
		}
		for _, f := range collected {
			seen[f.ID] = true
		}
		if excludeID != 0 {
			seen[excludeID] = true
		}
		pop, err := c.popularItems(ctx, limit-len(collected), seen)
		if err != nil {
			return nil, err
		}
		collected = collect(collected, pop, seen)
	}

	return &Result{Strategy: StrategyHybrid, Items: ratings.Views(collected)}, nil
}

// Popular ranks the whole catalog by times ordered, review count, recency.
func (c *Composer) Popular(ctx context.Context, limit int, excludeID uint) (*Result, error) {
	if err := CheckLimit(limit); err != nil {
		return nil, err
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	items, err := c.popularItems(ctx, limit, skipSet(excludeID, nil))
	if err != nil {
		return nil, err
	}
	return &Result{Strategy: StrategyPopular, Items: ratings.Views(items)}, nil
}

// ByCategory lists the best-reviewed furniture of one category.
func (c *Composer) ByCategory(ctx context.Context, categoryID uint, limit int, excludeID uint) (*Result, error) {
	if err := CheckLimit(limit); err != nil {
		return nil, err
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	var category models.Category
	if err := c.DB.WithContext(ctx).First(&category, categoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "category %d not found", categoryID)
		}
		return nil, err
	}

	items, err := c.findRanked(ctx, reviewRank, limit, skipSet(excludeID, nil), func(q *gorm.DB) *gorm.DB {
		return q.Where("furnitures.category_id = ?", categoryID)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Strategy: StrategyCategory, Items: ratings.Views(items)}, nil
}

// Similar returns same-category furniture priced within ±30% of the
// reference item, reference excluded.
func (c *Composer) Similar(ctx context.Context, furnitureID uint, limit int) (*Result, error) {
	if err := CheckLimit(limit); err != nil {
		return nil, err
	}
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	var ref models.Furniture
	if err := c.DB.WithContext(ctx).First(&ref, furnitureID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.KindNotFound, "furniture %d not found", furnitureID)
		}
		return nil, err
	}

	lo := int64(float64(ref.PriceCents) * (1 - priceBandRatio))
	hi := int64(float64(ref.PriceCents) * (1 + priceBandRatio))

	items, err := c.findRanked(ctx, reviewRank, limit, skipSet(ref.ID, nil), func(q *gorm.DB) *gorm.DB {
		return q.Where("furnitures.category_id = ?", ref.CategoryID).
			Where("furnitures.price_cents BETWEEN ? AND ?", lo, hi)
	})
	if err != nil {
		return nil, err
	}
	return &Result{Strategy: StrategyContent, Items: ratings.Views(items)}, nil
}

type purchase struct {
	FurnitureID uint
	CategoryID  uint
}

func (c *Composer) purchaseHistory(ctx context.Context, userID uint) ([]purchase, error) {
	var rows []purchase
	err := c.DB.WithContext(ctx).
		Table("order_items").
		Select("order_items.furniture_id, furnitures.category_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN furnitures ON furnitures.id = order_items.furniture_id").
		Where("orders.user_id = ? AND orders.status = ?", userID, models.OrderStatusCompleted).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// findRanked is the shared query step all strategies funnel through: scope,
// exclusion set, ranking expression, limit.
func (c *Composer) findRanked(ctx context.Context, rank string, limit int, skip map[uint]bool, scope func(*gorm.DB) *gorm.DB) ([]models.Furniture, error) {
	q := scope(c.base(ctx))
	q = excludeIDs(q, keys(skip))

	var items []models.Furniture
	if err := q.Order(rank).Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Composer) popularItems(ctx context.Context, limit int, skip map[uint]bool) ([]models.Furniture, error) {
	return c.findRanked(ctx, popularityRank, limit, skip, func(q *gorm.DB) *gorm.DB { return q })
}

func collect(dst, src []models.Furniture, seen map[uint]bool) []models.Furniture {
	for _, f := range src {
		if seen[f.ID] {
			continue
		}
		seen[f.ID] = true
		dst = append(dst, f)
	}
	return dst
}

func skipSet(excludeID uint, extra []uint) map[uint]bool {
	set := make(map[uint]bool, len(extra)+1)
	if excludeID != 0 {
		set[excludeID] = true
	}
	for _, id := range extra {
		set[id] = true
	}
	return set
}

func keys(set map[uint]bool) []uint {
	out := make([]uint, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
