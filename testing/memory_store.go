package testing

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amirphl/faredown-pricing/models"
)

// MemoryCatalog is an in-process rule and promo store for tests.
// Promo usage uses a compare-and-swap loop so concurrent redemptions never overshoot.
type MemoryCatalog struct {
	mu     sync.RWMutex
	rules  []models.MarkupRule
	promos map[string]*promoEntry

	// RuleLoads counts GetActiveRules calls
	RuleLoads atomic.Int64
	// FailRules makes GetActiveRules return this error
	FailRules error
}

type promoEntry struct {
	promo models.PromoCode
	usage atomic.Int64
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{promos: make(map[string]*promoEntry)}
}

// AddRules appends rules, assigning IDs to rules without one
func (c *MemoryCatalog) AddRules(rules ...models.MarkupRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rules {
		if r.ID == 0 {
			r.ID = uint(len(c.rules) + 1)
		}
		c.rules = append(c.rules, r)
	}
}

// AddPromo registers a promo code
func (c *MemoryCatalog) AddPromo(p models.PromoCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := &promoEntry{promo: p}
	e.usage.Store(p.UsageCount)
	c.promos[strings.ToUpper(p.Code)] = e
}

// Usage returns the current usage counter of a code
func (c *MemoryCatalog) Usage(code string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.promos[strings.ToUpper(code)]; ok {
		return e.usage.Load()
	}
	return 0
}

func (c *MemoryCatalog) GetActiveRules(ctx context.Context, module models.Module, asOf time.Time) ([]models.MarkupRule, error) {
	c.RuleLoads.Add(1)
	if c.FailRules != nil {
		return nil, c.FailRules
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.MarkupRule, 0, len(c.rules))
	for _, r := range c.rules {
		if r.Module == module && r.Status == models.RuleStatusActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *MemoryCatalog) GetPromo(ctx context.Context, code string) (*models.PromoCode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.promos[strings.ToUpper(code)]
	if !ok {
		return nil, nil
	}
	p := e.promo
	p.UsageCount = e.usage.Load()
	return &p, nil
}

func (c *MemoryCatalog) IncrementPromoUsage(ctx context.Context, code string) (bool, error) {
	c.mu.RLock()
	e, ok := c.promos[strings.ToUpper(code)]
	c.mu.RUnlock()
	if !ok {
		return false, errors.New("promo code not found")
	}
	for {
		cur := e.usage.Load()
		if cur >= e.promo.MaxUsage {
			return false, nil
		}
		if e.usage.CompareAndSwap(cur, cur+1) {
			return true, nil
		}
	}
}

func (c *MemoryCatalog) ReleasePromoUsage(ctx context.Context, code string) error {
	c.mu.RLock()
	e, ok := c.promos[strings.ToUpper(code)]
	c.mu.RUnlock()
	if !ok {
		return errors.New("promo code not found")
	}
	for {
		cur := e.usage.Load()
		if cur <= 0 {
			return nil
		}
		if e.usage.CompareAndSwap(cur, cur-1) {
			return nil
		}
	}
}
