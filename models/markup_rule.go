// Package models contains domain entities persisted by the pricing service
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Module is the product line a rule or promo applies to
type Module string

const (
	ModuleAir         Module = "air"
	ModuleHotel       Module = "hotel"
	ModuleSightseeing Module = "sightseeing"
	ModuleTransfer    Module = "transfer"
	ModulePackage     Module = "package"
	// ModuleAll is only meaningful on promo codes
	ModuleAll Module = "all"
)

func (m Module) String() string {
	return string(m)
}

// Valid reports whether m is a concrete product module
func (m Module) Valid() bool {
	switch m {
	case ModuleAir, ModuleHotel, ModuleSightseeing, ModuleTransfer, ModulePackage:
		return true
	default:
		return false
	}
}

// AllModules lists the concrete modules in display order
func AllModules() []Module {
	return []Module{ModuleAir, ModuleHotel, ModuleSightseeing, ModuleTransfer, ModulePackage}
}

// MarkupType selects how a rule computes its markup amount
type MarkupType string

const (
	MarkupTypePercentage MarkupType = "percentage"
	MarkupTypeFixed      MarkupType = "fixed"
	MarkupTypeTiered     MarkupType = "tiered"
)

func (t MarkupType) Valid() bool {
	switch t {
	case MarkupTypePercentage, MarkupTypeFixed, MarkupTypeTiered:
		return true
	default:
		return false
	}
}

// UserType is the customer segment a rule targets
type UserType string

const (
	UserTypeAll UserType = "all"
	UserTypeB2C UserType = "b2c"
	UserTypeB2B UserType = "b2b"
)

func (u UserType) Valid() bool {
	switch u {
	case UserTypeAll, UserTypeB2C, UserTypeB2B:
		return true
	default:
		return false
	}
}

// RuleStatus is the lifecycle state of a markup rule
type RuleStatus string

const (
	RuleStatusActive   RuleStatus = "active"
	RuleStatusInactive RuleStatus = "inactive"
	RuleStatusExpired  RuleStatus = "expired"
)

func (s RuleStatus) Valid() bool {
	switch s {
	case RuleStatusActive, RuleStatusInactive, RuleStatusExpired:
		return true
	default:
		return false
	}
}

// ScopeWildcard matches any request value for a scope attribute
const ScopeWildcard = "ALL"

// Well-known scope attribute keys
const (
	ScopeAirline         = "airline"
	ScopeOrigin          = "origin"
	ScopeDestination     = "destination"
	ScopeRoute           = "route"
	ScopeCabinClass      = "cabin_class"
	ScopeHotel           = "hotel"
	ScopeCity            = "city"
	ScopeChain           = "chain"
	ScopeStarRating      = "star_rating"
	ScopeRoomCategory    = "room_category"
	ScopeTourType        = "tour_type"
	ScopeVehicleType     = "vehicle_type"
	ScopePackageCategory = "package_category"
)

// IsWildcard reports whether a scope value matches everything
func IsWildcard(v string) bool {
	v = strings.TrimSpace(v)
	return v == "" || strings.EqualFold(v, ScopeWildcard)
}

// ScopeAttributes maps a scope attribute key to the value a rule is restricted to
type ScopeAttributes map[string]string

// Value implements driver.Valuer for jsonb storage
func (s ScopeAttributes) Value() (driver.Value, error) {
	if s == nil {
		return "{}", nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for jsonb storage
func (s *ScopeAttributes) Scan(value any) error {
	if value == nil {
		*s = ScopeAttributes{}
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into ScopeAttributes", value)
	}
	out := ScopeAttributes{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*s = out
	return nil
}

// Specificity counts the scope fields that are not wildcards
func (s ScopeAttributes) Specificity() int {
	n := 0
	for _, v := range s {
		if !IsWildcard(v) {
			n++
		}
	}
	return n
}

// TierBracket is one band of a tiered markup. MaxPrice nil means open-ended.
type TierBracket struct {
	MinPrice   decimal.Decimal  `json:"min_price"`
	MaxPrice   *decimal.Decimal `json:"max_price,omitempty"`
	Percentage decimal.Decimal  `json:"percentage"`
}

// Contains reports whether v falls in [MinPrice, MaxPrice)
func (b TierBracket) Contains(v decimal.Decimal) bool {
	if v.LessThan(b.MinPrice) {
		return false
	}
	return b.MaxPrice == nil || v.LessThan(*b.MaxPrice)
}

// TierBrackets is stored as a jsonb array
type TierBrackets []TierBracket

func (t TierBrackets) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *TierBrackets) Scan(value any) error {
	if value == nil {
		*t = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into TierBrackets", value)
	}
	var out TierBrackets
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*t = out
	return nil
}

// MarkupRule is a CMS-managed markup configuration for one module.
// Table: markup_rules
type MarkupRule struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UUID        uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_markup_rules_uuid" json:"uuid"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Description *string   `gorm:"type:text" json:"description,omitempty"`

	Module Module          `gorm:"size:32;not null;index:idx_markup_rules_module_status,priority:1" json:"module"`
	Scope  ScopeAttributes `gorm:"type:jsonb;not null;default:'{}'" json:"scope"`

	MarkupType  MarkupType       `gorm:"size:16;not null" json:"markup_type"`
	MarkupValue decimal.Decimal  `gorm:"type:numeric(14,4);not null" json:"markup_value"`
	MinAmount   *decimal.Decimal `gorm:"type:numeric(14,2)" json:"min_amount,omitempty"`
	MaxAmount   *decimal.Decimal `gorm:"type:numeric(14,2)" json:"max_amount,omitempty"`

	CurrentFareMin decimal.Decimal `gorm:"type:numeric(7,4);not null;default:0" json:"current_fare_min"`
	CurrentFareMax decimal.Decimal `gorm:"type:numeric(7,4);not null;default:0" json:"current_fare_max"`
	BargainFareMin decimal.Decimal `gorm:"type:numeric(7,4);not null;default:0" json:"bargain_fare_min"`
	BargainFareMax decimal.Decimal `gorm:"type:numeric(7,4);not null;default:0" json:"bargain_fare_max"`

	TieredBrackets TierBrackets `gorm:"type:jsonb" json:"tiered_brackets,omitempty"`

	ValidFrom *time.Time `json:"valid_from,omitempty"`
	ValidTo   *time.Time `json:"valid_to,omitempty"`

	Priority int        `gorm:"not null;default:1" json:"priority"`
	UserType UserType   `gorm:"size:8;not null;default:'all'" json:"user_type"`
	Status   RuleStatus `gorm:"size:16;not null;default:'active';index:idx_markup_rules_module_status,priority:2" json:"status"`

	// Optional extra conditions
	Season                *string          `gorm:"size:64" json:"season,omitempty"`
	AdvanceBookingMinDays *int             `json:"advance_booking_min_days,omitempty"`
	AdvanceBookingMaxDays *int             `json:"advance_booking_max_days,omitempty"`
	GroupSizeMin          *int             `json:"group_size_min,omitempty"`
	GroupSizeMax          *int             `json:"group_size_max,omitempty"`
	DaysOfWeek            pq.Int64Array    `gorm:"type:integer[]" json:"days_of_week,omitempty"`
	PriceRangeMin         *decimal.Decimal `gorm:"type:numeric(14,2)" json:"price_range_min,omitempty"`
	PriceRangeMax         *decimal.Decimal `gorm:"type:numeric(14,2)" json:"price_range_max,omitempty"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (MarkupRule) TableName() string {
	return "markup_rules"
}

// BeforeCreate ensures UUID is set for MarkupRule
func (r *MarkupRule) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	return nil
}

// Specificity is the number of non-wildcard scope fields
func (r MarkupRule) Specificity() int {
	return r.Scope.Specificity()
}

// MarkupRuleFilter represents filter criteria for markup rule queries
type MarkupRuleFilter struct {
	ID       *uint       `json:"id,omitempty"`
	Module   *Module     `json:"module,omitempty"`
	Status   *RuleStatus `json:"status,omitempty"`
	UserType *UserType   `json:"user_type,omitempty"`
	// ActiveAt keeps rules whose validity window contains the instant
	ActiveAt *time.Time `json:"active_at,omitempty"`
	Name     *string    `json:"name,omitempty"`
}
