package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Package types offered by the venue.
const (
	PackagePlaySession    = "play_session"
	PackageBirthdayParty  = "birthday_party"
	PackageWeekendSpecial = "weekend_special"
)

// PackageTypes lists every accepted package type.
var PackageTypes = []string{PackagePlaySession, PackageBirthdayParty, PackageWeekendSpecial}

// IsPackageType reports whether t is one of PackageTypes.
func IsPackageType(t string) bool {
	for _, p := range PackageTypes {
		if p == t {
			return true
		}
	}
	return false
}

// Package is a bookable offering such as a two hour play session or a
// birthday party.  Once a booking references a package only Price and
// IsActive may change.
//
// Fields:
//  ID              – primary key identifier.
//  Name            – display name.
//  Type            – one of PackageTypes.
//  Description     – optional marketing text.
//  Price           – price per child for play sessions, flat price otherwise.
//  DurationMinutes – session length.
//  MaxChildren     – largest party a single booking may carry.
//  IsActive        – inactive packages cannot be booked.
type Package struct {
	ID              uint64          `json:"id"`               // packages.id
	Name            string          `json:"name"`             // packages.name
	Type            string          `json:"type"`             // packages.type
	Description     *string         `json:"description"`      // packages.description (nullable)
	Price           decimal.Decimal `json:"price"`            // packages.price
	DurationMinutes uint32          `json:"duration_minutes"` // packages.duration_minutes
	MaxChildren     uint32          `json:"max_children"`     // packages.max_children
	IsActive        bool            `json:"is_active"`        // packages.is_active
	CreatedAt       time.Time       `json:"created_at"`       // packages.created_at
	UpdatedAt       time.Time       `json:"updated_at"`       // packages.updated_at
}

// PricePerChild reports whether the package is charged per child.
func (p Package) PricePerChild() bool { return p.Type == PackagePlaySession }

// OrderAmount returns the undiscounted amount for a booking of n children.
func (p Package) OrderAmount(n uint32) decimal.Decimal {
	if p.PricePerChild() {
		return p.Price.Mul(decimal.NewFromInt(int64(n)))
	}
	return p.Price
}
