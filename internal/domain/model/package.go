package model

import (
	"membership-billing/internal/domain"
)

// Package is a static catalog entry a user can hold.
// Price is stored in minor units (cents) to avoid float errors.
type Package struct {
	ID        string
	Name      string
	Price     int64
	Features  []string
	Lifetime  bool
	SortOrder int
}

func (p *Package) IsZero() bool { return p == nil || p.ID == "" }

// NewPackage validates and constructs a catalog entry.
func NewPackage(id, name string, price int64, features []string, lifetime bool, sortOrder int) (*Package, error) {
	if id == "" || name == "" || price < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Package{
		ID:        id,
		Name:      name,
		Price:     price,
		Features:  features,
		Lifetime:  lifetime,
		SortOrder: sortOrder,
	}, nil
}

// Catalog indexes packages by id.
func Catalog(pkgs []*Package) map[string]*Package {
	out := make(map[string]*Package, len(pkgs))
	for _, p := range pkgs {
		if p.IsZero() {
			continue
		}
		out[p.ID] = p
	}
	return out
}
