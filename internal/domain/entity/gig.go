package entity

import "github.com/google/uuid"

// Gig - предложение продавца. В ядре нужна только та часть, что влияет на цену заказа.
type Gig struct {
	ID        uuid.UUID
	SellerID  uuid.UUID
	Title     string
	Active    bool
	Published bool
	Currency  string
	Packages  []GigPackage
	Extras    []GigExtra
}

type GigPackage struct {
	ID    uuid.UUID
	GigID uuid.UUID
	Tier  string
	Price int64
}

type GigExtra struct {
	ID    uuid.UUID
	GigID uuid.UUID
	Title string
	Price int64
}

func (g *Gig) IsOrderable() bool {
	return g.Active && g.Published
}

func (g *Gig) Package(id uuid.UUID) (GigPackage, bool) {
	for _, p := range g.Packages {
		if p.ID == id && p.GigID == g.ID {
			return p, true
		}
	}
	return GigPackage{}, false
}

func (g *Gig) Extra(id uuid.UUID) (GigExtra, bool) {
	for _, e := range g.Extras {
		if e.ID == id && e.GigID == g.ID {
			return e, true
		}
	}
	return GigExtra{}, false
}
