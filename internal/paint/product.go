package paint

// Product is a paint catalog entry. It is the record stored locally and the
// source for the CRM item projection. JSON tags follow the camelCase names
// the estimator front end sends.
type Product struct {
	ID               int64   `json:"id"`
	Brand            string  `json:"brand"`
	Paint            string  `json:"paint"`
	Interior         bool    `json:"interior"`
	Exterior         bool    `json:"exterior"`
	Finishes         string  `json:"finishes"`
	Primer           bool    `json:"primer"`
	PrimerNote       string  `json:"primerNote"`
	ResidentialPrice float64 `json:"residentialPrice"`
	CommercialPrice  float64 `json:"commercialPrice"`
	Coverage         float64 `json:"coverage"`
	// BitrixID is the CRM item id once the product has been synced.
	BitrixID *int64 `json:"bitrixId,omitempty"`
}

// Synced reports whether the product has a known CRM item.
func (p Product) Synced() bool {
	return p.BitrixID != nil && *p.BitrixID > 0
}

// Patch is a partial update. Nil fields are left untouched; there is no ID
// field so a patch can never re-key a record.
type Patch struct {
	Brand            *string  `json:"brand,omitempty"`
	Paint            *string  `json:"paint,omitempty"`
	Interior         *bool    `json:"interior,omitempty"`
	Exterior         *bool    `json:"exterior,omitempty"`
	Finishes         *string  `json:"finishes,omitempty"`
	Primer           *bool    `json:"primer,omitempty"`
	PrimerNote       *string  `json:"primerNote,omitempty"`
	ResidentialPrice *float64 `json:"residentialPrice,omitempty"`
	CommercialPrice  *float64 `json:"commercialPrice,omitempty"`
	Coverage         *float64 `json:"coverage,omitempty"`

	// The CRM link is only set by LinkPatch and UnlinkPatch, never by a
	// request body. ClearBitrixID wins over BitrixID.
	BitrixID      *int64 `json:"-" form:"-"`
	ClearBitrixID bool   `json:"-" form:"-"`
}

// Apply returns p with the patch merged in.
func (pt Patch) Apply(p Product) Product {
	if pt.Brand != nil {
		p.Brand = *pt.Brand
	}
	if pt.Paint != nil {
		p.Paint = *pt.Paint
	}
	if pt.Interior != nil {
		p.Interior = *pt.Interior
	}
	if pt.Exterior != nil {
		p.Exterior = *pt.Exterior
	}
	if pt.Finishes != nil {
		p.Finishes = *pt.Finishes
	}
	if pt.Primer != nil {
		p.Primer = *pt.Primer
	}
	if pt.PrimerNote != nil {
		p.PrimerNote = *pt.PrimerNote
	}
	if pt.ResidentialPrice != nil {
		p.ResidentialPrice = *pt.ResidentialPrice
	}
	if pt.CommercialPrice != nil {
		p.CommercialPrice = *pt.CommercialPrice
	}
	if pt.Coverage != nil {
		p.Coverage = *pt.Coverage
	}
	if pt.BitrixID != nil {
		id := *pt.BitrixID
		p.BitrixID = &id
	}
	if pt.ClearBitrixID {
		p.BitrixID = nil
	}
	return p
}

// LinkPatch sets the CRM item id of a product.
func LinkPatch(bitrixID int64) Patch {
	return Patch{BitrixID: &bitrixID}
}

// UnlinkPatch removes the CRM item id of a product.
func UnlinkPatch() Patch {
	return Patch{ClearBitrixID: true}
}

// Validate returns a field -> message map; empty means valid.
func Validate(p Product) map[string]string {
	errs := map[string]string{}
	if p.ResidentialPrice < 0 {
		errs["residentialPrice"] = "residentialPrice must be >= 0"
	}
	if p.CommercialPrice < 0 {
		errs["commercialPrice"] = "commercialPrice must be >= 0"
	}
	if p.Coverage < 0 {
		errs["coverage"] = "coverage must be >= 0"
	}
	return errs
}

// SeedCatalog is written to a fresh store so the estimator has products to
// choose from on first start.
func SeedCatalog() []Product {
	return []Product{
		{ID: 1, Brand: "Sherwin-Williams", Paint: "Duration", Interior: true, Exterior: true, Finishes: "Flat, Satin, Gloss", Primer: true, PrimerNote: "Self-priming on most sound surfaces", ResidentialPrice: 1.45, CommercialPrice: 1.30, Coverage: 350},
		{ID: 2, Brand: "Sherwin-Williams", Paint: "SuperPaint", Interior: true, Exterior: true, Finishes: "Flat, Satin, Semi-Gloss", Primer: false, ResidentialPrice: 1.15, CommercialPrice: 1.05, Coverage: 400},
		{ID: 3, Brand: "Benjamin Moore", Paint: "Regal Select", Interior: true, Exterior: false, Finishes: "Matte, Eggshell, Pearl, Semi-Gloss", Primer: false, ResidentialPrice: 1.35, CommercialPrice: 1.20, Coverage: 400},
		{ID: 4, Brand: "Benjamin Moore", Paint: "Aura Exterior", Interior: false, Exterior: true, Finishes: "Flat, Low Lustre, Satin", Primer: true, PrimerNote: "Prime bare wood and masonry first", ResidentialPrice: 1.60, CommercialPrice: 1.45, Coverage: 350},
		{ID: 5, Brand: "Behr", Paint: "Premium Plus", Interior: true, Exterior: false, Finishes: "Flat, Eggshell, Satin", Primer: true, PrimerNote: "Paint and primer in one", ResidentialPrice: 0.95, CommercialPrice: 0.85, Coverage: 400},
		{ID: 6, Brand: "PPG", Paint: "Speedhide", Interior: true, Exterior: false, Finishes: "Flat, Eggshell, Semi-Gloss", Primer: false, ResidentialPrice: 0.90, CommercialPrice: 0.80, Coverage: 375},
	}
}

// nextID returns a time-based id that is strictly greater than every id in
// existing.
func nextID(now int64, existing []Product) int64 {
	id := now
	for _, p := range existing {
		if p.ID >= id {
			id = p.ID + 1
		}
	}
	return id
}
