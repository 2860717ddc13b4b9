package bitrix

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/wichananm65/paint-sync/internal/paint"
)

// Custom fields of the paint product smart process. The names are part of
// the CRM schema and must not change.
const (
	FieldTitle            = "title"
	FieldAssignedBy       = "assignedById"
	FieldBrand            = "ufCrmPaintBrand"
	FieldName             = "ufCrmPaintName"
	FieldInterior         = "ufCrmPaintInterior"
	FieldExterior         = "ufCrmPaintExterior"
	FieldFinishes         = "ufCrmPaintFinishes"
	FieldPrimer           = "ufCrmPaintPrimer"
	FieldPrimerNote       = "ufCrmPaintPrimerNote"
	FieldResidentialPrice = "ufCrmPaintResidentialPrice"
	FieldCommercialPrice  = "ufCrmPaintCommercialPrice"
	FieldCoverage         = "ufCrmPaintCoverage"
	FieldExternalID       = "ufCrmPaintExternalId"
	FieldLastSync         = "ufCrmPaintLastSync"
)

// Item is the part of a CRM item this service reads back.
type Item struct {
	ID         int64    `json:"id"`
	Title      string   `json:"title"`
	ExternalID flexText `json:"ufCrmPaintExternalId"`
	LastSync   flexText `json:"ufCrmPaintLastSync"`
}

// flexText accepts a JSON string, number or null.
type flexText string

func (f *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexText(s)
		return nil
	}
	*f = flexText(b)
	return nil
}

func yesNo(v bool) string {
	if v {
		return "Y"
	}
	return "N"
}

// ExternalID formats a local product id the way it is stored remotely.
func ExternalID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ToFields projects a product onto the CRM item fields.
func ToFields(p paint.Product, assignedBy int, syncedAt time.Time) map[string]any {
	fields := map[string]any{
		FieldTitle:            strings.TrimSpace(p.Brand + " " + p.Paint),
		FieldBrand:            p.Brand,
		FieldName:             p.Paint,
		FieldInterior:         yesNo(p.Interior),
		FieldExterior:         yesNo(p.Exterior),
		FieldFinishes:         p.Finishes,
		FieldPrimer:           yesNo(p.Primer),
		FieldPrimerNote:       p.PrimerNote,
		FieldResidentialPrice: p.ResidentialPrice,
		FieldCommercialPrice:  p.CommercialPrice,
		FieldCoverage:         p.Coverage,
		FieldExternalID:       ExternalID(p.ID),
		FieldLastSync:         syncedAt.UTC().Format(time.RFC3339),
	}
	if assignedBy > 0 {
		fields[FieldAssignedBy] = assignedBy
	}
	return fields
}
