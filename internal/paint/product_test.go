package paint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T { return &v }

func TestPatchApply_PatchWinsAndKeepsID(t *testing.T) {
	base := Product{ID: 42, Brand: "Acme", Paint: "Shield", Interior: true, Coverage: 300}
	patch := Patch{
		Brand:    ptr("Acme Pro"),
		Interior: ptr(false),
		Coverage: ptr(350.5),
	}

	got := patch.Apply(base)

	assert.Equal(t, int64(42), got.ID)
	assert.Equal(t, "Acme Pro", got.Brand)
	assert.Equal(t, "Shield", got.Paint)
	assert.False(t, got.Interior)
	assert.Equal(t, 350.5, got.Coverage)
	assert.Equal(t, "Acme", base.Brand, "Apply must not mutate its input")
}

func TestPatchApply_Link(t *testing.T) {
	p := LinkPatch(77).Apply(Product{ID: 1})
	assert.True(t, p.Synced())
	assert.Equal(t, int64(77), *p.BitrixID)

	p = UnlinkPatch().Apply(p)
	assert.False(t, p.Synced())
	assert.Nil(t, p.BitrixID)
}

func TestValidate(t *testing.T) {
	assert.Empty(t, Validate(Product{ResidentialPrice: 1, CommercialPrice: 0, Coverage: 300}))

	errs := Validate(Product{ResidentialPrice: -1, CommercialPrice: -2, Coverage: -3})
	assert.Len(t, errs, 3)
	assert.Contains(t, errs, "residentialPrice")
	assert.Contains(t, errs, "commercialPrice")
	assert.Contains(t, errs, "coverage")
}

func TestNextID(t *testing.T) {
	assert.Equal(t, int64(1000), nextID(1000, nil))
	assert.Equal(t, int64(1000), nextID(1000, []Product{{ID: 1}, {ID: 999}}))
	assert.Equal(t, int64(1001), nextID(1000, []Product{{ID: 1000}}))
	assert.Equal(t, int64(5001), nextID(1000, []Product{{ID: 5000}, {ID: 3}}))
}

func TestSeedCatalog_UniqueIDs(t *testing.T) {
	seen := map[int64]bool{}
	for _, p := range SeedCatalog() {
		assert.False(t, seen[p.ID], "duplicate seed id %d", p.ID)
		seen[p.ID] = true
		assert.NotEmpty(t, p.Brand)
		assert.NotEmpty(t, p.Paint)
		assert.Empty(t, Validate(p))
	}
}
