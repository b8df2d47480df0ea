package products

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/references"
	"github.com/odyssey-erp/odyssey-inventory/internal/masterdata/shared"
)

func TestDecodePatchKeepsAllowListedFields(t *testing.T) {
	patch, err := DecodePatch([]byte(`{"name":"Bolt","supplierId":"3","price":1.25,"location":"B-2","id":5,"sku_typo":"x"}`))
	require.NoError(t, err)

	require.Equal(t, "Bolt", *patch.Name)
	require.Equal(t, references.Candidate("3"), *patch.SupplierID)
	require.Equal(t, "1.25", patch.Price.String())
	require.True(t, patch.Location.Set)
	require.Equal(t, "B-2", *patch.Location.Value)
	require.Nil(t, patch.SKU)
	require.Nil(t, patch.Quantity)
	require.ElementsMatch(t, []string{"name", "supplier_id", "price", "location"}, keys(patch.Submitted))
}

func TestDecodePatchPrefersSnakeCase(t *testing.T) {
	patch, err := DecodePatch([]byte(`{"category_id":4,"categoryId":8}`))
	require.NoError(t, err)
	require.Equal(t, references.Candidate("4"), *patch.CategoryID)
}

func TestDecodePatchTypeErrors(t *testing.T) {
	for _, body := range []string{
		`{"name":null}`,
		`{"sku":12}`,
		`{"quantity":"many"}`,
		`{"quantity":1.5}`,
		`{"price":"free"}`,
		`{"location":false}`,
		`"text"`,
		`null`,
	} {
		_, err := DecodePatch([]byte(body))
		require.ErrorIs(t, err, shared.ErrValidation, body)
	}
}

func TestDecodePatchEmpty(t *testing.T) {
	patch, err := DecodePatch([]byte(`{}`))
	require.NoError(t, err)
	require.True(t, patch.IsEmpty())
}

func TestParseDelta(t *testing.T) {
	for raw, want := range map[string]string{`3`: "3", `-2.5`: "-2.5", `"7"`: "7"} {
		d, err := ParseDelta(json.RawMessage(raw))
		require.NoError(t, err)
		require.Equal(t, want, d.String())
	}
	for _, raw := range []string{
		``, `null`, `"abc"`, `true`,
		`1e50000000`, `1e999999999`, `-1e19`, `0.0000000000000000001`, `"99999999999999999999"`,
	} {
		_, err := ParseDelta(json.RawMessage(raw))
		require.ErrorIs(t, err, shared.ErrValidation, raw)
	}
}

func keys(m map[string]json.RawMessage) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
