package persona

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalog_Embedded(t *testing.T) {
	products, err := Catalog()
	require.NoError(t, err)
	require.Len(t, products, 6)
	require.Equal(t, Product{Name: "Kopi Arabika Toraja Premium", Price: 185000, Weight: 250, Rating: 4.9}, products[0])
}

func TestSystemPrompt_IncludesPersonaAndCatalog(t *testing.T) {
	content, err := SystemPrompt()
	require.NoError(t, err)
	require.Contains(t, content, "Kamu adalah KOPI AI")
	require.Contains(t, content, "Keahlianmu:")
	require.Contains(t, content, "Gaya komunikasi:")
	require.Contains(t, content, "- Kopi Arabika Toraja Premium (Rp 185.000/250g) - Rating 4.9")
	require.Contains(t, content, "- Kopi Robusta Lampung (Rp 85.000/500g) - Rating 4.7")
	require.Contains(t, content, "Selalu rekomendasikan produk dari marketplace KOPILOKA")
}

func TestSystemPrompt_Stable(t *testing.T) {
	a, err := SystemPrompt()
	require.NoError(t, err)
	b, err := SystemPrompt()
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := parseCatalog([]byte("products: [\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse catalog")

	_, err = parseCatalog([]byte("products: []\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "empty")

	_, err = parseCatalog([]byte("products:\n  - name: \"\"\n    price: 1\n    weight: 1\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no name")

	_, err = parseCatalog([]byte("products:\n  - name: Kopi\n    price: 0\n    weight: 250\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid price")
}

func TestFormatRupiah(t *testing.T) {
	cases := map[int]string{
		0:       "0",
		500:     "500",
		1000:    "1.000",
		85000:   "85.000",
		185000:  "185.000",
		1250000: "1.250.000",
		-4500:   "-4.500",
	}
	for in, want := range cases {
		require.Equal(t, want, formatRupiah(in), "n=%d", in)
	}
}
