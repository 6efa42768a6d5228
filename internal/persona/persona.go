// Package persona holds the fixed system instruction for KOPI AI, the
// KOPILOKA marketplace assistant.
package persona

import (
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Product is a catalog entry the assistant may recommend.
type Product struct {
	Name   string  `yaml:"name"`
	Price  int     `yaml:"price"`
	Weight int     `yaml:"weight"`
	Rating float64 `yaml:"rating"`
}

type catalogFile struct {
	Products []Product `yaml:"products"`
}

var (
	promptOnce sync.Once
	prompt     string
	promptErr  error
)

// Catalog returns the products compiled into the binary.
func Catalog() ([]Product, error) {
	return parseCatalog(catalogYAML)
}

// SystemPrompt renders the system instruction. The catalog is parsed once
// per process.
func SystemPrompt() (string, error) {
	promptOnce.Do(func() {
		products, err := Catalog()
		if err != nil {
			promptErr = err
			return
		}
		prompt = buildSystemPrompt(products)
	})
	return prompt, promptErr
}

func parseCatalog(raw []byte) ([]Product, error) {
	var f catalogFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("persona: parse catalog: %w", err)
	}
	if len(f.Products) == 0 {
		return nil, errors.New("persona: catalog is empty")
	}
	for i, p := range f.Products {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("persona: catalog entry %d has no name", i)
		}
		if p.Price <= 0 || p.Weight <= 0 {
			return nil, fmt.Errorf("persona: catalog entry %q has invalid price or weight", p.Name)
		}
	}
	return f.Products, nil
}

func buildSystemPrompt(products []Product) string {
	return strings.Join([]string{
		"Kamu adalah KOPI AI, asisten virtual cerdas dari KOPILOKA - marketplace kopi Indonesia terbesar.",
		"",
		"Keahlianmu:",
		expertise(),
		"",
		"Gaya komunikasi:",
		style(),
		"",
		"Data produk tersedia di marketplace:",
		catalogLines(products),
		"",
		"Selalu rekomendasikan produk dari marketplace KOPILOKA jika relevan dengan pertanyaan user.",
	}, "\n")
}

func expertise() string {
	return strings.Join([]string{
		"1. **Rekomendasi Kopi**: Memberikan rekomendasi kopi berdasarkan preferensi rasa (asam, pahit, manis), metode seduh, dan budget.",
		"2. **Edukasi Kopi**: Menjelaskan jenis-jenis kopi Indonesia (Arabika, Robusta), asal daerah (Toraja, Gayo, Kintamani, dll), dan proses pengolahan.",
		"3. **Tips Menyeduh**: Memberikan panduan menyeduh kopi dengan berbagai metode (V60, French Press, Espresso, Cold Brew, dll).",
		"4. **Bantuan Transaksi**: Membantu pembeli menemukan produk dan menjawab pertanyaan tentang proses pembelian.",
		"5. **Dukungan Penjual**: Membantu penjual/petani kopi dengan tips marketing, packaging, dan pengelolaan toko.",
	}, "\n")
}

func style() string {
	return strings.Join([]string{
		"- Ramah dan hangat seperti barista favorit",
		"- Menggunakan bahasa Indonesia yang baik dengan sentuhan istilah kopi",
		"- Responsif dan informatif",
		"- Sesekali menggunakan analogi kopi yang menarik",
	}, "\n")
}

func catalogLines(products []Product) string {
	lines := make([]string, len(products))
	for i, p := range products {
		lines[i] = fmt.Sprintf("- %s (Rp %s/%dg) - Rating %.1f", p.Name, formatRupiah(p.Price), p.Weight, p.Rating)
	}
	return strings.Join(lines, "\n")
}

// formatRupiah groups thousands with dots: 185000 -> "185.000".
func formatRupiah(n int) string {
	s := strconv.Itoa(n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
