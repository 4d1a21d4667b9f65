package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "hello-world"},
		{"ALL UPPER CASE", "all-upper-case"},
		{"  Trim Me  ", "trim-me"},
		{"Hello   World!!", "hello-world"},
		{"Running Shoes (Men's) - 2024", "running-shoes-men-s-2024"},
		{"Crème Brûlée Set", "creme-brulee-set"},
		{"Çocuk Ürünleri", "cocuk-urunleri"},
		{"Kadın Giyim", "kadin-giyim"},
		{"Straße", "strasse"},
		{"---", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Generate(tt.input))
		})
	}
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "desk-lamp-a1b2", WithSuffix("desk-lamp", "A1B2"))
	assert.Equal(t, "desk-lamp", WithSuffix("desk-lamp", "!!"))
	assert.Equal(t, "a1b2", WithSuffix("", "a1b2"))
}
