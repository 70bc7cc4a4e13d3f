package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	const org = "6f1c2f7e-4f0e-4a55-9d3a-0c6d1b2e9a10"
	const upper = "6F1C2F7E-4F0E-4A55-9D3A-0C6D1B2E9A10"
	const other = "0b8e6a2c-91d4-4c3e-8b6f-5a7d2e1c4f90"

	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil stays nil", nil, nil},
		{"empty stays empty", []string{}, []string{}},
		{"case variants collapse", []string{org, upper}, []string{org}},
		{"blanks dropped", []string{"", "  ", org}, []string{org}},
		{"padding trimmed", []string{"  " + other + "\t"}, []string{other}},
		{"first occurrence order", []string{other, org, other}, []string{other, org}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonical(tt.in))
		})
	}
}
