package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		query      string
		wantPage   int
		wantPer    int
		wantOffset int
	}{
		{"", 1, 20, 0},
		{"?page=3&per_page=50", 3, 50, 100},
		{"?page=0&per_page=-5", 1, 20, 0},
		{"?page=abc&per_page=xyz", 1, 20, 0},
		{"?per_page=500", 1, 100, 0},
		{"?page=2", 2, 20, 20},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products"+tt.query, nil)
			p := FromRequest(req)

			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantPer, p.PerPage)
			assert.Equal(t, tt.wantOffset, p.Offset())
			assert.Equal(t, tt.wantPer, p.Limit())
		})
	}
}

func TestOffset_ZeroPage(t *testing.T) {
	assert.Equal(t, 0, Params{Page: 0, PerPage: 20}.Offset())
}
