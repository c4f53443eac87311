package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPaginationClampsInput(t *testing.T) {
	p := NewPagination(0, 0)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)

	p = NewPagination(3, 1000)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 200, p.GetOffset())
}

func TestSetTotal(t *testing.T) {
	tests := []struct {
		name      string
		page      int
		total     int64
		wantPages int
		wantNext  bool
		wantPrev  bool
	}{
		{"empty", 1, 0, 0, false, false},
		{"single page", 1, 5, 1, false, false},
		{"first of many", 1, 45, 3, true, false},
		{"middle", 2, 45, 3, true, true},
		{"last", 3, 45, 3, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPagination(tt.page, 20)
			p.SetTotal(tt.total)
			assert.Equal(t, tt.wantPages, p.TotalPages)
			assert.Equal(t, tt.wantNext, p.HasNext)
			assert.Equal(t, tt.wantPrev, p.HasPrev)
		})
	}
}

func TestParsePagination(t *testing.T) {
	p := ParsePagination("3", "50")
	assert.Equal(t, 3, p.Page)
	assert.Equal(t, 50, p.PageSize)

	p = ParsePagination("", "abc")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultPageSize, p.PageSize)
}

func TestOutOfRange(t *testing.T) {
	p := NewPagination(4, 20)
	p.SetTotal(45)
	assert.True(t, p.OutOfRange())

	p = NewPagination(3, 20)
	p.SetTotal(45)
	assert.False(t, p.OutOfRange())

	p = NewPagination(1, 20)
	p.SetTotal(0)
	assert.False(t, p.OutOfRange())

	p = NewPagination(2, 20)
	p.SetTotal(0)
	assert.True(t, p.OutOfRange())
}
