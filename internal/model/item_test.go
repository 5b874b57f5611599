package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRawItem_Valid(t *testing.T) {
	tests := []struct {
		name string
		item RawItem
		want bool
	}{
		{"complete", RawItem{Reference: "P-1", Name: "Bearing"}, true},
		{"missing reference", RawItem{Name: "Bearing"}, false},
		{"missing name", RawItem{Reference: "P-1"}, false},
		{"empty", RawItem{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.item.Valid())
		})
	}
}
