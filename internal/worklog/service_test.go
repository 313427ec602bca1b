package worklog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListFilterNormalize(t *testing.T) {
	tests := []struct {
		name       string
		in         ListFilter
		wantLimit  int
		wantOffset int
	}{
		{"zero values take the default", ListFilter{}, 50, 0},
		{"negative offset clamped", ListFilter{Limit: 10, Offset: -1}, 10, 0},
		{"negative limit takes the default", ListFilter{Limit: -5, Offset: 20}, 50, 20},
		{"oversized limit takes the default", ListFilter{Limit: 500}, 50, 0},
		{"in-range values untouched", ListFilter{Limit: 25, Offset: 75}, 25, 75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.in
			f.normalize(50)
			assert.Equal(t, tt.wantLimit, f.Limit)
			assert.Equal(t, tt.wantOffset, f.Offset)
		})
	}
}
