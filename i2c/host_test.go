package i2c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/f1hal"
)

func TestPairs(t *testing.T) {
	r1 := make([]byte, 2)
	r2 := make([]byte, 3)
	tests := []struct {
		name  string
		ops   []f1hal.Operation
		w     [][]byte
		reads []int
	}{
		{"empty", nil, nil, nil},
		{"write only", []f1hal.Operation{f1hal.Write([]byte{1}), f1hal.Write([]byte{2, 3})}, [][]byte{{1, 2, 3}}, []int{0}},
		{"write read", []f1hal.Operation{f1hal.Write([]byte{0x75}), f1hal.Read(r1)}, [][]byte{{0x75}}, []int{2}},
		{"read only", []f1hal.Operation{f1hal.Read(r1), f1hal.Read(r2)}, [][]byte{nil}, []int{5}},
		{"read then write", []f1hal.Operation{f1hal.Read(r1), f1hal.Write([]byte{9})}, [][]byte{nil, {9}}, []int{2, 0}},
		{"skips empty", []f1hal.Operation{f1hal.Write(nil), f1hal.Read(r1), f1hal.Read(nil)}, [][]byte{nil}, []int{2}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := pairs(test.ops)
			require.Len(t, got, len(test.w))
			for i, p := range got {
				assert.Equal(t, test.w[i], p.w)
				assert.Equal(t, test.reads[i], p.n)
			}
		})
	}
}
