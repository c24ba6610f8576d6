package fee

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPolicy(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		percent float64
		wantErr bool
	}{
		{name: "added mode", mode: "added", percent: 1},
		{name: "deducted mode", mode: "deducted", percent: 0},
		{name: "unknown mode", mode: "split", percent: 1, wantErr: true},
		{name: "negative percent", mode: "added", percent: -1, wantErr: true},
		{name: "percent too large", mode: "added", percent: 100, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewPolicy(tc.mode, tc.percent)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		percent   float64
		requested int64
		want      Quote
	}{
		{
			// request 100.00 at 1% added: payer charged 101.00, account credited 100.00
			name: "one percent added", mode: "added", percent: 1, requested: 10000,
			want: Quote{Gross: 10100, Fee: 100, Net: 10000},
		},
		{
			// request 100.00 at 1% deducted: payer charged 100.00, account credited 99.00
			name: "one percent deducted", mode: "deducted", percent: 1, requested: 10000,
			want: Quote{Gross: 10000, Fee: 100, Net: 9900},
		},
		{
			name: "zero percent added", mode: "added", percent: 0, requested: 10000,
			want: Quote{Gross: 10000, Fee: 0, Net: 10000},
		},
		{
			name: "zero percent deducted", mode: "deducted", percent: 0, requested: 10000,
			want: Quote{Gross: 10000, Fee: 0, Net: 10000},
		},
		{
			// 1% of 0.50 is half a cent; round-half-up makes it one cent
			name: "half cent rounds up", mode: "added", percent: 1, requested: 50,
			want: Quote{Gross: 51, Fee: 1, Net: 50},
		},
		{
			// 1% of 0.49 is 0.49 cents; rounds down
			name: "below half cent rounds down", mode: "added", percent: 1, requested: 49,
			want: Quote{Gross: 49, Fee: 0, Net: 49},
		},
		{
			name: "deducted rounding", mode: "deducted", percent: 1, requested: 150,
			want: Quote{Gross: 150, Fee: 2, Net: 148},
		},
		{
			name: "fractional percent", mode: "deducted", percent: 2.9, requested: 10000,
			want: Quote{Gross: 10000, Fee: 290, Net: 9710},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPolicy(tc.mode, tc.percent)
			require.NoError(t, err)

			got := p.Compute(tc.requested)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	p, err := NewPolicy("deducted", 1)
	require.NoError(t, err)

	first := p.Compute(3333)
	for range 10 {
		require.Equal(t, first, p.Compute(3333))
	}
}
