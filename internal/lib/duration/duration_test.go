package duration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAddTo(t *testing.T) {
	from := time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			name: "one year",
			raw:  "1 year",
			want: from.AddDate(1, 0, 0),
		},
		{
			name: "six months",
			raw:  "6 months",
			want: from.AddDate(0, 6, 0),
		},
		{
			name: "thirty days",
			raw:  "30 days",
			want: from.AddDate(0, 0, 30),
		},
		{
			name: "singular month",
			raw:  "1 month",
			want: from.AddDate(0, 1, 0),
		},
		{
			name: "garbage falls back to one year",
			raw:  "garbage",
			want: from.AddDate(1, 0, 0),
		},
		{
			name: "number without unit falls back to one year",
			raw:  "12",
			want: from.AddDate(1, 0, 0),
		},
		{
			name: "empty string falls back to one year",
			raw:  "",
			want: from.AddDate(1, 0, 0),
		},
		{
			name: "unit without number falls back to one year",
			raw:  "months",
			want: from.AddDate(1, 0, 0),
		},
		{
			name: "uppercase unit is not recognized",
			raw:  "3 MONTHS",
			want: from.AddDate(1, 0, 0),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AddTo(from, tt.raw))
		})
	}
}
