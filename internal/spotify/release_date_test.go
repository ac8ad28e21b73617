package spotify

import (
	"testing"
	"time"
)

func TestReleaseDate(t *testing.T) {
	tests := []struct {
		name      string
		date      string
		precision string
		want      time.Time
		wantErr   bool
	}{
		{"day", "2019-10-05", PrecisionDay, time.Date(2019, 10, 5, 0, 0, 0, 0, time.UTC), false},
		{"month", "2019-10", PrecisionMonth, time.Date(2019, 10, 1, 0, 0, 0, 0, time.UTC), false},
		{"year", "2019", PrecisionYear, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"full date at year precision", "2019-10-05", PrecisionYear, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"unknown precision", "2019-10-05", "decade", time.Time{}, true},
		{"empty date", "", PrecisionDay, time.Time{}, true},
		{"garbage", "last tuesday", PrecisionDay, time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReleaseDate(tt.date, tt.precision)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ReleaseDate(%q, %q) expected error, got %v", tt.date, tt.precision, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ReleaseDate(%q, %q) unexpected error: %v", tt.date, tt.precision, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ReleaseDate(%q, %q) = %v, want %v", tt.date, tt.precision, got, tt.want)
			}
		})
	}
}
