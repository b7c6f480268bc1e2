package meter

import "testing"

func TestElapsedActiveMs(t *testing.T) {
	pausedAt := int64(6000)

	tests := []struct {
		name        string
		startedAt   int64
		now         int64
		totalPaused int64
		pausedAt    *int64
		want        int64
	}{
		{"running", 1000, 11000, 2000, nil, 8000},
		{"running without pauses", 0, 60000, 0, nil, 60000},
		{"paused is frozen at pause start", 1000, 50000, 2000, &pausedAt, 3000},
		{"clock skew clamps to zero", 10000, 5000, 0, nil, 0},
		{"paused total larger than span", 0, 1000, 5000, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ElapsedActiveMs(tt.startedAt, tt.now, tt.totalPaused, tt.pausedAt)
			if got != tt.want {
				t.Errorf("ElapsedActiveMs() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFoldPause(t *testing.T) {
	p := int64(1000)

	if got := foldPause(500, nil, 9000); got != 500 {
		t.Errorf("no open pause: got %d, want 500", got)
	}
	if got := foldPause(500, &p, 4000); got != 3500 {
		t.Errorf("open pause: got %d, want 3500", got)
	}
	if got := foldPause(500, &p, 900); got != 500 {
		t.Errorf("resume before pause must not shrink total: got %d", got)
	}
}
