package presence

import (
	"strings"
	"testing"
	"time"
)

func TestFormattedLastSeen(t *testing.T) {
	now := time.Date(2025, time.June, 18, 14, 0, 0, 0, time.UTC) // a Wednesday

	tests := []struct {
		name     string
		state    State
		want     string
		contains string
	}{
		{
			name:  "online",
			state: State{IsOnline: true},
			want:  "online",
		},
		{
			name:  "under a minute",
			state: State{LastSeen: now.Add(-20 * time.Second)},
			want:  "just now",
		},
		{
			name:     "thirty minutes",
			state:    State{LastSeen: now.Add(-30 * time.Minute)},
			contains: "30 mins ago",
		},
		{
			name:  "three hours",
			state: State{LastSeen: now.Add(-3 * time.Hour)},
			want:  "3 hours ago",
		},
		{
			name:  "earlier today",
			state: State{LastSeen: now.Add(-10 * time.Hour)},
			want:  "today at 04:00",
		},
		{
			name:     "twenty five hours",
			state:    State{LastSeen: now.Add(-25 * time.Hour)},
			contains: "yesterday at",
		},
		{
			name:  "four days",
			state: State{LastSeen: now.Add(-4 * 24 * time.Hour)},
			want:  "Saturday at 14:00",
		},
		{
			name:  "two weeks",
			state: State{LastSeen: now.Add(-14 * 24 * time.Hour)},
			want:  "Jun 4, 2025",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FormattedLastSeen(now, tc.state)
			if tc.want != "" && got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if tc.contains != "" && !strings.Contains(got, tc.contains) {
				t.Fatalf("got %q, want it to contain %q", got, tc.contains)
			}
		})
	}
}
