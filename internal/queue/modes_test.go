package queue

import "testing"

func TestParseMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Mode
		ok   bool
	}{
		{"steer", ModeSteer, true},
		{"steering", ModeSteer, true},
		{"followup", ModeFollowup, true},
		{"follow-up", ModeFollowup, true},
		{"collect", ModeCollect, true},
		{"coalesce", ModeCollect, true},
		{"steer-backlog", ModeSteerBacklog, true},
		{"steer+backlog", ModeSteerBacklog, true},
		{"steer_backlog", ModeSteerBacklog, true},
		{"queue", ModeQueue, true},
		{"interrupt", ModeInterrupt, true},
		{"abort", ModeInterrupt, true},
		{"  Queue  ", ModeQueue, true},
		{"STEER", ModeSteer, true},
		{"", "", false},
		{"yolo", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseMode(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ParseMode(%q) = %q, %v, want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestParseDropPolicy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want DropPolicy
		ok   bool
	}{
		{"old", DropOld, true},
		{"oldest", DropOld, true},
		{"new", DropNew, true},
		{"newest", DropNew, true},
		{"summarize", DropSummarize, true},
		{"summary", DropSummarize, true},
		{" SUMMARIZE ", DropSummarize, true},
		{"", "", false},
		{"random", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseDropPolicy(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Fatalf("ParseDropPolicy(%q) = %q, %v, want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}
