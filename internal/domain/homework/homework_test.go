package homework

import "testing"

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusCompleted, true},
		{StatusPending, StatusOverdue, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusOverdue, true},
		{StatusOverdue, StatusCompleted, true},
		{StatusOverdue, StatusOverdue, false},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusOverdue, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusInProgress, StatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStatusIsOpen(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusInProgress, StatusOverdue} {
		if !s.IsOpen() {
			t.Errorf("%s should be open", s)
		}
	}
	if StatusCompleted.IsOpen() {
		t.Error("completed should not be open")
	}
}

func TestClampPriority(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {-3, 1}, {1, 1}, {3, 3}, {5, 5}, {9, 5},
	}
	for _, tc := range cases {
		if got := ClampPriority(tc.in); got != tc.want {
			t.Errorf("ClampPriority(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
