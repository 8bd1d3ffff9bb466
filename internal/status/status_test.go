package status

import (
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		nextDue time.Time
		want    DueStatus
	}{
		{"well past", now.AddDate(0, -2, 0), Overdue},
		{"exactly now", now, Overdue},
		{"tomorrow", now.AddDate(0, 0, 1), DueSoon},
		{"exactly 30 days out", now.Add(DueSoonWindow), DueSoon},
		{"just over 30 days", now.Add(DueSoonWindow + time.Hour), Current},
		{"next year", now.AddDate(1, 0, 0), Current},
	}
	for _, tc := range cases {
		if got := Classify(tc.nextDue, now); got != tc.want {
			t.Errorf("%s: Classify = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestNextDueIsOneYearOn(t *testing.T) {
	inspected := time.Date(2026, time.February, 10, 9, 30, 0, 0, time.UTC)
	want := time.Date(2027, time.February, 10, 9, 30, 0, 0, time.UTC)
	if got := NextDue(inspected); !got.Equal(want) {
		t.Errorf("NextDue = %v, want %v", got, want)
	}
}
