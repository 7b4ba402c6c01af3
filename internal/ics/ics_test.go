package ics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const feed = "BEGIN:VCALENDAR\r\n" +
	"VERSION:2.0\r\n" +
	"PRODID:-//calpicker//test//EN\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:allday-1\r\n" +
	"SUMMARY:Holiday\r\n" +
	"DTSTART;VALUE=DATE:20240704\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:timed-1\r\n" +
	"SUMMARY:Review\r\n" +
	"DTSTART:20240710T150000Z\r\n" +
	"DTEND:20240710T160000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:weekly-1\r\n" +
	"SUMMARY:Standup\r\n" +
	"DTSTART:20240701T090000Z\r\n" +
	"RRULE:FREQ=WEEKLY;COUNT=6\r\n" +
	"EXDATE:20240715T090000Z\r\n" +
	"END:VEVENT\r\n" +
	"BEGIN:VEVENT\r\n" +
	"UID:broken\r\n" +
	"SUMMARY:No start\r\n" +
	"END:VEVENT\r\n" +
	"END:VCALENDAR\r\n"

func TestParse(t *testing.T) {
	events, err := Parse(strings.NewReader(feed), time.UTC)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("got %d events, want 3", len(events))
	}
	byUID := map[string]Event{}
	for _, ev := range events {
		byUID[ev.UID] = ev
	}
	if ev := byUID["allday-1"]; !ev.AllDay || !ev.Start.Equal(time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("all-day event = %+v", ev)
	}
	if ev := byUID["timed-1"]; ev.AllDay || ev.Start.Hour() != 15 {
		t.Errorf("timed event = %+v", ev)
	}
	if ev := byUID["weekly-1"]; ev.RRule == "" || len(ev.ExDates) != 1 {
		t.Errorf("recurring event = %+v", ev)
	}
}

func TestDays(t *testing.T) {
	events, err := Parse(strings.NewReader(feed), time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)
	days := Days(events, from, to, time.UTC)

	var got []string
	for _, d := range days {
		got = append(got, d.Format(time.DateOnly))
	}
	want := []string{"2024-07-01", "2024-07-04", "2024-07-08", "2024-07-10", "2024-07-22", "2024-07-29"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Days() = %v, want %v", got, want)
	}
}

func TestDaysWindow(t *testing.T) {
	events := []Event{
		{UID: "a", Start: time.Date(2024, 1, 5, 23, 30, 0, 0, time.UTC)},
		{UID: "b", Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	seoul, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	days := Days(events, time.Date(2024, 1, 1, 0, 0, 0, 0, seoul), time.Date(2024, 1, 31, 0, 0, 0, 0, seoul), seoul)
	if len(days) != 1 || days[0].Day() != 6 {
		t.Errorf("Days() = %v, want only 2024-01-06 in Seoul", days)
	}
}

func TestLoadDays(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ics")
	if err := os.WriteFile(path, []byte(feed), 0o600); err != nil {
		t.Fatal(err)
	}
	days, err := LoadDays(path, time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC), time.UTC)
	if err != nil {
		t.Fatalf("LoadDays() error = %v", err)
	}
	if len(days) != 1 {
		t.Errorf("LoadDays() = %v, want one day", days)
	}
	if _, err := LoadDays(filepath.Join(t.TempDir(), "missing.ics"), time.Now(), time.Now(), time.UTC); err == nil {
		t.Error("LoadDays() on a missing file returned no error")
	}
}

func TestRule(t *testing.T) {
	testCases := []struct {
		name string
		rule string
		day  time.Time
		want bool
	}{
		{"weekend saturday", "FREQ=WEEKLY;BYDAY=SA,SU", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC), true},
		{"weekend monday", "FREQ=WEEKLY;BYDAY=SA,SU", time.Date(2024, 6, 17, 0, 0, 0, 0, time.UTC), false},
		{"prefixed rule", "RRULE:FREQ=MONTHLY;BYMONTHDAY=1", time.Date(2024, 9, 1, 13, 0, 0, 0, time.UTC), true},
		{"before dtstart", "DTSTART=20240101T000000Z;FREQ=DAILY", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), false},
		{"on dtstart", "DTSTART=20240101T000000Z;FREQ=DAILY", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{"long before any picker bound", "FREQ=WEEKLY;BYDAY=SA,SU", time.Date(1999, 1, 2, 0, 0, 0, 0, time.UTC), true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := ParseRule(tc.rule, time.UTC)
			if err != nil {
				t.Fatalf("ParseRule() error = %v", err)
			}
			if got := r.Matches(tc.day); got != tc.want {
				t.Errorf("Matches(%s) = %v, want %v", tc.day.Format(time.DateOnly), got, tc.want)
			}
		})
	}

	for _, rule := range []string{"FREQ=SOMETIMES", "  ", "FREQ=HOURLY", "FREQ=MINUTELY;INTERVAL=5"} {
		if _, err := ParseRule(rule, time.UTC); err == nil {
			t.Errorf("ParseRule(%q) returned no error", rule)
		}
	}
}

func TestRuleMatchesOutOfOrder(t *testing.T) {
	r, err := ParseRule("FREQ=MONTHLY;BYMONTHDAY=15", time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	days := []time.Time{
		time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2010, 3, 15, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC),
		time.Date(2031, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	want := []bool{true, true, false, true}
	for i, d := range days {
		if got := r.Matches(d); got != want[i] {
			t.Errorf("Matches(%s) = %v, want %v", d.Format(time.DateOnly), got, want[i])
		}
	}
}

func TestDaysSubDaily(t *testing.T) {
	start := time.Date(2022, 7, 1, 9, 0, 0, 0, time.UTC)
	from := time.Date(2022, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	const every = 732

	testCases := []struct {
		name  string
		rule  string
		count int
		last  string
	}{
		{"every two hours", "FREQ=HOURLY;INTERVAL=2", every, "2024-07-01"},
		{"every second", "FREQ=SECONDLY", every, "2024-07-01"},
		{"every minute until", "FREQ=MINUTELY;UNTIL=20220705T000000Z", 5, "2022-07-05"},
		{"every 36 hours", "FREQ=HOURLY;INTERVAL=36", 488, ""},
		{"counted seconds fall back to the start day", "FREQ=SECONDLY;COUNT=100000000", 1, "2022-07-01"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			began := time.Now()
			days := Days([]Event{{UID: "x", Start: start, RRule: tc.rule}}, from, to, time.UTC)
			if elapsed := time.Since(began); elapsed > 5*time.Second {
				t.Errorf("Days() took %v", elapsed)
			}
			if len(days) != tc.count {
				t.Fatalf("Days() returned %d days, want %d", len(days), tc.count)
			}
			if tc.last != "" {
				if got := days[len(days)-1].Format(time.DateOnly); got != tc.last {
					t.Errorf("last day = %s, want %s", got, tc.last)
				}
			}
		})
	}
}
