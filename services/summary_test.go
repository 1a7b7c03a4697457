package services

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"bds-scraper/models"
)

func sampleSummary() *models.RunSummary {
	s := &models.RunSummary{
		RunID:       "run-1",
		Duration:    125*time.Second + 400*time.Millisecond,
		LedgerStats: map[string]int{"success": 40, "failed": 2},
	}
	s.Add(models.TargetStats{Name: "hanoi-apartments", PagesProcessed: 2, NewRecords: 5, DuplicatesSkipped: 3, Failed: 1})
	s.Add(models.TargetStats{Name: "hcm-houses", PagesProcessed: 1, NewRecords: 2})
	return s
}

func TestSummaryTotals(t *testing.T) {
	s := sampleSummary()
	if s.PagesProcessed != 3 || s.NewRecords != 7 || s.DuplicatesSkipped != 3 || s.Failed != 1 {
		t.Errorf("totals: got %+v", s)
	}
	if s.DurationSeconds() != 125 {
		t.Errorf("DurationSeconds: got %d, want 125", s.DurationSeconds())
	}
}

func TestSummaryPrint(t *testing.T) {
	var buf bytes.Buffer
	svc := NewSummaryService(newTestLogger(), &buf)

	s := sampleSummary()
	s.Err = errors.New("browser: session closed")
	svc.Print(s)
	svc.Log(s)

	out := buf.String()
	for _, want := range []string{"run-1", "hanoi-apartments", "hcm-houses", "2m 5s", "success", "session closed"} {
		if !strings.Contains(out, want) {
			t.Errorf("printed summary missing %q", want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	if got := FormatDuration(59 * time.Second); got != "0m 59s" {
		t.Errorf("got %q", got)
	}
	if got := FormatDuration(61 * time.Second); got != "1m 1s" {
		t.Errorf("got %q", got)
	}
}
