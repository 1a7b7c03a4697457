package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"bds-scraper/models"
	"bds-scraper/utils"
)

// SummaryService reports the end-of-run counters to the log and the terminal.
type SummaryService struct {
	logger *utils.Logger
	out    io.Writer
}

// NewSummaryService writes the printed report to out.
func NewSummaryService(logger *utils.Logger, out io.Writer) *SummaryService {
	return &SummaryService{logger: logger, out: out}
}

// Log emits the summary as log lines so it also lands in the log file.
func (s *SummaryService) Log(r *models.RunSummary) {
	s.logger.Info("=== SUMMARY (run %s) ===", r.RunID)
	s.logger.Info("Total pages processed: %d", r.PagesProcessed)
	s.logger.Info("Total new records added: %d", r.NewRecords)
	s.logger.Info("Total items duplicated: %d", r.DuplicatesSkipped)
	s.logger.Info("Total items failed: %d", r.Failed)
	s.logger.Info("Total duration: %s", FormatDuration(r.Duration))
	if r.Err != nil {
		s.logger.Error("Run aborted: %v", r.Err)
	}
}

// Print renders a boxed report.
func (s *SummaryService) Print(r *models.RunSummary) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)
	w := s.out

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  BDS SCRAPE SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run ID              : %s\n", r.RunID)
	fmt.Fprintf(w, "  Pages processed     : \033[1m%d\033[0m\n", r.PagesProcessed)
	fmt.Fprintf(w, "  New records         : \033[1;32m%d\033[0m\n", r.NewRecords)
	fmt.Fprintf(w, "  Duplicates skipped  : \033[1m%d\033[0m\n", r.DuplicatesSkipped)
	fmt.Fprintf(w, "  Failed items        : \033[1;31m%d\033[0m\n", r.Failed)
	fmt.Fprintf(w, "  Duration            : %s (%ds)\n", FormatDuration(r.Duration), r.DurationSeconds())
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Targets\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.Targets) == 0 {
		fmt.Fprintf(w, "  No targets processed\n")
	} else {
		for _, t := range r.Targets {
			fmt.Fprintf(w, "  %-24s pages %-3d new %-4d dup %-4d failed %d\n",
				truncate(t.Name, 24), t.PagesProcessed, t.NewRecords, t.DuplicatesSkipped, t.Failed)
		}
	}
	fmt.Fprintln(w)

	if len(r.LedgerStats) > 0 {
		fmt.Fprintf(w, "\033[1;33m  Ledger\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		statuses := make([]string, 0, len(r.LedgerStats))
		for status := range r.LedgerStats {
			statuses = append(statuses, status)
		}
		sort.Strings(statuses)
		for _, status := range statuses {
			fmt.Fprintf(w, "  %-20s %d\n", status, r.LedgerStats[status])
		}
		fmt.Fprintln(w)
	}

	if r.Err != nil {
		fmt.Fprintf(w, "  \033[1;31mRun aborted: %v\033[0m\n", r.Err)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// FormatDuration renders d as "Xm Ys".
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%dm %ds", secs/60, secs%60)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
