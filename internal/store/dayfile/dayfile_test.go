package dayfile_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/standvox/standvox/internal/store"
	"github.com/standvox/standvox/internal/store/dayfile"
)

func sampleRecords(date string) []store.DayRecord {
	return []store.DayRecord{
		{No: 1, Date: date, Name: "jeeva", YesterdayWork: "shipped the export job", TodayWork: "review queue", Blockers: ""},
		{No: 2, Date: date, Name: "ajay", YesterdayWork: "fixed flaky tests", TodayWork: "pairing", Blockers: "waiting on staging access"},
	}
}

func TestSaveDay_CreatesDayPartitionedFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := dayfile.New(dir)
	day := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	if err := s.SaveDay(context.Background(), day, sampleRecords("05/03/2026")); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}

	path := filepath.Join(dir, "2026", "03", "05.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s: %v", path, err)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	t.Parallel()

	s := dayfile.New(t.TempDir())
	day := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	want := sampleRecords("05/03/2026")

	if err := s.SaveDay(context.Background(), day, want); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	got, err := s.LoadDay(context.Background(), day)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("LoadDay returned %d records; want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("record %d = %+v; want %+v", i, got[i], want[i])
		}
	}
}

func TestSaveDay_OverwritesExisting(t *testing.T) {
	t.Parallel()

	s := dayfile.New(t.TempDir())
	day := time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)

	if err := s.SaveDay(context.Background(), day, sampleRecords("05/03/2026")); err != nil {
		t.Fatalf("first SaveDay: %v", err)
	}
	replacement := []store.DayRecord{
		{No: 1, Date: "05/03/2026", Name: "mithun", YesterdayWork: "n/a", TodayWork: "onboarding", Blockers: ""},
	}
	if err := s.SaveDay(context.Background(), day, replacement); err != nil {
		t.Fatalf("second SaveDay: %v", err)
	}

	got, err := s.LoadDay(context.Background(), day)
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if len(got) != 1 || got[0].Name != "mithun" {
		t.Errorf("LoadDay after overwrite = %+v; want the replacement set", got)
	}
}

func TestLoadDay_MissingFileYieldsEmptySlice(t *testing.T) {
	t.Parallel()

	s := dayfile.New(t.TempDir())
	got, err := s.LoadDay(context.Background(), time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("LoadDay: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("LoadDay for missing day = %v; want empty, non-nil slice", got)
	}
}

func TestLoadDay_CorruptFileReportsError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s := dayfile.New(dir)
	day := time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC)

	path := filepath.Join(dir, "2026", "03", "05.json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := s.LoadDay(context.Background(), day); err == nil {
		t.Error("LoadDay on corrupt file: want error, got nil")
	}
}

func TestLoadPrevious_ReadsDayBefore(t *testing.T) {
	t.Parallel()

	s := dayfile.New(t.TempDir())
	yesterday := time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC)
	today := yesterday.AddDate(0, 0, 1)

	if err := s.SaveDay(context.Background(), yesterday, sampleRecords("28/02/2026")); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	got, err := s.LoadPrevious(context.Background(), today)
	if err != nil {
		t.Fatalf("LoadPrevious: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadPrevious returned %d records; want 2", len(got))
	}
	if got[0].Name != "jeeva" {
		t.Errorf("first record name = %q; want %q", got[0].Name, "jeeva")
	}
}

func TestLoadPrevious_MonthBoundary(t *testing.T) {
	t.Parallel()

	s := dayfile.New(t.TempDir())
	lastOfMonth := time.Date(2026, time.March, 31, 18, 0, 0, 0, time.UTC)
	firstOfNext := time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC)

	if err := s.SaveDay(context.Background(), lastOfMonth, sampleRecords("31/03/2026")); err != nil {
		t.Fatalf("SaveDay: %v", err)
	}
	got, err := s.LoadPrevious(context.Background(), firstOfNext)
	if err != nil {
		t.Fatalf("LoadPrevious: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("LoadPrevious across month boundary returned %d records; want 2", len(got))
	}
}
