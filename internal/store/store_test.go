package store

import (
	"testing"
	"time"

	"mmsim/internal/session"
	"mmsim/pkg/types"
)

func TestSaveAndLoadReports(t *testing.T) {
	t.Parallel()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"b-session", "a-session"} {
		rep := session.FinalReport{
			SessionID:      id,
			Params:         types.ParamBundle{MaxInventory: 5, EntryThresholdBps: 10, ProcessNoise: 0.01, MeasurementNoise: 0.5, Lookback: 60},
			InitialCapital: 10000,
			Seed:           int64(i),
			FinishedAt:     base.Add(time.Duration(i) * time.Hour),
			Report:         session.Report{Return: 0.01 * float64(i+1)},
		}
		if err := st.SaveReport(rep); err != nil {
			t.Fatalf("SaveReport: %v", err)
		}
	}

	reports, err := st.LoadReports()
	if err != nil {
		t.Fatalf("LoadReports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("len(reports) = %d, want 2", len(reports))
	}
	// Sorted by finish time, not by id.
	if reports[0].SessionID != "b-session" || reports[1].SessionID != "a-session" {
		t.Errorf("order = [%s, %s], want finish-time order", reports[0].SessionID, reports[1].SessionID)
	}
	if reports[1].Report.Return != 0.02 {
		t.Errorf("Return = %v, want 0.02", reports[1].Report.Return)
	}
}

func TestSaveOverwritesSameSession(t *testing.T) {
	t.Parallel()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	rep := session.FinalReport{SessionID: "s1", FinishedAt: time.Now()}
	if err := st.SaveReport(rep); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}
	rep.Report.Return = 0.5
	if err := st.SaveReport(rep); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	reports, err := st.LoadReports()
	if err != nil {
		t.Fatalf("LoadReports: %v", err)
	}
	if len(reports) != 1 || reports[0].Report.Return != 0.5 {
		t.Errorf("reports = %+v, want single overwritten report", reports)
	}
}

func TestLoadReportsEmptyDir(t *testing.T) {
	t.Parallel()
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	reports, err := st.LoadReports()
	if err != nil {
		t.Fatalf("LoadReports: %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("len(reports) = %d, want 0", len(reports))
	}
}
