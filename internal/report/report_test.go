package report

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
)

func openRows(t *testing.T, buf *bytes.Buffer, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("OpenReader() error = %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows(%s) error = %v", sheet, err)
	}
	return rows
}

func TestExportProgress(t *testing.T) {
	score := 80.0
	in := ProgressInput{
		User: api.User{Email: "a@b.com", Name: "Achieng", LiteracyLevel: api.LevelBeginner},
		Progress: api.UserProgress{
			CompletedModules: 1,
			QuizzesTaken:     2,
			AverageScore:     75,
			Streak:           3,
			OverallProgress:  50,
			Modules:          []api.ModuleProgress{{ModuleID: "41", Completed: true, QuizScore: &score}},
		},
		Paths: []api.LearningPath{{
			ID:    "1",
			Title: "Money Basics",
			Level: api.LevelBeginner,
			Modules: []api.ModuleRef{
				{ID: "41", Title: "Saving", Order: 1},
				{ID: "42", Title: "Budgeting", Order: 2},
			},
		}},
	}

	var buf bytes.Buffer
	if err := ExportProgress(&buf, in); err != nil {
		t.Fatalf("ExportProgress() error = %v", err)
	}
	data := buf.Bytes()

	summary := openRows(t, bytes.NewBuffer(data), SheetSummary)
	if len(summary) != 8 {
		t.Fatalf("summary rows = %d, want 8", len(summary))
	}
	if summary[1][1] != "Achieng" || summary[3][1] != "1" || summary[6][1] != "3" {
		t.Errorf("summary = %v", summary)
	}

	modules := openRows(t, bytes.NewBuffer(data), SheetModules)
	if len(modules) != 3 {
		t.Fatalf("module rows = %d, want 3", len(modules))
	}
	if got := modules[1]; got[3] != "Saving" || got[4] != "Yes" || got[5] != "80" {
		t.Errorf("completed module row = %v", got)
	}
	if got := modules[2]; got[3] != "Budgeting" || got[4] != "No" {
		t.Errorf("pending module row = %v", got)
	}
}

func TestExportInvestments(t *testing.T) {
	items := []api.Investment{
		{ID: "7", Title: "Mama Mboga Expansion", Category: "retail", AmountRequested: decimal.NewFromInt(100000), AmountRaised: decimal.NewFromInt(25000), ReturnRate: 12},
		{ID: "8", Title: "Boda Fleet", Category: "transportation", AmountRequested: decimal.Zero, AmountRaised: decimal.NewFromInt(10)},
	}

	var buf bytes.Buffer
	if err := ExportInvestments(&buf, items); err != nil {
		t.Fatalf("ExportInvestments() error = %v", err)
	}
	rows := openRows(t, &buf, SheetInvestments)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][8] != "Funded (%)" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][0] != "7" || rows[1][6] != "100000" || rows[1][7] != "25000" || rows[1][8] != "25" {
		t.Errorf("row = %v", rows[1])
	}
	if rows[2][8] != "0" {
		t.Errorf("unfunded listing percent = %q, want 0", rows[2][8])
	}
}

func TestExportInvestments_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := ExportInvestments(&buf, nil); err != nil {
		t.Fatalf("ExportInvestments() error = %v", err)
	}
	if rows := openRows(t, &buf, SheetInvestments); len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}
