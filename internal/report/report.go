// Package report exports learning progress and investment listings as
// XLSX workbooks.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/wealthbuilder-ke/wealthbuilder/internal/api"
	"github.com/wealthbuilder-ke/wealthbuilder/internal/invest"
)

// Sheet names.
const (
	SheetSummary     = "Summary"
	SheetModules     = "Modules"
	SheetInvestments = "Investments"
)

// ProgressInput is what a progress report covers.
type ProgressInput struct {
	User     api.User
	Progress api.UserProgress
	Paths    []api.LearningPath
}

// ExportProgress writes a workbook with a summary sheet and one row per
// module of every path.
func ExportProgress(w io.Writer, in ProgressInput) error {
	b, err := newBook(SheetSummary)
	if err != nil {
		return err
	}
	defer b.close()

	p := in.Progress
	b.header(SheetSummary, "Metric", "Value")
	b.row(SheetSummary, "User", in.User.DisplayName())
	b.row(SheetSummary, "Literacy level", in.User.LiteracyLevel.Label())
	b.row(SheetSummary, "Completed modules", p.CompletedModules)
	b.row(SheetSummary, "Quizzes taken", p.QuizzesTaken)
	b.row(SheetSummary, "Average score (%)", p.AverageScore)
	b.row(SheetSummary, "Streak (days)", p.Streak)
	b.row(SheetSummary, "Overall progress (%)", p.OverallProgress)
	b.width(SheetSummary, "A", "B", 24)

	b.sheet(SheetModules)
	b.header(SheetModules, "Path", "Level", "Order", "Module", "Completed", "Quiz score (%)")
	for _, path := range in.Paths {
		for _, m := range path.Modules {
			var score any
			completed := "No"
			if mp, ok := p.ForModule(m.ID); ok {
				if mp.Completed {
					completed = "Yes"
				}
				if mp.QuizScore != nil {
					score = *mp.QuizScore
				}
			}
			b.row(SheetModules, path.Title, path.Level.Label(), m.Order, m.Title, completed, score)
		}
	}
	b.width(SheetModules, "A", "D", 28)

	return b.write(w)
}

// ExportInvestments writes one row per listing with its funding progress.
func ExportInvestments(w io.Writer, items []api.Investment) error {
	b, err := newBook(SheetInvestments)
	if err != nil {
		return err
	}
	defer b.close()

	b.header(SheetInvestments, "ID", "Title", "Category", "Risk level", "Return rate (%)", "Duration",
		"Requested (KES)", "Raised (KES)", "Funded (%)")
	for _, inv := range items {
		b.row(SheetInvestments,
			inv.ID.String(),
			inv.Title,
			inv.Category,
			inv.RiskLevel,
			inv.ReturnRate,
			inv.Duration,
			inv.AmountRequested.InexactFloat64(),
			inv.AmountRaised.InexactFloat64(),
			invest.FundingPercent(inv).Round(2).InexactFloat64(),
		)
	}
	b.width(SheetInvestments, "B", "B", 32)

	return b.write(w)
}

// book accumulates the first error so exports read as a flat list of rows.
type book struct {
	f    *excelize.File
	bold int
	next map[string]int
	err  error
}

func newBook(first string) (*book, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", first); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("naming sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("creating header style: %w", err)
	}
	return &book{f: f, bold: bold, next: map[string]int{first: 1}}, nil
}

func (b *book) sheet(name string) {
	if b.err != nil {
		return
	}
	if _, err := b.f.NewSheet(name); err != nil {
		b.err = fmt.Errorf("adding sheet %s: %w", name, err)
		return
	}
	b.next[name] = 1
}

func (b *book) header(sheet string, cols ...any) {
	r := b.next[sheet]
	b.row(sheet, cols...)
	if b.err != nil {
		return
	}
	if err := b.f.SetRowStyle(sheet, r, r, b.bold); err != nil {
		b.err = fmt.Errorf("styling header: %w", err)
	}
}

func (b *book) row(sheet string, cols ...any) {
	if b.err != nil {
		return
	}
	r := b.next[sheet]
	cell, err := excelize.CoordinatesToCellName(1, r)
	if err != nil {
		b.err = err
		return
	}
	if err := b.f.SetSheetRow(sheet, cell, &cols); err != nil {
		b.err = fmt.Errorf("writing %s row %d: %w", sheet, r, err)
		return
	}
	b.next[sheet] = r + 1
}

func (b *book) width(sheet, from, to string, w float64) {
	if b.err != nil {
		return
	}
	if err := b.f.SetColWidth(sheet, from, to, w); err != nil {
		b.err = fmt.Errorf("sizing columns: %w", err)
	}
}

func (b *book) write(w io.Writer) error {
	if b.err != nil {
		return b.err
	}
	if err := b.f.Write(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func (b *book) close() {
	_ = b.f.Close()
}
