package payroll

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/fleetpay/fleetpay/internal/money"
)

const (
	sheetSummary  = "Summary"
	sheetCrew     = "Crew"
	sheetPayments = "Payments"
	amountFormat  = "#,##0.00"
)

// Exporter renders calculation records as xlsx workbooks.
type Exporter struct {
	printer *message.Printer
}

// NewExporter builds an Exporter formatting amounts for tag.
func NewExporter(tag language.Tag) *Exporter {
	return &Exporter{printer: message.NewPrinter(tag)}
}

// FormatAmount renders m with grouping and two decimals.
func (e *Exporter) FormatAmount(m money.Money) string {
	return e.printer.Sprint(number.Decimal(m.Float64(), number.Scale(money.Scale)))
}

// FileName is the workbook name for a record.
func FileName(view CalculationView) string {
	return fmt.Sprintf("payroll-%s-%s.xlsx", view.ComputedAt.Format("20060102"), view.ID.String()[:8])
}

// Write renders view into w.
func (e *Exporter) Write(w io.Writer, view CalculationView) error {
	f, err := e.Render(view)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("payroll: write workbook: %w", err)
	}
	return nil
}

// Save renders view to path.
func (e *Exporter) Save(path string, view CalculationView) error {
	f, err := e.Render(view)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("payroll: save workbook %s: %w", path, err)
	}
	return nil
}

// Render builds the workbook: a summary sheet, one line per crew member and
// the payment ledger.
func (e *Exporter) Render(view CalculationView) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return nil, err
	}
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: ptr(amountFormat)})
	if err != nil {
		return nil, err
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	summary := [][2]any{
		{"Calculation", view.ID.String()},
		{"Boat", view.BoatID.String()},
		{"Computed at", view.ComputedAt.Format("2006-01-02 15:04")},
		{"Trips", len(view.TripIDs)},
		{"Revenue", view.RevenueTotal},
		{"Expenses", view.ExpenseTotal},
		{"Net profit", view.NetProfit},
		{"Owner part", view.OwnerPart},
		{"Crew part", view.CrewPart},
		{"Nights", view.TotalNights},
		{"Crew", view.CrewCount},
		{"Nightly rate", view.NightlyRate},
		{"Night deduction", view.NightDeduction},
		{"Apportionable", view.Apportionable},
	}
	for i, row := range summary {
		r := i + 1
		if err := e.setRow(f, sheetSummary, r, []any{row[0], row[1]}, amountStyle); err != nil {
			return nil, err
		}
		if m, ok := row[1].(money.Money); ok {
			cell, _ := excelize.CoordinatesToCellName(3, r)
			if err := f.SetCellValue(sheetSummary, cell, e.FormatAmount(m)); err != nil {
				return nil, err
			}
		}
	}
	if len(view.Warnings) > 0 {
		r := len(summary) + 2
		cell, _ := excelize.CoordinatesToCellName(1, r)
		if err := f.SetCellValue(sheetSummary, cell, "Warnings"); err != nil {
			return nil, err
		}
		cell, _ = excelize.CoordinatesToCellName(2, r)
		if err := f.SetCellValue(sheetSummary, cell, strings.Join(view.Warnings, "; ")); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(sheetCrew); err != nil {
		return nil, err
	}
	crewHeader := []any{"Sailor", "Role", "Share", "Gross share", "Night bonus", "Advances", "Prior payments", "Balance at computation", "Paid", "Current balance"}
	if err := e.setRow(f, sheetCrew, 1, crewHeader, amountStyle); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(sheetCrew, 1, 1, boldStyle); err != nil {
		return nil, err
	}
	for i, b := range view.Balances {
		row := []any{b.Name, string(b.Role), b.Share.InexactFloat64(), b.GrossShare, b.NightBonus,
			b.AdvancesNetted, b.PaymentsNetted, b.BalanceDue, b.PaidTotal, b.CurrentBalance}
		if err := e.setRow(f, sheetCrew, i+2, row, amountStyle); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(sheetPayments); err != nil {
		return nil, err
	}
	names := make(map[string]string, len(view.Members))
	for _, m := range view.Members {
		names[m.SailorID.String()] = m.Name
	}
	if err := e.setRow(f, sheetPayments, 1, []any{"Paid at", "Sailor", "Amount", "Description"}, amountStyle); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(sheetPayments, 1, 1, boldStyle); err != nil {
		return nil, err
	}
	for i, p := range view.Payments {
		row := []any{p.PaidAt.Format("2006-01-02"), names[p.SailorID.String()], p.Amount, p.Description}
		if err := e.setRow(f, sheetPayments, i+2, row, amountStyle); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// setRow writes values from column A. Money cells are written as numbers
// carrying the amount style.
func (e *Exporter) setRow(f *excelize.File, sheet string, row int, values []any, amountStyle int) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if m, ok := v.(money.Money); ok {
			if err := f.SetCellValue(sheet, cell, m.Float64()); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cell, cell, amountStyle); err != nil {
				return err
			}
			continue
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func ptr[T any](v T) *T { return &v }
