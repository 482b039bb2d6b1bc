package payroll

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"

	"github.com/fleetpay/fleetpay/internal/money"
)

func TestFormatAmount(t *testing.T) {
	e := NewExporter(language.English)
	assert.Equal(t, "1,133.33", e.FormatAmount(money.MustParse("1133.33")))
	assert.Equal(t, "-50.00", e.FormatAmount(money.MustParse("-50")))
}

func TestExporterSave(t *testing.T) {
	f := newFixture(t)
	rec, err := f.calculate(t, f.tripA, f.tripB)
	require.NoError(t, err)
	view, err := f.svc.GetCalculation(context.Background(), rec.ID)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), FileName(view))
	require.NoError(t, NewExporter(language.English).Save(path, view))

	wb, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer func() { _ = wb.Close() }()

	name, err := wb.GetCellValue(sheetCrew, "A2")
	require.NoError(t, err)
	assert.Equal(t, "Captain Test", name)

	net, err := wb.GetCellValue(sheetSummary, "C7")
	require.NoError(t, err)
	assert.Equal(t, "3,500.00", net)
}
