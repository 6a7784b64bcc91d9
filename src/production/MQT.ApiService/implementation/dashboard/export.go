package dashboard

import (
	"bytes"
	"context"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	apperrors "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Errors"
	metrics "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Metrics"
	mqtmodels "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models"
)

// Export formats
const (
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"
)

// ContentType returns the MIME type of an export format
func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Export renders the current board of a site in the given format
func (s *Service) Export(ctx context.Context, siteName, format string) ([]byte, error) {
	var render func(*mqtmodels.Board) ([]byte, error)
	switch format {
	case FormatXLSX:
		render = BuildBoardXLSX
	case FormatPDF:
		render = BuildBoardPDF
	default:
		return nil, apperrors.InvalidRequest(apperrors.CodeInvalidPayload, "unsupported export format: "+format)
	}

	board, err := s.Board(ctx, siteName)
	if err != nil {
		return nil, err
	}

	data, err := render(board)
	if err != nil {
		metrics.IncExport(format, metrics.ResultError)
		s.log.WithSite(siteName).WithField("format", format).ErrorWithError(err, "failed to render board export")
		return nil, apperrors.Internal("Error rendering export", err)
	}
	metrics.IncExport(format, metrics.ResultSuccess)
	return data, nil
}

// BuildBoardXLSX renders a board as a two-sheet workbook
func BuildBoardXLSX(board *mqtmodels.Board) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	machinesSheet := "machines"
	devicesSheet := "devices"
	if err := f.SetSheetName("Sheet1", machinesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(devicesSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(machinesSheet, "A1", "Site")
	_ = f.SetCellValue(machinesSheet, "B1", board.SiteName)
	_ = f.SetCellValue(machinesSheet, "A2", "Last Updated")
	_ = f.SetCellValue(machinesSheet, "B2", board.LastUpdatedLabel)

	_ = f.SetCellValue(machinesSheet, "A4", "Machine")
	_ = f.SetCellValue(machinesSheet, "B4", "Status")
	_ = f.SetCellValue(machinesSheet, "C4", "Timer")
	_ = f.SetCellValue(machinesSheet, "D4", "Counter")
	for i, m := range board.Machines {
		row := i + 5
		_ = f.SetCellValue(machinesSheet, fmt.Sprintf("A%d", row), m.Name)
		_ = f.SetCellValue(machinesSheet, fmt.Sprintf("B%d", row), m.StatusLabel)
		_ = f.SetCellValue(machinesSheet, fmt.Sprintf("C%d", row), m.Timer)
		_ = f.SetCellValue(machinesSheet, fmt.Sprintf("D%d", row), m.Counter)
	}

	_ = f.SetCellValue(devicesSheet, "A1", "Box")
	_ = f.SetCellValue(devicesSheet, "B1", "Device")
	_ = f.SetCellValue(devicesSheet, "C1", "Module")
	_ = f.SetCellValue(devicesSheet, "D1", "Key")
	_ = f.SetCellValue(devicesSheet, "E1", "Value")
	row := 2
	for _, box := range board.Boxes {
		for _, d := range box.Devices {
			for _, key := range mqtmodels.SortedKeys(d.Values) {
				_ = f.SetCellValue(devicesSheet, fmt.Sprintf("A%d", row), box.Name)
				_ = f.SetCellValue(devicesSheet, fmt.Sprintf("B%d", row), d.DeviceID)
				_ = f.SetCellValue(devicesSheet, fmt.Sprintf("C%d", row), d.ModuleID)
				_ = f.SetCellValue(devicesSheet, fmt.Sprintf("D%d", row), key)
				_ = f.SetCellValue(devicesSheet, fmt.Sprintf("E%d", row), d.Values[key])
				row++
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBoardPDF renders the machine table of a board
func BuildBoardPDF(board *mqtmodels.Board) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Machine Status")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Site: %s", board.SiteName))
	pdf.Ln(5)
	lastUpdated := board.LastUpdatedLabel
	if lastUpdated == "" {
		lastUpdated = "-"
	}
	pdf.Cell(0, 6, fmt.Sprintf("Last Updated: %s", lastUpdated))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(40, 6, "Machine", "1", 0, "C", false, 0, "")
	pdf.CellFormat(50, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Timer", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Counter", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, m := range board.Machines {
		pdf.CellFormat(40, 6, m.Name, "1", 0, "C", false, 0, "")
		pdf.CellFormat(50, 6, m.StatusLabel, "1", 0, "C", false, 0, "")
		pdf.CellFormat(40, 6, m.Timer, "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, m.Counter, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
