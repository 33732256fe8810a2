// Package report renders a job as an Excel workbook.
package report

import (
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/garnizeh/dosecert/internal/dosing"
	"github.com/garnizeh/dosecert/pkg/models"
)

// Sheet names, in workbook order.
const (
	SheetJob        = "Job"
	SheetTestPoints = "Test Points"
	SheetTanks      = "Tanks"
)

// logoCell is where the logo is anchored on the job sheet.
const logoCell = "D1"

var pictureExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
}

// Workbook renders job and set. The logo is embedded when it is a PNG, JPEG
// or GIF that decodes; any other logo is skipped.
func Workbook(job *models.JobRecord, set *models.AttachmentSet) ([]byte, error) {
	if job == nil {
		return nil, fmt.Errorf("workbook: job is nil")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetJob); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	for _, name := range []string{SheetTestPoints, SheetTanks} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	labelStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	writeJobSheet(f, job, titleStyle, labelStyle)
	writeTable(f, SheetTestPoints, headerStyle,
		[]string{"Location", "System", "Time", "pH", "Initial PPM", "30 Min PPM", "1 Hour PPM"},
		testPointRows(job.TestPoints))
	writeTable(f, SheetTanks, headerStyle,
		[]string{"Description", "Capacity", "Before Photo", "After Photo"},
		tankRows(job.Tanks, set))

	if set != nil && set.Logo != nil {
		if ext, ok := pictureExt[set.Logo.MIMEType]; ok {
			err := f.AddPictureFromBytes(SheetJob, logoCell, &excelize.Picture{
				Extension: ext,
				File:      set.Logo.Data,
				Format:    &excelize.GraphicOptions{AutoFit: true, ScaleX: 0.5, ScaleY: 0.5},
			})
			if err != nil {
				slog.Warn("workbook logo skipped", "mime", set.Logo.MIMEType, "err", err)
			}
		}
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeJobSheet(f *excelize.File, job *models.JobRecord, titleStyle, labelStyle int) {
	_ = f.SetCellValue(SheetJob, "A1", "Disinfection Certificate")
	_ = f.SetCellStyle(SheetJob, "A1", "A1", titleStyle)
	_ = f.SetRowHeight(SheetJob, 1, 28)
	_ = f.SetColWidth(SheetJob, "A", "A", 26)
	_ = f.SetColWidth(SheetJob, "B", "B", 60)

	advice := dosing.Advise(job.Disinfectant, job.IncomingMainsPh)
	rows := [][2]string{
		{"Job Type", string(job.JobType)},
		{"Client", job.ClientName},
		{"Client Address", job.ClientAddress},
		{"Site", job.SiteName},
		{"Site Address", job.SiteAddress},
		{"Service Date", job.ServiceDate},
		{"Technician", job.Technician},
		{"Disinfectant", job.Disinfectant},
		{"Chemical Strength (%)", job.ChemicalStrength},
		{"Target Concentration (PPM)", job.ConcentrationTarget},
		{"Contact Time", job.ContactTime},
		{"System Volume (L)", job.SystemVolume},
		{"Amount Added", job.AmountAdded},
		{"Neutralising Agent", job.NeutralisingAgent},
		{"Pre-flush Duration", job.PreFlushDuration},
		{"Injection Point", job.InjectionPoint},
		{"Incoming Mains pH", job.IncomingMainsPh},
		{"Residual Level", job.ResidualLevel},
		{"pH Advisory", advice.Warning},
		{"Recommended Contact Time", advice.RecommendedTime},
		{"Scope of Works", job.ScopeOfWorks},
		{"Comments", job.Comments},
	}
	if amount, ok := dosing.ComputeAmount(job.SystemVolume, job.ConcentrationTarget, job.ChemicalStrength); ok {
		rows = append(rows, [2]string{"Calculated Dose", amount})
	}

	for i, r := range rows {
		row := i + 3
		label, _ := excelize.CoordinatesToCellName(1, row)
		value, _ := excelize.CoordinatesToCellName(2, row)
		_ = f.SetCellValue(SheetJob, label, r[0])
		_ = f.SetCellStyle(SheetJob, label, label, labelStyle)
		_ = f.SetCellValue(SheetJob, value, r[1])
	}
}

func writeTable(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]any) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, headerStyle)
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	_ = f.SetColWidth(sheet, "A", last, 18)
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = f.SetSheetRow(sheet, cell, &r)
	}
}

func testPointRows(points []models.TestPoint) [][]any {
	out := make([][]any, 0, len(points))
	for _, p := range points {
		out = append(out, []any{p.Location, p.System, p.Time, p.PH, p.InitialPPM, p.PPM30Min, p.PPM1Hour})
	}
	return out
}

func tankRows(tanks []models.Tank, set *models.AttachmentSet) [][]any {
	photos := map[string]models.TankPhotos{}
	if set != nil {
		for _, p := range set.TankPhotos {
			photos[p.TankID] = p
		}
	}
	out := make([][]any, 0, len(tanks))
	for _, t := range tanks {
		p := photos[t.ID]
		out = append(out, []any{t.Description, t.Capacity, yesNo(p.Before != nil), yesNo(p.After != nil)})
	}
	return out
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
