package report_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/garnizeh/dosecert/internal/report"
	"github.com/garnizeh/dosecert/pkg/models"
)

func logoPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func open(t *testing.T, b []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWorkbook(t *testing.T) {
	job := models.NewJobRecord()
	job.ClientName = "Acme"
	job.SystemVolume = "500"
	job.AmountAdded = "179 ml"
	job.IncomingMainsPh = "8.1"
	job.AddTestPoint()
	job.TestPoints[0].Location = "Kitchen"
	job.TestPoints[0].PPM1Hour = "48"
	tank := job.AddTank("Loft tank", "450")
	set := &models.AttachmentSet{
		Logo:       &models.Attachment{Name: "logo.png", MIMEType: "image/png", Data: logoPNG(t)},
		TankPhotos: []models.TankPhotos{{TankID: tank, After: &models.Attachment{MIMEType: "image/png", Data: []byte{1}}}},
	}

	b, err := report.Workbook(job, set)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}
	f := open(t, b)

	sheets := f.GetSheetList()
	if len(sheets) != 3 || sheets[0] != report.SheetJob || sheets[1] != report.SheetTestPoints || sheets[2] != report.SheetTanks {
		t.Fatalf("unexpected sheets: %v", sheets)
	}

	rows, err := f.GetRows(report.SheetJob)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	values := map[string]string{}
	for _, r := range rows {
		if len(r) >= 2 {
			values[r[0]] = r[1]
		}
	}
	if values["Client"] != "Acme" || values["Amount Added"] != "179 ml" || values["Calculated Dose"] != "179 ml" {
		t.Fatalf("job values missing: %#v", values)
	}
	if values["Recommended Contact Time"] != "2.50 Hours (2h 30m)" {
		t.Fatalf("advice missing: %q", values["Recommended Contact Time"])
	}

	if v, _ := f.GetCellValue(report.SheetTestPoints, "A2"); v != "Kitchen" {
		t.Fatalf("test point row missing, got %q", v)
	}
	if v, _ := f.GetCellValue(report.SheetTestPoints, "G2"); v != "48" {
		t.Fatalf("1 hour ppm missing, got %q", v)
	}
	if v, _ := f.GetCellValue(report.SheetTanks, "A2"); v != "Loft tank" {
		t.Fatalf("tank row missing, got %q", v)
	}
	if before, _ := f.GetCellValue(report.SheetTanks, "C2"); before != "No" {
		t.Fatalf("unexpected before photo flag %q", before)
	}
	if after, _ := f.GetCellValue(report.SheetTanks, "D2"); after != "Yes" {
		t.Fatalf("unexpected after photo flag %q", after)
	}

	pics, err := f.GetPictures(report.SheetJob, "D1")
	if err != nil || len(pics) != 1 {
		t.Fatalf("expected embedded logo, got %d pictures (%v)", len(pics), err)
	}
}

func TestWorkbookSkipsUnsupportedLogo(t *testing.T) {
	set := &models.AttachmentSet{Logo: &models.Attachment{MIMEType: "application/pdf", Data: []byte("%PDF")}}
	b, err := report.Workbook(models.NewJobRecord(), set)
	if err != nil {
		t.Fatalf("Workbook: %v", err)
	}
	f := open(t, b)
	if pics, _ := f.GetPictures(report.SheetJob, "D1"); len(pics) != 0 {
		t.Fatalf("unsupported logo should be skipped")
	}
	if _, err := report.Workbook(nil, nil); err == nil {
		t.Fatalf("expected error for nil job")
	}
}
