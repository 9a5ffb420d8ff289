package report

import (
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/assets"
)

const (
	fontFamily = "DejaVu"
	fontsDir   = "fonts"

	margin     = 15.0
	lineHeight = 7.0
	footerSize = 10.0
	noRecords  = "No attendance records."
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"No.", 14, "C"},
	{"Student", 62, "L"},
	{"Classroom", 38, "L"},
	{"Date", 30, "C"},
	{"Status", 36, "L"},
}

// FontFS is where the report fonts are read from.
var FontFS fs.FS = assets.FS

// fontFiles are TrueType fonts by style, so names in any script are rendered.
var fontFiles = map[string]string{
	"":  "DejaVuSansCondensed.ttf",
	"B": "DejaVuSansCondensed-Bold.ttf",
}

type Options struct {
	Author string
	// Compress deflates page streams; disable it to inspect the generated document.
	Compress bool
	// CreatedAt is stamped in the document metadata; defaults to the report date.
	CreatedAt time.Time
}

// RenderPDF writes the report as a paginated A4 document.
func RenderPDF(w io.Writer, rep Report, opts Options) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	if err := addFonts(pdf); err != nil {
		return err
	}

	created := opts.CreatedAt
	if created.IsZero() {
		created = rep.GeneratedOn.Time()
	}
	title := rep.Title
	if title == "" {
		title = DefaultTitle
	}

	pdf.SetCompression(opts.Compress)
	pdf.SetCreationDate(created)
	pdf.SetTitle(title, true)
	if opts.Author != "" {
		pdf.SetAuthor(opts.Author, true)
	}
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin+footerSize)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-margin)
		pdf.SetFont(fontFamily, "", 8)
		pdf.SetTextColor(128, 128, 128)
		pdf.CellFormat(0, footerSize, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	pdf.SetFont(fontFamily, "B", 16)
	pdf.CellFormat(0, 10, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontFamily, "", 10)
	pdf.CellFormat(0, 6, "Generated on "+rep.GeneratedOn.String(), "", 1, "L", false, 0, "")
	if period := rep.Filter.period(); period != "" {
		pdf.CellFormat(0, 6, period, "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	if len(rep.Sections) == 0 {
		pdf.SetFont(fontFamily, "", 10)
		pdf.CellFormat(0, lineHeight, noRecords, "", 1, "L", false, 0, "")
	}

	_, pageHeight := pdf.GetPageSize()
	limit := pageHeight - margin - footerSize
	fits := func(h float64) bool { return pdf.GetY()+h <= limit }

	for _, sec := range rep.Sections {
		// keep the section title with its table header and first row
		if !fits(9 + 2*lineHeight) {
			pdf.AddPage()
		}
		pdf.SetFont(fontFamily, "B", 12)
		pdf.SetTextColor(0, 0, 0)
		pdf.CellFormat(0, 9, sec.Branch, "", 1, "L", false, 0, "")
		tableHeader(pdf)

		pdf.SetFont(fontFamily, "", 10)
		for _, row := range sec.Rows {
			if !fits(lineHeight) {
				pdf.AddPage()
				tableHeader(pdf)
				pdf.SetFont(fontFamily, "", 10)
			}
			cells := []string{strconv.Itoa(row.No), row.Student, dash(row.Classroom), row.Date.String(), statusLabel(row.Status)}
			for i, col := range columns {
				pdf.CellFormat(col.width, lineHeight, cells[i], "1", 0, col.align, false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "rendering attendance report")
	}
	return nil
}

func addFonts(pdf *fpdf.Fpdf) error {
	for style, name := range fontFiles {
		data, err := fs.ReadFile(FontFS, fontsDir+"/"+name)
		if err != nil {
			return errors.Wrapf(err, "reading font %s", name)
		}
		pdf.AddUTF8FontFromBytes(fontFamily, style, data)
	}
	return errors.Wrap(pdf.Error(), "loading report fonts")
}

func tableHeader(pdf *fpdf.Fpdf) {
	pdf.SetFont(fontFamily, "B", 10)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range columns {
		pdf.CellFormat(col.width, lineHeight, col.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
}

func (f Filter) period() string {
	switch {
	case !f.From.IsZero() && !f.To.IsZero():
		return "Period: " + f.From.String() + " to " + f.To.String()
	case !f.From.IsZero():
		return "Period: from " + f.From.String()
	case !f.To.IsZero():
		return "Period: until " + f.To.String()
	}
	return ""
}

func dash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func statusLabel(s string) string {
	if s == "" {
		return "-"
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
