// Package export renders report tables as CSV or PDF.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
)

type Options struct {
	Delimiter rune
	// StripAccents removes combining marks, so "Martínez" becomes "Martinez".
	StripAccents bool
}

func DefaultOptions() Options {
	return Options{Delimiter: ','}
}

func (o Options) Validate() error {
	d := o.Delimiter
	if d == 0 || d == '"' || d == '\r' || d == '\n' || !utf8.ValidRune(d) || d == utf8.RuneError {
		return fmt.Errorf("invalid export delimiter %q", d)
	}
	return nil
}

type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

func (t Table) normalized(o Options) (Table, error) {
	if !o.StripAccents {
		return t, nil
	}
	out := Table{Rows: make([][]string, 0, len(t.Rows))}
	var err error
	if out.Title, err = StripAccents(t.Title); err != nil {
		return Table{}, err
	}
	if out.Header, err = stripAll(t.Header); err != nil {
		return Table{}, err
	}
	for _, row := range t.Rows {
		r, err := stripAll(row)
		if err != nil {
			return Table{}, err
		}
		out.Rows = append(out.Rows, r)
	}
	return out, nil
}

func WriteCSV(w io.Writer, t Table, o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	t, err := t.normalized(o)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.Comma = o.Delimiter
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WritePDF lays the table out on A4 pages with equal column widths. Text is
// converted to cp1252, the encoding of the core fonts.
func WritePDF(w io.Writer, t Table, o Options) error {
	t, err := t.normalized(o)
	if err != nil {
		return err
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(t.Title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	cols := len(t.Header)
	if cols == 0 {
		return pdf.Output(w)
	}
	pageW, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	colW := (pageW - left - right) / float64(cols)

	header := func() {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetFillColor(230, 230, 230)
		for _, h := range t.Header {
			pdf.CellFormat(colW, 7, tr(h), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	_, pageH := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, row := range t.Rows {
		if pdf.GetY()+6 > pageH-bottom-10 {
			pdf.AddPage()
			header()
		}
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			pdf.CellFormat(colW, 6, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	return pdf.Output(w)
}

func StripAccents(s string) (string, error) {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	return out, err
}

func stripAll(in []string) ([]string, error) {
	out := make([]string, len(in))
	for i, s := range in {
		v, err := StripAccents(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// ContentType returns the media type for a report format, or "" if unknown.
func ContentType(format string) string {
	switch format {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatPDF:
		return "application/pdf"
	}
	return ""
}
