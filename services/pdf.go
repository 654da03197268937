package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/FranciscoJunior65/curriuloproia-sub000/models"
	"github.com/go-pdf/fpdf"
)

const (
	pdfLineHeight = 5.5
	pdfFont       = "Helvetica"
)

// pdfDocument wraps fpdf with the cp1252 translator the core fonts need for
// accented characters.
type pdfDocument struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func newPDFDocument(title string) *pdfDocument {
	p := fpdf.New("P", "mm", "A4", "")
	p.SetMargins(20, 20, 20)
	p.SetAutoPageBreak(true, 20)
	p.SetTitle(title, true)
	p.SetCreator("CurriculoPro IA", true)
	p.AliasNbPages("")
	d := &pdfDocument{pdf: p, tr: p.UnicodeTranslatorFromDescriptor("")}
	p.SetFooterFunc(func() {
		p.SetY(-15)
		p.SetFont(pdfFont, "I", 8)
		p.SetTextColor(128, 128, 128)
		p.CellFormat(0, 10, fmt.Sprintf("%d/{nb}", p.PageNo()), "", 0, "C", false, 0, "")
	})
	p.AddPage()
	return d
}

func (d *pdfDocument) heading(text string, size float64) {
	d.pdf.SetFont(pdfFont, "B", size)
	d.pdf.SetTextColor(20, 40, 80)
	d.pdf.MultiCell(0, size*0.5, d.tr(text), "", "L", false)
	d.pdf.SetTextColor(0, 0, 0)
	d.pdf.Ln(2)
}

func (d *pdfDocument) paragraph(text string) {
	d.pdf.SetFont(pdfFont, "", 10.5)
	d.pdf.MultiCell(0, pdfLineHeight, d.tr(text), "", "L", false)
	d.pdf.Ln(1.5)
}

func (d *pdfDocument) bullets(items []string) {
	d.pdf.SetFont(pdfFont, "", 10.5)
	for _, item := range items {
		d.pdf.MultiCell(0, pdfLineHeight, d.tr("- "+item), "", "L", false)
	}
	d.pdf.Ln(2)
}

func (d *pdfDocument) bytes() ([]byte, error) {
	var buf bytes.Buffer
	if err := d.pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// isSectionHeading matches the UPPER CASE headings the rewrite prompt asks for
func isSectionHeading(line string) bool {
	if len(line) < 3 || len(line) > 60 || strings.HasPrefix(line, "-") {
		return false
	}
	return strings.ToUpper(line) == line && strings.ToLower(line) != line
}

// RenderResumePDF lays out a plain-text résumé
func RenderResumePDF(title, text string) ([]byte, error) {
	d := newPDFDocument(title)
	first := true
	for _, block := range strings.Split(NormalizeText(text), "\n") {
		line := strings.TrimSpace(block)
		switch {
		case line == "":
			d.pdf.Ln(2)
		case first:
			// the first line is the candidate's name
			d.heading(line, 18)
		case isSectionHeading(line):
			d.pdf.Ln(2)
			d.heading(line, 12)
		default:
			d.paragraph(line)
		}
		first = false
	}
	return d.bytes()
}

// RenderAnalysisReportPDF summarizes an analysis result
func RenderAnalysisReportPDF(analysis *models.ResumeAnalysis) ([]byte, error) {
	d := newPDFDocument("Relatório de análise de currículo")
	d.heading("Relatório de análise de currículo", 18)

	d.pdf.SetFont(pdfFont, "", 10)
	meta := fmt.Sprintf("Arquivo: %s    Data: %s", analysis.FileName, analysis.CreatedAt.Format("02/01/2006"))
	if analysis.TargetRole != "" {
		meta += "    Vaga: " + analysis.TargetRole
	}
	d.pdf.MultiCell(0, pdfLineHeight, d.tr(meta), "", "L", false)
	d.pdf.Ln(3)

	d.heading(fmt.Sprintf("Pontuação: %.0f/100", analysis.Score), 14)
	if analysis.Summary != "" {
		d.paragraph(analysis.Summary)
	}
	sections := []struct {
		title string
		items []string
	}{
		{"Pontos fortes", analysis.Strengths},
		{"Pontos a melhorar", analysis.Weaknesses},
		{"Sugestões", analysis.Suggestions},
		{"Palavras-chave", analysis.Keywords},
	}
	for _, s := range sections {
		if len(s.items) == 0 {
			continue
		}
		d.heading(s.title, 12)
		d.bullets(s.items)
	}
	return d.bytes()
}

// RenderCoverLetterPDF lays out a cover letter with a dated header
func RenderCoverLetterPDF(letter *models.CoverLetter) ([]byte, error) {
	d := newPDFDocument(fmt.Sprintf("Carta de apresentação - %s", letter.CompanyName))
	d.pdf.SetFont(pdfFont, "", 10)
	d.pdf.CellFormat(0, pdfLineHeight, d.tr(letter.CreatedAt.Format("02/01/2006")), "", 1, "R", false, 0, "")
	d.pdf.Ln(4)
	d.heading(fmt.Sprintf("%s - %s", letter.JobTitle, letter.CompanyName), 13)
	for _, para := range strings.Split(NormalizeText(letter.Content), "\n\n") {
		d.paragraph(para)
		d.pdf.Ln(1)
	}
	return d.bytes()
}

func pdfFileName(prefix string, t time.Time) string {
	return fmt.Sprintf("%s-%s.pdf", prefix, t.Format("20060102"))
}
