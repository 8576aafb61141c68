/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export renders dialogue trees into printable documents.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"yarnweave/internal/domain"
	"yarnweave/internal/storage"
	"yarnweave/internal/yarn"
)

// PDFOptions controls PDF export behavior.
// Units are points (pt).
// Text uses the built-in Helvetica and Courier faces, so non cp1252 runes are replaced.
type PDFOptions struct {
	// PageSize is one of A4, A5 or Letter. Empty means A4.
	PageSize string
	// FontSize of body text. Zero means 11.
	FontSize float64
	// HideDirectives omits <<set>> and <<jump>> lines, leaving the readable dialogue.
	HideDirectives bool
}

var pageSizes = map[string]string{"a4": "A4", "a5": "A5", "letter": "Letter"}

const (
	marginPt = 54.0
	indentPt = 16.0
)

// ExportScriptPDF renders the project's tree to a PDF at outPath.
// A relative outPath is placed under the project's exports folder.
func ExportScriptPDF(ph *storage.ProjectHandle, outPath string, opt PDFOptions) (string, error) {
	if ph == nil {
		return "", fmt.Errorf("project handle is nil")
	}
	if !filepath.IsAbs(outPath) {
		outPath = filepath.Join(ph.Root, storage.ExportsDirName, outPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create pdf: %w", err)
	}
	if err := WriteScriptPDF(f, ph.Project, opt); err != nil {
		_ = f.Close()
		_ = os.Remove(outPath)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close pdf: %w", err)
	}
	return outPath, nil
}

// WriteScriptPDF renders proj's tree as a script document and writes it to w.
func WriteScriptPDF(w io.Writer, proj domain.Project, opt PDFOptions) error {
	pdf, err := renderScript(proj, opt)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func renderScript(proj domain.Project, opt PDFOptions) (*gofpdf.Fpdf, error) {
	size := "A4"
	if opt.PageSize != "" {
		s, ok := pageSizes[strings.ToLower(opt.PageSize)]
		if !ok {
			return nil, fmt.Errorf("unsupported page size %q", opt.PageSize)
		}
		size = s
	}
	fs := opt.FontSize
	if fs <= 0 {
		fs = 11
	}
	lh := fs * 1.35

	pdf := gofpdf.New("P", "pt", size, "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(marginPt, marginPt, marginPt)
	pdf.SetAutoPageBreak(true, marginPt)
	title := proj.Tree.Title
	if title == "" {
		title = proj.Name
	}
	pdf.SetTitle(title, true)
	if proj.Metadata.Authors != "" {
		pdf.SetAuthor(proj.Metadata.Authors, true)
	}
	pdf.SetCreator("yarnweave", false)
	pdf.AliasNbPages("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-marginPt / 1.5)
		pdf.SetFont("Helvetica", "I", fs*0.8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, lh, fmt.Sprintf("%s - %d/{nb}", tr(title), pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", fs*1.8)
	pdf.MultiCell(0, fs*2.2, tr(title), "", "L", false)
	pdf.SetFont("Helvetica", "", fs)
	pdf.SetTextColor(90, 90, 90)
	for _, meta := range []string{proj.Name, proj.Metadata.Game, proj.Metadata.Authors} {
		if meta != "" && meta != title {
			pdf.MultiCell(0, lh, tr(meta), "", "L", false)
		}
	}
	pdf.Ln(lh)

	for _, raw := range strings.Split(yarn.Export(proj.Tree), "\n") {
		writeScriptLine(pdf, tr, raw, fs, lh, opt)
	}
	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return pdf, nil
}

// writeScriptLine lays out one line of exported script.
func writeScriptLine(pdf *gofpdf.Fpdf, tr func(string) string, raw string, fs, lh float64, opt PDFOptions) {
	trimmed := strings.TrimSpace(raw)
	switch {
	case trimmed == "" || trimmed == "---":
		return
	case trimmed == "===":
		y := pdf.GetY() + lh/3
		pdf.SetDrawColor(200, 200, 200)
		pdf.SetLineWidth(0.5)
		pdf.Line(marginPt, y, pageWidth(pdf)-marginPt, y)
		pdf.Ln(lh)
		return
	case strings.HasPrefix(trimmed, "title:"):
		pdf.SetFont("Helvetica", "B", fs*1.25)
		pdf.SetTextColor(0, 0, 0)
		pdf.MultiCell(0, lh*1.2, tr(strings.TrimSpace(strings.TrimPrefix(trimmed, "title:"))), "", "L", false)
		return
	}

	level := float64(leadingIndent(raw))
	pdf.SetLeftMargin(marginPt + level*indentPt)
	pdf.SetX(marginPt + level*indentPt)
	defer pdf.SetLeftMargin(marginPt)

	tok := yarn.Classify(trimmed)
	switch tok.Kind {
	case yarn.LineSet, yarn.LineJump:
		if opt.HideDirectives {
			return
		}
		directive(pdf, tr, trimmed, fs, lh)
	case yarn.LineIf, yarn.LineElseIf, yarn.LineElse, yarn.LineEndIf:
		directive(pdf, tr, trimmed, fs, lh)
	case yarn.LineChoice:
		pdf.SetTextColor(30, 70, 140)
		pdf.SetFont("Helvetica", "B", fs)
		pdf.Write(lh, "-> ")
		pdf.SetFont("Helvetica", "", fs)
		pdf.Write(lh, tr(tok.Text))
		pdf.Ln(lh)
	case yarn.LineSpeaker:
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "B", fs)
		pdf.Write(lh, tr(strings.ToUpper(tok.Speaker))+"  ")
		pdf.SetFont("Helvetica", "", fs)
		pdf.Write(lh, tr(tok.Text))
		pdf.Ln(lh)
	default:
		pdf.SetTextColor(0, 0, 0)
		pdf.SetFont("Helvetica", "", fs)
		pdf.Write(lh, tr(trimmed))
		pdf.Ln(lh)
	}
}

func directive(pdf *gofpdf.Fpdf, tr func(string) string, text string, fs, lh float64) {
	pdf.SetTextColor(128, 128, 128)
	pdf.SetFont("Courier", "", fs*0.9)
	pdf.Write(lh, tr(text))
	pdf.Ln(lh)
}

// leadingIndent counts four-space indentation steps.
func leadingIndent(s string) int {
	n := len(s) - len(strings.TrimLeft(s, " "))
	return n / 4
}

func pageWidth(pdf *gofpdf.Fpdf) float64 {
	w, _ := pdf.GetPageSize()
	return w
}
