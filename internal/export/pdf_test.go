/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"yarnweave/internal/domain"
	"yarnweave/internal/storage"
)

func pdfProject(nodes int) domain.Project {
	var m domain.NodeMap
	for i := range nodes {
		id := fmt.Sprintf("n%d", i)
		m.Put(domain.DialogueNode{ID: id, Type: domain.NodePlayer, Speaker: "Guard", Content: "Halt! Who goes there? Café crème.",
			Choices: []domain.Choice{
				{ID: id + "_choice_0", Text: "Bribe <<set $gold -= 10>>", NextNodeID: fmt.Sprintf("n%d", i+1),
					Conditions: []domain.Condition{{Flag: "gold", Operator: domain.OpGreaterEqual, Value: 10.0}}},
				{ID: id + "_choice_1", Text: "Leave"},
			}})
	}
	return domain.Project{Name: "Gatehouse", Metadata: domain.Metadata{Authors: "Ada"},
		Tree: domain.DialogueTree{ID: "t", Title: "Gate", StartNodeID: "n0", Nodes: m}}
}

func TestExportScriptPDF_CreatesFile(t *testing.T) {
	root := t.TempDir()
	ph, err := storage.InitProject(root, pdfProject(2))
	if err != nil {
		t.Fatalf("init project: %v", err)
	}
	out, err := ExportScriptPDF(ph, "gate.pdf", PDFOptions{})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if out != filepath.Join(root, storage.ExportsDirName, "gate.pdf") {
		t.Fatalf("relative path not placed under exports: %s", out)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf")
	}
}

func TestWriteScriptPDF_PageSizes(t *testing.T) {
	for _, size := range []string{"", "A4", "a5", "Letter"} {
		var buf bytes.Buffer
		if err := WriteScriptPDF(&buf, pdfProject(1), PDFOptions{PageSize: size, FontSize: 9}); err != nil {
			t.Fatalf("size %q: %v", size, err)
		}
		if buf.Len() == 0 {
			t.Fatalf("size %q: empty output", size)
		}
	}
	if err := WriteScriptPDF(&bytes.Buffer{}, pdfProject(1), PDFOptions{PageSize: "B5"}); err == nil {
		t.Fatalf("expected error for unsupported page size")
	}
}

func TestRenderScriptPaginates(t *testing.T) {
	pdf, err := renderScript(pdfProject(60), PDFOptions{})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if pdf.PageNo() < 2 {
		t.Fatalf("expected several pages, got %d", pdf.PageNo())
	}
	short, err := renderScript(pdfProject(60), PDFOptions{HideDirectives: true})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if short.PageNo() > pdf.PageNo() {
		t.Fatalf("hiding directives should not add pages")
	}
}

func TestExportScriptPDF_NilHandle(t *testing.T) {
	if _, err := ExportScriptPDF(nil, "x.pdf", PDFOptions{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLeadingIndent(t *testing.T) {
	cases := map[string]int{"x": 0, "    x": 1, "        x": 2, "   x": 0}
	for in, want := range cases {
		if got := leadingIndent(in); got != want {
			t.Fatalf("leadingIndent(%q) = %d, want %d", in, got, want)
		}
	}
}
