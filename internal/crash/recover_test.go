/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"yarnweave/internal/domain"
	"yarnweave/internal/storage"
)

// silenceStderr swaps os.Stderr for a pipe until the test ends.
func silenceStderr(t *testing.T) {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = old
		_, _ = io.Copy(io.Discard, r)
	})
}

func stubExit(t *testing.T) *int {
	t.Helper()
	code := -1
	old := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = old })
	return &code
}

func TestRecover_WritesReportAndAutosave(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)
	Configure(Options{Reports: true})
	t.Cleanup(func() { Configure(Options{Reports: true}) })

	root := t.TempDir()
	var nodes domain.NodeMap
	nodes.Put(domain.DialogueNode{ID: "start", Type: domain.NodeNPC, Content: "Hi"})
	ph := &storage.ProjectHandle{Root: root, ManifestPath: filepath.Join(root, storage.ManifestFileName),
		Project: domain.Project{Name: "P", Tree: domain.DialogueTree{ID: "t", StartNodeID: "start", Nodes: nodes}}}

	func() {
		defer Recover(ph)
		panic("boom")
	}()

	bdir := filepath.Join(root, storage.BackupsDirName)
	files, _ := os.ReadDir(bdir)
	var report, autosave string
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = filepath.Join(bdir, f.Name())
		case strings.HasSuffix(f.Name(), ".crash"):
			autosave = filepath.Join(bdir, f.Name())
		}
	}
	if report == "" || autosave == "" {
		t.Fatalf("expected report and autosave under backups, got %v", files)
	}
	b, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !bytes.Contains(b, []byte("Panic: boom")) || !bytes.Contains(b, []byte("Tree: t (1 nodes)")) {
		t.Fatalf("report content: %s", b)
	}
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecover_ReportsDisabled(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)
	dir := t.TempDir()
	Configure(Options{Reports: false, Dir: dir})
	t.Cleanup(func() { Configure(Options{Reports: true}) })

	func() {
		defer Recover(nil)
		panic("quiet")
	}()

	if files, _ := os.ReadDir(dir); len(files) != 0 {
		t.Fatalf("no report expected, got %v", files)
	}
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}

func TestRecover_NoPanicIsNoop(t *testing.T) {
	code := stubExit(t)
	func() {
		defer Recover(nil)
	}()
	if *code != -1 {
		t.Fatalf("exit should not be called without a panic")
	}
}

func TestRecoverWith_UsesHandleAtPanicTime(t *testing.T) {
	silenceStderr(t)
	code := stubExit(t)
	Configure(Options{Reports: true})

	var ph *storage.ProjectHandle
	root := t.TempDir()
	func() {
		defer RecoverWith(func() *storage.ProjectHandle { return ph })
		ph = &storage.ProjectHandle{Root: root, ManifestPath: filepath.Join(root, storage.ManifestFileName)}
		panic("late")
	}()

	files, _ := os.ReadDir(filepath.Join(root, storage.BackupsDirName))
	if len(files) == 0 {
		t.Fatalf("expected crash files for the handle opened after defer")
	}
	if *code != 2 {
		t.Fatalf("expected exit code 2, got %d", *code)
	}
}
