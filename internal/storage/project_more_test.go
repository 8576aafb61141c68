/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenFallsBackToLatestBackup(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	// The second save backs up the first manifest.
	ph.Project.Metadata.Notes = "second"
	if err := Save(ph); err != nil {
		t.Fatalf("Save error: %v", err)
	}
	if err := os.WriteFile(ph.ManifestPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("corrupt manifest: %v", err)
	}

	got, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if !got.Recovered {
		t.Fatalf("expected Recovered to be set")
	}
	if got.Project.Name != "Gatehouse" || got.Project.Tree.Nodes.Len() != 3 {
		t.Fatalf("unexpected recovered project: %+v", got.Project)
	}
	if err := Save(got); err != nil {
		t.Fatalf("Save recovered: %v", err)
	}
	if got.Recovered {
		t.Fatalf("Save should clear Recovered")
	}
}

func TestOpenSkipsInvalidBackups(t *testing.T) {
	root := t.TempDir()
	if _, err := InitProject(root, sampleProject()); err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	bdir := filepath.Join(root, BackupsDirName)
	good, _ := os.ReadFile(filepath.Join(root, ManifestFileName))
	if err := os.WriteFile(filepath.Join(bdir, ManifestFileName+".20240101-000000.bak"), good, 0o644); err != nil {
		t.Fatal(err)
	}
	// Newer but schema-invalid.
	if err := os.WriteFile(filepath.Join(bdir, ManifestFileName+".20250101-000000.bak"), []byte(`{"name":"x"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(filepath.Join(root, ManifestFileName)); err != nil {
		t.Fatal(err)
	}
	ph, err := Open(root)
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	if ph.Project.Name != "Gatehouse" {
		t.Fatalf("expected the valid backup, got %+v", ph.Project)
	}
}

func TestOpenWithoutManifestOrBackups(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAutosaveCrashSnapshot(t *testing.T) {
	root := t.TempDir()
	ph, err := InitProject(root, sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	// Crash snapshots skip validation so that an in-flight edit is never lost.
	n, _ := ph.Project.Tree.Nodes.Get("start")
	n.Type = "half-edited"
	ph.Project.Tree.Nodes.Put(n)

	path, err := AutosaveCrashSnapshot(ph)
	if err != nil {
		t.Fatalf("AutosaveCrashSnapshot error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, BackupsDirName) || !strings.HasSuffix(path, ".crash") {
		t.Fatalf("unexpected crash path %q", path)
	}
	b, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(b), "half-edited") {
		t.Fatalf("crash snapshot content: %v %s", err, b)
	}
	if _, err := AutosaveCrashSnapshot(nil); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}

func TestNilHandleErrors(t *testing.T) {
	if err := Save(nil); err == nil {
		t.Fatalf("Save(nil) should fail")
	}
	if err := Save(&ProjectHandle{}); err == nil {
		t.Fatalf("Save with empty paths should fail")
	}
	if err := SaveAs(nil, t.TempDir()); err == nil {
		t.Fatalf("SaveAs(nil) should fail")
	}
}
