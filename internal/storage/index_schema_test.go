/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// seedIndexVersion writes a bare index whose version table claims schema.
func seedIndexVersion(t *testing.T, root string, schema int) {
	t.Helper()
	idx := IndexPath(root)
	if err := os.MkdirAll(filepath.Dir(idx), 0o755); err != nil {
		t.Fatalf("mk %s: %v", IndexDirName, err)
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)", filepath.ToSlash(idx)))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()
	stmts := []string{
		`CREATE TABLE version (id INTEGER PRIMARY KEY CHECK(id=1), schema INTEGER NOT NULL, app TEXT, created_at TEXT NOT NULL, updated_at TEXT NOT NULL);`,
		fmt.Sprintf(`INSERT INTO version(id, schema, app, created_at, updated_at) VALUES(1, %d, 'test', '2020-01-01T00:00:00Z', '2020-01-01T00:00:00Z');`, schema),
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("seed index: %v (q=%s)", err, q)
		}
	}
}

func TestInitOrOpenIndexRejectsOtherSchemaVersion(t *testing.T) {
	root := t.TempDir()
	seedIndexVersion(t, root, schemaVersion+1)
	db, err := InitOrOpenIndex(root)
	if err == nil {
		_ = db.Close()
		t.Fatalf("expected an error for a foreign schema version")
	}
	if !errors.Is(err, ErrIndexSchema) {
		t.Fatalf("err = %v, want ErrIndexSchema", err)
	}
}

func TestDetectAndRebuildIndexReplacesOtherSchemaVersion(t *testing.T) {
	root := t.TempDir()
	proj := sampleProject()
	seedIndexVersion(t, root, schemaVersion+1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rebuilt, err := DetectAndRebuildIndex(ctx, root, proj)
	if err != nil {
		t.Fatalf("DetectAndRebuildIndex: %v", err)
	}
	if !rebuilt {
		t.Fatalf("expected a rebuild")
	}
	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	var schema int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&schema); err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if schema != schemaVersion {
		t.Fatalf("schema = %d, want %d", schema, schemaVersion)
	}
	var origin int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pragma_table_info('script_snapshots') WHERE name='origin'`).Scan(&origin); err != nil || origin != 1 {
		t.Fatalf("script_snapshots.origin missing: %v", err)
	}
}

func TestIndexOpenIsIdempotent(t *testing.T) {
	root := t.TempDir()
	for i := 0; i < 2; i++ {
		db, err := InitOrOpenIndex(root)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		_ = db.Close()
	}
}
