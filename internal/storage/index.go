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
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"yarnweave/internal/domain"
	applog "yarnweave/internal/log"
	"yarnweave/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-project derived data under the project root.
	IndexDirName  = ".yw"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump it on any schema change; indexes with another version are rebuilt.
	schemaVersion = 1
)

// ErrIndexSchema is returned when the index was written with another schema version.
// The index only holds derived data, so DetectAndRebuildIndex replaces it.
var ErrIndexSchema = errors.New("index schema version mismatch")

// Line kinds stored in the index.
const (
	KindProjectName = "project_name"
	KindTreeTitle   = "tree_title"
	KindCharacter   = "character"
	KindNode        = "node"
	KindChoice      = "choice"
	KindBlock       = "block"
)

// IndexPath returns the full path to the project's embedded index database file.
func IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-project SQLite index exists at .yw/index.sqlite,
// opens the database, enables WAL mode, checks the schema version and creates the schema.
// The returned *sql.DB is ready for use. Callers close it when no longer needed.
func InitOrOpenIndex(projectRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", projectRoot),
	)
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if err := os.MkdirAll(filepath.Join(projectRoot, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create %s dir: %w", IndexDirName, err)
	}

	path := IndexPath(projectRoot)
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// A fresh DB starts at the current schema.
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	case curSchema != schemaVersion:
		return fmt.Errorf("%w: have %d, want %d", ErrIndexSchema, curSchema, schemaVersion)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// One row per searchable line: node content, choice text, arm content, names.
		`CREATE TABLE IF NOT EXISTS lines (
			doc_id  INTEGER PRIMARY KEY,
			kind    TEXT NOT NULL,
			node_id TEXT,
			path    TEXT NOT NULL,
			speaker TEXT,
			text    TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lines_node ON lines(node_id);`,
		`CREATE INDEX IF NOT EXISTS idx_lines_path ON lines(path);`,

		// External-content FTS5 index over lines.text, kept in sync by triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_lines USING fts5(
			text,
			content='lines',
			content_rowid='doc_id',
			tokenize = 'unicode61'
		);`,

		// Graph edges; via is "next", "choice:<id>" or "block:<id>".
		`CREATE TABLE IF NOT EXISTS links (
			from_node TEXT NOT NULL,
			to_node   TEXT NOT NULL,
			via       TEXT NOT NULL,
			PRIMARY KEY(from_node, to_node, via)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_links_to ON links(to_node);`,

		`CREATE TABLE IF NOT EXISTS script_snapshots (
			id    INTEGER PRIMARY KEY,
			ts     TEXT    NOT NULL,
			origin TEXT    NOT NULL DEFAULT 'manual',
			text   TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_script_snapshots_ts ON script_snapshots(ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS lines_ai AFTER INSERT ON lines BEGIN
			INSERT INTO fts_lines(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lines_ad AFTER DELETE ON lines BEGIN
			INSERT INTO fts_lines(fts_lines, rowid, text) VALUES ('delete', old.doc_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS lines_au AFTER UPDATE OF text ON lines BEGIN
			INSERT INTO fts_lines(fts_lines, rowid, text) VALUES ('delete', old.doc_id, old.text);
			INSERT INTO fts_lines(rowid, text) VALUES (new.doc_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, projectRoot string, proj domain.Project) (bool, error) {
	path := IndexPath(projectRoot)
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		discardIndex(path)
		if rbErr := RebuildIndex(ctx, projectRoot, proj); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	needs := false
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM lines LIMIT 1;`); err != nil {
			needs = true
		}
	}
	_ = db.Close()
	if !needs {
		return false, nil
	}
	discardIndex(path)
	if err := RebuildIndex(ctx, projectRoot, proj); err != nil {
		return false, err
	}
	return true, nil
}

// discardIndex copies the index file into .yw/backups and removes it with its WAL files.
func discardIndex(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		_ = os.Remove(indexPath + suffix)
	}
}

// BuildIndexIfEmpty populates the index from the manifest when it holds no lines yet.
func BuildIndexIfEmpty(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM lines;").Scan(&cnt); err != nil {
		return fmt.Errorf("check lines count: %w", err)
	}
	if cnt > 0 {
		return nil
	}
	return rebuildLinesFromProject(ctx, db, proj)
}

// UpdateIndex replaces the indexed lines and links with the content of the manifest.
func UpdateIndex(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildLinesFromProject(ctx, db, proj)
}

// RebuildIndex drops and recreates the derived tables and refills them from the manifest.
// Meta, version and script history are preserved.
func RebuildIndex(ctx context.Context, projectRoot string, proj domain.Project) error {
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TRIGGER IF EXISTS lines_ai;",
		"DROP TRIGGER IF EXISTS lines_ad;",
		"DROP TRIGGER IF EXISTS lines_au;",
		"DROP TABLE IF EXISTS links;",
		"DROP TABLE IF EXISTS fts_lines;",
		"DROP TABLE IF EXISTS lines;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildLinesFromProject(ctx, db, proj)
}

type indexRow struct {
	kind    string
	nodeID  sql.NullString
	path    string
	speaker sql.NullString
	text    string
}

type linkRow struct{ from, to, via string }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// rowsFromProject flattens the manifest into searchable lines and graph edges.
func rowsFromProject(proj domain.Project) ([]indexRow, []linkRow) {
	rows := make([]indexRow, 0, 64)
	var links []linkRow
	if s := strings.TrimSpace(proj.Name); s != "" {
		rows = append(rows, indexRow{kind: KindProjectName, path: "project:name", text: s})
	}
	for _, c := range proj.Characters {
		if s := strings.TrimSpace(c.Name); s != "" {
			rows = append(rows, indexRow{kind: KindCharacter, path: "character:" + c.ID, text: s})
		}
	}
	if s := strings.TrimSpace(proj.Tree.Title); s != "" {
		rows = append(rows, indexRow{kind: KindTreeTitle, path: "tree:title", text: s})
	}
	for id, n := range proj.Tree.Nodes.All() {
		speaker := n.Speaker
		if speaker == "" && n.CharacterID != "" {
			speaker = proj.CharacterName(n.CharacterID)
		}
		base := "node:" + id
		if s := strings.TrimSpace(n.Content); s != "" {
			rows = append(rows, indexRow{kind: KindNode, nodeID: nullString(id), path: base, speaker: nullString(speaker), text: s})
		}
		if n.NextNodeID != "" {
			links = append(links, linkRow{from: id, to: n.NextNodeID, via: "next"})
		}
		for _, c := range n.Choices {
			if s := strings.TrimSpace(c.Text); s != "" {
				rows = append(rows, indexRow{kind: KindChoice, nodeID: nullString(id), path: base + "/choice:" + c.ID, text: s})
			}
			if c.NextNodeID != "" {
				links = append(links, linkRow{from: id, to: c.NextNodeID, via: "choice:" + c.ID})
			}
		}
		for _, b := range n.ConditionalBlocks {
			armSpeaker := b.Speaker
			if armSpeaker == "" {
				armSpeaker = speaker
			}
			if s := strings.TrimSpace(b.Content); s != "" {
				rows = append(rows, indexRow{kind: KindBlock, nodeID: nullString(id), path: base + "/block:" + b.ID, speaker: nullString(armSpeaker), text: s})
			}
			if b.NextNodeID != "" {
				links = append(links, linkRow{from: id, to: b.NextNodeID, via: "block:" + b.ID})
			}
		}
	}
	return rows, links
}

// Line is one searchable line of a project, as stored by the index.
type Line struct {
	Kind    string
	NodeID  string
	Path    string
	Speaker string
	Text    string
}

// ProjectLines flattens the manifest into the lines the index stores, in index order.
func ProjectLines(proj domain.Project) []Line {
	rows, _ := rowsFromProject(proj)
	out := make([]Line, 0, len(rows))
	for _, r := range rows {
		out = append(out, Line{Kind: r.kind, NodeID: r.nodeID.String, Path: r.path, Speaker: r.speaker.String, Text: r.text})
	}
	return out
}

// rebuildLinesFromProject replaces lines and links in one transaction.
func rebuildLinesFromProject(ctx context.Context, db *sql.DB, proj domain.Project) error {
	rows, links := rowsFromProject(proj)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, q := range []string{"DELETE FROM lines;", "DELETE FROM links;"} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear index: %w", err)
		}
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO lines(kind, node_id, path, speaker, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, r := range rows {
		if _, err := ins.ExecContext(ctx, r.kind, r.nodeID, r.path, r.speaker, r.text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert line: %w", err)
		}
	}
	lins, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO links(from_node, to_node, via) VALUES(?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare link insert: %w", err)
	}
	defer lins.Close()
	for _, lk := range links {
		if _, err := lins.ExecContext(ctx, lk.from, lk.to, lk.via); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert link: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
