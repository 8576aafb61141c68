/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"yarnweave/internal/domain"
	applog "yarnweave/internal/log"
	"yarnweave/internal/storage"
	"yarnweave/internal/yarn"
)

// Entry describes one published tree at a given version.
type Entry struct {
	ID          int64     `json:"id"`
	StableID    string    `json:"stable_id"`
	Name        string    `json:"name"`
	Title       string    `json:"title"`
	Version     int64     `json:"version"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// Published is a fetched version: its entry, the project manifest and the script text.
type Published struct {
	Entry
	Project domain.Project
	Script  string
}

// Publish stores proj as the next version of its tree. The tree is keyed by its id;
// a tree without an id gets a fresh one, which the returned entry reports so the
// caller can persist it. The latest version's lines are indexed for SearchPG.
func (l *Library) Publish(ctx context.Context, proj domain.Project, author string) (Entry, error) {
	if strings.TrimSpace(proj.Tree.ID) == "" {
		proj.Tree.ID = uuid.NewString()
	}
	manifest, err := json.Marshal(proj)
	if err != nil {
		return Entry{}, fmt.Errorf("marshal manifest: %w", err)
	}
	if err := storage.ValidateManifest(manifest); err != nil {
		return Entry{}, err
	}
	script := yarn.Export(proj.Tree)
	log := applog.WithOperation(applog.WithComponent("library"), "publish")
	ctx = applog.WithTree(ctx, proj.Tree.ID)

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return Entry{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	e := Entry{StableID: proj.Tree.ID, Name: proj.Name, Title: proj.Tree.Title, Author: author}
	// dialect=PostgreSQL
	err = tx.QueryRowContext(ctx, `INSERT INTO trees(stable_id, name, title, version)
		VALUES($1, $2, $3, 1)
		ON CONFLICT (stable_id) DO UPDATE
		SET name = EXCLUDED.name, title = EXCLUDED.title, version = trees.version + 1, updated_at = now()
		RETURNING id, version, updated_at`, e.StableID, e.Name, e.Title).Scan(&e.ID, &e.Version, &e.PublishedAt)
	if err != nil {
		return Entry{}, fmt.Errorf("upsert tree: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO tree_versions(tree_id, version, manifest, script, author, created_at)
		VALUES($1, $2, $3, $4, $5, $6)`, e.ID, e.Version, string(manifest), script, author, e.PublishedAt); err != nil {
		return Entry{}, fmt.Errorf("insert version: %w", err)
	}
	if err := replaceLines(ctx, tx, e.ID, proj); err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(); err != nil {
		return Entry{}, fmt.Errorf("commit: %w", err)
	}
	log.InfoContext(ctx, "tree published", slog.Int64("version", e.Version), slog.Int("nodes", proj.Tree.Nodes.Len()))
	return e, nil
}

func replaceLines(ctx context.Context, tx *sql.Tx, treeID int64, proj domain.Project) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM lines WHERE tree_id = $1`, treeID); err != nil {
		return fmt.Errorf("clear lines: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO lines(tree_id, kind, node_id, path, speaker, raw_text) VALUES($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return fmt.Errorf("prepare lines: %w", err)
	}
	defer func() { _ = stmt.Close() }()
	for _, ln := range storage.ProjectLines(proj) {
		if _, err := stmt.ExecContext(ctx, treeID, ln.Kind, nullable(ln.NodeID), ln.Path, nullable(ln.Speaker), ln.Text); err != nil {
			return fmt.Errorf("insert line: %w", err)
		}
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Latest returns the most recent version of the tree with the given stable id.
func (l *Library) Latest(ctx context.Context, stableID string) (Published, error) {
	return l.fetch(ctx, stableID, 0)
}

// Version returns a specific version of a tree.
func (l *Library) Version(ctx context.Context, stableID string, version int64) (Published, error) {
	if version <= 0 {
		return Published{}, fmt.Errorf("invalid version %d", version)
	}
	return l.fetch(ctx, stableID, version)
}

func (l *Library) fetch(ctx context.Context, stableID string, version int64) (Published, error) {
	var (
		p        Published
		manifest []byte
	)
	// dialect=PostgreSQL
	q := `SELECT t.id, t.stable_id, t.name, t.title, v.version, v.author, v.created_at, v.manifest, v.script
		FROM trees t JOIN tree_versions v ON v.tree_id = t.id
		WHERE t.stable_id = $1 AND ($2 = 0 OR v.version = $2)
		ORDER BY v.version DESC LIMIT 1`
	err := l.db.QueryRowContext(ctx, q, stableID, version).Scan(
		&p.ID, &p.StableID, &p.Name, &p.Title, &p.Version, &p.Author, &p.PublishedAt, &manifest, &p.Script)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if version > 0 {
			return Published{}, fmt.Errorf("%w: tree %q version %d", ErrNotFound, stableID, version)
		}
		return Published{}, fmt.Errorf("%w: tree %q", ErrNotFound, stableID)
	case err != nil:
		return Published{}, fmt.Errorf("fetch tree: %w", err)
	}
	if err := json.Unmarshal(manifest, &p.Project); err != nil {
		return Published{}, fmt.Errorf("decode manifest: %w", err)
	}
	return p, nil
}

// List returns the latest entry of every published tree, most recently updated first.
func (l *Library) List(ctx context.Context) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT t.id, t.stable_id, t.name, t.title, t.version, COALESCE(v.author, ''), t.updated_at
		FROM trees t LEFT JOIN tree_versions v ON v.tree_id = t.id AND v.version = t.version
		ORDER BY t.updated_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	return scanEntries(rows)
}

// History lists every version of a tree, newest first.
func (l *Library) History(ctx context.Context, stableID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT t.id, t.stable_id, t.name, t.title, v.version, v.author, v.created_at
		FROM trees t JOIN tree_versions v ON v.tree_id = t.id
		WHERE t.stable_id = $1
		ORDER BY v.version DESC`, stableID)
	if err != nil {
		return nil, fmt.Errorf("tree history: %w", err)
	}
	list, err := scanEntries(rows)
	if err == nil && len(list) == 0 {
		return nil, fmt.Errorf("%w: tree %q", ErrNotFound, stableID)
	}
	return list, err
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer func() { _ = rows.Close() }()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.StableID, &e.Name, &e.Title, &e.Version, &e.Author, &e.PublishedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
