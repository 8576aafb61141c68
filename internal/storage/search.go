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
	"strings"
)

// SearchQuery describes a search over the project index.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// Speaker matches case-insensitively. Kinds restricts to line kinds such as node,
// choice or block. NodeID restricts to the lines of one node.
// Limit/Offset implement pagination; Limit defaults to 100.
type SearchQuery struct {
	Text    string
	Speaker string
	Kinds   []string
	NodeID  string
	Limit   int
	Offset  int
}

// SearchResult is a single matching line.
// Snippet highlights matches with [ ] when Text was given.
type SearchResult struct {
	DocID   int64
	Kind    string
	NodeID  string
	Path    string
	Speaker string
	Snippet string
}

// Link is an edge pointing at a node.
type Link struct {
	From string
	Via  string
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty it scans lines with the filters applied.
func Search(ctx context.Context, projectRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	if strings.TrimSpace(q.Text) != "" {
		sb.WriteString("SELECT d.doc_id, d.kind, COALESCE(d.node_id,''), d.path, COALESCE(d.speaker,''), snippet(fts_lines, 0, '[', ']', '...', 10)\n")
		sb.WriteString("FROM fts_lines JOIN lines d ON fts_lines.rowid = d.doc_id\n")
		sb.WriteString("WHERE fts_lines MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT d.doc_id, d.kind, COALESCE(d.node_id,''), d.path, COALESCE(d.speaker,''), d.text\n")
		sb.WriteString("FROM lines d\nWHERE 1=1\n")
	}
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND d.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	if s := strings.TrimSpace(q.Speaker); s != "" {
		sb.WriteString(" AND lower(d.speaker) = ?\n")
		args = append(args, strings.ToLower(s))
	}
	if s := strings.TrimSpace(q.NodeID); s != "" {
		sb.WriteString(" AND d.node_id = ?\n")
		args = append(args, s)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	sb.WriteString("ORDER BY d.doc_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.DocID, &r.Kind, &r.NodeID, &r.Path, &r.Speaker, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Snippet = sn.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// WhereUsed returns the edges that point at nodeID, ordered by source node.
func WhereUsed(ctx context.Context, projectRoot, nodeID string) ([]Link, error) {
	if strings.TrimSpace(projectRoot) == "" {
		return nil, errors.New("project root is required")
	}
	if strings.TrimSpace(nodeID) == "" {
		return nil, errors.New("node id is required")
	}
	db, err := InitOrOpenIndex(projectRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT from_node, via FROM links WHERE to_node = ? ORDER BY from_node, via`, nodeID)
	if err != nil {
		return nil, fmt.Errorf("where-used query: %w", err)
	}
	defer rows.Close()
	var out []Link
	for rows.Next() {
		var lk Link
		if err := rows.Scan(&lk.From, &lk.Via); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, lk)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
