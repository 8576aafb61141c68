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
	"fmt"
	"strings"

	"yarnweave/internal/storage"
)

// Search runs q over the lines of the latest version of a published tree.
// Results use storage.SearchResult so they can be compared with the local index.
func (l *Library) Search(ctx context.Context, stableID string, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if strings.TrimSpace(q.Text) != "" {
		tq := place(q.Text)
		b.WriteString("SELECT d.id, d.kind, COALESCE(d.node_id,''), d.path, COALESCE(d.speaker,''), ")
		b.WriteString("COALESCE(ts_headline('simple', d.raw_text, plainto_tsquery('simple', " + tq + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') ")
		b.WriteString("FROM lines d JOIN trees t ON t.id = d.tree_id ")
		b.WriteString("WHERE d.search_vector @@ plainto_tsquery('simple', " + tq + ") ")
	} else {
		b.WriteString("SELECT d.id, d.kind, COALESCE(d.node_id,''), d.path, COALESCE(d.speaker,''), d.raw_text ")
		b.WriteString("FROM lines d JOIN trees t ON t.id = d.tree_id WHERE TRUE ")
	}
	b.WriteString(" AND t.stable_id = " + place(stableID) + " ")
	if len(q.Kinds) > 0 {
		b.WriteString(" AND d.kind = ANY (" + place(q.Kinds) + ") ")
	}
	if s := strings.TrimSpace(q.Speaker); s != "" {
		b.WriteString(" AND lower(d.speaker) = " + place(strings.ToLower(s)) + " ")
	}
	if s := strings.TrimSpace(q.NodeID); s != "" {
		b.WriteString(" AND d.node_id = " + place(s) + " ")
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := max(q.Offset, 0)
	b.WriteString(" ORDER BY d.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := l.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.DocID, &r.Kind, &r.NodeID, &r.Path, &r.Speaker, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
