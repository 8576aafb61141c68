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
	"errors"
	"time"
)

// Snapshot origins.
const (
	OriginImport = "import"
	OriginExport = "export"
	OriginManual = "manual"
)

// snapshotTSLayout is fixed width so stored timestamps sort lexicographically.
const snapshotTSLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ScriptSnapshot is one stored version of the project's script text.
type ScriptSnapshot struct {
	ID     int64
	TS     time.Time
	Origin string
	Text   string
}

// language=SQL
// dialect=SQLite
const insertScriptSnapshotSQL = `INSERT INTO script_snapshots(ts, origin, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const listScriptSnapshotsSQL = `SELECT id, ts, origin, text FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldScriptSnapshotsSQL = `DELETE FROM script_snapshots WHERE id NOT IN (
	SELECT id FROM script_snapshots ORDER BY ts DESC, id DESC LIMIT ?
)`

// SaveScriptSnapshot stores the full script text with its origin and timestamp.
// The history lives in the derived index and is meant for change tracking, not canonical storage.
func SaveScriptSnapshot(ctx context.Context, ph *ProjectHandle, origin, text string, ts time.Time) error {
	if ph == nil {
		return errors.New("nil ProjectHandle")
	}
	if origin == "" {
		origin = OriginManual
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertScriptSnapshotSQL, ts.UTC().Format(snapshotTSLayout), origin, text)
	return err
}

// GetLatestScriptSnapshot returns the most recent snapshot; ok is false when there is none.
func GetLatestScriptSnapshot(ctx context.Context, ph *ProjectHandle) (snap ScriptSnapshot, ok bool, err error) {
	list, err := ListScriptSnapshots(ctx, ph, 1)
	if err != nil || len(list) == 0 {
		return ScriptSnapshot{}, false, err
	}
	return list[0], true, nil
}

// ListScriptSnapshots returns up to limit most recent script snapshots, newest first.
func ListScriptSnapshots(ctx context.Context, ph *ProjectHandle, limit int) ([]ScriptSnapshot, error) {
	if ph == nil {
		return nil, errors.New("nil ProjectHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listScriptSnapshotsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []ScriptSnapshot
	for rows.Next() {
		var s ScriptSnapshot
		var tsStr string
		if err := rows.Scan(&s.ID, &tsStr, &s.Origin, &s.Text); err != nil {
			return nil, err
		}
		s.TS, _ = time.Parse(snapshotTSLayout, tsStr)
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneOldScriptSnapshots keeps at most keepLast snapshots and deletes older ones.
// A non-positive keepLast keeps everything.
func PruneOldScriptSnapshots(ctx context.Context, ph *ProjectHandle, keepLast int) (int64, error) {
	if ph == nil {
		return 0, errors.New("nil ProjectHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(ph.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	res, err := db.ExecContext(ctx, pruneOldScriptSnapshotsSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

