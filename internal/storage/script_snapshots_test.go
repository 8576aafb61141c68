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
	"testing"
	"time"
)

func TestScriptSnapshotsListAndPrune(t *testing.T) {
	ph, err := InitProject(t.TempDir(), sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, origin := range []string{OriginImport, "", OriginExport, OriginImport} {
		ts := base.Add(time.Duration(i) * 500 * time.Millisecond)
		if err := SaveScriptSnapshot(ctx, ph, origin, string(rune('a'+i)), ts); err != nil {
			t.Fatalf("SaveScriptSnapshot %d: %v", i, err)
		}
	}

	list, err := ListScriptSnapshots(ctx, ph, 10)
	if err != nil {
		t.Fatalf("ListScriptSnapshots: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 snapshots, got %d", len(list))
	}
	if list[0].Text != "d" || list[3].Text != "a" {
		t.Fatalf("not newest first: %+v", list)
	}
	if list[2].Origin != OriginManual {
		t.Fatalf("empty origin should default to manual, got %q", list[2].Origin)
	}
	if !list[1].TS.Equal(base.Add(time.Second)) {
		t.Fatalf("timestamp not preserved: %v", list[1].TS)
	}

	n, err := PruneOldScriptSnapshots(ctx, ph, 2)
	if err != nil {
		t.Fatalf("PruneOldScriptSnapshots: %v", err)
	}
	if n != 2 {
		t.Fatalf("pruned %d, want 2", n)
	}
	list, _ = ListScriptSnapshots(ctx, ph, 10)
	if len(list) != 2 || list[1].Text != "c" {
		t.Fatalf("after prune: %+v", list)
	}
	if n, _ := PruneOldScriptSnapshots(ctx, ph, 0); n != 0 {
		t.Fatalf("keepLast 0 should not prune")
	}
}

func TestGetLatestScriptSnapshotEmpty(t *testing.T) {
	ph, err := InitProject(t.TempDir(), sampleProject())
	if err != nil {
		t.Fatalf("InitProject error: %v", err)
	}
	_, ok, err := GetLatestScriptSnapshot(context.Background(), ph)
	if err != nil || ok {
		t.Fatalf("expected no snapshot, got ok=%v err=%v", ok, err)
	}
	if err := SaveScriptSnapshot(context.Background(), nil, OriginManual, "x", time.Now()); err == nil {
		t.Fatalf("expected error for nil handle")
	}
}
