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
	"testing"
	"time"

	"github.com/google/uuid"

	"yarnweave/internal/storage"
)

// TestSearchParity checks that the library and the local index return the same lines
// for the same project and filters.
func TestSearchParity(t *testing.T) {
	lib := openPGForTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	id := uuid.NewString()
	proj := testProject(id)
	root := t.TempDir()
	if _, err := storage.InitProject(root, proj); err != nil {
		t.Fatalf("InitProject: %v", err)
	}
	if _, err := lib.Publish(ctx, proj, "ada"); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	queries := []storage.SearchQuery{
		{Text: "guard"},
		{Speaker: "Guard"},
		{Kinds: []string{storage.KindChoice}},
		{NodeID: "menu"},
		{},
	}
	for _, q := range queries {
		local, err := storage.Search(ctx, root, q)
		if err != nil {
			t.Fatalf("local search %+v: %v", q, err)
		}
		remote, err := lib.Search(ctx, id, q)
		if err != nil {
			t.Fatalf("pg search %+v: %v", q, err)
		}
		if len(local) != len(remote) {
			t.Fatalf("query %+v: local %d results, pg %d", q, len(local), len(remote))
		}
		for i := range local {
			if local[i].Path != remote[i].Path || local[i].Kind != remote[i].Kind || local[i].Speaker != remote[i].Speaker {
				t.Fatalf("query %+v result %d: local %+v pg %+v", q, i, local[i], remote[i])
			}
		}
	}
}
