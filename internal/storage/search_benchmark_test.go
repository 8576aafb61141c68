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
	"fmt"
	"testing"

	"yarnweave/internal/domain"
)

func benchProject(n int) domain.Project {
	var nodes domain.NodeMap
	for i := range n {
		id := fmt.Sprintf("n%d", i)
		nodes.Put(domain.DialogueNode{ID: id, Type: domain.NodeNPC, Speaker: "Narrator",
			Content: fmt.Sprintf("Line %d of the benchmark dialogue", i), NextNodeID: fmt.Sprintf("n%d", i+1)})
	}
	return domain.Project{Name: "Bench", Tree: domain.DialogueTree{ID: "b", Title: "Bench", StartNodeID: "n0", Nodes: nodes}}
}

func BenchmarkSearchFTS(b *testing.B) {
	root := b.TempDir()
	ctx := context.Background()
	if err := RebuildIndex(ctx, root, benchProject(500)); err != nil {
		b.Fatalf("RebuildIndex: %v", err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Search(ctx, root, SearchQuery{Text: "benchmark", Limit: 20}); err != nil {
			b.Fatalf("Search: %v", err)
		}
	}
}

func BenchmarkRebuildIndex(b *testing.B) {
	root := b.TempDir()
	proj := benchProject(500)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := RebuildIndex(context.Background(), root, proj); err != nil {
			b.Fatalf("RebuildIndex: %v", err)
		}
	}
}
