/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"slices"
	"testing"
)

func TestRowsFromProject(t *testing.T) {
	rows, links := rowsFromProject(sampleProject())

	byPath := map[string]indexRow{}
	for _, r := range rows {
		byPath[r.path] = r
	}
	want := []string{
		"project:name",
		"character:merchant",
		"tree:title",
		"node:start",
		"node:menu",
		"node:menu/choice:menu_choice_0",
		"node:menu/choice:menu_choice_1",
		"node:end",
		"node:end/block:end_block_0",
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for _, p := range want {
		if _, ok := byPath[p]; !ok {
			t.Fatalf("missing row %s", p)
		}
	}
	if s := byPath["node:start"].speaker.String; s != "Guard" {
		t.Fatalf("start speaker = %q", s)
	}
	// Speaker falls back to the character's name, and arms inherit it.
	if s := byPath["node:end"].speaker.String; s != "Merchant" {
		t.Fatalf("end speaker = %q", s)
	}
	if s := byPath["node:end/block:end_block_0"].speaker.String; s != "Merchant" {
		t.Fatalf("arm speaker = %q", s)
	}
	if byPath["node:menu/choice:menu_choice_0"].kind != KindChoice {
		t.Fatalf("choice row has kind %q", byPath["node:menu/choice:menu_choice_0"].kind)
	}

	got := make([]string, 0, len(links))
	for _, lk := range links {
		got = append(got, lk.from+">"+lk.to+"|"+lk.via)
	}
	wantLinks := []string{
		"start>menu|next",
		"menu>end|choice:menu_choice_0",
		"menu>end|choice:menu_choice_1",
		"end>start|block:end_block_0",
	}
	if !slices.Equal(got, wantLinks) {
		t.Fatalf("links = %v, want %v", got, wantLinks)
	}
}

func TestRowsFromProjectSkipsBlankText(t *testing.T) {
	proj := sampleProject()
	proj.Name = "  "
	n, _ := proj.Tree.Nodes.Get("start")
	n.Content = "\n"
	proj.Tree.Nodes.Put(n)
	rows, _ := rowsFromProject(proj)
	for _, r := range rows {
		if r.path == "project:name" || r.path == "node:start" {
			t.Fatalf("blank row %s was indexed", r.path)
		}
	}
}
