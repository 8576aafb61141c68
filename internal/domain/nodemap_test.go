/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"testing"
)

func TestNodeMapKeepsInsertionOrder(t *testing.T) {
	var m NodeMap
	for _, id := range []string{"c", "a", "b"} {
		m.Put(DialogueNode{ID: id})
	}
	m.Put(DialogueNode{ID: "a", Content: "replaced"})
	if got := m.Keys(); len(got) != 3 || got[0] != "c" || got[1] != "a" || got[2] != "b" {
		t.Fatalf("keys: %v", got)
	}
	if n, _ := m.Get("a"); n.Content != "replaced" {
		t.Fatalf("replace in place failed: %+v", n)
	}

	b, err := json.Marshal(m)
	if err != nil {
		t.Fatal(err)
	}
	if s := string(b); s[:6] != `{"c":{` {
		t.Fatalf("unexpected json prefix: %s", s)
	}

	var back NodeMap
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if got := back.Keys(); len(got) != 3 || got[0] != "c" || got[2] != "b" {
		t.Fatalf("decoded keys: %v", got)
	}
}

func TestNodeMapUnmarshalFillsMissingIDs(t *testing.T) {
	var m NodeMap
	if err := json.Unmarshal([]byte(`{"z":{"type":"npc","content":"x"},"y":{"id":"y","type":"player","content":""}}`), &m); err != nil {
		t.Fatal(err)
	}
	if n, ok := m.Get("z"); !ok || n.ID != "z" {
		t.Fatalf("id not filled from key: %+v", n)
	}
	if err := json.Unmarshal([]byte(`[1,2]`), &m); err == nil {
		t.Fatalf("expected error for array input")
	}
	if err := json.Unmarshal([]byte(`null`), &m); err != nil || m.Len() != 0 {
		t.Fatalf("null should decode to empty map: %v", err)
	}
}

func TestNodeMapDeleteAndClone(t *testing.T) {
	var m NodeMap
	m.Put(DialogueNode{ID: "a"})
	m.Put(DialogueNode{ID: "b"})
	c := m.Clone()
	m.Delete("a")
	m.Delete("missing")
	if m.Has("a") || m.Len() != 1 {
		t.Fatalf("delete failed: %v", m.Keys())
	}
	if !c.Has("a") || c.Len() != 2 || c.Keys()[0] != "a" {
		t.Fatalf("clone affected by delete: %v", c.Keys())
	}
	n := 0
	for range c.All() {
		n++
		break
	}
	if n != 1 {
		t.Fatalf("iteration did not stop early")
	}
}
