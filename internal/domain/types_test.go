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
	"strings"
	"testing"
)

func TestProjectJSONRoundTrip(t *testing.T) {
	var nodes NodeMap
	nodes.Put(DialogueNode{ID: "start", Type: NodeNPC, Content: "Hi", CharacterID: "c1", NextNodeID: "ask"})
	nodes.Put(DialogueNode{ID: "ask", Type: NodePlayer, Choices: []Choice{{ID: "ask_choice_0", Text: "Bye",
		Conditions: []Condition{{Flag: "gold", Operator: OpGreaterEqual, Value: 5.0}}}}})
	p := Project{
		Name:       "RoundTrip",
		Characters: []Character{{ID: "c1", Name: "Guard"}},
		Tree:       DialogueTree{ID: "t", Title: "Gate", StartNodeID: "start", Nodes: nodes},
	}

	b, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Project
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Name != p.Name {
		t.Fatalf("name mismatch: got %q want %q", got.Name, p.Name)
	}
	if keys := got.Tree.Nodes.Keys(); len(keys) != 2 || keys[0] != "start" || keys[1] != "ask" {
		t.Fatalf("unexpected node order: %v", keys)
	}
	ask, _ := got.Tree.Nodes.Get("ask")
	if len(ask.Choices) != 1 || ask.Choices[0].Conditions[0].Value != 5.0 {
		t.Fatalf("unexpected choices: %+v", ask.Choices)
	}
	if name := got.CharacterName("c1"); name != "Guard" {
		t.Fatalf("character name: got %q", name)
	}
}

func TestConditionValueOmittedForPresence(t *testing.T) {
	b, err := json.Marshal(Condition{Flag: "met", Operator: OpIsSet})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(b), "value") {
		t.Fatalf("value should be omitted: %s", b)
	}
}

func TestUpgradeToConditional(t *testing.T) {
	n := DialogueNode{ID: "x", Type: NodeNPC, ConditionalBlocks: []ConditionalBlock{{ID: "b", Type: BlockIf}}}
	up := UpgradeToConditional(n)
	if up.Type != NodeConditional {
		t.Fatalf("type: got %s", up.Type)
	}
	if n.Type != NodeNPC {
		t.Fatalf("input mutated")
	}
	plain := DialogueNode{ID: "y", Type: NodeNPC}
	if UpgradeToConditional(plain).Type != NodeNPC {
		t.Fatalf("node without blocks must stay npc")
	}
	if IsImportedKind(up.Type) {
		t.Fatalf("conditional is not an imported kind")
	}
}
