/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the dialogue-graph data model shared by the script converter,
// project storage and the shared library. The graph UI consumes the same shape
// through the JSON manifest.

// NodeType tags the variant of a DialogueNode.
type NodeType string

const (
	NodeNPC          NodeType = "npc"
	NodePlayer       NodeType = "player"
	NodeConditional  NodeType = "conditional"
	NodeStorylet     NodeType = "storylet"
	NodeStoryletPool NodeType = "storyletPool"
	NodeRandomizer   NodeType = "randomizer"
	NodeDetour       NodeType = "detour"
)

// IsImportedKind reports whether t belongs to the subset of node kinds the script
// importer produces. Richer kinds only come from the graph editor or from an
// explicit upgrade such as UpgradeToConditional.
func IsImportedKind(t NodeType) bool {
	return t == NodeNPC || t == NodePlayer
}

// Operator is a condition comparison or presence test.
type Operator string

const (
	OpIsSet        Operator = "is_set"
	OpIsNotSet     Operator = "is_not_set"
	OpEquals       Operator = "equals"
	OpNotEquals    Operator = "not_equals"
	OpGreaterThan  Operator = "greater_than"
	OpLessThan     Operator = "less_than"
	OpGreaterEqual Operator = "greater_equal"
	OpLessEqual    Operator = "less_equal"
)

// IsComparison reports whether the operator takes a value.
func (o Operator) IsComparison() bool {
	switch o {
	case OpEquals, OpNotEquals, OpGreaterThan, OpLessThan, OpGreaterEqual, OpLessEqual:
		return true
	default:
		return false
	}
}

// Condition tests a single flag.
// Value is either a string or a float64 and is nil for is_set/is_not_set.
type Condition struct {
	Flag     string   `json:"flag"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// BlockType is the arm kind of a conditional chain.
type BlockType string

const (
	BlockIf     BlockType = "if"
	BlockElseIf BlockType = "elseif"
	BlockElse   BlockType = "else"
)

// ConditionalBlock is one arm of an if/elseif/else chain.
type ConditionalBlock struct {
	ID         string      `json:"id"`
	Type       BlockType   `json:"type"`
	Condition  []Condition `json:"condition,omitempty"`
	Content    string      `json:"content"`
	Speaker    string      `json:"speaker,omitempty"`
	NextNodeID string      `json:"nextNodeId,omitempty"`
}

// Choice is a player-selectable branch.
// A nil Conditions slice means always available; an empty non-nil slice is a guard
// slot without conditions and behaves the same.
type Choice struct {
	ID         string      `json:"id"`
	Text       string      `json:"text"`
	NextNodeID string      `json:"nextNodeId,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	SetFlags   []string    `json:"setFlags,omitempty"`
}

// DialogueNode is a single node of the graph. Type selects which of the variant
// fields are meaningful: NextNodeID for npc and storylet-like nodes, Choices for
// player nodes, ConditionalBlocks for conditional nodes (and npc nodes produced by
// the importer).
type DialogueNode struct {
	ID                string             `json:"id"`
	Type              NodeType           `json:"type"`
	Content           string             `json:"content"`
	Speaker           string             `json:"speaker,omitempty"`
	CharacterID       string             `json:"characterId,omitempty"`
	SetFlags          []string           `json:"setFlags,omitempty"`
	NextNodeID        string             `json:"nextNodeId,omitempty"`
	Choices           []Choice           `json:"choices,omitempty"`
	ConditionalBlocks []ConditionalBlock `json:"conditionalBlocks,omitempty"`
	// Layout coordinates are owned by the layout subsystem.
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DialogueTree is a whole dialogue graph.
type DialogueTree struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	StartNodeID string  `json:"startNodeId"`
	Nodes       NodeMap `json:"nodes"`
}

// UpgradeToConditional returns a copy of n re-tagged as a conditional node when it
// carries conditional blocks. Other nodes are returned unchanged.
func UpgradeToConditional(n DialogueNode) DialogueNode {
	if len(n.ConditionalBlocks) == 0 || n.Type == NodeConditional {
		return n
	}
	out := n
	out.Type = NodeConditional
	out.ConditionalBlocks = append([]ConditionalBlock(nil), n.ConditionalBlocks...)
	return out
}
