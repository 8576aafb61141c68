/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package yarn

import (
	"strings"

	"yarnweave/internal/domain"
)

// Placeholder grid used for imported nodes until the layout subsystem places them.
const (
	gridColumns = 3
	gridStepX   = 250
	gridStepY   = 180
	gridOffsetY = 50
)

// placeholderPosition returns the default coordinates for the block at idx.
func placeholderPosition(idx int) (x, y float64) {
	return float64((idx % gridColumns) * gridStepX), float64(gridOffsetY + (idx/gridColumns)*gridStepY)
}

// node finalizes the accumulated block data. The node is a player node when any
// choice was collected and an npc node otherwise.
func (b *nodeBuilder) node() domain.DialogueNode {
	n := domain.DialogueNode{
		ID:                b.id,
		Type:              domain.NodeNPC,
		Content:           strings.Join(b.content, "\n"),
		Speaker:           b.speaker,
		SetFlags:          b.setFlags,
		NextNodeID:        b.next,
		Choices:           b.choices,
		ConditionalBlocks: b.arms,
	}
	if len(b.choices) > 0 {
		n.Type = domain.NodePlayer
	}
	return n
}

// assemble parses every block and collects the nodes in source order together
// with the diagnostics of the whole document.
func assemble(blocks []Block) (domain.NodeMap, string, []Diagnostic) {
	var nodes domain.NodeMap
	var diags []Diagnostic
	start := ""
	for _, blk := range blocks {
		switch {
		case blk.Title == "":
			diags = append(diags, Diagnostic{Kind: MalformedNodeBlock, BlockIndex: blk.Index, Line: blk.StartLine, Message: "missing title: header; block skipped"})
			continue
		case !blk.HasSeparator:
			diags = append(diags, Diagnostic{Kind: MalformedNodeBlock, BlockIndex: blk.Index, NodeID: blk.Title, Line: blk.StartLine, Message: "missing --- separator; block skipped"})
			continue
		case nodes.Has(blk.Title):
			diags = append(diags, Diagnostic{Kind: DuplicateNode, BlockIndex: blk.Index, NodeID: blk.Title, Line: blk.StartLine, Message: "title already used; block skipped"})
			continue
		}

		b := parseBody(blk.Title, Tokenize(blk.Body))
		n := b.node()
		n.X, n.Y = placeholderPosition(blk.Index)
		nodes.Put(n)
		if start == "" {
			start = n.ID
		}
		for _, d := range b.diags {
			d.BlockIndex = blk.Index
			d.NodeID = blk.Title
			diags = append(diags, d)
		}
	}
	return nodes, start, diags
}
