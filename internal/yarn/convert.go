/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package yarn converts between dialogue trees and a Yarn-like script notation.
//
// Supported syntax:
//   - Node blocks separated by a line "===", each with a "title: <id>" header,
//     a "---" line and a body.
//   - Body lines: "-> text" choices, "<<jump id>>", "<<set $var OP value>>",
//     "<<if cond>>", "<<elseif cond>>", "<<else>>", "<<endif>>",
//     "Speaker: text" and plain content.
//   - Conditions: clauses joined by "and", each "$flag", "not $flag" or
//     "$flag OP value" with OP one of == != > < >= <=.
//
// An <<if>> guards the choices up to its <<endif>> when the node already has
// choices or when the next line is a choice; otherwise it opens a dialogue
// conditional whose arms become ConditionalBlocks.
//
// Import only produces npc and player nodes. Export accepts every node kind.
// Both are pure and safe for concurrent use.
package yarn

import (
	"errors"

	"github.com/google/uuid"

	"yarnweave/internal/domain"
)

// ImportResult is the best-effort tree together with everything that was
// skipped or repaired on the way.
type ImportResult struct {
	Tree        domain.DialogueTree
	Diagnostics []Diagnostic
}

// Empty reports whether no node was imported. StartNodeID is empty in that case.
func (r ImportResult) Empty() bool { return r.Tree.Nodes.Len() == 0 }

// Err joins all diagnostics into one error, or returns nil when there are none.
func (r ImportResult) Err() error {
	errs := make([]error, 0, len(r.Diagnostics))
	for _, d := range r.Diagnostics {
		errs = append(errs, d)
	}
	return errors.Join(errs...)
}

// Has reports whether a diagnostic of the given kind was raised.
func (r ImportResult) Has(kind DiagnosticKind) bool {
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

// newTreeID generates ids for imported trees.
var newTreeID = uuid.NewString

// Import parses script text into a dialogue tree titled title.
// The start node is the first node in source order.
func Import(text, title string) ImportResult {
	nodes, start, diags := assemble(SplitBlocks(text))
	res := ImportResult{
		Tree: domain.DialogueTree{
			ID:          newTreeID(),
			Title:       title,
			StartNodeID: start,
			Nodes:       nodes,
		},
		Diagnostics: diags,
	}
	if nodes.Len() == 0 {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: EmptyDocument, Message: "no node blocks found"})
	}
	return res
}
