/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package yarn

import "fmt"

// DiagnosticKind classifies a problem found while importing a script.
type DiagnosticKind int

const (
	// MalformedNodeBlock: a block without a title or without the --- separator. The block is skipped.
	MalformedNodeBlock DiagnosticKind = iota + 1
	// UnrecognizedConditionClause: a condition clause matching no known form. The clause is omitted.
	UnrecognizedConditionClause
	// EmptyDocument: no node blocks were found.
	EmptyDocument
	// UnclosedConditional: a conditional chain reached the end of its node without <<endif>>. The open arm is kept.
	UnclosedConditional
	// UnexpectedDirective: <<elseif>>, <<else>>, <<endif>> or a nested <<if>> outside a matching chain.
	UnexpectedDirective
	// DuplicateNode: a second block reused an earlier title. The later block is skipped.
	DuplicateNode
)

func (k DiagnosticKind) String() string {
	switch k {
	case MalformedNodeBlock:
		return "malformed_node_block"
	case UnrecognizedConditionClause:
		return "unrecognized_condition_clause"
	case EmptyDocument:
		return "empty_document"
	case UnclosedConditional:
		return "unclosed_conditional"
	case UnexpectedDirective:
		return "unexpected_directive"
	case DuplicateNode:
		return "duplicate_node"
	default:
		return fmt.Sprintf("diagnostic(%d)", int(k))
	}
}

// Diagnostic reports a recoverable problem in the imported text.
// BlockIndex is 0-based over non-blank node blocks, Line is the 1-based source line
// (0 when not tied to a line). NodeID is empty when the block had no usable title.
type Diagnostic struct {
	Kind       DiagnosticKind
	BlockIndex int
	NodeID     string
	Line       int
	Raw        string
	Message    string
}

func (d Diagnostic) Error() string {
	loc := ""
	switch {
	case d.NodeID != "" && d.Line > 0:
		loc = fmt.Sprintf("node %q line %d: ", d.NodeID, d.Line)
	case d.NodeID != "":
		loc = fmt.Sprintf("node %q: ", d.NodeID)
	case d.Line > 0:
		loc = fmt.Sprintf("block %d line %d: ", d.BlockIndex, d.Line)
	}
	if d.Raw != "" {
		return fmt.Sprintf("%s%s: %s (%q)", loc, d.Kind, d.Message, d.Raw)
	}
	return fmt.Sprintf("%s%s: %s", loc, d.Kind, d.Message)
}
