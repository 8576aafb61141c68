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
	"errors"
	"fmt"
)

// ErrNoStartNode is returned by Validate when the start node id does not key a node.
var ErrNoStartNode = errors.New("start node does not exist")

// Validate checks the structural invariants of the tree: the start node exists
// (unless the tree is empty), every conditional chain starts with an if arm and
// has at most one else arm, placed last, and every condition is well formed.
func (t DialogueTree) Validate() error {
	var errs []error
	if t.Nodes.Len() > 0 && !t.Nodes.Has(t.StartNodeID) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrNoStartNode, t.StartNodeID))
	}
	for id, n := range t.Nodes.All() {
		if err := validateBlocks(n.ConditionalBlocks); err != nil {
			errs = append(errs, fmt.Errorf("node %q: %w", id, err))
		}
		for _, c := range n.Choices {
			if err := validateConditions(c.Conditions); err != nil {
				errs = append(errs, fmt.Errorf("node %q choice %q: %w", id, c.ID, err))
			}
		}
		for _, b := range n.ConditionalBlocks {
			if err := validateConditions(b.Condition); err != nil {
				errs = append(errs, fmt.Errorf("node %q arm %q: %w", id, b.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

// validateConditions checks that every clause names a flag, uses a known operator and
// carries a string or number value exactly when the operator is a comparison.
func validateConditions(conds []Condition) error {
	for i, c := range conds {
		switch {
		case c.Flag == "":
			return fmt.Errorf("condition %d: empty flag", i)
		case c.Operator.IsComparison():
			if !isConditionValue(c.Value) {
				return fmt.Errorf("condition %d: %s on %q needs a string or number value, got %T", i, c.Operator, c.Flag, c.Value)
			}
		case c.Operator == OpIsSet || c.Operator == OpIsNotSet:
			if c.Value != nil {
				return fmt.Errorf("condition %d: %s on %q takes no value", i, c.Operator, c.Flag)
			}
		default:
			return fmt.Errorf("condition %d: unknown operator %q", i, c.Operator)
		}
	}
	return nil
}

func isConditionValue(v any) bool {
	switch v.(type) {
	case string, float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}

func validateBlocks(blocks []ConditionalBlock) error {
	for i, b := range blocks {
		switch b.Type {
		case BlockIf:
			if i != 0 {
				return fmt.Errorf("arm %d: if must be the first arm", i)
			}
		case BlockElseIf:
			if i == 0 {
				return fmt.Errorf("arm %d: elseif cannot open a chain", i)
			}
		case BlockElse:
			if i == 0 {
				return fmt.Errorf("arm %d: else cannot open a chain", i)
			}
			if i != len(blocks)-1 {
				return fmt.Errorf("arm %d: else must be the last arm", i)
			}
		default:
			return fmt.Errorf("arm %d: unknown arm type %q", i, b.Type)
		}
	}
	return nil
}

// DanglingLinks lists "from -> to" pairs whose target is not a node of the tree.
func (t DialogueTree) DanglingLinks() []string {
	var out []string
	check := func(from, to string) {
		if to != "" && !t.Nodes.Has(to) {
			out = append(out, from+" -> "+to)
		}
	}
	for id, n := range t.Nodes.All() {
		check(id, n.NextNodeID)
		for _, c := range n.Choices {
			check(id, c.NextNodeID)
		}
		for _, b := range n.ConditionalBlocks {
			check(id, b.NextNodeID)
		}
	}
	return out
}
