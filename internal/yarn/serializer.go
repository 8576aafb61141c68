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

const indent = "    "

// Export renders the tree as script text, one node block per node in insertion
// order. An empty tree yields an empty string. Absent optional fields are
// omitted; Export never fails.
func Export(tree domain.DialogueTree) string {
	var w strings.Builder
	for _, n := range tree.Nodes.All() {
		writeNode(&w, n)
	}
	return w.String()
}

// ExportNode renders a single node block.
func ExportNode(n domain.DialogueNode) string {
	var w strings.Builder
	writeNode(&w, n)
	return w.String()
}

// writeNode emits, in order: spoken content and its embedded set commands,
// the conditional chain, boolean defaults for remaining setFlags, the node jump
// and finally the choices. The jump precedes the choices so it re-imports as the
// node's successor rather than the last choice's.
func writeNode(w *strings.Builder, n domain.DialogueNode) {
	w.WriteString("title: " + n.ID + "\n")
	w.WriteString("---\n")

	prose, cmds := extractSetCommands(n.Content)
	writeSpoken(w, "", n.Speaker, prose)
	embedded := map[string]bool{}
	for _, c := range cmds {
		w.WriteString(c.String() + "\n")
		embedded[c.Var] = true
	}

	for _, v := range writeBlocks(w, n.ConditionalBlocks) {
		embedded[v] = true
	}

	for _, f := range n.SetFlags {
		if !embedded[f] {
			w.WriteString(booleanDefault(f) + "\n")
		}
	}
	if n.NextNodeID != "" {
		w.WriteString("<<jump " + n.NextNodeID + ">>\n")
	}

	for _, c := range n.Choices {
		writeChoice(w, c)
	}

	w.WriteString("===\n\n")
}

// writeBlocks emits the conditional chain and returns the variables whose set
// commands were recovered from arm content.
func writeBlocks(w *strings.Builder, arms []domain.ConditionalBlock) []string {
	var vars []string
	open := false
	for i, a := range arms {
		switch {
		case i == 0 || a.Type == domain.BlockIf:
			if open {
				w.WriteString("<<endif>>\n")
			}
			w.WriteString("<<if " + conditionText(a.Condition) + ">>\n")
			open = true
		case a.Type == domain.BlockElseIf:
			w.WriteString("<<elseif " + conditionText(a.Condition) + ">>\n")
		default:
			w.WriteString("<<else>>\n")
		}
		prose, cmds := extractSetCommands(a.Content)
		writeSpoken(w, indent, a.Speaker, prose)
		for _, c := range cmds {
			w.WriteString(indent + c.String() + "\n")
			vars = append(vars, c.Var)
		}
		if a.NextNodeID != "" {
			w.WriteString(indent + "<<jump " + a.NextNodeID + ">>\n")
		}
	}
	if open {
		w.WriteString("<<endif>>\n")
	}
	return vars
}

func writeChoice(w *strings.Builder, c domain.Choice) {
	guarded := len(c.Conditions) > 0
	if guarded {
		w.WriteString("<<if " + conditionText(c.Conditions) + ">>\n")
	}
	text, cmds := stripSetCommands(c.Text)
	w.WriteString("-> " + text + "\n")
	embedded := map[string]bool{}
	for _, cmd := range cmds {
		w.WriteString(indent + cmd.String() + "\n")
		embedded[cmd.Var] = true
	}
	for _, f := range c.SetFlags {
		if !embedded[f] {
			w.WriteString(indent + booleanDefault(f) + "\n")
		}
	}
	if c.NextNodeID != "" {
		w.WriteString(indent + "<<jump " + c.NextNodeID + ">>\n")
	}
	if guarded {
		w.WriteString("<<endif>>\n")
	}
}

// writeSpoken emits prose lines, prefixing the first with the speaker.
func writeSpoken(w *strings.Builder, ind, speaker, prose string) {
	var lines []string
	if prose != "" {
		lines = strings.Split(prose, "\n")
	}
	if speaker != "" {
		if len(lines) == 0 {
			w.WriteString(ind + speaker + ":\n")
		} else {
			w.WriteString(ind + speaker + ": " + lines[0] + "\n")
			lines = lines[1:]
		}
	}
	for _, l := range lines {
		w.WriteString(ind + l + "\n")
	}
}

// conditionText formats a directive condition; an empty condition becomes the
// literal "true" so the directive stays well formed.
func conditionText(conds []domain.Condition) string {
	if s := FormatCondition(conds); s != "" {
		return s
	}
	return "true"
}

func booleanDefault(flag string) string {
	return SetCommand{Var: flag, Op: "=", Value: "true"}.String()
}

// extractSetCommands pulls embedded <<set>> commands out of free-form content.
// The remaining prose has trimmed, non-empty lines.
func extractSetCommands(content string) (string, []SetCommand) {
	cmds := findSetCommands(content)
	stripped := reSetAnywhere.ReplaceAllString(content, "")
	var lines []string
	for _, l := range strings.Split(stripped, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n"), cmds
}

// stripSetCommands removes embedded <<set>> commands from a choice text.
func stripSetCommands(text string) (string, []SetCommand) {
	cmds := findSetCommands(text)
	return strings.TrimSpace(reSetAnywhere.ReplaceAllString(text, "")), cmds
}

func findSetCommands(s string) []SetCommand {
	var cmds []SetCommand
	for _, m := range reSetAnywhere.FindAllStringSubmatch(s, -1) {
		cmds = append(cmds, SetCommand{Var: m[1], Op: m[2], Value: m[3]})
	}
	return cmds
}
