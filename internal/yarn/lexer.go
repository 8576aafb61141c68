/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package yarn

import (
	"regexp"
	"strings"
)

// LineKind classifies a single non-empty script line.
// Content:  any line not matching another kind
// Speaker:  NAME: text (not starting with "<<")
// Choice:   -> text
// Jump:     <<jump target>>
// Set:      <<set $var OP value>>
// If/ElseIf/Else/EndIf: conditional directives, alone on their line

type LineKind int

const (
	LineContent LineKind = iota
	LineSpeaker
	LineChoice
	LineJump
	LineSet
	LineIf
	LineElseIf
	LineElse
	LineEndIf
)

func (k LineKind) String() string {
	switch k {
	case LineContent:
		return "content"
	case LineSpeaker:
		return "speaker"
	case LineChoice:
		return "choice"
	case LineJump:
		return "jump"
	case LineSet:
		return "set"
	case LineIf:
		return "if"
	case LineElseIf:
		return "elseif"
	case LineElse:
		return "else"
	case LineEndIf:
		return "endif"
	default:
		return "unknown"
	}
}

// SetCommand is a parsed <<set $Var Op Value>> directive.
type SetCommand struct {
	Var   string
	Op    string
	Value string
}

func (s SetCommand) String() string {
	return "<<set $" + s.Var + " " + s.Op + " " + s.Value + ">>"
}

// IsBooleanDefault reports whether the command is the plain `= true` form that
// the serializer derives from setFlags.
func (s SetCommand) IsBooleanDefault() bool {
	return s.Op == "=" && s.Value == "true"
}

// Token is a classified script line.
// Text holds the payload: choice text, content, speaker text, condition
// expression or jump target depending on Kind.
type Token struct {
	Kind    LineKind
	Line    int // 1-based line number in the source document; 0 when unknown
	Raw     string
	Text    string
	Speaker string
	Set     SetCommand
}

var (
	reJump   = regexp.MustCompile(`^<<jump\s+(.+?)\s*>>$`)
	reSet    = regexp.MustCompile(`^<<set\s+\$(\w+)\s*([+\-*/=]+)\s*(.+?)\s*>>$`)
	reIf     = regexp.MustCompile(`^<<if\s+(.+?)\s*>>$`)
	reElseIf = regexp.MustCompile(`^<<elseif\s+(.+?)\s*>>$`)
	reTitle  = regexp.MustCompile(`^title:\s*(.*)$`)

	// reSetAnywhere finds set commands embedded in free-form text.
	reSetAnywhere = regexp.MustCompile(`<<set\s+\$(\w+)\s*([+\-*/=]+)\s*([^>]+?)\s*>>`)
)

// Classify classifies one line. The line is trimmed first; an empty line
// classifies as empty content.
func Classify(line string) Token {
	raw := strings.TrimSpace(line)
	t := Token{Kind: LineContent, Raw: raw, Text: raw}

	switch {
	case strings.HasPrefix(raw, "->"):
		t.Kind = LineChoice
		t.Text = strings.TrimSpace(strings.TrimPrefix(raw, "->"))
		return t
	case raw == "<<else>>":
		t.Kind = LineElse
		t.Text = ""
		return t
	case raw == "<<endif>>":
		t.Kind = LineEndIf
		t.Text = ""
		return t
	}
	if strings.HasPrefix(raw, "<<") {
		if m := reJump.FindStringSubmatch(raw); m != nil {
			t.Kind = LineJump
			t.Text = m[1]
		} else if m := reSet.FindStringSubmatch(raw); m != nil {
			t.Kind = LineSet
			t.Set = SetCommand{Var: m[1], Op: m[2], Value: m[3]}
		} else if m := reElseIf.FindStringSubmatch(raw); m != nil {
			t.Kind = LineElseIf
			t.Text = m[1]
		} else if m := reIf.FindStringSubmatch(raw); m != nil {
			t.Kind = LineIf
			t.Text = m[1]
		}
		return t
	}
	if i := strings.Index(raw, ":"); i > 0 {
		if speaker := strings.TrimSpace(raw[:i]); speaker != "" {
			t.Kind = LineSpeaker
			t.Speaker = speaker
			t.Text = strings.TrimSpace(raw[i+1:])
		}
	}
	return t
}

// SourceLine is a raw line with its 1-based position in the document.
type SourceLine struct {
	No   int
	Text string
}

// Block is one "===" separated node block split into header and body.
// Index counts non-blank blocks from 0. HasSeparator is false when no "---"
// line was found; Body is then empty.
type Block struct {
	Index        int
	Title        string
	StartLine    int
	HasSeparator bool
	Body         []SourceLine
}

// SplitBlocks splits a script into node blocks on lines consisting of "===" and
// separates each block's header from its body at the first "---" line.
// Blocks containing only blank lines are dropped.
func SplitBlocks(text string) []Block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var raw [][]SourceLine
	var cur []SourceLine
	for i, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "===" {
			raw = append(raw, cur)
			cur = nil
			continue
		}
		cur = append(cur, SourceLine{No: i + 1, Text: line})
	}
	raw = append(raw, cur)

	var blocks []Block
	for _, lines := range raw {
		if isBlank(lines) {
			continue
		}
		b := Block{Index: len(blocks), StartLine: firstNonBlank(lines)}
		header := lines
		for i, l := range lines {
			if strings.TrimSpace(l.Text) == "---" {
				header = lines[:i]
				b.HasSeparator = true
				b.Body = lines[i+1:]
				break
			}
		}
		for _, l := range header {
			if m := reTitle.FindStringSubmatch(strings.TrimSpace(l.Text)); m != nil {
				b.Title = strings.TrimSpace(m[1])
				break
			}
		}
		blocks = append(blocks, b)
	}
	return blocks
}

// Tokenize classifies the non-empty lines of a block body.
func Tokenize(lines []SourceLine) []Token {
	out := make([]Token, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l.Text) == "" {
			continue
		}
		t := Classify(l.Text)
		t.Line = l.No
		out = append(out, t)
	}
	return out
}

func isBlank(lines []SourceLine) bool {
	for _, l := range lines {
		if strings.TrimSpace(l.Text) != "" {
			return false
		}
	}
	return true
}

func firstNonBlank(lines []SourceLine) int {
	for _, l := range lines {
		if strings.TrimSpace(l.Text) != "" {
			return l.No
		}
	}
	return 0
}
