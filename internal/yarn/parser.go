/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package yarn

import (
	"slices"
	"strconv"
	"strings"

	"yarnweave/internal/domain"
)

// parseState is one of idleState, blockState or guardState.
type parseState interface{ isParseState() }

// idleState: outside any conditional.
type idleState struct{}

// blockState: inside a dialogue conditional chain; arm is the arm being filled.
type blockState struct{ arm partialArm }

// guardState: inside an <<if>> that guards the choices up to <<endif>>.
// arms counts the directives seen in the chain so <<else>> knows whether the
// guard can be negated exactly.
type guardState struct {
	conds []domain.Condition
	arms  int
}

func (idleState) isParseState()  {}
func (blockState) isParseState() {}
func (guardState) isParseState() {}

// partialArm is an arm being filled. flags are the variables its <<set>> lines
// assign; they reach the node only if the arm is kept. A dropped arm is parsed
// for diagnostics but never added to the node.
type partialArm struct {
	typ     domain.BlockType
	cond    []domain.Condition
	lines   []string
	flags   []string
	speaker string
	next    string
	line    int
	dropped bool
}

func (a partialArm) withLine(s string) partialArm {
	a.lines = append(slices.Clone(a.lines), s)
	return a
}

// artifact is a completed piece of node data produced by a step.
type artifact interface{ isArtifact() }

type contentArtifact struct{ speaker, text string }
type choiceArtifact struct {
	text  string
	conds []domain.Condition
}
type jumpArtifact struct{ target string }
type setArtifact struct{ cmd SetCommand }
type armArtifact struct{ arm partialArm }

func (contentArtifact) isArtifact() {}
func (choiceArtifact) isArtifact()  {}
func (jumpArtifact) isArtifact()    {}
func (setArtifact) isArtifact()     {}
func (armArtifact) isArtifact()     {}

// stepView is the read-only node context a step may consult.
type stepView struct {
	hasChoices bool
	next       *Token
}

// step consumes one token and returns the next state, at most one artifact and
// any diagnostics raised by the line.
func step(st parseState, tok Token, view stepView) (parseState, artifact, []Diagnostic) {
	switch s := st.(type) {
	case blockState:
		return stepBlock(s, tok, view)
	case guardState:
		return stepGuard(s, tok, view)
	default:
		return stepIdle(tok, view)
	}
}

func stepIdle(tok Token, view stepView) (parseState, artifact, []Diagnostic) {
	switch tok.Kind {
	case LineChoice:
		return idleState{}, choiceArtifact{text: tok.Text}, nil
	case LineJump:
		return idleState{}, jumpArtifact{target: tok.Text}, nil
	case LineSet:
		return idleState{}, setArtifact{cmd: tok.Set}, nil
	case LineIf:
		conds, diags := conditionOf(tok)
		if guardsChoice(view) {
			return guardState{conds: conds, arms: 1}, nil, diags
		}
		return blockState{arm: partialArm{typ: domain.BlockIf, cond: conds, line: tok.Line}}, nil, diags
	case LineElseIf, LineElse, LineEndIf:
		return idleState{}, nil, []Diagnostic{unexpected(tok, "no open conditional")}
	case LineSpeaker:
		return idleState{}, contentArtifact{speaker: tok.Speaker, text: tok.Text}, nil
	default:
		return idleState{}, contentArtifact{text: tok.Text}, nil
	}
}

// guardsChoice decides whether an <<if>> guards choices rather than opening a
// dialogue conditional: it does when the node already has choices, or when the
// line right after the <<if>> is a choice.
func guardsChoice(view stepView) bool {
	return view.hasChoices || (view.next != nil && view.next.Kind == LineChoice)
}

func stepBlock(s blockState, tok Token, view stepView) (parseState, artifact, []Diagnostic) {
	arm := s.arm
	switch tok.Kind {
	case LineContent:
		return blockState{arm: arm.withLine(tok.Text)}, nil, nil
	case LineSpeaker:
		arm.speaker = tok.Speaker
		if tok.Text != "" {
			arm = arm.withLine(tok.Text)
		}
		return blockState{arm: arm}, nil, nil
	case LineChoice:
		return s, choiceArtifact{text: tok.Text}, nil
	case LineJump:
		if view.hasChoices {
			return s, jumpArtifact{target: tok.Text}, nil
		}
		arm.next = tok.Text
		return blockState{arm: arm}, nil, nil
	case LineSet:
		if view.hasChoices {
			return s, setArtifact{cmd: tok.Set}, nil
		}
		arm = arm.withLine(tok.Set.String())
		arm.flags = addFlag(slices.Clone(arm.flags), tok.Set.Var)
		return blockState{arm: arm}, nil, nil
	case LineIf:
		return s, nil, []Diagnostic{unexpected(tok, "nested conditionals are not supported; line ignored")}
	case LineElseIf:
		conds, diags := conditionOf(tok)
		afterElse := arm.typ == domain.BlockElse || arm.dropped
		if afterElse {
			diags = append(diags, unexpected(tok, "elseif after else; arm dropped"))
		}
		return blockState{arm: partialArm{typ: domain.BlockElseIf, cond: conds, line: tok.Line, dropped: afterElse}}, armArtifact{arm: arm}, diags
	case LineElse:
		var diags []Diagnostic
		afterElse := arm.typ == domain.BlockElse || arm.dropped
		if afterElse {
			diags = append(diags, unexpected(tok, "second else in chain; arm dropped"))
		}
		return blockState{arm: partialArm{typ: domain.BlockElse, line: tok.Line, dropped: afterElse}}, armArtifact{arm: arm}, diags
	case LineEndIf:
		return idleState{}, armArtifact{arm: arm}, nil
	default:
		return s, nil, nil
	}
}

func stepGuard(s guardState, tok Token, view stepView) (parseState, artifact, []Diagnostic) {
	switch tok.Kind {
	case LineChoice:
		return s, choiceArtifact{text: tok.Text, conds: slices.Clone(s.conds)}, nil
	case LineEndIf:
		return idleState{}, nil, nil
	case LineIf:
		conds, diags := conditionOf(tok)
		diags = append(diags, unexpected(tok, "nested conditionals are not supported; guard replaced"))
		return guardState{conds: conds, arms: 1}, nil, diags
	case LineElseIf:
		conds, diags := conditionOf(tok)
		return guardState{conds: conds, arms: s.arms + 1}, nil, diags
	case LineElse:
		if s.arms == 1 && len(s.conds) == 1 {
			return guardState{conds: []domain.Condition{negate(s.conds[0])}, arms: s.arms + 1}, nil, nil
		}
		return guardState{arms: s.arms + 1}, nil, []Diagnostic{unexpected(tok, "else guard cannot be expressed as conditions; following choices are unguarded")}
	case LineJump:
		return s, jumpArtifact{target: tok.Text}, nil
	case LineSet:
		return s, setArtifact{cmd: tok.Set}, nil
	case LineSpeaker:
		return s, contentArtifact{speaker: tok.Speaker, text: tok.Text}, nil
	default:
		return s, contentArtifact{text: tok.Text}, nil
	}
}

// finish flushes the terminal state at the end of a node body.
func finish(st parseState, lastLine int) (artifact, []Diagnostic) {
	switch s := st.(type) {
	case blockState:
		return armArtifact{arm: s.arm}, []Diagnostic{{
			Kind:    UnclosedConditional,
			Line:    s.arm.line,
			Message: "missing <<endif>>; open arm kept",
		}}
	case guardState:
		return nil, []Diagnostic{{
			Kind:    UnclosedConditional,
			Line:    lastLine,
			Message: "missing <<endif>> after guarded choices",
		}}
	default:
		return nil, nil
	}
}

func conditionOf(tok Token) ([]domain.Condition, []Diagnostic) {
	conds, rejected := parseConditionClauses(tok.Text)
	var diags []Diagnostic
	for _, r := range rejected {
		diags = append(diags, Diagnostic{
			Kind:    UnrecognizedConditionClause,
			Line:    tok.Line,
			Raw:     r,
			Message: "clause omitted",
		})
	}
	return conds, diags
}

func unexpected(tok Token, msg string) Diagnostic {
	return Diagnostic{Kind: UnexpectedDirective, Line: tok.Line, Raw: tok.Raw, Message: msg}
}

var negations = map[domain.Operator]domain.Operator{
	domain.OpIsSet:        domain.OpIsNotSet,
	domain.OpIsNotSet:     domain.OpIsSet,
	domain.OpEquals:       domain.OpNotEquals,
	domain.OpNotEquals:    domain.OpEquals,
	domain.OpGreaterThan:  domain.OpLessEqual,
	domain.OpLessEqual:    domain.OpGreaterThan,
	domain.OpLessThan:     domain.OpGreaterEqual,
	domain.OpGreaterEqual: domain.OpLessThan,
}

func negate(c domain.Condition) domain.Condition {
	if op, ok := negations[c.Operator]; ok {
		c.Operator = op
	}
	return c
}

// nodeBuilder accumulates the artifacts of one node block.
type nodeBuilder struct {
	id       string
	content  []string
	speaker  string
	next     string
	setFlags []string
	choices  []domain.Choice
	arms     []domain.ConditionalBlock
	diags    []Diagnostic

	// skipChain is set while the arms of a second conditional chain arrive.
	skipChain bool
}

func (b *nodeBuilder) apply(a artifact) {
	switch x := a.(type) {
	case contentArtifact:
		if x.speaker != "" {
			b.speaker = x.speaker
		}
		if x.text != "" {
			b.content = append(b.content, x.text)
		}
	case choiceArtifact:
		b.choices = append(b.choices, domain.Choice{
			ID:         b.id + "_choice_" + strconv.Itoa(len(b.choices)),
			Text:       x.text,
			Conditions: x.conds,
		})
	case jumpArtifact:
		if n := len(b.choices); n > 0 {
			b.choices[n-1].NextNodeID = x.target
		} else {
			b.next = x.target
		}
	case setArtifact:
		if n := len(b.choices); n > 0 {
			c := &b.choices[n-1]
			if !x.cmd.IsBooleanDefault() {
				c.Text = strings.TrimSpace(c.Text + " " + x.cmd.String())
			}
			c.SetFlags = addFlag(c.SetFlags, x.cmd.Var)
			return
		}
		if !x.cmd.IsBooleanDefault() {
			b.content = append(b.content, x.cmd.String())
		}
		b.setFlags = addFlag(b.setFlags, x.cmd.Var)
	case armArtifact:
		if x.arm.typ == domain.BlockIf {
			b.skipChain = len(b.arms) > 0
			if b.skipChain {
				b.diags = append(b.diags, Diagnostic{
					Kind:    UnexpectedDirective,
					Line:    x.arm.line,
					Message: "node already has a conditional chain; chain dropped",
				})
			}
		}
		if b.skipChain || x.arm.dropped {
			return
		}
		for _, f := range x.arm.flags {
			b.setFlags = addFlag(b.setFlags, f)
		}
		b.arms = append(b.arms, domain.ConditionalBlock{
			ID:         b.id + "_block_" + strconv.Itoa(len(b.arms)),
			Type:       x.arm.typ,
			Condition:  x.arm.cond,
			Content:    strings.Join(x.arm.lines, "\n"),
			Speaker:    x.arm.speaker,
			NextNodeID: x.arm.next,
		})
	}
}

// parseBody runs the state machine over the tokens of one node body.
func parseBody(id string, toks []Token) *nodeBuilder {
	b := &nodeBuilder{id: id}
	var st parseState = idleState{}
	for i, tok := range toks {
		view := stepView{hasChoices: len(b.choices) > 0}
		if i+1 < len(toks) {
			view.next = &toks[i+1]
		}
		next, art, diags := step(st, tok, view)
		b.diags = append(b.diags, diags...)
		if art != nil {
			b.apply(art)
		}
		st = next
	}
	lastLine := 0
	if len(toks) > 0 {
		lastLine = toks[len(toks)-1].Line
	}
	art, diags := finish(st, lastLine)
	b.diags = append(b.diags, diags...)
	if art != nil {
		b.apply(art)
	}
	return b
}

func addFlag(flags []string, name string) []string {
	if slices.Contains(flags, name) {
		return flags
	}
	return append(flags, name)
}
