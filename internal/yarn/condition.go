/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package yarn

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"yarnweave/internal/domain"
)

var (
	reNotClause     = regexp.MustCompile(`^not\s+\$(\w+)$`)
	reCompareClause = regexp.MustCompile(`^\$(\w+)\s*(==|!=|>=|<=|>|<)\s*(.+)$`)
	reFlagClause    = regexp.MustCompile(`^\$(\w+)$`)
	reNumber        = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?$`)
)

var symbolOperators = map[string]domain.Operator{
	"==": domain.OpEquals,
	"!=": domain.OpNotEquals,
	">=": domain.OpGreaterEqual,
	"<=": domain.OpLessEqual,
	">":  domain.OpGreaterThan,
	"<":  domain.OpLessThan,
}

var operatorSymbols = map[domain.Operator]string{
	domain.OpEquals:       "==",
	domain.OpNotEquals:    "!=",
	domain.OpGreaterEqual: ">=",
	domain.OpLessEqual:    "<=",
	domain.OpGreaterThan:  ">",
	domain.OpLessThan:     "<",
}

// ParseCondition parses a condition expression such as
// `$gold >= 100 and not $banned` into its clauses.
// Clauses that match no known form are dropped; use Import to have them reported.
func ParseCondition(text string) []domain.Condition {
	conds, _ := parseConditionClauses(text)
	return conds
}

// parseConditionClauses returns the parsed clauses and the raw text of every
// clause that could not be recognized.
func parseConditionClauses(text string) ([]domain.Condition, []string) {
	var conds []domain.Condition
	var rejected []string
	for _, clause := range splitClauses(text) {
		if m := reNotClause.FindStringSubmatch(clause); m != nil {
			conds = append(conds, domain.Condition{Flag: m[1], Operator: domain.OpIsNotSet})
			continue
		}
		if m := reCompareClause.FindStringSubmatch(clause); m != nil {
			conds = append(conds, domain.Condition{Flag: m[1], Operator: symbolOperators[m[2]], Value: parseValue(m[3])})
			continue
		}
		if m := reFlagClause.FindStringSubmatch(clause); m != nil {
			conds = append(conds, domain.Condition{Flag: m[1], Operator: domain.OpIsSet})
			continue
		}
		rejected = append(rejected, clause)
	}
	return conds, rejected
}

// splitClauses splits on the word "and" (any case) surrounded by whitespace,
// ignoring occurrences inside double quotes.
func splitClauses(text string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(text); {
		c := text[i]
		if c == '"' {
			inQuote = !inQuote
		}
		if !inQuote && isSpace(c) {
			j := i
			for j < len(text) && isSpace(text[j]) {
				j++
			}
			if j+4 <= len(text) && strings.EqualFold(text[j:j+3], "and") && isSpace(text[j+3]) {
				out = append(out, cur.String())
				cur.Reset()
				i = j + 3
				continue
			}
		}
		cur.WriteByte(c)
		i++
	}
	out = append(out, cur.String())

	clauses := out[:0]
	for _, s := range out {
		if s = strings.TrimSpace(s); s != "" {
			clauses = append(clauses, s)
		}
	}
	return clauses
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' }

// parseValue de-quotes double-quoted strings, converts numeric literals to float64
// and keeps anything else as a bare string.
func parseValue(raw string) any {
	v := strings.TrimSpace(raw)
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	if reNumber.MatchString(v) {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return v
}

// FormatCondition renders clauses joined with " and ". It is the inverse of
// ParseCondition: string values are quoted, numbers are not.
func FormatCondition(conds []domain.Condition) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		parts = append(parts, formatClause(c))
	}
	return strings.Join(parts, " and ")
}

func formatClause(c domain.Condition) string {
	switch c.Operator {
	case domain.OpIsNotSet:
		return "not $" + c.Flag
	case domain.OpIsSet:
		return "$" + c.Flag
	}
	sym, ok := operatorSymbols[c.Operator]
	if !ok {
		return "$" + c.Flag
	}
	return "$" + c.Flag + " " + sym + " " + formatValue(c.Value)
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return `""`
	case string:
		return `"` + x + `"`
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case json.Number:
		return x.String()
	case bool:
		// Not a model value; quoted so it re-imports as the same string rather than
		// changing type silently. Validate reports it.
		return strconv.Quote(strconv.FormatBool(x))
	default:
		return `"` + fmt.Sprint(x) + `"`
	}
}
