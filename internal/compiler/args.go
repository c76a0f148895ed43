package compiler

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// reference is an unresolved back-reference to another step's output.
type reference int

func (r reference) String() string { return "$" + strconv.Itoa(int(r)) }

var referencePattern = regexp.MustCompile(`^\$\{?(\d+)\}?$`)

func asReference(s string) (reference, bool) {
	m := referencePattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return reference(n), true
}

// parseArgs splits argument text on top-level commas and evaluates each piece
// as a literal. Empty text yields no arguments. As in a call expression, a
// single trailing comma is allowed and any other empty argument is an error.
func parseArgs(text string) ([]any, error) {
	tokens, err := splitArgs(text)
	if err != nil {
		return nil, err
	}
	args := make([]any, 0, len(tokens))
	for _, tok := range tokens {
		args = append(args, evalLiteral(tok))
	}
	return args, nil
}

func splitArgs(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var (
		tokens []string
		cur    strings.Builder
		quote  rune
		escape bool
		stack  []rune
	)
	closers := map[rune]rune{'[': ']', '{': '}', '(': ')'}
	for _, r := range text {
		if quote != 0 {
			cur.WriteRune(r)
			switch {
			case escape:
				escape = false
			case r == '\\':
				escape = true
			case r == quote:
				quote = 0
			}
			continue
		}
		switch r {
		case '"', '\'':
			quote = r
		case '[', '{', '(':
			stack = append(stack, closers[r])
		case ']', '}', ')':
			if len(stack) > 0 && stack[len(stack)-1] == r {
				stack = stack[:len(stack)-1]
			}
		case ',':
			if len(stack) == 0 {
				tok := strings.TrimSpace(cur.String())
				if tok == "" {
					return nil, fmt.Errorf("empty argument %d in %q", len(tokens)+1, text)
				}
				tokens = append(tokens, tok)
				cur.Reset()
				continue
			}
		}
		cur.WriteRune(r)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in %q", text)
	}
	if last := strings.TrimSpace(cur.String()); last != "" {
		tokens = append(tokens, last)
	}
	return tokens, nil
}

func evalLiteral(tok string) any {
	if tok == "" {
		return ""
	}
	if s, ok := unquote(tok); ok {
		if ref, isRef := asReference(s); isRef {
			return ref
		}
		return s
	}
	if ref, ok := asReference(tok); ok {
		return ref
	}
	switch tok {
	case "true", "True":
		return true
	case "false", "False":
		return false
	case "None", "null":
		return nil
	}
	if looksNumeric(tok) {
		if n, err := strconv.ParseInt(tok, 10, 64); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(tok, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f
		}
	}
	if tok[0] == '[' || tok[0] == '{' {
		var doc yaml.Node
		if err := yaml.Unmarshal([]byte(bracedReferencesToPlain(tok)), &doc); err == nil && len(doc.Content) == 1 {
			if v, err := literalFromNode(doc.Content[0]); err == nil {
				return v
			}
		}
	}
	return tok
}

func looksNumeric(tok string) bool {
	c := tok[0]
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func unquote(tok string) (string, bool) {
	if len(tok) < 2 {
		return "", false
	}
	q := tok[0]
	if (q != '"' && q != '\'') || tok[len(tok)-1] != q {
		return "", false
	}
	if q == '"' {
		if s, err := strconv.Unquote(tok); err == nil {
			return s, true
		}
	}
	body := tok[1 : len(tok)-1]
	var b strings.Builder
	escape := false
	for _, r := range body {
		if escape {
			switch r {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(r)
			}
			escape = false
			continue
		}
		if r == '\\' {
			escape = true
			continue
		}
		b.WriteRune(r)
	}
	return b.String(), true
}

var bracedReference = regexp.MustCompile(`\$\{(\d+)\}`)

// bracedReferencesToPlain rewrites unquoted ${N} as $N so flow collections
// still parse; braces are flow indicators there.
func bracedReferencesToPlain(text string) string {
	var b strings.Builder
	var quote byte
	start := 0
	flush := func(end int) {
		b.WriteString(bracedReference.ReplaceAllString(text[start:end], "$$$1"))
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if quote == 0 && (c == '"' || c == '\'') {
			flush(i)
			start = i
			quote = c
			continue
		}
		if quote != 0 && c == '\\' {
			i++
			continue
		}
		if quote != 0 && c == quote {
			b.WriteString(text[start : i+1])
			start = i + 1
			quote = 0
		}
	}
	if quote != 0 {
		b.WriteString(text[start:])
	} else {
		flush(len(text))
	}
	return b.String()
}

// literalFromNode converts a flow collection into lists, objects, strings,
// numbers, booleans and nil. Scalars YAML would read as anything else, such
// as timestamps or .inf, keep their source text.
func literalFromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := literalFromNode(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := literalFromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	case yaml.ScalarNode:
		return scalarLiteral(n), nil
	default:
		return nil, fmt.Errorf("unsupported literal at line %d", n.Line)
	}
}

func scalarLiteral(n *yaml.Node) any {
	if ref, ok := asReference(n.Value); ok {
		return ref
	}
	if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0 {
		return n.Value
	}
	switch n.ShortTag() {
	case "!!int":
		if i, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
			return i
		}
		if i, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return i
		}
	case "!!float":
		if f, err := strconv.ParseFloat(n.Value, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return f
		}
	case "!!bool":
		switch strings.ToLower(n.Value) {
		case "true":
			return true
		case "false":
			return false
		}
	case "!!null":
		return nil
	}
	if n.Value == "None" {
		return nil
	}
	return n.Value
}

// referencesIn returns the distinct step indices referenced anywhere in args,
// ascending.
func referencesIn(args []any) []int {
	seen := map[int]struct{}{}
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case reference:
			seen[int(x)] = struct{}{}
		case []any:
			for _, e := range x {
				walk(e)
			}
		case map[string]any:
			for _, e := range x {
				walk(e)
			}
		}
	}
	for _, a := range args {
		walk(a)
	}
	out := make([]int, 0, len(seen))
	for idx := range seen {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// substitute replaces every whole-token reference to idx with value.
func substitute(args []any, idx int, value string) []any {
	var walk func(v any) any
	walk = func(v any) any {
		switch x := v.(type) {
		case reference:
			if int(x) == idx {
				return value
			}
			return x
		case []any:
			out := make([]any, len(x))
			for i, e := range x {
				out[i] = walk(e)
			}
			return out
		case map[string]any:
			out := make(map[string]any, len(x))
			for k, e := range x {
				out[k] = walk(e)
			}
			return out
		default:
			return x
		}
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = walk(a)
	}
	return out
}
