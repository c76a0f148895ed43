package compiler

import "strings"

// Decision is the joiner's verdict on a round.
type Decision int

const (
	// DecisionUnresolved means no Action line was found; callers treat it as a replan.
	DecisionUnresolved Decision = iota
	DecisionFinish
	DecisionReplan
)

func (d Decision) String() string {
	switch d {
	case DecisionFinish:
		return "finish"
	case DecisionReplan:
		return "replan"
	default:
		return "unresolved"
	}
}

// MarshalText renders the decision by name in JSON records.
func (d Decision) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Decision) UnmarshalText(b []byte) error {
	switch string(b) {
	case "finish":
		*d = DecisionFinish
	case "replan":
		*d = DecisionReplan
	default:
		*d = DecisionUnresolved
	}
	return nil
}

// JoinOutcome is the structured form of joiner output.
type JoinOutcome struct {
	Thought  string   `json:"thought"`
	Decision Decision `json:"decision"`
	Payload  string   `json:"payload"`
}

// Finished reports whether the outcome ends the session.
func (o JoinOutcome) Finished() bool { return o.Decision == DecisionFinish }

// ParseJoinerOutput reads text of the form
//
//	Thought: ...
//	Action: Finish(answer) | Replan(reason)
//
// The payload may span lines; it ends where the parenthesis opened on the
// Action line closes. Only the first Action line carrying a decision counts.
func ParseJoinerOutput(text string) JoinOutcome {
	var (
		out       JoinOutcome
		parts     []string
		capturing bool
		decided   bool
		depth     int
	)
	closeParts := func() {
		capturing = false
		last := parts[len(parts)-1]
		if i := strings.LastIndex(last, ")"); i >= 0 {
			parts[len(parts)-1] = last[:i]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case capturing:
			parts = append(parts, strings.TrimSpace(line))
			depth += strings.Count(line, "(") - strings.Count(line, ")")
			if depth <= 0 {
				closeParts()
			}
		case strings.HasPrefix(line, "Thought:"):
			out.Thought = strings.TrimSpace(strings.TrimPrefix(line, "Thought:"))
		case strings.HasPrefix(line, "Action:") && !decided:
			hasReplan := strings.Contains(line, "Replan")
			if !hasReplan && !strings.Contains(line, "Finish") {
				continue
			}
			decided = true
			out.Decision = DecisionFinish
			if hasReplan {
				out.Decision = DecisionReplan
			}
			open := strings.Index(line, "(")
			if open < 0 {
				continue
			}
			body := line[open+1:]
			parts = append(parts, body)
			depth = 1 + strings.Count(body, "(") - strings.Count(body, ")")
			capturing = true
			if depth <= 0 {
				closeParts()
			}
		}
	}
	out.Payload = strings.TrimSpace(strings.Join(parts, " "))
	return out
}
