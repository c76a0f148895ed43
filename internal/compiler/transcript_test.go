package compiler

import "testing"

func finishedGraph() Graph {
	return Graph{
		1: {Index: 1, Name: "search", Args: []any{"X revenue"}, Thought: "Look up X.", Observation: "X made 10", Observed: true, Status: StatusDone},
		2: {Index: 2, Name: "compare", Args: []any{"X made 10", int64(3)}, Observation: FailureObservation, Observed: true, Status: StatusFailed},
		3: {Index: 3, Name: JoinName, IsJoin: true, Status: StatusDone},
	}
}

func TestTranscriptOrdersTasksAndSkipsJoin(t *testing.T) {
	want := "Thought: Look up X.\n" +
		"search(X revenue)\n" +
		"Observation: X made 10\n" +
		"compare(\"X made 10\", 3)\n" +
		"Observation: ERROR"
	if got := Transcript(finishedGraph()); got != want {
		t.Fatalf("transcript mismatch:\n%s\n--- want ---\n%s", got, want)
	}
}

func TestReplanContextNumbersStepsAndAddsThought(t *testing.T) {
	want := "Thought: Look up X.\n" +
		"1. search(X revenue)\n" +
		"Observation: X made 10\n" +
		"2. compare(\"X made 10\", 3)\n" +
		"Observation: ERROR\n" +
		"Thought: Need Y as well."
	if got := ReplanContext(finishedGraph(), "Need Y as well."); got != want {
		t.Fatalf("context mismatch:\n%s\n--- want ---\n%s", got, want)
	}
}

func TestFormatContexts(t *testing.T) {
	if FormatContexts(nil) != "" {
		t.Fatalf("no previous rounds should produce no context")
	}
	got := FormatContexts([]string{"a", "b"})
	want := "Previous Plan:\n\na\n\nPrevious Plan:\n\nb\n\nCurrent Plan:\n\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}
