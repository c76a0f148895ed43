package compiler

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/askgraph/internal/tool"
)

const (
	finishAction = "Finish"
	replanAction = "Replan"
)

// DefaultFallbackAnswer is returned when every round ends without a usable answer.
const DefaultFallbackAnswer = `I'm sorry, but I don't have enough information to provide a meaningful response to your question at this time.
This may be due to limitations in the available data, lack of context, or the specificity of the request. If you could provide more details, clarify the question, or refine the data uploaded, I’d be happy to try again.
Thank you for your understanding!`

// PlannerExample is a worked plan shown to the planner. It is rendered only
// when every tool in Tools is registered.
type PlannerExample struct {
	Tools []string
	Plan  string
}

// DefaultPlannerExamples cover the bundled search, fetch and docsearch tools.
var DefaultPlannerExamples = []PlannerExample{
	{
		Tools: []string{"search"},
		Plan: `Question: Compare the most recent quarterly revenue of Nvidia and AMD.
Thought: I need the latest revenue figure for each company, and the two lookups are independent.
1. search("Nvidia most recent quarterly revenue")
2. search("AMD most recent quarterly revenue")
Thought: I have gathered what is needed to compare the two companies.
3. join()` + EndOfPlan,
	},
	{
		Tools: []string{"search", "fetch"},
		Plan: `Question: What did the most recent Federal Reserve statement say about inflation?
Thought: I need to find the statement first and then read the top result in full.
1. search("Federal Reserve FOMC statement latest")
2. fetch($1)
3. join()` + EndOfPlan,
	},
	{
		Tools: []string{"fetch"},
		Plan: `Question: Summarize the Go 1.22 release notes at https://go.dev/doc/go1.22.
1. fetch("https://go.dev/doc/go1.22")
2. join()` + EndOfPlan,
	},
	{
		Tools: []string{"docsearch"},
		Plan: `Question: What does our onboarding guide say about laptop setup?
1. docsearch("onboarding laptop setup")
2. join()` + EndOfPlan,
	},
}

// RenderPlannerExamples joins the examples whose tools reg provides.
func RenderPlannerExamples(examples []PlannerExample, reg *tool.Registry) string {
	var b strings.Builder
	for _, ex := range examples {
		usable := true
		for _, name := range ex.Tools {
			if _, ok := reg.Tool(name); !ok {
				usable = false
				break
			}
		}
		if !usable {
			continue
		}
		b.WriteString(strings.TrimSpace(ex.Plan))
		b.WriteString("\n###\n")
	}
	return b.String()
}

// DefaultJoinerPrompt instructs the joiner to finish or ask for another round.
const DefaultJoinerPrompt = `Solve a question answering task. Here are some guidelines:
- In the Assistant Scratchpad, you will be given results of a plan you have executed to answer the user's question.
- Thought needs to reason about the question based on the Observations in 1-2 sentences.
- Ignore irrelevant action results.
- Observations equal to ERROR come from failed actions; do not quote them.
- If the required information is present, give an informative, complete and helpful answer. Include as much relevant information from the observations as possible.
- If you are unable to give a satisfactory final answer, replan to get the required information.
Respond in the following format:
Thought: <reason about the task results and whether you have sufficient information to answer the question>
Action: <action to take>
Available actions:
(1) ` + finishAction + `(the final answer to return to the user): returns the answer and finishes the task.
(2) ` + replanAction + `(the reasoning and other information to help plan again. Can be of any length): instructs why a replan is needed.

Note: never introduce actions other than the ones listed above.
`

// DefaultFinalJoinerPrompt is used on the last allowed round, when a replan
// can no longer be honoured.
const DefaultFinalJoinerPrompt = `Solve a question answering task. This is the last chance to answer.
- In the Assistant Scratchpad, you will be given results of a plan you have executed to answer the user's question.
- Thought needs to reason about the question based on the Observations in 1-2 sentences.
- Ignore irrelevant action results and observations equal to ERROR.
- Answer with everything the observations support, even if it is partial.
Respond in the following format:
Thought: <reason about the task results>
Action: ` + finishAction + `(the final answer to return to the user)
`

func plannerPrompt(descriptions, examples string, toolCount int) string {
	return fmt.Sprintf(`Given a user query, create a plan to solve it with the utmost parallelizability. Each plan should comprise an action from the following %d types:
%s%d. join(): Collects and combines results from prior actions.

 - An LLM agent is called upon invoking join() to either finalize the user query or wait until the plans are executed.
 - join should always be the last action in the plan, and will be called in two scenarios:
   (a) if the answer can be determined by gathering the outputs from tasks to generate the final response.
   (b) if the answer cannot be determined in the planning phase before you execute the plans.
Guidelines:
 - Each action described above contains input/output types and description.
    - You must strictly adhere to the input and output types for each action.
    - The action descriptions contain the guidelines. You MUST strictly follow those guidelines when you use the actions.
 - Each action in the plan should strictly be one of the above types. Follow the conventions for each action.
 - Each action MUST have a unique ID, which is strictly increasing.
 - Inputs for actions can either be constants or outputs from preceding actions. In the latter case, use the format $id to denote the ID of the previous action whose output will be the input.
 - A reference must be a whole argument, for example search($1), never embedded in a larger string.
 - Always call join as the last action in the plan. Say '%s' after you call join.
 - Ensure the plan maximizes parallelizability.
 - Only use the provided action types. If a query cannot be addressed using these, invoke the join action for the next steps.
 - Never introduce new actions other than the ones provided.

Here are some examples:
%s`, toolCount+1, descriptions, toolCount+1, EndOfPlan, examples)
}

// replanSuffix tells the planner how to continue after previous rounds.
const replanSuffix = `
 - You are given "Previous Plan" which is the plan that the previous agent created along with the execution results (given as Observation) of each plan and a general thought (given as Thought) about the executed results. You MUST use this information to create the next plan under "Current Plan".
 - When starting the Current Plan, you should start with "Thought" that outlines the strategy for the next plan.
 - In the Current Plan, you should NEVER repeat the actions that are already executed in the Previous Plan.
 - You must continue the task index from 1.`

func planningRequest(question, context string) string {
	return fmt.Sprintf("Question: %s\n%s\n", question, context)
}

func joiningRequest(prompt, question, transcript string) string {
	return fmt.Sprintf("%s\nQuestion: %s\n\n%s\n", strings.TrimRight(prompt, "\n"), question, transcript)
}
