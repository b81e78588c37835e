package standup

import (
	"fmt"
	"strings"
)

// rosterLines renders the "name: previous work" list injected into opening
// and hand-over prompts.
func rosterLines(roster []Participant) string {
	var b strings.Builder
	for _, p := range roster {
		fmt.Fprintf(&b, "- %s: %s\n", p.Name, p.PreviousWork)
	}
	return strings.TrimRight(b.String(), "\n")
}

// OpeningPrompt builds the interviewer instructions for the start of a
// session: the full roster with previous work and the three-question script,
// beginning with the first participant.
func OpeningPrompt(roster []Participant) string {
	if len(roster) == 0 {
		return ""
	}
	first := roster[0]
	return fmt.Sprintf(`You are an experienced Scrum Master conducting a daily standup meeting.

Your job is to guide the meeting by going through each team member one by one. The team members and their previous day's work are:
%s

Start with %s.

For each member, ask only one question at a time from the following three:
1) What did you work on yesterday? (I know you were working on: %s - can you tell me about your progress on this work and if you're facing any issues?)
2) What will you work on today?
3) Are there any blockers or impediments?

When asking about yesterday's work, always reference their specific tasks and ask about progress and any issues they're facing.

Wait for the member to fully answer each question before moving to the next.

Do not combine multiple questions in a single message.

Keep your tone professional and concise.`, rosterLines(roster), first.Name, first.PreviousWork)
}

// nextQuestionPrompt builds the interviewer instructions for asking the
// participant their next question after an answer has been committed.
func nextQuestionPrompt(participantName string, q QuestionKind) string {
	return fmt.Sprintf(`You are conducting a standup meeting with %s.

You have just received their response to the previous question.

Now ask them the next question: %q

Keep your response short and direct. Only ask this one question.`, participantName, QuestionText(q))
}

// nextParticipantPrompt builds the interviewer instructions for handing the
// meeting over to the next roster participant, restarting the three-question
// script at their previous-work question.
func nextParticipantPrompt(p Participant) string {
	return fmt.Sprintf(`You are a professional Scrum Master conducting a daily standup meeting via voice.

Run the meeting strictly and clearly. For each developer, ask the three core standup questions in this exact order:

1. What did you do yesterday?
2. What will you do today?
3. Are there any blockers?

Rules:
- Accept only clear, task-related answers.
- If a response is vague, off-topic or emotional, do not accept it. Politely repeat the question with new wording, up to three times per question.
- If all three attempts fail, offer to come back to them shortly.
- Never move to the next question or person without a valid answer.

It is now %s's turn. Yesterday's assigned task: %q.

Begin by asking: "You were working on '%s' yesterday. Could you tell me what progress you made, and if you faced any challenges?"

Ask only this first question and wait for a clear, valid response before continuing.`, p.Name, p.PreviousWork, p.PreviousWork)
}
