package summarizer

import (
	"fmt"
	"strings"
)

// dailySystemPrompt instructs the model to produce the daily note format
// the rest of the system parses (frontmatter with date/projects/people/topics).
const dailySystemPrompt = `You are a personal knowledge assistant. Generate a daily development note for %s.
Format the note as markdown with YAML frontmatter.

Frontmatter must include: date, projects (list), people (list), topics (list).

Use these section headings (only include sections with content):
- Shipped: completed features/fixes
- Worked On: in-progress work
- Decisions: technical decisions made
- Discovered: new tools, techniques, insights
- Links: relevant URLs from commits/events
- People: collaborators and their contributions
- Events: meetings, reviews, discussions

Rules:
- Use concrete references (commit hashes, file names, branch names)
- No fluff or filler text
- Be concise but specific`

// BuildDailyPrompt assembles the message sequence for summarizing one
// date's raw event lines.
func BuildDailyPrompt(date string, events []string) []Message {
	return []Message{
		{Role: "system", Content: fmt.Sprintf(dailySystemPrompt, date)},
		{Role: "user", Content: fmt.Sprintf("Here are the raw events for %s:\n\n%s", date, strings.Join(events, "\n"))},
	}
}
