package mcpserver

// NoteFormatContract describes the canonical daily note format that
// LLM consumers should follow when writing notes.
const NoteFormatContract = `# Amber Daily Note Format Contract

Every daily note stored in Amber MUST follow this structure.

## Structure

` + "```" + `markdown
---
date: 2025-06-01                    # REQUIRED - the calendar date of the note
projects:                           # REQUIRED - YAML list (may be empty)
  - amber
people:                             # REQUIRED - YAML list (may be empty)
  - alice
topics:                             # REQUIRED - YAML list (may be empty)
  - file-storage
---

# 2025-06-01

## Shipped
Completed features and fixes, with commit hashes where known.

## Worked On
In-progress work.

## Decisions
Technical decisions made today.

## Discovered
New tools, techniques, insights.

## Links
Relevant URLs from commits and events.

## People
Collaborators and their contributions.

## Events
Meetings, reviews, discussions.
` + "```" + `

## Rules

1. **YAML frontmatter is mandatory.** The ` + "`" + `---` + "`" + ` fences must be the first
   thing in the file (no leading blank lines).
2. **` + "`" + `date` + "`" + ` must match the note's calendar date** in YYYY-MM-DD form.
3. **projects, people, and topics** list every entity the note mentions.
   Names are free-form; Amber normalizes them (lowercase, hyphens) when
   merging into the knowledge graph.
4. **Only include body sections with content.** Empty sections are omitted.
5. **Be concrete.** Reference commit hashes, file names, and branch names.
   No filler text.
6. **Encoding** is UTF-8 with a trailing newline.

## Example

` + "```" + `markdown
---
date: 2025-06-01
projects:
  - amber
people: []
topics:
  - atomic-writes
---

# 2025-06-01

## Shipped
- Atomic note writes (tmp, fsync, rename) in deadbee

## Decisions
- Daily logs stay append-only; rewrites happen only for pins and entities
` + "```" + `
`
