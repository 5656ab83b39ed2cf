// Package prompt renders conversation context into the system prompt sent to
// the completion service. Everything here is pure: no I/O, no clocks.
package prompt

import (
	"fmt"
	"strings"
)

// Context is an immutable snapshot of everything the assistant is told about
// the current objective.
type Context struct {
	Project     Section
	Objective   Section
	Tasks       []Task
	Cards       []Card
	History     []Turn
	UserMessage string
}

// Section is a titled entity with an optional description.
type Section struct {
	Title       string
	Description string
}

// Task is a task annotated with its 1-based position in the sequence.
type Task struct {
	Position    int
	Title       string
	Description string
	Completed   bool
}

// Card is a knowledge base entry.
type Card struct {
	Title   string
	Content string
}

// Turn is one prior message of the transcript.
type Turn struct {
	Role    string
	Content string
}

const preamble = `You are an AI assistant helping with project management and ideation in the Symposium application.

Your role is to provide helpful, contextual responses based on the current project, objective, and available knowledge base content.

Be concise but thorough, and always consider the full context provided below when formulating your response.`

const closingDirective = `Please provide a helpful response based on all the context above. Consider the project goals, current objective, task progress, available knowledge, and conversation history when formulating your answer.`

// Compose renders c into the system prompt. Sections are joined by a blank
// line and appear in a fixed order; task, knowledge base and history sections
// are omitted when empty.
func Compose(c Context) string {
	sections := make([]string, 0, 8+len(c.Tasks)*2+len(c.Cards)+len(c.History))
	sections = append(sections, preamble, projectSection(c.Project, c.Objective))

	if len(c.Tasks) > 0 {
		sections = append(sections, "## Task Sequence\n\nThe following tasks are associated with this objective:")
		for _, t := range c.Tasks {
			sections = append(sections, fmt.Sprintf("%d. **%s** - %s", t.Position, t.Title, taskStatus(t.Completed)))
			if t.Description != "" {
				sections = append(sections, "   "+t.Description)
			}
		}
	}

	if len(c.Cards) > 0 {
		sections = append(sections, "## Relevant Knowledge Base Content\n\nThe following content cards are available for context:")
		for _, card := range c.Cards {
			sections = append(sections, fmt.Sprintf("### %s\n\n%s\n\n---", card.Title, card.Content))
		}
	}

	if len(c.History) > 0 {
		sections = append(sections, "## Previous Conversation\n\nHere is the conversation history for this objective:")
		for _, turn := range c.History {
			sections = append(sections, fmt.Sprintf("**%s:** %s", RoleLabel(turn.Role), turn.Content))
		}
	}

	sections = append(sections, fmt.Sprintf("## Current User Message\n\n**User:** %s\n\n---\n\n%s", c.UserMessage, closingDirective))

	return strings.Join(sections, "\n\n")
}

func projectSection(project, objective Section) string {
	var b strings.Builder
	b.WriteString("## Current Project Context\n\n")
	b.WriteString("**Project:** " + project.Title + "\n")
	if project.Description != "" {
		b.WriteString("**Description:** " + project.Description)
	}
	b.WriteString("\n\n**Current Objective:** " + objective.Title + "\n")
	if objective.Description != "" {
		b.WriteString("**Objective Description:** " + objective.Description)
	}
	return b.String()
}

func taskStatus(completed bool) string {
	if completed {
		return "✅ COMPLETED"
	}
	return "⏳ PENDING"
}

// RoleLabel returns the display label for a message role.
func RoleLabel(role string) string {
	switch role {
	case "user":
		return "User"
	case "assistant":
		return "Assistant"
	case "":
		return ""
	default:
		return strings.ToUpper(role[:1]) + role[1:]
	}
}
