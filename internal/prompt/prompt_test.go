package prompt

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func fullContext() Context {
	return Context{
		Project:   Section{Title: "Launch", Description: "Ship the beta"},
		Objective: Section{Title: "Research", Description: "Understand users"},
		Tasks: []Task{
			{Position: 1, Title: "Interview", Description: "Talk to five users", Completed: true},
			{Position: 2, Title: "Summarize"},
		},
		Cards: []Card{
			{Title: "Persona", Content: "Busy founders"},
		},
		History: []Turn{
			{Role: "user", Content: "Where do we start?"},
			{Role: "assistant", Content: "With interviews."},
		},
		UserMessage: "What next?",
	}
}

func TestComposeRendersAllSections(t *testing.T) {
	want := strings.Join([]string{
		preamble,
		"## Current Project Context\n\n**Project:** Launch\n**Description:** Ship the beta\n\n**Current Objective:** Research\n**Objective Description:** Understand users",
		"## Task Sequence\n\nThe following tasks are associated with this objective:",
		"1. **Interview** - ✅ COMPLETED",
		"   Talk to five users",
		"2. **Summarize** - ⏳ PENDING",
		"## Relevant Knowledge Base Content\n\nThe following content cards are available for context:",
		"### Persona\n\nBusy founders\n\n---",
		"## Previous Conversation\n\nHere is the conversation history for this objective:",
		"**User:** Where do we start?",
		"**Assistant:** With interviews.",
		"## Current User Message\n\n**User:** What next?\n\n---\n\n" + closingDirective,
	}, "\n\n")

	if diff := cmp.Diff(want, Compose(fullContext())); diff != "" {
		t.Fatalf("Compose() mismatch (-want +got):\n%s", diff)
	}
}

func TestComposeIsDeterministic(t *testing.T) {
	c := fullContext()
	first := Compose(c)
	for i := 0; i < 10; i++ {
		if got := Compose(c); got != first {
			t.Fatalf("Compose() run %d differs:\n%s", i, cmp.Diff(first, got))
		}
	}
}

func TestComposeOmitsEmptySections(t *testing.T) {
	c := Context{
		Project:     Section{Title: "Launch"},
		Objective:   Section{Title: "Research"},
		UserMessage: "hi",
	}

	got := Compose(c)
	assert.NotContains(t, got, "## Task Sequence")
	assert.NotContains(t, got, "## Relevant Knowledge Base Content")
	assert.NotContains(t, got, "## Previous Conversation")
	assert.NotContains(t, got, "**Description:**")
	assert.NotContains(t, got, "**Objective Description:**")
	assert.Contains(t, got, "**Project:** Launch\n\n\n**Current Objective:** Research\n")
	assert.True(t, strings.HasSuffix(got, closingDirective))
}

func TestComposeKeepsSectionOrder(t *testing.T) {
	got := Compose(fullContext())
	headings := []string{
		"You are an AI assistant",
		"## Current Project Context",
		"## Task Sequence",
		"## Relevant Knowledge Base Content",
		"## Previous Conversation",
		"## Current User Message",
	}
	last := -1
	for _, h := range headings {
		idx := strings.Index(got, h)
		if idx <= last {
			t.Fatalf("heading %q at %d, expected after %d", h, idx, last)
		}
		last = idx
	}
}

func TestRoleLabel(t *testing.T) {
	assert.Equal(t, "User", RoleLabel("user"))
	assert.Equal(t, "Assistant", RoleLabel("assistant"))
	assert.Equal(t, "Consultant", RoleLabel("consultant"))
}

func TestPlanUserPrompt(t *testing.T) {
	assert.Equal(t, "Please generate a structured project breakdown for: a garden app", PlanUserPrompt("a garden app"))
	assert.Contains(t, PlanSystemPrompt, `"objectives"`)
}
