package export

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/transcript.html
var templateFS embed.FS

var (
	transcriptTemplate = template.Must(template.New("transcript.html").Funcs(template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}).ParseFS(templateFS, "templates/transcript.html"))

	markdown  = goldmark.New(goldmark.WithExtensions(extension.GFM))
	sanitizer = bluemonday.UGCPolicy()
)

// templateMessage carries a message body already converted to safe HTML.
type templateMessage struct {
	TranscriptMessage
	Body template.HTML
}

type templateData struct {
	Transcript
	Messages []templateMessage
}

// RenderHTML renders the transcript as a standalone HTML page. Message
// bodies are treated as Markdown and sanitized after conversion.
func RenderHTML(t Transcript) (string, error) {
	data := templateData{Transcript: t, Messages: make([]templateMessage, 0, len(t.Messages))}
	for _, m := range t.Messages {
		body, err := markdownToHTML(m.Content)
		if err != nil {
			return "", err
		}
		data.Messages = append(data.Messages, templateMessage{TranscriptMessage: m, Body: body})
	}

	var buf bytes.Buffer
	if err := transcriptTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func markdownToHTML(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("convert markdown: %w", err)
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil
}

// RenderMarkdown renders the transcript as a Markdown document.
func RenderMarkdown(t Transcript) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.ObjectiveTitle)
	fmt.Fprintf(&b, "_Project: %s. Exported %s._\n\n", t.ProjectTitle, t.ExportedAt.Format(time.RFC3339))
	if t.ObjectiveDescription != "" {
		b.WriteString(t.ObjectiveDescription + "\n\n")
	}

	if len(t.Tasks) > 0 {
		b.WriteString("## Tasks\n\n")
		for _, task := range t.Tasks {
			box := " "
			if task.Completed {
				box = "x"
			}
			fmt.Fprintf(&b, "%d. [%s] %s\n", task.Position, box, task.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Conversation\n")
	if len(t.Messages) == 0 {
		b.WriteString("\nNo messages yet.\n")
	}
	for _, m := range t.Messages {
		heading := m.Role
		if m.ModelUsed != "" {
			heading += " (" + m.ModelUsed + ")"
		}
		fmt.Fprintf(&b, "\n### %s, %s\n\n%s\n", heading, m.CreatedAt.Format("2006-01-02 15:04"), strings.TrimRight(m.Content, "\n"))
	}
	return b.String()
}
