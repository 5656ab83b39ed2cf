package export

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"symposium/api/internal/store"
)

type fakeStore struct {
	lineage  store.ObjectiveLineage
	tasks    []store.Task
	messages []store.Message
	err      error
}

func (f *fakeStore) GetObjectiveLineage(_ context.Context, userID, objectiveID int64) (store.ObjectiveLineage, error) {
	if f.err != nil {
		return store.ObjectiveLineage{}, f.err
	}
	if userID != f.lineage.Project.UserID || objectiveID != f.lineage.Objective.ID {
		return store.ObjectiveLineage{}, store.ErrNotFound
	}
	return f.lineage, nil
}

func (f *fakeStore) ListTasks(context.Context, int64, int64) ([]store.Task, error) {
	return f.tasks, nil
}

func (f *fakeStore) ListMessages(context.Context, int64, int64) ([]store.Message, error) {
	return f.messages, nil
}

func newTestService() (*Service, *fakeStore) {
	desc := "Find out who buys"
	model := "openai/gpt-5"
	fs := &fakeStore{
		lineage: store.ObjectiveLineage{
			Project:   store.Project{ID: 1, UserID: 7, Title: "Bakery Launch"},
			Objective: store.Objective{ID: 3, ProjectID: 1, Title: "Market Research", Description: &desc},
		},
		tasks: []store.Task{
			{ID: 1, Title: "Survey", IsCompleted: true, SequenceOrder: 1},
			{ID: 2, Title: "Summarize", SequenceOrder: 2},
		},
		messages: []store.Message{
			{ID: 1, Role: store.RoleUser, Content: "Who buys **sourdough**?", CreatedAt: time.Date(2026, 1, 2, 9, 0, 0, 0, time.UTC)},
			{ID: 2, Role: store.RoleAssistant, Content: "Mostly commuters.", ModelUsed: &model, CreatedAt: time.Date(2026, 1, 2, 9, 1, 0, 0, time.UTC)},
			{ID: 3, Role: store.RoleUser, Content: "never mind", IsHidden: true, CreatedAt: time.Date(2026, 1, 2, 9, 2, 0, 0, time.UTC)},
		},
	}
	svc := NewService(fs)
	svc.now = func() time.Time { return time.Date(2026, 1, 3, 12, 0, 0, 0, time.UTC) }
	return svc, fs
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		raw     string
		want    Format
		wantErr bool
	}{
		{raw: "", want: FormatMarkdown},
		{raw: "md", want: FormatMarkdown},
		{raw: "Markdown", want: FormatMarkdown},
		{raw: " PDF ", want: FormatPDF},
		{raw: "docx", want: FormatDOCX},
		{raw: "odt", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.raw)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnsupportedFormat", tt.raw, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.raw, got, err, tt.want)
		}
	}
}

func TestTranscriptSkipsHiddenMessages(t *testing.T) {
	svc, _ := newTestService()

	tr, err := svc.Transcript(context.Background(), Request{UserID: 7, ObjectiveID: 3})
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(tr.Messages) != 2 {
		t.Fatalf("expected 2 visible messages, got %d", len(tr.Messages))
	}
	if tr.Messages[0].Role != "User" || tr.Messages[1].Role != "Assistant" {
		t.Errorf("unexpected roles %q, %q", tr.Messages[0].Role, tr.Messages[1].Role)
	}
	if tr.Messages[1].ModelUsed != "openai/gpt-5" {
		t.Errorf("model = %q", tr.Messages[1].ModelUsed)
	}
	if tr.Tasks[0].Position != 1 || !tr.Tasks[0].Completed {
		t.Errorf("unexpected first task %+v", tr.Tasks[0])
	}

	all, err := svc.Transcript(context.Background(), Request{UserID: 7, ObjectiveID: 3, IncludeHidden: true})
	if err != nil {
		t.Fatalf("Transcript() error = %v", err)
	}
	if len(all.Messages) != 3 || !all.Messages[2].Hidden {
		t.Errorf("expected hidden message to be included, got %+v", all.Messages)
	}
}

func TestTranscriptUnknownObjective(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Transcript(context.Background(), Request{UserID: 8, ObjectiveID: 3})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestExportMarkdown(t *testing.T) {
	svc, _ := newTestService()

	res, err := svc.Export(context.Background(), Request{UserID: 7, ObjectiveID: 3, Format: FormatMarkdown})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if res.Filename != "Market-Research.md" {
		t.Errorf("filename = %q", res.Filename)
	}
	if res.MimeType != "text/markdown; charset=utf-8" {
		t.Errorf("mime = %q", res.MimeType)
	}

	body := string(res.Data)
	for _, want := range []string{
		"# Market Research\n",
		"_Project: Bakery Launch. Exported 2026-01-03T12:00:00Z._",
		"Find out who buys",
		"1. [x] Survey\n2. [ ] Summarize\n",
		"### User, 2026-01-02 09:00\n\nWho buys **sourdough**?",
		"### Assistant (openai/gpt-5), 2026-01-02 09:01\n\nMostly commuters.",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("markdown missing %q:\n%s", want, body)
		}
	}
	if strings.Contains(body, "never mind") {
		t.Error("hidden message leaked into export")
	}
}

func TestRenderMarkdownEmptyConversation(t *testing.T) {
	out := RenderMarkdown(Transcript{ObjectiveTitle: "Empty", ProjectTitle: "P"})
	if !strings.Contains(out, "## Conversation\n\nNo messages yet.\n") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if strings.Contains(out, "## Tasks") {
		t.Error("tasks heading rendered for objective without tasks")
	}
}

func TestRenderHTMLConvertsAndSanitizesMarkdown(t *testing.T) {
	out, err := RenderHTML(Transcript{
		ProjectTitle:   "P",
		ObjectiveTitle: "O & Co",
		Messages: []TranscriptMessage{
			{Role: "User", Content: "Who buys **sourdough**?"},
			{Role: "Assistant", Content: "<script>alert(1)</script>\n\n[click](javascript:alert(1))"},
		},
	})
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(out, "<strong>sourdough</strong>") {
		t.Errorf("expected markdown emphasis to be rendered:\n%s", out)
	}
	if !strings.Contains(out, "<title>O &amp; Co</title>") {
		t.Errorf("expected escaped title:\n%s", out)
	}
	if strings.Contains(out, "<script>") || strings.Contains(out, "javascript:") {
		t.Errorf("unsafe content survived sanitizing:\n%s", out)
	}
	if !strings.Contains(out, `class="message assistant"`) {
		t.Errorf("expected role class:\n%s", out)
	}
}

func TestExportRoutesBinaryFormatsToConverters(t *testing.T) {
	svc, _ := newTestService()
	var gotHTML, gotTitle string
	stub := func(name string) converter {
		return func(_ context.Context, html, title string) (*Result, error) {
			gotHTML, gotTitle = html, title
			return &Result{Data: []byte(name), Filename: sanitizeFilename(title) + "." + name}, nil
		}
	}
	svc.pdf = stub("pdf")
	svc.docx = stub("docx")

	for _, format := range []Format{FormatPDF, FormatDOCX} {
		res, err := svc.Export(context.Background(), Request{UserID: 7, ObjectiveID: 3, Format: format})
		if err != nil {
			t.Fatalf("Export(%s) error = %v", format, err)
		}
		if string(res.Data) != string(format) {
			t.Errorf("Export(%s) used the wrong converter: %q", format, res.Data)
		}
		if gotTitle != "Market Research" || !strings.Contains(gotHTML, "Mostly commuters.") {
			t.Errorf("converter received title %q, html %q", gotTitle, gotHTML)
		}
	}
}

func TestExportPropagatesConverterErrors(t *testing.T) {
	svc, _ := newTestService()
	svc.pdf = func(context.Context, string, string) (*Result, error) {
		return nil, ErrPDFDependencyMissing
	}
	_, err := svc.Export(context.Background(), Request{UserID: 7, ObjectiveID: 3, Format: FormatPDF})
	if !errors.Is(err, ErrPDFDependencyMissing) {
		t.Fatalf("expected ErrPDFDependencyMissing, got %v", err)
	}
}

func TestExportDOCXWithoutPandoc(t *testing.T) {
	prev := pandocBinary
	pandocBinary = "symposium-missing-pandoc"
	t.Cleanup(func() { pandocBinary = prev })

	_, err := exportDOCX(context.Background(), "<p>hi</p>", "Plan")
	if !errors.Is(err, ErrDOCXDependencyMissing) {
		t.Fatalf("expected ErrDOCXDependencyMissing, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"Simple Title", "Simple-Title"},
		{"Title/With\\Special:Chars", "TitleWithSpecialChars"},
		{"  padded  ", "padded"},
		{"", "transcript"},
		{"???", "transcript"},
		{strings.Repeat("a", 80), strings.Repeat("a", 50)},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.input); got != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input, expected string
	}{
		{"hello world", "hello%20world"},
		{"<p>", "%3Cp%3E"},
		{"a+b", "a%2Bb"},
		{"é", "%C3%A9"},
	}
	for _, tt := range tests {
		if got := percentEncodeForDataURL(tt.input); got != tt.expected {
			t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
