package completion

// Outcome is the result of a chat completion: either Success or Failure.
type Outcome interface {
	isOutcome()
}

// Usage holds token counters reported by the service.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Success carries the trimmed response text and the requested model id.
type Success struct {
	Content string
	Model   string
	Usage   *Usage
}

// Failure carries the reason a completion could not be produced.
type Failure struct {
	Reason error
}

func (Success) isOutcome() {}
func (Failure) isOutcome() {}

// Message is the human readable failure text.
func (f Failure) Message() string {
	if f.Reason == nil {
		return "Unknown error"
	}
	return f.Reason.Error()
}
