package store

import "time"

type User struct {
	ID               int64     `db:"id" json:"id"`
	Email            string    `db:"email" json:"email"`
	PasswordHash     string    `db:"password_hash" json:"-"`
	OpenRouterAPIKey *string   `db:"openrouter_api_key" json:"-"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// APIKey returns the user's completion credential, or "" when none is set.
func (u User) APIKey() string {
	if u.OpenRouterAPIKey == nil {
		return ""
	}
	return *u.OpenRouterAPIKey
}

type Project struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"-"`
	Title       string    `db:"title" json:"title"`
	Description *string   `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type Objective struct {
	ID            int64     `db:"id" json:"id"`
	ProjectID     int64     `db:"project_id" json:"project_id"`
	Title         string    `db:"title" json:"title"`
	Description   *string   `db:"description" json:"description"`
	SequenceOrder int       `db:"sequence_order" json:"sequence_order"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

type Task struct {
	ID            int64     `db:"id" json:"id"`
	ObjectiveID   int64     `db:"objective_id" json:"objective_id"`
	Title         string    `db:"title" json:"title"`
	Description   *string   `db:"description" json:"description"`
	SequenceOrder int       `db:"sequence_order" json:"sequence_order"`
	IsCompleted   bool      `db:"is_completed" json:"is_completed"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	ID          int64     `db:"id" json:"id"`
	ObjectiveID int64     `db:"objective_id" json:"objective_id"`
	Role        string    `db:"role" json:"role"`
	Content     string    `db:"content" json:"content"`
	IsHidden    bool      `db:"is_hidden" json:"is_hidden"`
	ModelUsed   *string   `db:"model_used" json:"model_used"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type ContentCard struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	IsHidden  bool      `db:"is_hidden" json:"is_hidden"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	Tags      []int64   `db:"-" json:"tags"`
}

const DefaultTagColor = "#6366f1"

type Tag struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ObjectiveLineage is an objective together with its owning project.
type ObjectiveLineage struct {
	Project   Project
	Objective Objective
}

// NewMessage is the input to AppendMessage.
type NewMessage struct {
	ObjectiveID int64
	Role        string
	Content     string
	ModelUsed   string
}

// GeneratedProject is a project tree created in one transaction.
type GeneratedProject struct {
	Title       string
	Description string
	Objectives  []GeneratedObjective
}

type GeneratedObjective struct {
	Title       string
	Description string
	Tasks       []GeneratedTask
}

type GeneratedTask struct {
	Title       string
	Description string
}
