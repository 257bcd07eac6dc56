package store

import (
	"time"

	"gorm.io/gorm"
)

// Installation identifies an external forge-app installation (spec.md §3).
type Installation struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	ExternalID string    `gorm:"uniqueIndex;not null" json:"external_id"`
	Status     string    `gorm:"not null;default:'active'" json:"status"`
}

// Repository is one enabled (or disabled) project tracked by the bot.
type Repository struct {
	ID             uint           `gorm:"primarykey" json:"id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	FullName       string         `gorm:"uniqueIndex;not null" json:"full_name"`
	InstallationID uint           `gorm:"index;not null" json:"installation_id"`
	Enabled        bool           `gorm:"not null;default:true" json:"enabled"`
	SettingsJSON   string         `gorm:"type:jsonb" json:"settings_json"`
}

// JobDedup is the gate's ledger row: at most one per (repo, pr, sha),
// enforced by the unique index (spec.md §3/§4.B).
type JobDedup struct {
	ID           uint      `gorm:"primarykey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	RepoFullName string    `gorm:"uniqueIndex:idx_dedup_key;not null" json:"repo_full_name"`
	PRNumber     int       `gorm:"uniqueIndex:idx_dedup_key;not null" json:"pr_number"`
	HeadSHA      string    `gorm:"uniqueIndex:idx_dedup_key;not null" json:"head_sha"`
	Status       string    `gorm:"index;not null" json:"status"` // queued|processing|superseded|done|failed
}

// Review is a terminal record of one agent run (spec.md §3).
type Review struct {
	ID               uint           `gorm:"primarykey" json:"id"`
	CreatedAt        time.Time      `json:"created_at"`
	RepositoryID     uint           `gorm:"index;not null" json:"repository_id"`
	PRNumber         int            `gorm:"index;not null" json:"pr_number"`
	PRTitle          string         `json:"pr_title"`
	PRBody           string         `gorm:"type:text" json:"pr_body"`
	PRAuthor         string         `json:"pr_author"`
	HeadRef          string         `json:"head_ref"`
	HeadSHA          string         `gorm:"index" json:"head_sha"`
	BaseRef          string         `json:"base_ref"`
	BaseSHA          string         `json:"base_sha"`
	Status           string         `gorm:"index;not null" json:"status"` // completed|failed
	ErrorMessage     string         `gorm:"type:text" json:"error_message,omitempty"`
	Verdict          string         `json:"verdict,omitempty"`
	Summary          string         `gorm:"type:text" json:"summary,omitempty"`
	FindingsJSON     string         `gorm:"type:jsonb" json:"findings_json,omitempty"`
	Model            string         `json:"model"`
	InputTokens      int            `json:"input_tokens"`
	OutputTokens     int            `json:"output_tokens"`
	TotalDurationMs  int64          `json:"total_duration_ms"`
	SetupDurationMs  int64          `json:"setup_duration_ms"`
	SandboxWarm      bool           `json:"sandbox_warm"`
	FilesChanged     int            `json:"files_changed"`
	LinesAdded       int            `json:"lines_added"`
	LinesDeleted     int            `json:"lines_deleted"`
	ActiveSkillsJSON string         `gorm:"type:jsonb" json:"active_skills_json,omitempty"`
	DiffText         string         `gorm:"type:text" json:"diff_text,omitempty"`
	SystemPromptHash string         `json:"system_prompt_hash"`

	Traces []ReviewTraceTurn `gorm:"foreignKey:ReviewID" json:"traces,omitempty"`
}

// ReviewTraceTurn is one message in the agent conversation, ordered by
// turn number per review (spec.md §3).
type ReviewTraceTurn struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	ReviewID    uint      `gorm:"index;not null" json:"review_id"`
	TurnNumber  int       `gorm:"not null" json:"turn_number"`
	Iteration   int       `gorm:"not null" json:"iteration"`
	Role        string    `gorm:"not null" json:"role"` // assistant|user
	Content     string    `gorm:"type:text" json:"content"`
	ToolName    string    `json:"tool_name,omitempty"`
	ToolInput   string    `gorm:"type:text" json:"tool_input,omitempty"`
	ToolResult  string    `gorm:"type:text" json:"tool_result,omitempty"`
	InputTokens *int      `json:"input_tokens,omitempty"`
	OutputTokens *int     `json:"output_tokens,omitempty"`
}

// WorkerMetrics records worker liveness; the cron heartbeat upserts it
// (SPEC_FULL.md §4).
type WorkerMetrics struct {
	ID             uint      `gorm:"primarykey" json:"id"`
	WorkerID       string    `gorm:"uniqueIndex;not null" json:"worker_id"`
	Hostname       string    `json:"hostname"`
	TasksProcessed int64     `json:"tasks_processed"`
	TasksFailed    int64     `json:"tasks_failed"`
	LastHeartbeat  time.Time `gorm:"index" json:"last_heartbeat"`
}

// AutoMigrate registers every model with GORM's schema migrator.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Installation{},
		&Repository{},
		&JobDedup{},
		&Review{},
		&ReviewTraceTurn{},
		&WorkerMetrics{},
	)
}
