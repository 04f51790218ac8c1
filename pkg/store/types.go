package store

import "time"

type Team struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type TeamMember struct {
	TeamID    string    `db:"team_id"`
	UserID    string    `db:"user_id"`
	Role      string    `db:"role"`
	CreatedAt time.Time `db:"created_at"`
}

type Subscription struct {
	TeamID        string    `db:"team_id"`
	Active        bool      `db:"active"`
	CreditBalance int64     `db:"credit_balance"`
	UpdatedAt     time.Time `db:"updated_at"`
}

type Agent struct {
	ID                string    `db:"id"`
	TeamID            string    `db:"team_id"`
	Name              string    `db:"name"`
	Status            string    `db:"status"`
	Department        *string   `db:"department"`
	ModelID           string    `db:"model_id"`
	FallbackEndpoint  *string   `db:"fallback_endpoint"`
	FallbackModelName *string   `db:"fallback_model_name"`
	FallbackAPIKey    *string   `db:"fallback_api_key"`
	SystemPrompt      string    `db:"system_prompt"`
	Proactive         bool      `db:"proactive"`
	HeartbeatSeconds  int       `db:"heartbeat_seconds"`
	ActiveHoursStart  int       `db:"active_hours_start"`
	ActiveHoursEnd    int       `db:"active_hours_end"`
	TemplateID        *string   `db:"template_id"`
	SkipCredits       bool      `db:"skip_credits"`
	InstalledSkills   JSONArray `db:"installed_skills"`
	CreatedBy         string    `db:"created_by"`
	CreatedAt         time.Time `db:"created_at"`
	UpdatedAt         time.Time `db:"updated_at"`
}

type Task struct {
	ID              string     `db:"id"`
	TeamID          string     `db:"team_id"`
	Title           string     `db:"title"`
	Description     string     `db:"description"`
	Status          string     `db:"status"`
	Priority        string     `db:"priority"`
	AssignedAgentID *string    `db:"assigned_agent_id"`
	ParentTaskID    *string    `db:"parent_task_id"`
	Deadline        *time.Time `db:"deadline"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

type Goal struct {
	ID         string     `db:"id"`
	TeamID     string     `db:"team_id"`
	Title      string     `db:"title"`
	Status     string     `db:"status"`
	TargetDate *time.Time `db:"target_date"`
	CreatedAt  time.Time  `db:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

type MeasurableGoal struct {
	ID           string     `db:"id"`
	TeamID       string     `db:"team_id"`
	MetricName   string     `db:"metric_name"`
	CurrentValue float64    `db:"current_value"`
	TargetValue  float64    `db:"target_value"`
	Unit         string     `db:"unit"`
	Deadline     *time.Time `db:"deadline"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

type Approval struct {
	ID           string     `db:"id"`
	TeamID       string     `db:"team_id"`
	AgentID      string     `db:"agent_id"`
	ActionType   string     `db:"action_type"`
	ActionDetail JSONObject `db:"action_detail"`
	RiskLevel    string     `db:"risk_level"`
	Status       string     `db:"status"`
	CreatedAt    time.Time  `db:"created_at"`
	ResolvedAt   *time.Time `db:"resolved_at"`
}

type ChatChannel struct {
	ID           string    `db:"id"`
	TeamID       string    `db:"team_id"`
	Type         string    `db:"type"`
	SingletonKey *string   `db:"singleton_key"`
	Name         *string   `db:"name"`
	CreatedAt    time.Time `db:"created_at"`
}

type ChatMessage struct {
	ID         int64     `db:"id"`
	TeamID     string    `db:"team_id"`
	ChannelID  string    `db:"channel_id"`
	SenderKind string    `db:"sender_kind"`
	SenderID   *string   `db:"sender_id"`
	Content    string    `db:"content"`
	CreatedAt  time.Time `db:"created_at"`
}

type Notification struct {
	ID        string     `db:"id"`
	TeamID    string     `db:"team_id"`
	UserID    string     `db:"user_id"`
	Type      string     `db:"type"`
	ChannelID *string    `db:"channel_id"`
	ReadAt    *time.Time `db:"read_at"`
	CreatedAt time.Time  `db:"created_at"`
}

type KBDocument struct {
	ID         string    `db:"id"`
	TeamID     string    `db:"team_id"`
	Filename   string    `db:"filename"`
	Format     string    `db:"format"`
	Status     string    `db:"status"`
	SummaryL0  string    `db:"summary_l0"`
	SummaryL1  string    `db:"summary_l1"`
	ChunkCount int       `db:"chunk_count"`
	Error      string    `db:"error"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type KBChunk struct {
	ID         string      `db:"id"`
	TeamID     string      `db:"team_id"`
	DocumentID string      `db:"document_id"`
	Ordinal    int         `db:"ordinal"`
	Content    string      `db:"content"`
	TokenCount int         `db:"token_count"`
	Embedding  Float8Array `db:"embedding"`
	CreatedAt  time.Time   `db:"created_at"`
}

type KBMemory struct {
	ID        string      `db:"id"`
	TeamID    string      `db:"team_id"`
	AgentID   *string     `db:"agent_id"`
	Content   string      `db:"content"`
	Embedding Float8Array `db:"embedding"`
	CreatedAt time.Time   `db:"created_at"`
}

type SORTable struct {
	ID        string     `db:"id"`
	TeamID    string     `db:"team_id"`
	Name      string     `db:"name"`
	NameLower string     `db:"name_lower"`
	Columns   JSONArray  `db:"columns"`
	CreatedAt time.Time  `db:"created_at"`
}

type SORRow struct {
	ID        string     `db:"id"`
	TeamID    string     `db:"team_id"`
	TableID   string     `db:"table_id"`
	Data      JSONObject `db:"data"`
	CreatedAt time.Time  `db:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"`
}

type SORPermission struct {
	AgentID  string `db:"agent_id"`
	TableID  string `db:"table_id"`
	CanRead  bool   `db:"can_read"`
	CanWrite bool   `db:"can_write"`
}

type Credential struct {
	TeamID    string    `db:"team_id"`
	ServiceID string    `db:"service_id"`
	CredType  string    `db:"cred_type"`
	Blob      string    `db:"blob"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type ActivityEvent struct {
	ID        int64      `db:"id"`
	TeamID    string     `db:"team_id"`
	AgentID   *string    `db:"agent_id"`
	EventType string     `db:"event_type"`
	Detail    JSONObject `db:"detail"`
	CreatedAt time.Time  `db:"created_at"`
}

type CreditTransaction struct {
	ID            int64     `db:"id"`
	TeamID        string    `db:"team_id"`
	AgentID       *string   `db:"agent_id"`
	Amount        int64     `db:"amount"`
	CorrelationID string    `db:"correlation_id"`
	CreatedAt     time.Time `db:"created_at"`
}
