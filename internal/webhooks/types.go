// Package webhooks holds outgoing webhook definitions, the request builder,
// and the dispatcher.
package webhooks

import "time"

// Method is an HTTP method a webhook definition may use.
const (
	MethodGet    = "GET"
	MethodPost   = "POST"
	MethodPut    = "PUT"
	MethodDelete = "DELETE"
	MethodPatch  = "PATCH"
)

// ValidMethod reports whether m is one of the supported dispatch methods.
func ValidMethod(m string) bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	}
	return false
}

// KeyValue is one header or query parameter entry. Disabled entries are
// retained in configuration but excluded from built requests.
type KeyValue struct {
	Key     string `json:"key" yaml:"key"`
	Value   string `json:"value" yaml:"value"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

// BodyContentType selects the Content-Type injected for a configured body.
type BodyContentType string

const (
	BodyJSON BodyContentType = "json"
	BodyForm BodyContentType = "form"
	BodyText BodyContentType = "text"
)

// MIME returns the Content-Type header value for the body type.
func (t BodyContentType) MIME() string {
	switch t {
	case BodyJSON:
		return "application/json"
	case BodyForm:
		return "application/x-www-form-urlencoded"
	default:
		return "text/plain"
	}
}

// BodySpec is the configured request body. Content is sent verbatim.
type BodySpec struct {
	ContentType BodyContentType `json:"content_type" yaml:"content_type"`
	Content     string          `json:"content" yaml:"content"`
}

// Tag is a display label attached to a webhook definition.
type Tag struct {
	ID    string `json:"id" yaml:"id,omitempty"`
	Name  string `json:"name" yaml:"name"`
	Color string `json:"color" yaml:"color"`
}

// ScheduleType describes when a webhook should fire automatically.
type ScheduleType string

const (
	ScheduleManual   ScheduleType = "manual"
	ScheduleDaily    ScheduleType = "daily"
	ScheduleWeekly   ScheduleType = "weekly"
	ScheduleInterval ScheduleType = "interval"
)

// Schedule is the dispatch schedule descriptor. It only takes effect when
// the scheduler is enabled; otherwise it is informational.
type Schedule struct {
	Type ScheduleType `json:"type" yaml:"type"`

	// Time of day for daily/weekly schedules, "15:04" format.
	Time string `json:"time,omitempty" yaml:"time,omitempty"`

	// DayOfWeek for weekly schedules, 0 = Sunday.
	DayOfWeek int `json:"day_of_week,omitempty" yaml:"day_of_week,omitempty"`

	// IntervalMinutes for interval schedules.
	IntervalMinutes int `json:"interval_minutes,omitempty" yaml:"interval_minutes,omitempty"`
}

// ExecutionStatus is the denormalized outcome cached on a definition.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "success"
	StatusError   ExecutionStatus = "error"
)

// Definition is one configured outgoing webhook.
type Definition struct {
	ID          string     `json:"id" yaml:"id,omitempty"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description" yaml:"description"`
	URL         string     `json:"url" yaml:"url"`
	Method      string     `json:"method" yaml:"method"`
	Headers     []KeyValue `json:"headers" yaml:"headers,omitempty"`
	Params      []KeyValue `json:"params" yaml:"params,omitempty"`
	Body        *BodySpec  `json:"body,omitempty" yaml:"body,omitempty"`
	Enabled     bool       `json:"enabled" yaml:"enabled"`
	Tags        []Tag      `json:"tags" yaml:"tags,omitempty"`
	Schedule    *Schedule  `json:"schedule,omitempty" yaml:"schedule,omitempty"`

	// Cache of the most recent non-test dispatch outcome. Mutated only by
	// the dispatcher on normal-mode runs; LastExecutionStatus is non-empty
	// only when LastExecutedAt is set.
	LastExecutedAt      *time.Time      `json:"last_executed_at,omitempty" yaml:"-"`
	LastExecutionStatus ExecutionStatus `json:"last_execution_status,omitempty" yaml:"-"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
	UserID    string    `json:"user_id,omitempty" yaml:"-"`
}

// IncomingWebhook is a passive, externally-triggered receiver definition.
type IncomingWebhook struct {
	ID           string     `json:"id" yaml:"id,omitempty"`
	Name         string     `json:"name" yaml:"name"`
	Description  string     `json:"description" yaml:"description"`
	EndpointPath string     `json:"endpoint_path" yaml:"endpoint_path"`
	SecretKey    string     `json:"secret_key" yaml:"secret_key,omitempty"`
	Enabled      bool       `json:"enabled" yaml:"enabled"`
	LastCalledAt *time.Time `json:"last_called_at,omitempty" yaml:"-"`
	CreatedAt    time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"-"`
	UserID       string     `json:"user_id,omitempty" yaml:"-"`
}
