package models

import "time"

type TaskStatus string

const (
	StatusRunning  TaskStatus = "running"
	StatusComplete TaskStatus = "complete"
	StatusError    TaskStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s TaskStatus) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

const (
	KindExtraction = "extraction"
	KindSendEmails = "send_emails"
)

// Task is the registry entry of one background job.
type Task struct {
	TaskId    string     `json:"task_id"`
	Kind      string     `json:"kind"`
	Status    TaskStatus `json:"status"`
	Progress  string     `json:"progress,omitempty"`
	Message   string     `json:"message,omitempty"`
	FilePath  string     `json:"-"`
	FileName  string     `json:"filename,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Status is what the polling endpoints return.
type Status struct {
	Status   TaskStatus `json:"status"`
	Progress string     `json:"progress,omitempty"`
	Message  string     `json:"message,omitempty"`
	FileName string     `json:"filename,omitempty"`
}

func (t Task) ToStatus() Status {
	return Status{
		Status:   t.Status,
		Progress: t.Progress,
		Message:  t.Message,
		FileName: t.FileName,
	}
}

// Outcome is what a successful job body hands back to the runner.
type Outcome struct {
	Message  string
	FilePath string
	FileName string
}

// Record is one registry member as returned by the search API.
type Record map[string]interface{}

// RecordColumns is the fixed export projection, in column order.
var RecordColumns = []string{"email", "name", "cui", "region", "phone", "type"}

type ExtractionRequest struct {
	// Region nil means all regions.
	Region     *int
	RegionName string
}

const SecureSMTPS = "smtps"

type SMTPParams struct {
	Host     string
	Port     int
	Username string
	Password string
	// Secure "smtps" selects implicit TLS, anything else opportunistic STARTTLS.
	Secure string
}

func (p SMTPParams) ImplicitTLS() bool {
	return p.Secure == SecureSMTPS
}

type SendRequest struct {
	SMTP     SMTPParams
	Subject  string
	BodyHTML string
}

type TaskIdResponse struct {
	TaskId string `json:"task_id"`
}

type FileHistoryResponse struct {
	Files []string `json:"files"`
}

type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
