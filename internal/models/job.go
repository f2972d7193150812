package models

import "time"

// JobStatus represents the state of a generation job
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether no further transition can leave this status.
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents a generation job and its incremental results
type Job struct {
	ID               string            `json:"job_id"`
	Status           JobStatus         `json:"status"`
	Progress         float64           `json:"progress"`
	Request          GenerationRequest `json:"request"`
	Results          []TemplateResult  `json:"results"`
	SkippedTemplates int               `json:"skipped_templates"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
	StartedAt        *time.Time        `json:"started_at,omitempty"`
	CompletedAt      *time.Time        `json:"completed_at,omitempty"`
	ProcessingTime   float64           `json:"processing_time,omitempty"`
}

// View returns the status-specific projection of the job.
func (j *Job) View() JobView {
	switch j.Status {
	case StatusCompleted:
		completedAt := j.UpdatedAt
		if j.CompletedAt != nil {
			completedAt = *j.CompletedAt
		}
		templates := j.Results
		if templates == nil {
			templates = []TemplateResult{}
		}
		return CompletedJob{
			JobID:          j.ID,
			Templates:      templates,
			CompletedAt:    completedAt,
			ProcessingTime: j.ProcessingTime,
			Skipped:        j.SkippedTemplates,
		}
	case StatusFailed:
		return FailedJob{JobID: j.ID, ErrorMessage: j.ErrorMessage}
	default:
		return PendingJob{JobID: j.ID, State: j.Status, Progress: j.Progress}
	}
}

// JobView is implemented by the per-status job projections. Each variant
// carries only the fields that are meaningful in its state.
type JobView interface {
	JobStatus() JobStatus
}

// PendingJob is the view of a queued or processing job.
type PendingJob struct {
	JobID    string
	State    JobStatus
	Progress float64
}

func (v PendingJob) JobStatus() JobStatus { return v.State }

// CompletedJob is the view of a successfully finished job.
type CompletedJob struct {
	JobID          string
	Templates      []TemplateResult
	CompletedAt    time.Time
	ProcessingTime float64
	Skipped        int
}

func (CompletedJob) JobStatus() JobStatus { return StatusCompleted }

// FailedJob is the view of a job that ended in failure.
type FailedJob struct {
	JobID        string
	ErrorMessage string
}

func (FailedJob) JobStatus() JobStatus { return StatusFailed }

// JobSummary is the compact listing form of a job
type JobSummary struct {
	JobID     string     `json:"job_id"`
	Status    JobStatus  `json:"status"`
	Progress  float64    `json:"progress"`
	Topic     string     `json:"topic"`
	Style     HumorStyle `json:"style"`
	CreatedAt time.Time  `json:"created_at"`
}

// Summary returns the listing form of the job.
func (j *Job) Summary() JobSummary {
	return JobSummary{
		JobID:     j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Topic:     j.Request.Topic,
		Style:     j.Request.Style,
		CreatedAt: j.CreatedAt,
	}
}
