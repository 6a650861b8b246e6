package course

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one queued course generation.
type Job struct {
	ID string `gorm:"primaryKey;size:26" json:"id"` // ULID length

	UserID uint64 `gorm:"index;not null;index:uniq_course_job_idempo,unique,priority:1" json:"-"`

	Topic   string `gorm:"type:varchar(255);not null" json:"topic"`
	Lessons int    `gorm:"not null" json:"lessons"`
	Model   string `gorm:"type:varchar(128)" json:"model"`

	IdempotencyKey *string `gorm:"type:varchar(128);index:uniq_course_job_idempo,unique,priority:2" json:"-"`

	Status JobStatus `gorm:"type:varchar(16);index;not null" json:"status"`

	// Filled when succeeded
	ResultCourseID *string `gorm:"size:26;index" json:"result_course_id"`

	// Filled when failed
	Error *string `gorm:"type:text" json:"error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Job) TableName() string { return "course_jobs" }
