package course

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// CreateCourse stores the course and any lessons attached to it in one transaction.
func (r *Repo) CreateCourse(ctx context.Context, c *Course) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lessons := c.Lessons
		c.Lessons = nil
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		for i := range lessons {
			lessons[i].CourseID = &c.ID
			if err := tx.Create(&lessons[i]).Error; err != nil {
				return err
			}
		}
		c.Lessons = lessons
		return nil
	})
}

func (r *Repo) GetCourse(ctx context.Context, userID uint64, id string) (*Course, error) {
	var c Course
	if err := r.db.WithContext(ctx).
		Preload("Lessons", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ? AND user_id = ?", id, userID).
		First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *Repo) InsertLesson(ctx context.Context, l *Lesson) error {
	return r.db.WithContext(ctx).Create(l).Error
}

// NextLessonPosition returns the position after the course's last lesson.
func (r *Repo) NextLessonPosition(ctx context.Context, courseID string) (int, error) {
	var maxPos sql.NullInt64
	if err := r.db.WithContext(ctx).Model(&Lesson{}).
		Where("course_id = ?", courseID).
		Select("MAX(position)").
		Scan(&maxPos).Error; err != nil {
		return 0, err
	}
	if !maxPos.Valid {
		return 1, nil
	}
	return int(maxPos.Int64) + 1, nil
}

// Job CRUD
func (r *Repo) GetJobByID(ctx context.Context, id string) (*Job, error) {
	var j Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &j, nil
}

// UpdateJobStatusRunning claims a queued job, or a failed one being retried.
// It reports false when the job is running or already succeeded.
func (r *Repo) UpdateJobStatusRunning(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ? AND status IN ?", id, []JobStatus{JobQueued, JobFailed}).
		Update("status", JobRunning)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repo) MarkJobSucceeded(ctx context.Context, id string, courseID string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           JobSucceeded,
			"result_course_id": courseID,
			"error":            nil,
		}).Error
}

func (r *Repo) MarkJobFailed(ctx context.Context, id string, errMsg string) error {
	return r.db.WithContext(ctx).Model(&Job{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":           JobFailed,
			"error":            errMsg,
			"result_course_id": nil,
		}).Error
}

func (r *Repo) GetJobByUserAndIdempotencyKey(ctx context.Context, userID uint64, key string) (*Job, error) {
	var job Job
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJobOrGetExisting tries to create a job, but if (user_id, idempotency_key) already exists,
// it returns the existing job instead.
func (r *Repo) CreateJobOrGetExisting(ctx context.Context, job *Job) (*Job, bool, error) {
	if job.IdempotencyKey == nil || *job.IdempotencyKey == "" {
		job.IdempotencyKey = nil
		if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
			return nil, false, err
		}
		return job, true, nil
	}

	err := r.db.WithContext(ctx).Create(job).Error
	if err == nil {
		return job, true, nil
	}

	existing, getErr := r.GetJobByUserAndIdempotencyKey(ctx, job.UserID, *job.IdempotencyKey)
	if getErr == nil {
		return existing, false, nil
	}

	if errors.Is(getErr, gorm.ErrRecordNotFound) {
		return nil, false, err
	}
	return nil, false, getErr
}
