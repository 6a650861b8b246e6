package course

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/suPer8Hu/coding-arena/internal/ai"
	"github.com/suPer8Hu/coding-arena/internal/common"
	"gorm.io/gorm"
)

var (
	ErrTopicRequired = errors.New("topic is required")
	ErrNotFound      = errors.New("not found")
	ErrEmptyOutline  = errors.New("model returned an empty outline")
)

// Resolver maps a model name to a blocking provider.
type Resolver interface {
	Resolve(ctx context.Context, model string) (ai.Provider, error)
}

type Service struct {
	repo       *Repo
	resolver   Resolver
	opts       ai.Options
	maxLessons int
}

const defaultLessons = 3

func NewService(repo *Repo, resolver Resolver, opts ai.Options, maxLessons int) *Service {
	if maxLessons <= 0 || maxLessons > 50 {
		maxLessons = 10
	}
	return &Service{repo: repo, resolver: resolver, opts: opts, maxLessons: maxLessons}
}

type LessonInput struct {
	Topic    string `json:"topic"`
	CourseID string `json:"course_id"`
	Model    string `json:"model"`
}

type OutlineInput struct {
	Topic   string `json:"topic"`
	Lessons int    `json:"lessons"`
	Model   string `json:"model"`
}

func (s *Service) lessonCount(n int) int {
	if n <= 0 {
		return defaultLessons
	}
	if n > s.maxLessons {
		return s.maxLessons
	}
	return n
}

func (s *Service) complete(ctx context.Context, model string, msgs []ai.Message) (string, error) {
	p, err := s.resolver.Resolve(ctx, model)
	if err != nil {
		return "", err
	}
	out, err := p.Chat(ctx, msgs, s.opts)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GenerateLesson writes one lesson, standalone or appended to a course the
// user owns.
func (s *Service) GenerateLesson(ctx context.Context, userID uint64, in LessonInput) (*Lesson, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}

	var courseID *string
	courseTitle := ""
	position := 1
	total := 1
	if in.CourseID != "" {
		c, err := s.repo.GetCourse(ctx, userID, in.CourseID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		if position, err = s.repo.NextLessonPosition(ctx, c.ID); err != nil {
			return nil, err
		}
		courseID, courseTitle, total = &c.ID, c.Title, position
	}

	content, err := s.complete(ctx, in.Model, lessonMessages(topic, courseTitle, position, total))
	if err != nil {
		return nil, err
	}

	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	l := &Lesson{
		ID:       id,
		CourseID: courseID,
		UserID:   userID,
		Position: position,
		Title:    TitleFromContent(content, topic),
		Content:  content,
		Model:    in.Model,
	}
	if err := s.repo.InsertLesson(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *Service) outline(ctx context.Context, in OutlineInput) (string, []string, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return "", nil, ErrTopicRequired
	}
	n := s.lessonCount(in.Lessons)
	reply, err := s.complete(ctx, in.Model, outlineMessages(topic, n))
	if err != nil {
		return "", nil, err
	}
	titles := ParseOutline(reply, n)
	if len(titles) == 0 {
		return "", nil, ErrEmptyOutline
	}
	return topic, titles, nil
}

func (s *Service) newCourse(userID uint64, topic, model string, titles []string) (*Course, error) {
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	return &Course{
		ID:      id,
		UserID:  userID,
		Topic:   topic,
		Title:   truncate(topic, 255),
		Outline: strings.Join(titles, "\n"),
		Model:   model,
	}, nil
}

// GenerateOutline plans a course and stores it without lessons.
func (s *Service) GenerateOutline(ctx context.Context, userID uint64, in OutlineInput) (*Course, error) {
	topic, titles, err := s.outline(ctx, in)
	if err != nil {
		return nil, err
	}
	c, err := s.newCourse(userID, topic, in.Model, titles)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CreateCourse(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// GenerateCourse plans a course, writes every lesson, and stores them all
// at once so a failed generation leaves nothing behind.
func (s *Service) GenerateCourse(ctx context.Context, userID uint64, in OutlineInput) (*Course, error) {
	topic, titles, err := s.outline(ctx, in)
	if err != nil {
		return nil, err
	}
	c, err := s.newCourse(userID, topic, in.Model, titles)
	if err != nil {
		return nil, err
	}

	for i, title := range titles {
		content, err := s.complete(ctx, in.Model, lessonMessages(title, c.Title, i+1, len(titles)))
		if err != nil {
			return nil, fmt.Errorf("lesson %d: %w", i+1, err)
		}
		id, err := common.NewULID()
		if err != nil {
			return nil, err
		}
		c.Lessons = append(c.Lessons, Lesson{
			ID:       id,
			UserID:   userID,
			Position: i + 1,
			Title:    truncate(title, 255),
			Content:  content,
			Model:    in.Model,
		})
	}

	if err := s.repo.CreateCourse(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) GetCourse(ctx context.Context, userID uint64, id string) (*Course, error) {
	c, err := s.repo.GetCourse(ctx, userID, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return c, err
}

// NewJob builds a queued course job; it is not stored yet.
func (s *Service) NewJob(userID uint64, in OutlineInput, idempotencyKey string) (*Job, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return nil, ErrTopicRequired
	}
	id, err := common.NewULID()
	if err != nil {
		return nil, err
	}
	j := &Job{
		ID:      id,
		UserID:  userID,
		Topic:   topic,
		Lessons: s.lessonCount(in.Lessons),
		Model:   in.Model,
		Status:  JobQueued,
	}
	if idempotencyKey != "" {
		j.IdempotencyKey = &idempotencyKey
	}
	return j, nil
}

// CreateJob stores the job. created is false when an earlier job with the
// same idempotency key was returned instead.
func (s *Service) CreateJob(ctx context.Context, j *Job) (job *Job, created bool, err error) {
	return s.repo.CreateJobOrGetExisting(ctx, j)
}

// GetJob hides jobs owned by other users.
func (s *Service) GetJob(ctx context.Context, userID uint64, id string) (*Job, error) {
	j, err := s.repo.GetJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if j.UserID != userID {
		return nil, ErrNotFound
	}
	return j, nil
}

// RunJob executes a queued or previously failed job. Running and succeeded
// jobs are skipped so a redelivered message does no work.
func (s *Service) RunJob(ctx context.Context, jobID string) error {
	claimed, err := s.repo.UpdateJobStatusRunning(ctx, jobID)
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}
	j, err := s.repo.GetJobByID(ctx, jobID)
	if err != nil {
		return err
	}

	c, err := s.GenerateCourse(ctx, j.UserID, OutlineInput{Topic: j.Topic, Lessons: j.Lessons, Model: j.Model})
	if err != nil {
		// a cancelled run must still leave the job claimable for its retry
		if markErr := s.repo.MarkJobFailed(context.WithoutCancel(ctx), jobID, err.Error()); markErr != nil {
			return errors.Join(err, markErr)
		}
		return err
	}
	return s.repo.MarkJobSucceeded(ctx, jobID, c.ID)
}
