package course

import "time"

type Course struct {
	ID        string    `gorm:"primaryKey;size:26" json:"id"`
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Topic     string    `gorm:"type:varchar(255);not null" json:"topic"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Outline   string    `gorm:"type:text;not null" json:"outline"`
	Model     string    `gorm:"type:varchar(128);not null" json:"model"`
	Lessons   []Lesson  `gorm:"foreignKey:CourseID" json:"lessons,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Course) TableName() string { return "courses" }

type Lesson struct {
	ID string `gorm:"primaryKey;size:26" json:"id"`
	// nil for a standalone lesson
	CourseID  *string   `gorm:"size:26;index:idx_lesson_course_pos,priority:1" json:"course_id"`
	UserID    uint64    `gorm:"index;not null" json:"-"`
	Position  int       `gorm:"not null;index:idx_lesson_course_pos,priority:2" json:"position"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	Content   string    `gorm:"type:longtext;not null" json:"content"`
	Model     string    `gorm:"type:varchar(128);not null" json:"model"`
	CreatedAt time.Time `json:"created_at"`
}

func (Lesson) TableName() string { return "lessons" }

// Models lists every table owned by this package, for AutoMigrate.
func Models() []any {
	return []any{&Course{}, &Lesson{}, &Job{}}
}
