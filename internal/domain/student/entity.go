package student

import (
	"errors"
	"strings"
	"time"

	"github.com/drivehub/admin-console/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENUMS
// ══════════════════════════════════════════════════════════════════════════════

// LessonStatus определяет состояние отдельного занятия.
type LessonStatus string

const (
	// LessonCompleted - занятие проведено.
	LessonCompleted LessonStatus = "completed"
	// LessonUpcoming - занятие запланировано.
	LessonUpcoming LessonStatus = "upcoming"
	// LessonCancelled - занятие отменено.
	LessonCancelled LessonStatus = "cancelled"
)

// IsValid проверяет, что статус корректен.
func (s LessonStatus) IsValid() bool {
	switch s {
	case LessonCompleted, LessonUpcoming, LessonCancelled:
		return true
	default:
		return false
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - запись о занятии ученика.
type Lesson struct {
	ID           string       `json:"id"`
	Date         time.Time    `json:"date"`
	Topic        string       `json:"topic"`
	InstructorID string       `json:"instructorId"`
	Status       LessonStatus `json:"status"`
}

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT
// ══════════════════════════════════════════════════════════════════════════════

// Student - ученик автошколы, зарегистрированный на платформе.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	City  string `json:"city"`

	// Registration - пара статусов (одобрение + аккаунт).
	shared.Registration

	// LessonsCompleted - количество проведённых занятий.
	LessonsCompleted int `json:"lessonsCompleted"`

	// UpcomingLessons - количество запланированных занятий.
	UpcomingLessons int `json:"upcomingLessons"`

	// InstructorID - закреплённый инструктор (nil, если не назначен).
	InstructorID *string `json:"instructorId,omitempty"`

	// Lessons - история занятий в порядке добавления.
	Lessons []Lesson `json:"lessons"`

	JoinedAt time.Time `json:"joinedAt"`
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrMissingID - не указан идентификатор.
	ErrMissingID = errors.New("student id is required")

	// ErrInvalidName - невалидное имя.
	ErrInvalidName = errors.New("invalid student name: must be 1-100 chars")

	// ErrNegativeCounter - отрицательный счётчик занятий.
	ErrNegativeCounter = errors.New("lesson counters must be non-negative")

	// ErrInvalidLesson - занятие с некорректным статусом.
	ErrInvalidLesson = errors.New("invalid lesson status")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY & VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// NewStudentParams содержит параметры для создания ученика.
type NewStudentParams struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	City         string
	InstructorID string
	JoinedAt     time.Time
}

// NewStudent создаёт ученика в статусе pending/active.
func NewStudent(params NewStudentParams) (*Student, error) {
	s := &Student{
		ID:    strings.TrimSpace(params.ID),
		Name:  strings.TrimSpace(params.Name),
		Email: strings.TrimSpace(params.Email),
		Phone: params.Phone,
		City:  params.City,
		Registration: shared.Registration{
			ApprovalStatus: shared.ApprovalPending,
			AccountStatus:  shared.AccountActive,
		},
		Lessons:  []Lesson{},
		JoinedAt: params.JoinedAt,
	}
	if params.InstructorID != "" {
		id := params.InstructorID
		s.InstructorID = &id
	}
	if s.JoinedAt.IsZero() {
		s.JoinedAt = time.Now().UTC()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate проверяет инварианты сущности.
func (s *Student) Validate() error {
	if s.ID == "" {
		return ErrMissingID
	}
	if len(s.Name) == 0 || len(s.Name) > 100 {
		return ErrInvalidName
	}
	if err := s.Registration.Validate(); err != nil {
		return err
	}
	if s.LessonsCompleted < 0 || s.UpcomingLessons < 0 {
		return ErrNegativeCounter
	}
	for _, l := range s.Lessons {
		if !l.Status.IsValid() {
			return ErrInvalidLesson
		}
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// HasInstructor возвращает true, если инструктор назначен.
func (s *Student) HasInstructor() bool {
	return s.InstructorID != nil && *s.InstructorID != ""
}

// CountLessons возвращает количество занятий с указанным статусом.
func (s *Student) CountLessons(status LessonStatus) int {
	n := 0
	for _, l := range s.Lessons {
		if l.Status == status {
			n++
		}
	}
	return n
}

// Matches проверяет вхождение строки поиска в имя, email или город.
func (s *Student) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Name), q) ||
		strings.Contains(strings.ToLower(s.Email), q) ||
		strings.Contains(strings.ToLower(s.City), q)
}

// Clone создаёт глубокую копию ученика.
func (s *Student) Clone() *Student {
	if s == nil {
		return nil
	}
	clone := *s
	if s.InstructorID != nil {
		id := *s.InstructorID
		clone.InstructorID = &id
	}
	if s.Lessons != nil {
		clone.Lessons = make([]Lesson, len(s.Lessons))
		copy(clone.Lessons, s.Lessons)
	}
	return &clone
}
