// Package console содержит ядро консоли администратора: дерево состояния,
// закрытый словарь действий и чистую функцию переходов Reduce.
//
// Reduce не выполняет ввод-вывод, не читает часы и не изменяет входное
// состояние: каждая изменённая коллекция копируется, неизменённые
// разделяются между версиями состояния. Текущее время передаётся
// вызывающим кодом, поэтому результат детерминирован.
package console

import (
	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/catalog"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/student"
)

// Stats - агрегированные счётчики панели управления. Поддерживаются
// инкрементально, но всегда восстановимы через Recompute.
type Stats struct {
	TotalStudents    int             `json:"totalStudents"`
	TotalInstructors int             `json:"totalInstructors"`
	ActiveLessons    int             `json:"activeLessons"`
	PendingApprovals int             `json:"pendingApprovals"`
	MonthlyRevenue   decimal.Decimal `json:"monthlyRevenue"`
	PendingPayouts   decimal.Decimal `json:"pendingPayouts"`
}

// Equal сравнивает счётчики, денежные поля - по значению.
func (s Stats) Equal(other Stats) bool {
	return len(Drift(s, other)) == 0
}

// Sequence хранит последние выданные номера последовательных ID.
type Sequence struct {
	Transaction int `json:"transaction"`
	Message     int `json:"message"`
}

// State - полное дерево состояния консоли.
// Значение State нельзя изменять на месте: его срезы могут разделяться
// с предыдущими версиями.
type State struct {
	Students      []student.Student       `json:"students"`
	Instructors   []instructor.Instructor `json:"instructors"`
	Transactions  []payout.Transaction    `json:"transactions"`
	Conversations []inbox.Conversation    `json:"conversations"`
	Messages      []inbox.ChatMessage     `json:"messages"`
	Packages      []catalog.Package       `json:"packages"`
	Settings      settings.Settings       `json:"settings"`
	Stats         Stats                   `json:"stats"`
	Seq           Sequence                `json:"seq"`
}

// ══════════════════════════════════════════════════════════════════════════════
// LOOKUPS
// ══════════════════════════════════════════════════════════════════════════════

// StudentIndex возвращает позицию ученика или -1.
func (s State) StudentIndex(id string) int {
	for i := range s.Students {
		if s.Students[i].ID == id {
			return i
		}
	}
	return -1
}

// InstructorIndex возвращает позицию инструктора или -1.
func (s State) InstructorIndex(id string) int {
	for i := range s.Instructors {
		if s.Instructors[i].ID == id {
			return i
		}
	}
	return -1
}

// ConversationIndex возвращает позицию диалога или -1.
func (s State) ConversationIndex(id string) int {
	for i := range s.Conversations {
		if s.Conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// PackageIndex возвращает позицию пакета или -1.
func (s State) PackageIndex(id string) int {
	for i := range s.Packages {
		if s.Packages[i].ID == id {
			return i
		}
	}
	return -1
}

// FindStudent возвращает копию ученика.
func (s State) FindStudent(id string) (student.Student, bool) {
	if i := s.StudentIndex(id); i >= 0 {
		return *s.Students[i].Clone(), true
	}
	return student.Student{}, false
}

// FindInstructor возвращает копию инструктора.
func (s State) FindInstructor(id string) (instructor.Instructor, bool) {
	if i := s.InstructorIndex(id); i >= 0 {
		return *s.Instructors[i].Clone(), true
	}
	return instructor.Instructor{}, false
}

// FindConversation возвращает диалог.
func (s State) FindConversation(id string) (inbox.Conversation, bool) {
	if i := s.ConversationIndex(id); i >= 0 {
		return s.Conversations[i], true
	}
	return inbox.Conversation{}, false
}

// FindPackage возвращает пакет.
func (s State) FindPackage(id string) (catalog.Package, bool) {
	if i := s.PackageIndex(id); i >= 0 {
		return s.Packages[i], true
	}
	return catalog.Package{}, false
}

// Clone создаёт глубокую копию состояния для передачи за пределы процесса
// или в код, который может её изменять.
func (s State) Clone() State {
	out := s
	out.Students = make([]student.Student, len(s.Students))
	for i := range s.Students {
		out.Students[i] = *s.Students[i].Clone()
	}
	out.Instructors = make([]instructor.Instructor, len(s.Instructors))
	for i := range s.Instructors {
		out.Instructors[i] = *s.Instructors[i].Clone()
	}
	out.Transactions = append([]payout.Transaction{}, s.Transactions...)
	out.Conversations = append([]inbox.Conversation{}, s.Conversations...)
	out.Messages = append([]inbox.ChatMessage{}, s.Messages...)
	out.Packages = append([]catalog.Package{}, s.Packages...)
	return out
}
