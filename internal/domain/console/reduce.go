package console

import (
	"fmt"
	"time"

	"github.com/drivehub/admin-console/internal/domain/catalog"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/student"
)

// Outcome - результат применения действия.
type Outcome string

const (
	// OutcomeApplied - состояние изменилось.
	OutcomeApplied Outcome = "applied"
	// OutcomeUnchanged - сущность уже находилась в целевом состоянии.
	OutcomeUnchanged Outcome = "unchanged"
	// OutcomeNotFound - сущность с таким ID не существует.
	OutcomeNotFound Outcome = "not_found"
	// OutcomeInvalid - действие отклонено до Reduce (например, комиссия вне диапазона).
	OutcomeInvalid Outcome = "invalid"
)

// Changed возвращает true, если состояние было заменено.
func (o Outcome) Changed() bool {
	return o == OutcomeApplied
}

// Transition - результат Reduce.
type Transition struct {
	State   State
	Outcome Outcome

	// CreatedID - ID транзакции или сообщения, созданного действием.
	CreatedID string
}

// Reduce вычисляет следующее состояние. Функция чистая и тотальная: для
// неизвестного ID или действия без эффекта возвращается исходное состояние.
// Паника возможна только для типа действия, не входящего в словарь, что
// является ошибкой программирования.
func Reduce(s State, a Action, now time.Time) Transition {
	switch a := a.(type) {
	case ApproveStudentAction:
		return updateStudent(s, a.ID, (*student.Student).Approve)
	case RejectStudentAction:
		return updateStudent(s, a.ID, (*student.Student).Reject)
	case SuspendStudentAction:
		return updateStudent(s, a.ID, (*student.Student).Suspend)
	case ActivateStudentAction:
		return updateStudent(s, a.ID, (*student.Student).Activate)
	case DeleteStudentAction:
		return deleteStudent(s, a.ID)

	case ApproveInstructorAction:
		return updateInstructor(s, a.ID, (*instructor.Instructor).Approve)
	case RejectInstructorAction:
		return updateInstructor(s, a.ID, (*instructor.Instructor).Reject)
	case SuspendInstructorAction:
		return updateInstructor(s, a.ID, (*instructor.Instructor).Suspend)
	case ActivateInstructorAction:
		return updateInstructor(s, a.ID, (*instructor.Instructor).Activate)

	case TransferPaymentAction:
		return transferPayment(s, a, now)

	case SendMessageAction:
		return sendMessage(s, a, now)
	case MarkConversationResolvedAction:
		return updateConversation(s, a.ID, (*inbox.Conversation).MarkResolved)
	case MarkConversationReadAction:
		return updateConversation(s, a.ID, (*inbox.Conversation).MarkRead)

	case UpdateSettingsAction:
		next := a.Patch.Apply(s.Settings)
		if next == s.Settings {
			return unchanged(s)
		}
		out := s
		out.Settings = next
		return applied(out)

	case ApprovePackageAction:
		return updatePackage(s, a.ID, (*catalog.Package).Approve)
	case RejectPackageAction:
		return updatePackage(s, a.ID, (*catalog.Package).Reject)
	case UpdatePackageCommissionAction:
		return updatePackage(s, a.ID, func(p *catalog.Package) bool {
			return p.SetCommission(a.Percentage)
		})
	case DeletePackageAction:
		i := s.PackageIndex(a.ID)
		if i < 0 {
			return notFound(s)
		}
		out := s
		out.Packages = removeAt(s.Packages, i)
		return applied(out)

	default:
		panic(fmt.Sprintf("console: unhandled action %T", a))
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STUDENTS & INSTRUCTORS
// ══════════════════════════════════════════════════════════════════════════════

func updateStudent(s State, id string, mutate func(*student.Student) bool) Transition {
	i := s.StudentIndex(id)
	if i < 0 {
		return notFound(s)
	}
	prev := &s.Students[i]
	next := prev.Clone()
	if !mutate(next) {
		return unchanged(s)
	}
	out := s
	out.Students = replaceAt(s.Students, i, *next)
	out.Stats = project(s.Stats, studentFootprint(prev), studentFootprint(next))
	return applied(out)
}

func deleteStudent(s State, id string) Transition {
	i := s.StudentIndex(id)
	if i < 0 {
		return notFound(s)
	}
	out := s
	out.Students = removeAt(s.Students, i)
	out.Stats = project(s.Stats, studentFootprint(&s.Students[i]), footprint{})
	return applied(out)
}

func updateInstructor(s State, id string, mutate func(*instructor.Instructor) bool) Transition {
	i := s.InstructorIndex(id)
	if i < 0 {
		return notFound(s)
	}
	prev := &s.Instructors[i]
	next := prev.Clone()
	if !mutate(next) {
		return unchanged(s)
	}
	out := s
	out.Instructors = replaceAt(s.Instructors, i, *next)
	out.Stats = project(s.Stats, instructorFootprint(prev), instructorFootprint(next))
	return applied(out)
}

// ══════════════════════════════════════════════════════════════════════════════
// PAYOUTS
// ══════════════════════════════════════════════════════════════════════════════

// transferPayment записывает перевод, закрывает остальные ожидающие
// транзакции инструктора и обнуляет сумму к выплате. Перевод неизвестному
// инструктору записывается с именем "Unknown" и не меняет счётчики.
func transferPayment(s State, a TransferPaymentAction, now time.Time) Transition {
	out := s
	name := payout.UnknownInstructor
	var prevFP, nextFP footprint

	if i := s.InstructorIndex(a.InstructorID); i >= 0 {
		prev := &s.Instructors[i]
		next := prev.Clone()
		next.SettlePayment()
		name = prev.Name
		out.Instructors = replaceAt(s.Instructors, i, *next)
		prevFP, nextFP = instructorFootprint(prev), instructorFootprint(next)
	}

	txns := make([]payout.Transaction, 0, len(s.Transactions)+1)
	taken := make(map[string]struct{}, len(s.Transactions))
	for _, t := range s.Transactions {
		taken[t.ID] = struct{}{}
		if t.IsPendingFor(a.InstructorID) {
			t = t.Paid()
		}
		txns = append(txns, t)
	}

	id, seq := nextSequential(s.Seq.Transaction, payout.FormatID, taken)
	txns = append(txns, payout.NewTransfer(id, a.InstructorID, name, a.Amount, now))

	out.Transactions = txns
	out.Seq.Transaction = seq
	out.Stats = project(s.Stats, prevFP, nextFP)
	return Transition{State: out, Outcome: OutcomeApplied, CreatedID: id}
}

// ══════════════════════════════════════════════════════════════════════════════
// INBOX
// ══════════════════════════════════════════════════════════════════════════════

// sendMessage добавляет сообщение только в существующий диалог:
// сообщение без владельца не создаётся.
func sendMessage(s State, a SendMessageAction, now time.Time) Transition {
	i := s.ConversationIndex(a.ConversationID)
	if i < 0 {
		return notFound(s)
	}

	taken := make(map[string]struct{}, len(s.Messages))
	for _, m := range s.Messages {
		taken[m.ID] = struct{}{}
	}
	id, seq := nextSequential(s.Seq.Message, inbox.FormatMessageID, taken)
	msg := inbox.NewAdminMessage(id, a.ConversationID, a.Text, now)

	conv := s.Conversations[i]
	conv.Record(msg)

	out := s
	out.Messages = appendTo(s.Messages, msg)
	out.Conversations = replaceAt(s.Conversations, i, conv)
	out.Seq.Message = seq
	return Transition{State: out, Outcome: OutcomeApplied, CreatedID: id}
}

func updateConversation(s State, id string, mutate func(*inbox.Conversation) bool) Transition {
	i := s.ConversationIndex(id)
	if i < 0 {
		return notFound(s)
	}
	conv := s.Conversations[i]
	if !mutate(&conv) {
		return unchanged(s)
	}
	out := s
	out.Conversations = replaceAt(s.Conversations, i, conv)
	return applied(out)
}

// ══════════════════════════════════════════════════════════════════════════════
// PACKAGES
// ══════════════════════════════════════════════════════════════════════════════

func updatePackage(s State, id string, mutate func(*catalog.Package) bool) Transition {
	i := s.PackageIndex(id)
	if i < 0 {
		return notFound(s)
	}
	pkg := s.Packages[i]
	if !mutate(&pkg) {
		return unchanged(s)
	}
	out := s
	out.Packages = replaceAt(s.Packages, i, pkg)
	return applied(out)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func applied(s State) Transition   { return Transition{State: s, Outcome: OutcomeApplied} }
func unchanged(s State) Transition { return Transition{State: s, Outcome: OutcomeUnchanged} }
func notFound(s State) Transition  { return Transition{State: s, Outcome: OutcomeNotFound} }

// nextSequential выдаёт следующий свободный последовательный ID, пропуская
// номера, уже занятые записями из начальных данных.
func nextSequential(last int, format func(int) string, taken map[string]struct{}) (string, int) {
	n := last
	for {
		n++
		id := format(n)
		if _, ok := taken[id]; !ok {
			return id, n
		}
	}
}

func replaceAt[T any](xs []T, i int, v T) []T {
	out := make([]T, len(xs))
	copy(out, xs)
	out[i] = v
	return out
}

func removeAt[T any](xs []T, i int) []T {
	out := make([]T, 0, len(xs)-1)
	out = append(out, xs[:i]...)
	return append(out, xs[i+1:]...)
}

func appendTo[T any](xs []T, v T) []T {
	out := make([]T, len(xs), len(xs)+1)
	copy(out, xs)
	return append(out, v)
}
