package console

import (
	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// DERIVED STATS PROJECTOR
// Счётчики обновляются одним шагом после изменения сущности: вклад
// сущности до изменения вычитается, вклад после - прибавляется. Повторное
// действие над сущностью в целевом состоянии даёт нулевую дельту.
// ══════════════════════════════════════════════════════════════════════════════

// footprint - вклад одной сущности в агрегированные счётчики.
// Нулевое значение соответствует отсутствующей сущности.
type footprint struct {
	students       int
	instructors    int
	pending        int
	activeLessons  int
	pendingPayouts decimal.Decimal
}

func studentFootprint(s *student.Student) footprint {
	if s == nil {
		return footprint{}
	}
	f := footprint{students: 1, activeLessons: s.UpcomingLessons}
	if s.IsPending() {
		f.pending = 1
	}
	return f
}

func instructorFootprint(i *instructor.Instructor) footprint {
	if i == nil {
		return footprint{}
	}
	f := footprint{instructors: 1, pendingPayouts: i.PendingPayment}
	if i.IsPending() {
		f.pending = 1
	}
	return f
}

// project применяет разницу next - prev к счётчикам. Все счётчики
// ограничены снизу нулём.
func project(stats Stats, prev, next footprint) Stats {
	stats.TotalStudents = floorInt(stats.TotalStudents + next.students - prev.students)
	stats.TotalInstructors = floorInt(stats.TotalInstructors + next.instructors - prev.instructors)
	stats.PendingApprovals = floorInt(stats.PendingApprovals + next.pending - prev.pending)
	stats.ActiveLessons = floorInt(stats.ActiveLessons + next.activeLessons - prev.activeLessons)
	if !next.pendingPayouts.Equal(prev.pendingPayouts) {
		delta := next.pendingPayouts.Sub(prev.pendingPayouts)
		stats.PendingPayouts = shared.FloorZero(stats.PendingPayouts.Add(delta))
	}
	return stats
}

func floorInt(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// ══════════════════════════════════════════════════════════════════════════════
// FULL RECOMPUTATION
// ══════════════════════════════════════════════════════════════════════════════

// Recompute выводит счётчики заново из коллекций. MonthlyRevenue не имеет
// источника среди сущностей и переносится из текущих счётчиков.
func Recompute(s State) Stats {
	stats := Stats{
		TotalStudents:    len(s.Students),
		TotalInstructors: len(s.Instructors),
		MonthlyRevenue:   s.Stats.MonthlyRevenue,
		PendingPayouts:   decimal.Zero,
	}
	for i := range s.Students {
		if s.Students[i].IsPending() {
			stats.PendingApprovals++
		}
		stats.ActiveLessons += s.Students[i].UpcomingLessons
	}
	for i := range s.Instructors {
		if s.Instructors[i].IsPending() {
			stats.PendingApprovals++
		}
		stats.PendingPayouts = stats.PendingPayouts.Add(s.Instructors[i].PendingPayment)
	}
	return stats
}

// Drift возвращает имена счётчиков, которые различаются в a и b.
func Drift(a, b Stats) []string {
	var fields []string
	if a.TotalStudents != b.TotalStudents {
		fields = append(fields, "totalStudents")
	}
	if a.TotalInstructors != b.TotalInstructors {
		fields = append(fields, "totalInstructors")
	}
	if a.ActiveLessons != b.ActiveLessons {
		fields = append(fields, "activeLessons")
	}
	if a.PendingApprovals != b.PendingApprovals {
		fields = append(fields, "pendingApprovals")
	}
	if !a.MonthlyRevenue.Equal(b.MonthlyRevenue) {
		fields = append(fields, "monthlyRevenue")
	}
	if !a.PendingPayouts.Equal(b.PendingPayouts) {
		fields = append(fields, "pendingPayouts")
	}
	return fields
}
