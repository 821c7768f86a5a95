// Package student содержит доменную модель ученика автошколы.
//
// Пакет определяет:
//
//   - Сущности: Student, Lesson
//   - Перечисления: LessonStatus (статусы регистрации берутся из shared.Registration)
//   - Интерфейс чтения: Reader, который реализуют источники начальных данных
//
// Сущности не знают о консоли администратора: переходы состояний
// (одобрение, блокировка, удаление) применяет console.Reduce к копиям,
// полученным через Clone.
//
// # Пример
//
//	s, err := student.NewStudent(student.NewStudentParams{
//	    ID:    "STU-001",
//	    Name:  "Aigerim Sadykova",
//	    Email: "aigerim@example.com",
//	})
//	if err != nil {
//	    return err
//	}
//	s.Approve()
package student
