package student

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Консоль держит состояние в памяти, поэтому хранилищу нужен только
// контракт чтения для начальной загрузки. Реализации находятся в
// infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Reader загружает учеников из источника начальных данных.
type Reader interface {
	// ListStudents возвращает всех учеников вместе с занятиями
	// в порядке регистрации.
	ListStudents(ctx context.Context) ([]Student, error)
}
