package instructor

import "context"

// Reader загружает инструкторов из источника начальных данных.
type Reader interface {
	// ListInstructors возвращает инструкторов вместе с документами.
	ListInstructors(ctx context.Context) ([]Instructor, error)
}
