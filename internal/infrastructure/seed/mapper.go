package seed

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/drivehub/admin-console/internal/domain/catalog"
	"github.com/drivehub/admin-console/internal/domain/console"
	"github.com/drivehub/admin-console/internal/domain/inbox"
	"github.com/drivehub/admin-console/internal/domain/instructor"
	"github.com/drivehub/admin-console/internal/domain/payout"
	"github.com/drivehub/admin-console/internal/domain/settings"
	"github.com/drivehub/admin-console/internal/domain/shared"
	"github.com/drivehub/admin-console/internal/domain/student"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAPPER - DTO to domain state
// Все ошибки документа собираются в одну, чтобы оператор увидел их разом.
// ══════════════════════════════════════════════════════════════════════════════

// ToState converts a seed document into a console state. The result is not
// normalized yet.
func (d *Document) ToState() (console.State, error) {
	var errs []error
	fail := func(kind, id string, err error) {
		errs = append(errs, fmt.Errorf("%s %q: %w", kind, id, err))
	}

	s := console.State{Settings: settings.Defaults()}
	if d.Settings != nil {
		s.Settings = *d.Settings
	}
	if d.Stats != nil && d.Stats.MonthlyRevenue.Raw != "" {
		rev, err := shared.ParseAmount(d.Stats.MonthlyRevenue.Raw)
		if err != nil {
			fail("stats", "monthlyRevenue", err)
		}
		s.Stats.MonthlyRevenue = rev
	}

	seen := make(map[string]struct{})
	unique := func(kind, id string) bool {
		key := kind + "/" + id
		if _, dup := seen[key]; dup {
			fail(kind, id, shared.ErrAlreadyExists)
			return false
		}
		seen[key] = struct{}{}
		return true
	}

	for _, dto := range d.Students {
		st, err := studentFromDTO(dto)
		if err != nil {
			fail("student", dto.ID, err)
			continue
		}
		if unique("student", st.ID) {
			s.Students = append(s.Students, st)
		}
	}
	for _, dto := range d.Instructors {
		in, err := instructorFromDTO(dto)
		if err != nil {
			fail("instructor", dto.ID, err)
			continue
		}
		if unique("instructor", in.ID) {
			s.Instructors = append(s.Instructors, in)
		}
	}
	for _, dto := range d.Transactions {
		t, err := transactionFromDTO(dto)
		if err != nil {
			fail("transaction", dto.ID, err)
			continue
		}
		if unique("transaction", t.ID) {
			s.Transactions = append(s.Transactions, t)
		}
	}
	for _, dto := range d.Conversations {
		c, err := conversationFromDTO(dto)
		if err != nil {
			fail("conversation", dto.ID, err)
			continue
		}
		if unique("conversation", c.ID) {
			s.Conversations = append(s.Conversations, c)
		}
	}
	for _, dto := range d.Messages {
		m, err := messageFromDTO(dto)
		if err != nil {
			fail("message", dto.ID, err)
			continue
		}
		if unique("message", m.ID) {
			s.Messages = append(s.Messages, m)
		}
	}
	for _, dto := range d.Packages {
		p, err := packageFromDTO(dto)
		if err != nil {
			fail("package", dto.ID, err)
			continue
		}
		if unique("package", p.ID) {
			s.Packages = append(s.Packages, p)
		}
	}

	// сообщения принадлежат диалогам: сирота означает битый файл
	for _, m := range s.Messages {
		if s.ConversationIndex(m.ConversationID) < 0 {
			fail("message", m.ID, fmt.Errorf("conversation %q: %w", m.ConversationID, shared.ErrNotFound))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return console.State{}, shared.WrapError("seed", "ToState", shared.ErrValidation, "seed document is invalid", err)
	}

	// файл не хранит счётчики, кроме выручки
	s.Stats = console.Recompute(s)
	return s, nil
}

func registrationFromDTO(approval, account string) (shared.Registration, error) {
	a, err := shared.ParseApprovalStatus(approval)
	if err != nil {
		return shared.Registration{}, err
	}
	acc, err := shared.ParseAccountStatus(account)
	if err != nil {
		return shared.Registration{}, err
	}
	return shared.Registration{ApprovalStatus: a, AccountStatus: acc}, nil
}

func studentFromDTO(dto StudentDTO) (student.Student, error) {
	reg, err := registrationFromDTO(dto.ApprovalStatus, dto.AccountStatus)
	if err != nil {
		return student.Student{}, err
	}
	st := student.Student{
		ID:           strings.TrimSpace(dto.ID),
		Name:         strings.TrimSpace(dto.Name),
		Email:        dto.Email,
		Phone:        dto.Phone,
		City:         dto.City,
		Registration: reg,
		Lessons:      make([]student.Lesson, 0, len(dto.Lessons)),
		JoinedAt:     dto.JoinedAt.UTC(),
	}
	if dto.InstructorID != "" {
		id := dto.InstructorID
		st.InstructorID = &id
	}
	for _, l := range dto.Lessons {
		st.Lessons = append(st.Lessons, student.Lesson{
			ID:           l.ID,
			Date:         l.Date.UTC(),
			Topic:        l.Topic,
			InstructorID: l.InstructorID,
			Status:       student.LessonStatus(strings.ToLower(l.Status)),
		})
	}

	// счётчики можно не указывать: тогда они считаются по занятиям
	st.LessonsCompleted = st.CountLessons(student.LessonCompleted)
	if dto.LessonsCompleted != nil {
		st.LessonsCompleted = *dto.LessonsCompleted
	}
	st.UpcomingLessons = st.CountLessons(student.LessonUpcoming)
	if dto.UpcomingLessons != nil {
		st.UpcomingLessons = *dto.UpcomingLessons
	}

	if err := st.Validate(); err != nil {
		return student.Student{}, err
	}
	return st, nil
}

func instructorFromDTO(dto InstructorDTO) (instructor.Instructor, error) {
	reg, err := registrationFromDTO(dto.ApprovalStatus, dto.AccountStatus)
	if err != nil {
		return instructor.Instructor{}, err
	}
	earnings, err := amountOrZero(dto.EarningsTotal)
	if err != nil {
		return instructor.Instructor{}, fmt.Errorf("earningsTotal: %w", err)
	}
	pending, err := amountOrZero(dto.PendingPayment)
	if err != nil {
		return instructor.Instructor{}, fmt.Errorf("pendingPayment: %w", err)
	}
	stripe := instructor.StripeStatus(strings.ToLower(dto.StripeStatus))
	if stripe == "" {
		stripe = instructor.StripeNotConnected
	}

	in := instructor.Instructor{
		ID:             strings.TrimSpace(dto.ID),
		Name:           strings.TrimSpace(dto.Name),
		Email:          dto.Email,
		Phone:          dto.Phone,
		City:           dto.City,
		Registration:   reg,
		Rating:         dto.Rating,
		TotalStudents:  dto.TotalStudents,
		EarningsTotal:  earnings,
		PendingPayment: pending,
		StripeStatus:   stripe,
		Documents:      make([]instructor.DocumentItem, 0, len(dto.Documents)),
		JoinedAt:       dto.JoinedAt.UTC(),
	}
	for _, doc := range dto.Documents {
		in.Documents = append(in.Documents, instructor.DocumentItem{
			ID:         doc.ID,
			Name:       doc.Name,
			Status:     instructor.DocumentStatus(strings.ToLower(doc.Status)),
			UploadedAt: doc.UploadedAt.UTC(),
		})
	}
	if err := in.Validate(); err != nil {
		return instructor.Instructor{}, err
	}
	return in, nil
}

func transactionFromDTO(dto TransactionDTO) (payout.Transaction, error) {
	if dto.ID == "" {
		return payout.Transaction{}, shared.ErrInvalidID
	}
	amount, err := shared.ParseAmount(dto.Amount.Raw)
	if err != nil {
		return payout.Transaction{}, err
	}
	status := payout.Status(strings.ToLower(dto.Status))
	if !status.IsValid() {
		return payout.Transaction{}, fmt.Errorf("status %q: %w", dto.Status, shared.ErrInvalidInput)
	}
	method := dto.Method
	if method == "" {
		method = payout.MethodStripeTransfer
	}
	return payout.Transaction{
		ID:             dto.ID,
		InstructorID:   dto.InstructorID,
		InstructorName: dto.InstructorName,
		Amount:         amount,
		Date:           dto.Date.UTC(),
		Status:         status,
		Method:         method,
		Description:    dto.Description,
	}, nil
}

func conversationFromDTO(dto ConversationDTO) (inbox.Conversation, error) {
	if dto.ID == "" {
		return inbox.Conversation{}, shared.ErrInvalidID
	}
	c := inbox.Conversation{
		ID:             dto.ID,
		InstructorID:   dto.InstructorID,
		InstructorName: dto.InstructorName,
		Status:         inbox.Status(strings.ToLower(dto.Status)),
		UnreadCount:    dto.UnreadCount,
		LastMessage:    dto.LastMessage,
		LastMessageAt:  dto.LastMessageAt.UTC(),
	}
	if err := c.Validate(); err != nil {
		return inbox.Conversation{}, err
	}
	return c, nil
}

func messageFromDTO(dto MessageDTO) (inbox.ChatMessage, error) {
	if dto.ID == "" {
		return inbox.ChatMessage{}, shared.ErrInvalidID
	}
	sender := inbox.SenderType(strings.ToLower(dto.SenderType))
	if !sender.IsValid() {
		return inbox.ChatMessage{}, fmt.Errorf("sender %q: %w", dto.SenderType, shared.ErrInvalidInput)
	}
	return inbox.ChatMessage{
		ID:             dto.ID,
		ConversationID: dto.ConversationID,
		SenderType:     sender,
		Text:           dto.Text,
		SentAt:         dto.SentAt.UTC(),
		Seen:           dto.Seen,
	}, nil
}

func packageFromDTO(dto PackageDTO) (catalog.Package, error) {
	price, err := amountOrZero(dto.Price)
	if err != nil {
		return catalog.Package{}, fmt.Errorf("price: %w", err)
	}
	status, err := shared.ParseApprovalStatus(dto.Status)
	if err != nil {
		return catalog.Package{}, err
	}
	p := catalog.Package{
		ID:                   dto.ID,
		InstructorID:         dto.InstructorID,
		InstructorName:       dto.InstructorName,
		Title:                dto.Title,
		Description:          dto.Description,
		Lessons:              dto.Lessons,
		Price:                price,
		CommissionPercentage: dto.CommissionPercentage,
		Status:               status,
		CreatedAt:            dto.CreatedAt.UTC(),
	}
	if err := p.Validate(); err != nil {
		return catalog.Package{}, err
	}
	return p, nil
}

func amountOrZero(a Amount) (decimal.Decimal, error) {
	if a.Raw == "" {
		return decimal.Zero, nil
	}
	return shared.ParseAmount(a.Raw)
}
