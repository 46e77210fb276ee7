package model

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// BookingStatus хранимый статус заявки
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ждёт ответа тьюторов
	BookingStatusApproved  BookingStatus = "approved"  // Занята одним тьютором
	BookingStatusRejected  BookingStatus = "rejected"  // Отклонена всем пулом
	BookingStatusCancelled BookingStatus = "cancelled" // Отменена студентом
)

// IsTerminal true для статусов, из которых нет переходов
func (s BookingStatus) IsTerminal() bool {
	return s != BookingStatusPending
}

// Booking заявка студента на занятие с тьютором
type Booking struct {
	ID           uuid.UUID     `json:"id"`
	StudentID    string        `json:"student_id"`
	TutorID      *string       `json:"tutor_id"` // nil пока заявку никто не занял
	Subject      string        `json:"subject"`
	Description  string        `json:"description"`
	BookingDate  time.Time     `json:"booking_date"` // полночь UTC, используется только дата
	StartTime    TimeOfDay     `json:"start_time"`
	EndTime      TimeOfDay     `json:"end_time"`
	Status       BookingStatus `json:"status"`
	PoolTutorIDs []string      `json:"pool_tutor_ids"`
	PoolSize     int           `json:"pool_size"` // фиксируется при создании
	RejectedBy   []string      `json:"rejected_by"`
	ArchivedAt   *time.Time    `json:"archived_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Clone возвращает глубокую копию, чтобы хранилище не отдавало общие срезы
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	c := *b
	if b.TutorID != nil {
		tutor := *b.TutorID
		c.TutorID = &tutor
	}
	if b.ArchivedAt != nil {
		at := *b.ArchivedAt
		c.ArchivedAt = &at
	}
	c.PoolTutorIDs = slices.Clone(b.PoolTutorIDs)
	c.RejectedBy = slices.Clone(b.RejectedBy)
	return &c
}

// InPool проверяет что тьютор входит в замороженный пул
func (b *Booking) InPool(tutorID string) bool {
	return slices.Contains(b.PoolTutorIDs, tutorID)
}

// HasRejected проверяет что тьютор уже отказался от заявки
func (b *Booking) HasRejected(tutorID string) bool {
	return slices.Contains(b.RejectedBy, tutorID)
}

// IsArchived заявка уже перенесена в историю
func (b *Booking) IsArchived() bool {
	return b.ArchivedAt != nil
}

// ClaimedBy проверяет что заявку занял именно этот тьютор
func (b *Booking) ClaimedBy(tutorID string) bool {
	return b.TutorID != nil && *b.TutorID == tutorID
}

// CheckClaim проверяет можно ли тьютору занять заявку.
// Порядок проверок задаёт код ошибки для проигравших гонку.
func (b *Booking) CheckClaim(tutorID string) error {
	if err := b.checkPending(); err != nil {
		return err
	}
	if !b.InPool(tutorID) {
		return ErrNotEligible
	}
	if b.HasRejected(tutorID) {
		return ErrAlreadyDeclined
	}
	return nil
}

// CheckReject проверяет можно ли тьютору отказаться от заявки.
// Повторный отказ того же тьютора не ошибка: вызывающий получает noop=true.
func (b *Booking) CheckReject(tutorID string) (noop bool, err error) {
	if err := b.checkPending(); err != nil {
		return false, err
	}
	if !b.InPool(tutorID) {
		return false, ErrNotEligible
	}
	if b.HasRejected(tutorID) {
		return true, nil
	}
	return false, nil
}

// CheckCancel проверяет может ли студент отменить заявку
func (b *Booking) CheckCancel(studentID string) error {
	if b.StudentID != studentID {
		return ErrNotOwner
	}
	return b.checkPending()
}

// В архив попадают только терминальные заявки, поэтому ArchivedAt здесь не проверяется
func (b *Booking) checkPending() error {
	switch b.Status {
	case BookingStatusPending:
		return nil
	case BookingStatusApproved:
		return ErrAlreadyClaimed
	case BookingStatusRejected:
		return ErrAlreadyRejected
	default:
		return ErrNotPending
	}
}

// ApplyClaim привязывает тьютора. Вызывать только после успешного CheckClaim.
func (b *Booking) ApplyClaim(tutorID string, at time.Time) {
	tutor := tutorID
	b.TutorID = &tutor
	b.Status = BookingStatusApproved
	b.UpdatedAt = at
}

// ApplyRejection добавляет отказ и закрывает заявку при наборе кворума
func (b *Booking) ApplyRejection(tutorID string, at time.Time) {
	b.RejectedBy = append(b.RejectedBy, tutorID)
	if len(b.RejectedBy) >= b.PoolSize {
		b.Status = BookingStatusRejected
	}
	b.UpdatedAt = at
}

// Invariant проверяет согласованность хранимых полей
func (b *Booking) Invariant() error {
	if (b.TutorID != nil) != (b.Status == BookingStatusApproved) {
		return ErrInvariantViolated
	}
	if len(b.RejectedBy) > b.PoolSize {
		return ErrInvariantViolated
	}
	if b.PoolSize > 0 && len(b.RejectedBy) == b.PoolSize && (b.Status != BookingStatusRejected || b.TutorID != nil) {
		return ErrInvariantViolated
	}
	return nil
}
