// Package status вычисляет отображаемый статус заявки из хранимых полей и текущего времени.
package status

import (
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
)

// Projector чистая проекция заявки на статус. Ничего не пишет в хранилище.
type Projector struct {
	loc *time.Location
}

// NewProjector создаёт проектор для часового пояса кампуса
func NewProjector(loc *time.Location) Projector {
	if loc == nil {
		loc = time.Local
	}
	return Projector{loc: loc}
}

// Location часовой пояс, в котором заданы дата и время занятий
func (p Projector) Location() *time.Location {
	return p.loc
}

// Window возвращает абсолютные границы занятия [start, end)
func (p Projector) Window(b *model.Booking) (start, end time.Time) {
	return p.At(b.BookingDate, b.StartTime), p.At(b.BookingDate, b.EndTime)
}

// At переводит дату и время суток в момент времени в зоне кампуса
func (p Projector) At(date time.Time, t model.TimeOfDay) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, p.loc)
}

// Derive вычисляет статус заявки на момент now.
// Два вызова с разницей в микросекунду у границы окна могут вернуть разные значения.
func (p Projector) Derive(b *model.Booking, now time.Time) model.DisplayStatus {
	switch b.Status {
	case model.BookingStatusRejected:
		return model.DisplayRejected
	case model.BookingStatusCancelled:
		return model.DisplayCancelled
	case model.BookingStatusPending:
		return model.DisplayPending
	}

	start, end := p.Window(b)
	switch {
	case now.Before(start):
		return model.DisplayApproved
	case now.Before(end):
		return model.DisplayStarting
	default:
		return model.DisplayCompleted
	}
}
