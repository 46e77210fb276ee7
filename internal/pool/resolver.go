// Package pool определяет, каким тьюторам рассылается заявка.
// Пул вычисляется один раз при создании заявки и хранится вместе с ней,
// чтобы знаменатель кворума отказов не менялся, если ростер меняется позже.
package pool

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/Freeeeeet/plc_booking/internal/model"
)

// Request параметры заявки, по которым подбирается пул
type Request struct {
	StudentID string
	Subject   string
	Date      time.Time
	Start     model.TimeOfDay
	End       model.TimeOfDay
}

// Pool замороженный набор тьюторов
type Pool struct {
	TutorIDs []string
	Size     int
}

// Resolver источник пула для заявки
type Resolver interface {
	PoolFor(ctx context.Context, req Request) (Pool, error)
}

// Roster снимок ростера тьюторов
type Roster interface {
	ActiveTutors(ctx context.Context) ([]*model.Tutor, error)
}

// RosterResolver выбирает активных тьюторов по предмету, детерминированно при одном снимке ростера
type RosterResolver struct {
	roster Roster
}

func NewRosterResolver(roster Roster) *RosterResolver {
	return &RosterResolver{roster: roster}
}

// PoolFor собирает пул: предмет совпадает, тьютор активен и не является самим студентом
func (r *RosterResolver) PoolFor(ctx context.Context, req Request) (Pool, error) {
	tutors, err := r.roster.ActiveTutors(ctx)
	if err != nil {
		return Pool{}, fmt.Errorf("load roster: %w", err)
	}

	var ids []string
	for _, t := range tutors {
		if !t.IsActive || t.ID == req.StudentID || !t.Teaches(req.Subject) {
			continue
		}
		ids = append(ids, t.ID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	return Pool{TutorIDs: ids, Size: len(ids)}, nil
}

// StaticRoster ростер в памяти для разработки и тестов
type StaticRoster struct {
	mu     sync.RWMutex
	tutors map[string]*model.Tutor
}

func NewStaticRoster(tutors ...*model.Tutor) *StaticRoster {
	r := &StaticRoster{tutors: make(map[string]*model.Tutor)}
	for _, t := range tutors {
		r.Put(t)
	}
	return r
}

// Put добавляет или заменяет тьютора
func (r *StaticRoster) Put(t *model.Tutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	c.Subjects = slices.Clone(t.Subjects)
	r.tutors[t.ID] = &c
}

// Upsert то же, что Put, в форме хранилища ростера
func (r *StaticRoster) Upsert(ctx context.Context, t *model.Tutor) error {
	r.Put(t)
	return nil
}

// Remove убирает тьютора из ростера
func (r *StaticRoster) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tutors, id)
}

func (r *StaticRoster) ActiveTutors(ctx context.Context) ([]*model.Tutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Tutor, 0, len(r.tutors))
	for _, t := range r.tutors {
		if t.IsActive {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}
