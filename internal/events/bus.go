// Package events рассылает доменные события подписчикам внутри процесса.
package events

import (
	"context"
	"sync"

	"github.com/Freeeeeet/plc_booking/internal/model"
	"go.uber.org/zap"
)

// Bus неблокирующая рассылка: медленный подписчик теряет события, а не тормозит мутации
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan model.Event
	nextID int
	closed bool
	logger *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]chan model.Event),
		logger: logger,
	}
}

// Publish отправляет событие всем подписчикам
func (b *Bus) Publish(event model.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("Event dropped, subscriber is full",
				zap.Int("subscriber", id),
				zap.String("type", string(event.Type)),
				zap.String("booking_id", event.BookingID.String()),
			)
		}
	}
}

// Subscribe возвращает канал событий и функцию отписки
func (b *Bus) Subscribe(buffer int) (<-chan model.Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan model.Event, buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

// Close закрывает все подписки
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

// Handler получатель событий для ретрансляторов
type Handler interface {
	Handle(ctx context.Context, event model.Event) error
}

// Relay передаёт события подписки обработчику до отмены контекста или закрытия канала.
// Подписка оформляется вызывающим до старта источников событий.
// Ошибки обработчика логируются: доставка не гарантируется.
func Relay(ctx context.Context, ch <-chan model.Event, name string, h Handler, logger *zap.Logger) error {
	logger.Info("Event relay started", zap.String("relay", name))
	for {
		select {
		case <-ctx.Done():
			logger.Info("Event relay stopped", zap.String("relay", name))
			return nil
		case event, ok := <-ch:
			if !ok {
				return nil
			}
			if err := h.Handle(ctx, event); err != nil {
				logger.Error("Failed to relay event",
					zap.String("relay", name),
					zap.String("type", string(event.Type)),
					zap.String("booking_id", event.BookingID.String()),
					zap.Error(err),
				)
			}
		}
	}
}
