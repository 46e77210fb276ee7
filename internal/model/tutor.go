package model

import (
	"strings"
	"time"
)

// Tutor запись ростера тьюторов
type Tutor struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Subjects    []string  `json:"subjects"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// Teaches проверяет предмет без учёта регистра и пробелов по краям
func (t *Tutor) Teaches(subject string) bool {
	want := strings.TrimSpace(subject)
	for _, s := range t.Subjects {
		if strings.EqualFold(strings.TrimSpace(s), want) {
			return true
		}
	}
	return false
}
