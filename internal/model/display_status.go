package model

// DisplayStatus статус для отображения, вычисляется из хранимых полей и текущего времени.
// Starting и Completed никогда не сохраняются.
type DisplayStatus string

const (
	DisplayPending   DisplayStatus = "pending"
	DisplayApproved  DisplayStatus = "approved"
	DisplayStarting  DisplayStatus = "starting"
	DisplayCompleted DisplayStatus = "completed"
	DisplayRejected  DisplayStatus = "rejected"
	DisplayCancelled DisplayStatus = "cancelled"
)

// IsTerminal статусы, после которых заявку можно архивировать
func (s DisplayStatus) IsTerminal() bool {
	return s == DisplayCompleted || s == DisplayRejected || s == DisplayCancelled
}
