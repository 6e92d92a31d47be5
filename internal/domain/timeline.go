package domain

import "time"

// TimelineEvent описывает событие в хронологии заказа. Хронология
// append-only: события не редактируются и не удаляются.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// ValidateInvariants проверяет событие перед записью в хронологию.
func (e *TimelineEvent) ValidateInvariants() []error {
	var errs []error

	if e.OrderID == "" {
		errs = append(errs, ErrTimelineOrderIDRequired)
	}
	if e.Type == "" {
		errs = append(errs, ErrTimelineTypeRequired)
	}

	return errs
}
