package booking

import "github.com/md-rashed-zaman/tenantbook/services/booking-service/internal/model"

// Action is a lifecycle operation requested by a caller.
type Action string

const (
	ActionConfirm  Action = "confirm"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
	ActionNoShow   Action = "no-show"
)

var Actions = []Action{ActionConfirm, ActionCancel, ActionComplete, ActionNoShow}

// Target is the status the action leads to when it is allowed.
func (a Action) Target() model.Status {
	switch a {
	case ActionConfirm:
		return model.StatusConfirmed
	case ActionCancel:
		return model.StatusCancelled
	case ActionComplete:
		return model.StatusCompleted
	case ActionNoShow:
		return model.StatusNoShow
	}
	return ""
}

var transitions = map[model.Status]map[Action]bool{
	model.StatusPending: {
		ActionConfirm: true,
		ActionCancel:  true,
	},
	model.StatusConfirmed: {
		ActionCancel:   true,
		ActionComplete: true,
		ActionNoShow:   true,
	},
}

// Next applies action to from. Terminal statuses accept nothing.
func Next(from model.Status, action Action) (model.Status, error) {
	if !transitions[from][action] {
		return "", &InvalidTransitionError{From: from, To: action.Target()}
	}
	return action.Target(), nil
}
