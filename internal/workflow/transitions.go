package workflow

import (
	"fmt"

	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

// Action is a transition verb on a request.
type Action string

const (
	ActionApprove            Action = "approve"
	ActionReject             Action = "reject"
	ActionSendBack           Action = "send_back"
	ActionResubmit           Action = "resubmit"
	ActionAllocate           Action = "allocate"
	ActionIssue              Action = "issue"
	ActionReturn             Action = "return"
	ActionConfirmDestruction Action = "confirm_destruction"
)

type edge struct {
	from []enums.RequestStatus
	to   enums.RequestStatus
}

var reviewedStatuses = []enums.RequestStatus{
	enums.RequestStatusPending,
	enums.RequestStatusSentBack,
}

// transitionTable is the complete set of legal edges. Anything absent here is
// illegal, full stop; guards never special-case around it.
var transitionTable = map[enums.RequestType]map[Action]edge{
	enums.RequestTypeStorage: {
		ActionApprove:  {from: reviewedStatuses, to: enums.RequestStatusApproved},
		ActionReject:   {from: reviewedStatuses, to: enums.RequestStatusRejected},
		ActionSendBack: {from: reviewedStatuses, to: enums.RequestStatusSentBack},
		ActionResubmit: {from: []enums.RequestStatus{enums.RequestStatusSentBack}, to: enums.RequestStatusPending},
		ActionAllocate: {from: []enums.RequestStatus{enums.RequestStatusApproved}, to: enums.RequestStatusCompleted},
	},
	enums.RequestTypeWithdrawal: {
		ActionApprove:  {from: reviewedStatuses, to: enums.RequestStatusApproved},
		ActionReject:   {from: reviewedStatuses, to: enums.RequestStatusRejected},
		ActionSendBack: {from: reviewedStatuses, to: enums.RequestStatusSentBack},
		ActionResubmit: {from: []enums.RequestStatus{enums.RequestStatusSentBack}, to: enums.RequestStatusPending},
		ActionIssue:    {from: []enums.RequestStatus{enums.RequestStatusApproved}, to: enums.RequestStatusIssued},
		ActionReturn:   {from: []enums.RequestStatus{enums.RequestStatusIssued}, to: enums.RequestStatusReturned},
	},
	enums.RequestTypeDestruction: {
		ActionApprove:            {from: reviewedStatuses, to: enums.RequestStatusApproved},
		ActionReject:             {from: reviewedStatuses, to: enums.RequestStatusRejected},
		ActionSendBack:           {from: reviewedStatuses, to: enums.RequestStatusSentBack},
		ActionResubmit:           {from: []enums.RequestStatus{enums.RequestStatusSentBack}, to: enums.RequestStatusPending},
		ActionConfirmDestruction: {from: []enums.RequestStatus{enums.RequestStatusApproved}, to: enums.RequestStatusCompleted},
	},
}

// NextStatus resolves the status an action produces from the current one, or
// a state-conflict error naming exactly what was illegal.
func NextStatus(requestType enums.RequestType, action Action, current enums.RequestStatus) (enums.RequestStatus, error) {
	actions, ok := transitionTable[requestType]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown request type %s", requestType))
	}
	e, ok := actions[action]
	if !ok {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%s requests do not support %s", requestType, action))
	}
	for _, allowed := range e.from {
		if allowed == current {
			return e.to, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot %s a %s request in status %s", action, requestType, current))
}
