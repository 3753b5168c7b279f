package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

func TestNextStatusLegalEdges(t *testing.T) {
	cases := []struct {
		name        string
		requestType enums.RequestType
		action      Action
		current     enums.RequestStatus
		want        enums.RequestStatus
	}{
		{"storage approve pending", enums.RequestTypeStorage, ActionApprove, enums.RequestStatusPending, enums.RequestStatusApproved},
		{"storage approve after send-back", enums.RequestTypeStorage, ActionApprove, enums.RequestStatusSentBack, enums.RequestStatusApproved},
		{"storage reject pending", enums.RequestTypeStorage, ActionReject, enums.RequestStatusPending, enums.RequestStatusRejected},
		{"storage send back pending", enums.RequestTypeStorage, ActionSendBack, enums.RequestStatusPending, enums.RequestStatusSentBack},
		{"storage resubmit", enums.RequestTypeStorage, ActionResubmit, enums.RequestStatusSentBack, enums.RequestStatusPending},
		{"storage allocate", enums.RequestTypeStorage, ActionAllocate, enums.RequestStatusApproved, enums.RequestStatusCompleted},
		{"withdrawal issue", enums.RequestTypeWithdrawal, ActionIssue, enums.RequestStatusApproved, enums.RequestStatusIssued},
		{"withdrawal return", enums.RequestTypeWithdrawal, ActionReturn, enums.RequestStatusIssued, enums.RequestStatusReturned},
		{"destruction confirm", enums.RequestTypeDestruction, ActionConfirmDestruction, enums.RequestStatusApproved, enums.RequestStatusCompleted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := NextStatus(tc.requestType, tc.action, tc.current)
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestNextStatusIllegalEdges(t *testing.T) {
	cases := []struct {
		name        string
		requestType enums.RequestType
		action      Action
		current     enums.RequestStatus
	}{
		{"approve twice", enums.RequestTypeStorage, ActionApprove, enums.RequestStatusApproved},
		{"approve completed", enums.RequestTypeStorage, ActionApprove, enums.RequestStatusCompleted},
		{"approve rejected", enums.RequestTypeStorage, ActionApprove, enums.RequestStatusRejected},
		{"allocate pending", enums.RequestTypeStorage, ActionAllocate, enums.RequestStatusPending},
		{"allocate twice", enums.RequestTypeStorage, ActionAllocate, enums.RequestStatusCompleted},
		{"resubmit pending", enums.RequestTypeStorage, ActionResubmit, enums.RequestStatusPending},
		{"issue before approval", enums.RequestTypeWithdrawal, ActionIssue, enums.RequestStatusPending},
		{"issue twice", enums.RequestTypeWithdrawal, ActionIssue, enums.RequestStatusIssued},
		{"return unissued", enums.RequestTypeWithdrawal, ActionReturn, enums.RequestStatusApproved},
		{"return twice", enums.RequestTypeWithdrawal, ActionReturn, enums.RequestStatusReturned},
		{"confirm unapproved destruction", enums.RequestTypeDestruction, ActionConfirmDestruction, enums.RequestStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NextStatus(tc.requestType, tc.action, tc.current)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
		})
	}
}

func TestNextStatusUnsupportedActions(t *testing.T) {
	// Verbs that only exist on other request types.
	_, err := NextStatus(enums.RequestTypeStorage, ActionIssue, enums.RequestStatusApproved)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = NextStatus(enums.RequestTypeWithdrawal, ActionAllocate, enums.RequestStatusApproved)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = NextStatus(enums.RequestTypeDestruction, ActionReturn, enums.RequestStatusApproved)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = NextStatus(enums.RequestType("relocation"), ActionApprove, enums.RequestStatusPending)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
