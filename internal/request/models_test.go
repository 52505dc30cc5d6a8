package request

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "accessops/pkg/domain"
	dErrors "accessops/pkg/domain-errors"
)

func TestNew(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	requester := id.NewUserID()

	t.Run("creates pending request", func(t *testing.T) {
		req, err := New(requester, "jira", "READ", "need access for onboarding", now)
		require.NoError(t, err)

		assert.False(t, req.ID.IsNil())
		assert.Equal(t, requester, req.RequesterID)
		assert.Equal(t, StatusPending, req.Status)
		assert.Nil(t, req.DecidedBy)
		assert.Nil(t, req.DecidedAt)
		assert.Equal(t, now, req.CreatedAt)
	})

	t.Run("validates inputs", func(t *testing.T) {
		tests := []struct {
			name      string
			requester id.UserID
			resource  string
			action    string
		}{
			{"empty resource", requester, "", "READ"},
			{"oversized resource", requester, strings.Repeat("r", 256), "READ"},
			{"empty action", requester, "jira", ""},
			{"oversized action", requester, "jira", strings.Repeat("a", 65)},
			{"nil requester", id.UserID{}, "jira", "READ"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := New(tt.requester, tt.resource, tt.action, "", now)
				assert.Error(t, err)
			})
		}
	})

	t.Run("justification is optional", func(t *testing.T) {
		_, err := New(requester, "jira", "READ", "", now)
		assert.NoError(t, err)
	})
}

// TestTransitionTable walks every state x action pair so the machine is pinned
// exhaustively: only PENDING has outgoing edges, and each lands on the
// expected terminal state.
func TestTransitionTable(t *testing.T) {
	type edge struct {
		from   Status
		action LifecycleAction
		to     Status
		ok     bool
	}
	var edges []edge
	for _, from := range allStatuses {
		for _, action := range []LifecycleAction{ActionApprove, ActionReject, ActionCancel} {
			e := edge{from: from, action: action}
			if from == StatusPending {
				e.ok = true
				switch action {
				case ActionApprove:
					e.to = StatusApproved
				case ActionReject:
					e.to = StatusRejected
				case ActionCancel:
					e.to = StatusCancelled
				}
			}
			edges = append(edges, e)
		}
	}

	for _, e := range edges {
		t.Run(string(e.from)+"/"+string(e.action), func(t *testing.T) {
			next, ok := NextStatus(e.from, e.action)
			assert.Equal(t, e.ok, ok)
			if e.ok {
				assert.Equal(t, e.to, next)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusCancelled.Terminal())
}

func TestApplyDecision(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	decidedAt := now.Add(time.Hour)
	requester := id.NewUserID()
	approver := id.NewUserID()

	newPending := func(t *testing.T) AccessRequest {
		t.Helper()
		req, err := New(requester, "jira", "READ", "", now)
		require.NoError(t, err)
		return req
	}

	t.Run("approve sets terminal state and decision fields together", func(t *testing.T) {
		req := newPending(t)
		decided, err := req.ApplyDecision(StatusApproved, approver, decidedAt)
		require.NoError(t, err)

		assert.Equal(t, StatusApproved, decided.Status)
		require.NotNil(t, decided.DecidedBy)
		require.NotNil(t, decided.DecidedAt)
		assert.Equal(t, approver, *decided.DecidedBy)
		assert.Equal(t, decidedAt, *decided.DecidedAt)
	})

	t.Run("receiver is not mutated", func(t *testing.T) {
		req := newPending(t)
		_, err := req.ApplyDecision(StatusRejected, approver, decidedAt)
		require.NoError(t, err)

		assert.Equal(t, StatusPending, req.Status)
		assert.Nil(t, req.DecidedBy)
		assert.Nil(t, req.DecidedAt)
	})

	t.Run("terminal states are frozen", func(t *testing.T) {
		req := newPending(t)
		decided, err := req.ApplyDecision(StatusApproved, approver, decidedAt)
		require.NoError(t, err)

		for _, outcome := range []Status{StatusApproved, StatusRejected} {
			_, err := decided.ApplyDecision(outcome, approver, decidedAt.Add(time.Hour))
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
		}
		_, err = decided.ApplyCancellation(requester, decidedAt.Add(time.Hour))
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	t.Run("rejects non-decision outcomes", func(t *testing.T) {
		req := newPending(t)
		for _, outcome := range []Status{StatusPending, StatusCancelled, Status("BOGUS")} {
			_, err := req.ApplyDecision(outcome, approver, decidedAt)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

func TestApplyCancellation(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	requester := id.NewUserID()

	req, err := New(requester, "jira", "READ", "", now)
	require.NoError(t, err)

	cancelled, err := req.ApplyCancellation(requester, now.Add(time.Minute))
	require.NoError(t, err)

	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.DecidedBy)
	assert.Equal(t, requester, *cancelled.DecidedBy)
}
