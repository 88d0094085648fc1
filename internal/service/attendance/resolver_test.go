package attendance

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_Precedence(t *testing.T) {
	d := date(2024, 6, 3)
	now := at(d, 20, 0)
	u := activeUser("u1", "Alice")
	inactive := u
	inactive.IsActive = false
	lv := approvedLeave("l1", "u1", d, d)
	sess := []attendance.Session{closedSession("s1", "u1", d, 9, 0, 17, 0, attendance.StatusLate)}

	tests := []struct {
		name     string
		inactive bool
		sessions []attendance.Session
		leave    *leave.LeaveRequest
		want     attendance.Status
		kind     attendance.RowKind
	}{
		{"inactive beats everything", true, sess, &lv, attendance.StatusInactive, attendance.RowInactive},
		{"leave without session", false, nil, &lv, attendance.StatusOnLeave, attendance.RowOnLeave},
		{"session beats leave", false, sess, &lv, attendance.StatusLate, attendance.RowSession},
		{"session only", false, sess, nil, attendance.StatusLate, attendance.RowSession},
		{"nothing is absent", false, nil, nil, attendance.StatusAbsent, attendance.RowAbsent},
	}

	r := NewResolver(attendance.PolicySessionWins, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			who := u
			if tt.inactive {
				who = inactive
			}
			rows := r.Resolve(who, d, tt.sessions, tt.leave, now)
			require.Len(t, rows, 1)
			assert.Equal(t, tt.want, rows[0].Status)
			assert.Equal(t, tt.kind, rows[0].Kind)
			assert.Equal(t, tt.kind != attendance.RowSession, rows[0].IsSynthetic())
		})
	}
}

func TestResolve_SyntheticRowIDs(t *testing.T) {
	d := date(2024, 6, 3)
	r := NewResolver("", nil)
	u := activeUser("u1", "Alice")

	absent := r.Resolve(u, d, nil, nil, at(d, 12, 0))
	assert.Equal(t, "absent-u1-2024-06-03", absent[0].RowID())
	assert.Zero(t, absent[0].TotalHoursForDay)

	lv := approvedLeave("l1", "u1", d, d)
	onLeave := r.Resolve(u, d, nil, &lv, at(d, 12, 0))
	assert.Equal(t, "on_leave-u1-2024-06-03", onLeave[0].RowID())
	require.NotNil(t, onLeave[0].Leave)
	assert.Equal(t, "annual", onLeave[0].Leave.LeaveType)
}

func TestResolve_MultiSessionDaySharesTotal(t *testing.T) {
	d := date(2024, 6, 3)
	r := NewResolver(attendance.PolicySessionWins, time.UTC)
	sessions := []attendance.Session{
		closedSession("s2", "u1", d, 13, 0, 17, 0, attendance.StatusPresent),
		closedSession("s1", "u1", d, 9, 0, 12, 0, attendance.StatusLate),
	}

	rows := r.Resolve(activeUser("u1", "Alice"), d, sessions, nil, at(d, 18, 0))

	require.Len(t, rows, 2)
	assert.Equal(t, "s1", rows[0].Session.ID)
	assert.Equal(t, "s2", rows[1].Session.ID)
	assert.Equal(t, attendance.StatusLate, rows[0].Status)
	assert.Equal(t, attendance.StatusPresent, rows[1].Status)
	for _, row := range rows {
		assert.InDelta(t, 7.0, row.TotalHoursForDay, 1e-9)
	}
	// The caller's slice is left untouched
	assert.Equal(t, "s2", sessions[0].ID)
}

func TestResolve_OpenSessionAccrual(t *testing.T) {
	today := date(2024, 6, 3)
	r := NewResolver(attendance.PolicySessionWins, time.UTC)
	u := activeUser("u1", "Alice")

	t.Run("today accrues until now", func(t *testing.T) {
		s := openSession("s1", "u1", today, 9, 0)
		rows := r.Resolve(u, today, []attendance.Session{s}, nil, s.ClockIn.Add(90*time.Minute))
		assert.InDelta(t, 1.5, rows[0].TotalHoursForDay, 1e-9)
	})

	t.Run("today adds to closed sessions", func(t *testing.T) {
		sessions := []attendance.Session{
			closedSession("s1", "u1", today, 8, 0, 12, 0, attendance.StatusPresent),
			openSession("s2", "u1", today, 13, 0),
		}
		rows := r.Resolve(u, today, sessions, nil, at(today, 14, 30))
		require.Len(t, rows, 2)
		assert.InDelta(t, 5.5, rows[1].TotalHoursForDay, 1e-9)
	})

	t.Run("stale open session contributes zero", func(t *testing.T) {
		past := today.AddDate(0, 0, -2)
		s := openSession("s1", "u1", past, 9, 0)
		rows := r.Resolve(u, past, []attendance.Session{s}, nil, at(today, 10, 0))
		require.Len(t, rows, 1)
		assert.Equal(t, attendance.StatusPresent, rows[0].Status)
		assert.Zero(t, rows[0].TotalHoursForDay)
	})

	t.Run("today follows the resolver zone", func(t *testing.T) {
		jakarta := time.FixedZone("WIB", 7*3600)
		rz := NewResolver(attendance.PolicySessionWins, jakarta)
		// 2024-06-02 20:00 UTC is 2024-06-03 03:00 in WIB
		now := time.Date(2024, 6, 2, 20, 0, 0, 0, time.UTC)
		s := attendance.Session{ID: "s1", UserID: "u1", Date: today, ClockIn: now.Add(-time.Hour)}
		rows := rz.Resolve(u, today, []attendance.Session{s}, nil, now)
		assert.InDelta(t, 1.0, rows[0].TotalHoursForDay, 1e-9)
	})
}

func TestResolve_LeaveConflictPolicies(t *testing.T) {
	d := date(2024, 6, 3)
	lv := approvedLeave("l1", "u1", d, d)
	sessions := []attendance.Session{closedSession("s1", "u1", d, 9, 0, 17, 0, attendance.StatusPresent)}
	u := activeUser("u1", "Alice")

	t.Run("session wins", func(t *testing.T) {
		rows := NewResolver(attendance.PolicySessionWins, time.UTC).Resolve(u, d, sessions, &lv, at(d, 20, 0))
		require.Len(t, rows, 1)
		assert.Equal(t, attendance.StatusPresent, rows[0].Status)
		assert.False(t, rows[0].Anomaly)
		assert.Nil(t, rows[0].Leave)
	})

	t.Run("flag anomaly", func(t *testing.T) {
		rows := NewResolver(attendance.PolicyFlagAnomaly, time.UTC).Resolve(u, d, sessions, &lv, at(d, 20, 0))
		require.Len(t, rows, 1)
		assert.Equal(t, attendance.StatusPresent, rows[0].Status)
		assert.True(t, rows[0].Anomaly)
		require.NotNil(t, rows[0].Leave)
		assert.Equal(t, "l1", rows[0].Leave.ID)
	})

	t.Run("leave wins", func(t *testing.T) {
		rows := NewResolver(attendance.PolicyLeaveWins, time.UTC).Resolve(u, d, sessions, &lv, at(d, 20, 0))
		require.Len(t, rows, 1)
		assert.Equal(t, attendance.StatusOnLeave, rows[0].Status)
		assert.Zero(t, rows[0].TotalHoursForDay)
	})
}

func TestResolve_IgnoresLeaveThatDoesNotApply(t *testing.T) {
	d := date(2024, 6, 3)
	r := NewResolver(attendance.PolicySessionWins, time.UTC)
	u := activeUser("u1", "Alice")

	pending := approvedLeave("l1", "u1", d, d)
	pending.Status = leave.StatusPending
	rows := r.Resolve(u, d, nil, &pending, at(d, 12, 0))
	assert.Equal(t, attendance.StatusAbsent, rows[0].Status)

	other := approvedLeave("l2", "u1", d.AddDate(0, 0, 1), d.AddDate(0, 0, 2))
	rows = r.Resolve(u, d, nil, &other, at(d, 12, 0))
	assert.Equal(t, attendance.StatusAbsent, rows[0].Status)
}

func TestResolve_UnassignedDepartment(t *testing.T) {
	d := date(2024, 6, 3)
	rows := NewResolver("", nil).Resolve(activeUser("u1", "Alice"), d, nil, nil, at(d, 12, 0))
	assert.Equal(t, "unassigned", rows[0].Department)
}
