package attendance

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/attendance"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/leave"
	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/user"
	"github.com/cmlabs-hris/hris-attendance-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMaterializer(store *memory.Store) *Materializer {
	return NewMaterializer(store, store, NewResolver(attendance.PolicySessionWins, time.UTC), nil)
}

func TestMaterialize_EndToEndScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	u := activeUser("U", "Ursula")
	store.PutUser(u)

	d1, d2, d3 := date(2024, 6, 1), date(2024, 6, 2), date(2024, 6, 3)
	_, err := store.PutSession(closedSession("", "U", d1, 8, 0, 16, 30, attendance.StatusPresent))
	require.NoError(t, err)
	_, err = store.PutSession(closedSession("", "U", d2, 10, 15, 18, 0, attendance.StatusLate))
	require.NoError(t, err)
	store.PutLeave(approvedLeave("", "U", d3, d3))

	rows, err := newMaterializer(store).Materialize(ctx, []user.User{u}, d1, d3, at(d3, 23, 0))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, d1, rows[0].Date)
	assert.Equal(t, attendance.StatusPresent, rows[0].Status)
	assert.InDelta(t, 8.5, rows[0].TotalHoursForDay, 1e-9)

	assert.Equal(t, d2, rows[1].Date)
	assert.Equal(t, attendance.StatusLate, rows[1].Status)
	assert.InDelta(t, 7.75, rows[1].TotalHoursForDay, 1e-9)

	assert.Equal(t, d3, rows[2].Date)
	assert.Equal(t, attendance.StatusOnLeave, rows[2].Status)
	assert.Zero(t, rows[2].TotalHoursForDay)
	assert.True(t, rows[2].IsSynthetic())
}

func TestMaterialize_OrderByDateThenNameThenID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	users := []user.User{
		activeUser("u3", "Carol"),
		activeUser("u2", "Alice"),
		activeUser("u1", "Alice"),
		activeUser("u4", "Bob"),
	}
	d1, d2 := date(2024, 6, 1), date(2024, 6, 2)
	_, err := store.PutSession(closedSession("", "u4", d1, 9, 0, 12, 0, attendance.StatusPresent))
	require.NoError(t, err)
	_, err = store.PutSession(closedSession("", "u4", d1, 13, 0, 17, 0, attendance.StatusPresent))
	require.NoError(t, err)

	rows, err := newMaterializer(store).Materialize(ctx, users, d1, d2, at(d2, 23, 0))
	require.NoError(t, err)

	var got []string
	for _, r := range rows {
		got = append(got, fmt.Sprintf("%s/%s", attendance.DateKey(r.Date), r.UserID))
	}
	assert.Equal(t, []string{
		"2024-06-01/u1", "2024-06-01/u2", "2024-06-01/u4", "2024-06-01/u4", "2024-06-01/u3",
		"2024-06-02/u1", "2024-06-02/u2", "2024-06-02/u4", "2024-06-02/u3",
	}, got)
}

func TestExpand_DeterministicAcrossChunkSizes(t *testing.T) {
	ctx := context.Background()
	start, end := date(2024, 6, 1), date(2024, 6, 30)

	var users []user.User
	var sessions []attendance.Session
	var leaves []leave.LeaveRequest
	for i := 0; i < 150; i++ {
		u := activeUser(fmt.Sprintf("u%03d", i), fmt.Sprintf("User %d", i%17))
		users = append(users, u)
		for di, d := range attendance.DaysInRange(start, end) {
			switch (i + di) % 5 {
			case 0:
				sessions = append(sessions, closedSession(fmt.Sprintf("s%d-%d", i, di), u.ID, d, 9, 0, 17, 0, attendance.StatusPresent))
			case 1:
				sessions = append(sessions,
					closedSession(fmt.Sprintf("s%d-%d-a", i, di), u.ID, d, 8, 0, 11, 0, attendance.StatusLate),
					closedSession(fmt.Sprintf("s%d-%d-b", i, di), u.ID, d, 12, 0, 15, 0, attendance.StatusPresent))
			}
		}
		if i%7 == 0 {
			leaves = append(leaves, approvedLeave(fmt.Sprintf("l%d", i), u.ID, date(2024, 6, 10), date(2024, 6, 12)))
		}
	}

	idx := BuildIndex(sessions, leaves, start, end)
	now := date(2024, 7, 1)

	serial := newMaterializer(memory.NewStore())
	serial.chunkSize = len(users)
	want, err := serial.Expand(ctx, users, start, end, idx, now)
	require.NoError(t, err)

	parallel := newMaterializer(memory.NewStore())
	parallel.chunkSize = 7
	got, err := parallel.Expand(ctx, users, start, end, idx, now)
	require.NoError(t, err)

	require.Equal(t, len(want), len(got))
	for i := range want {
		assert.Equal(t, want[i].RowID(), got[i].RowID(), "row %d", i)
	}
}

func TestExpand_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	users := []user.User{activeUser("u1", "Alice")}
	start := date(2024, 6, 1)
	_, err := newMaterializer(memory.NewStore()).Expand(ctx, users, start, start, BuildIndex(nil, nil, start, start), start)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaterialize_RangeChecks(t *testing.T) {
	m := newMaterializer(memory.NewStore())
	users := []user.User{activeUser("u1", "Alice")}

	_, err := m.Materialize(context.Background(), users, date(2024, 6, 2), date(2024, 6, 1), time.Now())
	assert.ErrorIs(t, err, attendance.ErrInvalidDateRange)

	_, err = m.Materialize(context.Background(), users, date(2023, 1, 1), date(2024, 6, 1), time.Now())
	assert.ErrorIs(t, err, attendance.ErrDateRangeTooLarge)

	rows, err := m.Materialize(context.Background(), nil, date(2024, 6, 1), date(2024, 6, 1), time.Now())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMaterialize_StoreFailure(t *testing.T) {
	m := NewMaterializer(failingStore{}, failingStore{}, NewResolver("", nil), nil)

	_, err := m.Materialize(context.Background(), []user.User{activeUser("u1", "Alice")}, date(2024, 6, 1), date(2024, 6, 1), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, attendance.ErrStoreUnavailable)
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, attendance.IsRetryable(err))
}

func TestBuildIndex_ClipsLeaveToRange(t *testing.T) {
	start, end := date(2024, 6, 10), date(2024, 6, 12)
	idx := BuildIndex(nil, []leave.LeaveRequest{approvedLeave("l1", "u1", date(2024, 6, 1), date(2024, 6, 30))}, start, end)
	assert.Len(t, idx.leaves, 3)

	_, lv := idx.cell("u1", date(2024, 6, 11))
	require.NotNil(t, lv)
	assert.Equal(t, "l1", lv.ID)

	_, lv = idx.cell("u1", date(2024, 6, 13))
	assert.Nil(t, lv)
}
