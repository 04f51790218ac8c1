package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/store"
)

type stubRunner struct {
	mu    sync.Mutex
	ticks []string
}

func (r *stubRunner) RunHeartbeat(ctx context.Context, a store.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, a.ID)
	return nil
}

func newTestScheduler(t *testing.T, hosted bool) (*Scheduler, sqlmock.Sqlmock, *stubRunner) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	runner := &stubRunner{}
	s := New(store.NewFromDB(sqlx.NewDb(db, "postgres")), runner, hosted)
	return s, mock, runner
}

func TestWithinActiveHours_PlainWindow(t *testing.T) {
	assert.True(t, withinActiveHours(9, 8, 17))
	assert.False(t, withinActiveHours(7, 8, 17))
	assert.False(t, withinActiveHours(17, 8, 17))
}

func TestWithinActiveHours_OvernightWindowWraps(t *testing.T) {
	assert.True(t, withinActiveHours(23, 22, 6))
	assert.True(t, withinActiveHours(2, 22, 6))
	assert.False(t, withinActiveHours(10, 22, 6))
}

func TestWithinActiveHours_EqualStartEndMeansAlwaysOn(t *testing.T) {
	assert.True(t, withinActiveHours(0, 5, 5))
	assert.True(t, withinActiveHours(23, 5, 5))
}

func agentColumns() []string {
	return []string{
		"id", "team_id", "name", "status", "department", "model_id",
		"fallback_endpoint", "fallback_model_name", "fallback_api_key",
		"system_prompt", "proactive", "heartbeat_seconds",
		"active_hours_start", "active_hours_end", "template_id",
		"skip_credits", "installed_skills", "created_by", "created_at", "updated_at",
	}
}

func addAgentRow(rows *sqlmock.Rows, id, teamID string, heartbeatSeconds int) *sqlmock.Rows {
	return rows.AddRow(
		id, teamID, "agent-"+id, "running", nil, "gpt-test",
		nil, nil, nil,
		"be helpful", true, heartbeatSeconds,
		0, 0, nil,
		false, []byte(`[]`), "user-1", time.Now(), time.Now(),
	)
}

func TestStart_RegistersOneTimerPerProactiveAgent(t *testing.T) {
	s, mock, _ := newTestScheduler(t, false)

	rows := sqlmock.NewRows(agentColumns())
	addAgentRow(rows, "agent-1", "team-1", 60)
	addAgentRow(rows, "agent-2", "team-1", 60)
	addAgentRow(rows, "agent-3", "team-2", 30)
	mock.ExpectQuery(`SELECT \* FROM agents WHERE status = 'running' AND proactive = TRUE`).WillReturnRows(rows)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.timers, 3, "every proactive agent returned by the store must get a registered timer")
}

func TestTriggerNow_RefusesNonRunningAgent(t *testing.T) {
	s, mock, _ := newTestScheduler(t, false)

	rows := sqlmock.NewRows(agentColumns())
	rows.AddRow(
		"agent-1", "team-1", "agent-1", "paused", nil, "gpt-test",
		nil, nil, nil,
		"be helpful", true, 60,
		0, 0, nil,
		false, []byte(`[]`), "user-1", time.Now(), time.Now(),
	)
	mock.ExpectQuery(`SELECT \* FROM agents WHERE id = \$1 AND team_id = \$2`).
		WithArgs("agent-1", "team-1").
		WillReturnRows(rows)

	err := s.TriggerNow(context.Background(), "agent-1", "team-1")
	require.Error(t, err)
}
