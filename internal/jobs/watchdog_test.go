package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caixa-pos/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	session *database.CashSession
	pending int64
	err     error
}

func (f *fakeStore) GetActiveCashSession(context.Context) (database.CashSession, error) {
	if f.err != nil {
		return database.CashSession{}, f.err
	}
	if f.session == nil {
		return database.CashSession{}, pgx.ErrNoRows
	}
	return *f.session, nil
}

func (f *fakeStore) CountPendingOrdersBySession(context.Context, uuid.UUID) (int64, error) {
	return f.pending, nil
}

type event struct {
	topic, typ string
	payload    any
}

type captureNotifier struct{ events []event }

func (c *captureNotifier) Notify(topic, typ string, payload any) {
	c.events = append(c.events, event{topic, typ, payload})
}

var fixedNow = time.Date(2026, 3, 14, 23, 0, 0, 0, time.UTC)

func newWatchdog(store *fakeStore) (*SessionWatchdog, *captureNotifier) {
	n := &captureNotifier{}
	w := NewSessionWatchdog(store, n, 16*time.Hour)
	w.now = func() time.Time { return fixedNow }
	return w, n
}

func TestWatchdog_NoSession(t *testing.T) {
	w, n := newWatchdog(&fakeStore{})
	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, n.events)
}

func TestWatchdog_YoungSession(t *testing.T) {
	s := &database.CashSession{ID: uuid.New(), OpenedAt: fixedNow.Add(-2 * time.Hour)}
	w, n := newWatchdog(&fakeStore{session: s, pending: 3})
	require.NoError(t, w.Run(context.Background()))
	assert.Empty(t, n.events)
}

func TestWatchdog_LongOpenSession(t *testing.T) {
	s := &database.CashSession{ID: uuid.New(), OpenedAt: fixedNow.Add(-18 * time.Hour)}

	w, n := newWatchdog(&fakeStore{session: s})
	require.NoError(t, w.Run(context.Background()))
	require.Len(t, n.events, 1)
	assert.Equal(t, "caixa", n.events[0].topic)
	assert.Equal(t, "caixa.alerta", n.events[0].typ)
	alert := n.events[0].payload.(Alert)
	assert.Equal(t, ReasonLongOpen, alert.Reason)
	assert.Equal(t, s.ID, alert.SessionID)
	assert.InDelta(t, 18.0, alert.OpenHours, 0.01)

	w, n = newWatchdog(&fakeStore{session: s, pending: 2})
	require.NoError(t, w.Run(context.Background()))
	require.Len(t, n.events, 1)
	alert = n.events[0].payload.(Alert)
	assert.Equal(t, ReasonPendingOrders, alert.Reason)
	assert.Equal(t, int64(2), alert.Pending)
}

func TestWatchdog_StoreError(t *testing.T) {
	w, n := newWatchdog(&fakeStore{err: errors.New("connection refused")})
	err := w.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get active session")
	assert.Empty(t, n.events)
}

type countingJob struct{ runs chan struct{} }

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Run(context.Context) error {
	j.runs <- struct{}{}
	return nil
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(zerolog.Nop())
	job := &countingJob{runs: make(chan struct{}, 4)}

	require.Error(t, s.AddJob("not a schedule", job))
	require.NoError(t, s.AddJob("@every 10ms", job))

	s.Start()
	select {
	case <-job.runs:
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
	s.Stop()
	for len(job.runs) > 0 {
		<-job.runs
	}

	require.NoError(t, s.RunNow(context.Background(), job))
	assert.Len(t, job.runs, 1)
}
