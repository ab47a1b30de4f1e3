package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KramerO/ollama-flow-sub002/internal/drone"
	"github.com/KramerO/ollama-flow-sub002/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRecorder struct {
	mu    sync.Mutex
	saved map[string]models.Agent
	err   error
}

func (r *memRecorder) Save(ctx context.Context, snap models.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.saved == nil {
		r.saved = make(map[string]models.Agent)
	}
	r.saved[snap.ID] = snap
	return nil
}

func (r *memRecorder) get(id string) (models.Agent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.saved[id]
	return a, ok
}

func newPool(t *testing.T, role drone.Role, size int, rec Recorder) *Pool {
	t.Helper()
	p, err := Build(role, size, func(id, name string) (*drone.Drone, error) {
		return drone.New(id, name, role, nil)
	}, Opts{Recorder: rec})
	require.NoError(t, err)
	return p
}

func TestNew_Validation(t *testing.T) {
	r1, _ := drone.New("researcher-1", "", drone.RoleResearcher, nil)
	fc, _ := drone.New("fact_checker-1", "", drone.RoleFactChecker, nil)

	_, err := New(drone.Role("pilot"), nil, Opts{})
	assert.Error(t, err)

	_, err = New(drone.RoleResearcher, []*drone.Drone{r1, fc}, Opts{})
	assert.ErrorContains(t, err, "has role")

	_, err = New(drone.RoleResearcher, []*drone.Drone{r1, r1}, Opts{})
	assert.ErrorContains(t, err, "duplicate")

	_, err = New(drone.RoleResearcher, []*drone.Drone{nil}, Opts{})
	assert.Error(t, err)
}

func TestBuild_NamesAndOrder(t *testing.T) {
	p := newPool(t, drone.RoleFactChecker, 2, nil)
	require.Equal(t, 2, p.Size())
	ds := p.Drones()
	assert.Equal(t, "fact_checker-1", ds[0].ID)
	assert.Equal(t, "FactChecker 2", ds[1].Name)
	assert.Equal(t, drone.RoleFactChecker, p.Role())
}

func TestAcquire_FirstAvailableThenSaturated(t *testing.T) {
	p := newPool(t, drone.RoleResearcher, 2, nil)

	a := p.Acquire("wf:research:factual")
	b := p.Acquire("wf:research:historical")
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, "researcher-1", a.ID)
	assert.Equal(t, "researcher-2", b.ID)
	assert.Nil(t, p.Acquire("wf:research:trend"), "saturated pool must return nil")
	assert.Equal(t, 2, p.Busy())

	require.NoError(t, p.Release(context.Background(), a))
	c := p.Acquire("next")
	require.NotNil(t, c)
	assert.Equal(t, "researcher-1", c.ID, "first idle drone in pool order")
}

func TestRelease_UpdatesStatusAndPersists(t *testing.T) {
	rec := &memRecorder{}
	p := newPool(t, drone.RoleDataAnalyst, 2, rec)
	ctx := context.Background()
	require.NoError(t, p.Register(ctx))

	snap, ok := rec.get("data_analyst-2")
	require.True(t, ok)
	assert.True(t, snap.Active)

	d := p.Acquire("wf:analysis:0")
	status := p.Status()
	assert.Equal(t, "wf:analysis:0", status[0].CurrentTask)
	assert.Empty(t, status[1].CurrentTask)

	require.NoError(t, p.Release(ctx, d))
	status = p.Status()
	assert.Empty(t, status[0].CurrentTask)
	assert.Equal(t, 1, status[0].CompletedTasks)

	snap, _ = rec.get(d.ID)
	assert.Equal(t, 1, snap.CompletedTasks)
	assert.Empty(t, snap.CurrentTask)
}

func TestRelease_Errors(t *testing.T) {
	p := newPool(t, drone.RoleResearcher, 1, nil)
	ctx := context.Background()
	d := p.Drones()[0]

	assert.ErrorContains(t, p.Release(ctx, d), "not busy")
	assert.Error(t, p.Release(ctx, nil))

	stranger, _ := drone.New("researcher-99", "", drone.RoleResearcher, nil)
	assert.ErrorContains(t, p.Release(ctx, stranger), "not in")
}

func TestRelease_StoreFailureStillFreesDrone(t *testing.T) {
	rec := &memRecorder{err: errors.New("database is closed")}
	p := newPool(t, drone.RoleResearcher, 1, rec)

	d := p.Acquire("t")
	require.NotNil(t, d)
	err := p.Release(context.Background(), d)
	require.Error(t, err)
	assert.Equal(t, 0, p.Busy())
	assert.NotNil(t, p.Acquire("again"))
}

func TestAcquireWait_BlocksUntilRelease(t *testing.T) {
	p := newPool(t, drone.RoleResearcher, 1, nil)
	held := p.Acquire("first")
	require.NotNil(t, held)

	got := make(chan *drone.Drone, 1)
	go func() {
		d, err := p.AcquireWait(context.Background(), "second")
		if err == nil {
			got <- d
		}
	}()

	select {
	case <-got:
		t.Fatal("AcquireWait returned while pool was saturated")
	case <-time.After(30 * time.Millisecond):
	}

	require.NoError(t, p.Release(context.Background(), held))
	select {
	case d := <-got:
		assert.Equal(t, held.ID, d.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("AcquireWait did not wake after release")
	}
}

func TestAcquireWait_ContextDone(t *testing.T) {
	p := newPool(t, drone.RoleResearcher, 1, nil)
	p.Acquire("held")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.AcquireWait(ctx, "waiting")
	assert.ErrorIs(t, err, ErrNoCapacity)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	empty := newPool(t, drone.RoleResearcher, 0, nil)
	_, err = empty.AcquireWait(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoCapacity)
}

func TestAcquire_NoDoubleAssignment(t *testing.T) {
	p := newPool(t, drone.RoleResearcher, 3, nil)

	var holders sync.Map
	var overlaps atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				d := p.Acquire("t")
				if d == nil {
					continue
				}
				if _, loaded := holders.LoadOrStore(d.ID, true); loaded {
					overlaps.Add(1)
				}
				time.Sleep(time.Microsecond)
				holders.Delete(d.ID)
				if err := p.Release(context.Background(), d); err != nil {
					t.Errorf("Release: %v", err)
				}
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, overlaps.Load(), "a drone was held by two acquirers at once")
	assert.Equal(t, 0, p.Busy())
}

func TestAcquireDrone_BooksNamedDrone(t *testing.T) {
	p := newPool(t, drone.RoleResearcher, 2, nil)

	require.True(t, p.AcquireDrone("researcher-2", "mailbox/7"))
	assert.False(t, p.AcquireDrone("researcher-2", "mailbox/8"), "already booked")
	assert.False(t, p.AcquireDrone("researcher-9", "mailbox/9"), "unknown drone")
	assert.Equal(t, "mailbox/7", p.Status()[1].CurrentTask)

	d := p.Acquire("workflow")
	require.NotNil(t, d)
	assert.Equal(t, "researcher-1", d.ID)
	assert.Nil(t, p.Acquire("another"), "both drones busy")

	require.NoError(t, p.Release(context.Background(), p.Drones()[1]))
	assert.True(t, p.AcquireDrone("researcher-2", "mailbox/8"))
}

func TestPool_SatisfiesDroneBooker(t *testing.T) {
	var _ drone.Booker = newPool(t, drone.RoleWorker, 1, nil)
}
