package httpapi

import (
	"context"

	"github.com/google/uuid"

	"github.com/runforge/runforge/internal/config"
	"github.com/runforge/runforge/internal/model"
	"github.com/runforge/runforge/internal/store"
)

type fakeInterpreterStore struct {
	items map[uuid.UUID]*model.Interpreter
}

func newFakeInterpreterStore() *fakeInterpreterStore {
	return &fakeInterpreterStore{items: map[uuid.UUID]*model.Interpreter{}}
}

func (f *fakeInterpreterStore) Create(ctx context.Context, i *model.Interpreter) error {
	if i.ID == (uuid.UUID{}) {
		i.ID, _ = uuid.NewV7()
	}
	f.items[i.ID] = i
	return nil
}

func (f *fakeInterpreterStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Interpreter, error) {
	i, found := f.items[id]
	if !found {
		return nil, store.ErrNotFound
	}
	return i, nil
}

func (f *fakeInterpreterStore) List(ctx context.Context, opts store.ListOptions) ([]*model.Interpreter, error) {
	var out []*model.Interpreter
	for _, i := range f.items {
		out = append(out, i)
	}
	return out, nil
}

func (f *fakeInterpreterStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.items, id)
	return nil
}

type fakeServerStore struct {
	servers     map[uuid.UUID]*model.Server
	memberships map[uuid.UUID]map[uuid.UUID]bool
}

func newFakeServerStore() *fakeServerStore {
	return &fakeServerStore{
		servers:     map[uuid.UUID]*model.Server{},
		memberships: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (f *fakeServerStore) Create(ctx context.Context, s *model.Server) error {
	if s.ID == (uuid.UUID{}) {
		s.ID, _ = uuid.NewV7()
	}
	f.servers[s.ID] = s
	return nil
}

func (f *fakeServerStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Server, error) {
	s, found := f.servers[id]
	if !found {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (f *fakeServerStore) List(ctx context.Context, opts store.ListOptions) ([]*model.Server, error) {
	var out []*model.Server
	for _, s := range f.servers {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeServerStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.servers, id)
	return nil
}

func (f *fakeServerStore) AddInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) error {
	if f.memberships[serverID] == nil {
		f.memberships[serverID] = map[uuid.UUID]bool{}
	}
	f.memberships[serverID][interpreterID] = true
	return nil
}

func (f *fakeServerStore) RemoveInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) error {
	delete(f.memberships[serverID], interpreterID)
	return nil
}

func (f *fakeServerStore) HasInterpreter(ctx context.Context, serverID, interpreterID uuid.UUID) (bool, error) {
	return f.memberships[serverID][interpreterID], nil
}

func (f *fakeServerStore) ListInterpreters(ctx context.Context, serverID uuid.UUID) ([]*model.Interpreter, error) {
	return nil, nil
}

type fakeJobStore struct {
	jobs map[uuid.UUID]*model.Job
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{jobs: map[uuid.UUID]*model.Job{}}
}

func (f *fakeJobStore) Create(ctx context.Context, j *model.Job) error {
	if j.ID == (uuid.UUID{}) {
		j.ID, _ = uuid.NewV7()
	}
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeJobStore) GetByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	j, found := f.jobs[id]
	if !found {
		return nil, store.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobStore) GetByUUID(ctx context.Context, jobUUID uuid.UUID) (*model.Job, error) {
	for _, j := range f.jobs {
		if j.UUID == jobUUID {
			return j, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeJobStore) Update(ctx context.Context, j *model.Job) error {
	f.jobs[j.ID] = j
	return nil
}

func (f *fakeJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, status model.JobStatus) error {
	if j, found := f.jobs[id]; found {
		j.Status = status
	}
	return nil
}

func (f *fakeJobStore) List(ctx context.Context, opts store.ListOptions) ([]*model.Job, error) {
	var out []*model.Job
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeJobStore) ListByOwner(ctx context.Context, owner string, opts store.ListOptions) ([]*model.Job, error) {
	var out []*model.Job
	for _, j := range f.jobs {
		if j.OwnerUsername == owner {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobStore) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.jobs, id)
	return nil
}

type fakeLogStore struct {
	byJob map[uuid.UUID][]*model.Log
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{byJob: map[uuid.UUID][]*model.Log{}}
}

func (f *fakeLogStore) BulkCreate(ctx context.Context, logs []*model.Log) error {
	for _, l := range logs {
		f.byJob[l.JobID] = append(f.byJob[l.JobID], l)
	}
	return nil
}

func (f *fakeLogStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Log, error) {
	return f.byJob[jobID], nil
}

type fakeResultStore struct {
	byJob map[uuid.UUID][]*model.Result
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{byJob: map[uuid.UUID][]*model.Result{}}
}

func (f *fakeResultStore) Create(ctx context.Context, r *model.Result) error {
	if r.ID == (uuid.UUID{}) {
		r.ID, _ = uuid.NewV7()
	}
	f.byJob[r.JobID] = append(f.byJob[r.JobID], r)
	return nil
}

func (f *fakeResultStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]*model.Result, error) {
	return f.byJob[jobID], nil
}

type fakeDispatcher struct {
	calls []uuid.UUID
	err   error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, jobID uuid.UUID, cfg config.Submission) error {
	f.calls = append(f.calls, jobID)
	return f.err
}
