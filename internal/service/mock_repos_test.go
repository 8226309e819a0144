package service

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"

	"blood-connect/backend/internal/model"
	"blood-connect/backend/internal/repository"
	pkgerrors "blood-connect/backend/pkg/errors"
	"blood-connect/backend/pkg/events"
)

// ── Mock ProfileRepository ──

type mockProfileRepo struct {
	profiles map[string]*model.Profile
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) GetByID(_ context.Context, id string) (*model.Profile, error) {
	if p, ok := m.profiles[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock BloodRequestRepository ──

// mockBloodRequestRepo behaves like the gorm store: it hands out copies,
// enforces the version check and keeps both indices newest first.
type mockBloodRequestRepo struct {
	mu       sync.Mutex
	records  map[string]*model.BloodRequest
	hospital map[string][]string
	active   []string

	forcedConflicts int   // next N versioned writes report a lost race
	writeCalls      int   // versioned writes attempted
	removeActiveErr error // injected RemoveFromActiveIndex failure
	report          *repository.IndexRepairReport
}

func newMockBloodRequestRepo() *mockBloodRequestRepo {
	return &mockBloodRequestRepo{
		records:  make(map[string]*model.BloodRequest),
		hospital: make(map[string][]string),
	}
}

func cloneRequest(r *model.BloodRequest) *model.BloodRequest {
	c := *r
	c.Responses = r.Responses.Clone()
	return &c
}

func (m *mockBloodRequestRepo) Create(_ context.Context, req *model.BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if req.Version == 0 {
		req.Version = 1
	}
	m.records[req.BloodRequestID] = cloneRequest(req)
	m.hospital[req.HospitalID] = append([]string{req.BloodRequestID}, m.hospital[req.HospitalID]...)
	m.active = append([]string{req.BloodRequestID}, m.active...)
	return nil
}

func (m *mockBloodRequestRepo) GetByID(_ context.Context, id string) (*model.BloodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return cloneRequest(r), nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBloodRequestRepo) GetMany(_ context.Context, ids []string) ([]model.BloodRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.BloodRequest, 0, len(ids))
	for _, id := range ids {
		if r, ok := m.records[id]; ok {
			out = append(out, *cloneRequest(r))
		}
	}
	return out, nil
}

func (m *mockBloodRequestRepo) checkVersion(req *model.BloodRequest) error {
	m.writeCalls++
	if m.forcedConflicts > 0 {
		m.forcedConflicts--
		return pkgerrors.ErrOptimisticLock
	}
	stored, ok := m.records[req.BloodRequestID]
	if !ok || stored.Version != req.Version {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (m *mockBloodRequestRepo) Update(_ context.Context, req *model.BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkVersion(req); err != nil {
		return err
	}
	req.Version++
	m.records[req.BloodRequestID] = cloneRequest(req)
	return nil
}

func (m *mockBloodRequestRepo) Delete(_ context.Context, req *model.BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkVersion(req); err != nil {
		return err
	}
	delete(m.records, req.BloodRequestID)
	m.hospital[req.HospitalID] = without(m.hospital[req.HospitalID], req.BloodRequestID)
	m.active = without(m.active, req.BloodRequestID)
	return nil
}

func (m *mockBloodRequestRepo) ListHospitalIndex(_ context.Context, hospitalID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.hospital[hospitalID]...), nil
}

func (m *mockBloodRequestRepo) ListActiveIndex(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.active...), nil
}

func (m *mockBloodRequestRepo) AddToActiveIndex(_ context.Context, id string, _ int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.active {
		if existing == id {
			return nil
		}
	}
	m.active = append(m.active, id)
	position := func(id string) int64 {
		if r, ok := m.records[id]; ok {
			return r.Position
		}
		return 0
	}
	sort.SliceStable(m.active, func(i, j int) bool { return position(m.active[i]) > position(m.active[j]) })
	return nil
}

func (m *mockBloodRequestRepo) RemoveFromActiveIndex(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeActiveErr != nil {
		return m.removeActiveErr
	}
	m.active = without(m.active, id)
	return nil
}

func (m *mockBloodRequestRepo) ReconcileIndices(_ context.Context) (*repository.IndexRepairReport, error) {
	if m.report != nil {
		return m.report, nil
	}
	return &repository.IndexRepairReport{}, nil
}

// stored returns the persisted copy, or nil.
func (m *mockBloodRequestRepo) stored(id string) *model.BloodRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.records[id]; ok {
		return cloneRequest(r)
	}
	return nil
}

func (m *mockBloodRequestRepo) inActiveIndex(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.active {
		if existing == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := ids[:0:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}

// ── recording publisher ──

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
