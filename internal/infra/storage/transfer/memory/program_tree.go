package memory

import (
	"context"
	"sync"

	"github.com/ahrav/gsa-vigilante/internal/domain/transfer"
)

var _ transfer.DatasetRepository = (*ProgramTree)(nil)

// ProgramTree is an in-memory dataset shard for development and tests. It
// keeps the same shape as the database: programs own observations, and an
// observation that has executed owns an execution log of datasets.
type ProgramTree struct {
	mu       sync.Mutex
	programs []*program
	byID     map[string]*program
	datasets map[transfer.DatasetFile]*execLogEntry
}

type program struct {
	id           string
	observations []*observation
	byID         map[string]*observation
}

type observation struct {
	id      string
	execLog []*execLogEntry // nil until the observation has executed
}

type execLogEntry struct {
	dataset transfer.DatasetFile
	status  transfer.DatasetStatus
}

// NewProgramTree creates an empty tree.
func NewProgramTree() *ProgramTree {
	return &ProgramTree{
		byID:     make(map[string]*program),
		datasets: make(map[transfer.DatasetFile]*execLogEntry),
	}
}

// AddObservation registers an observation that has not executed yet.
func (t *ProgramTree) AddObservation(programID, observationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observationLocked(programID, observationID)
}

// RecordDataset appends ds to the observation's execution log. Recording an
// existing dataset leaves its status untouched.
func (t *ProgramTree) RecordDataset(
	_ context.Context,
	programID, observationID string,
	ds transfer.DatasetFile,
	status transfer.DatasetStatus,
) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.datasets[ds]; ok {
		return nil
	}
	obs := t.observationLocked(programID, observationID)
	entry := &execLogEntry{dataset: ds, status: status}
	obs.execLog = append(obs.execLog, entry)
	t.datasets[ds] = entry
	return nil
}

func (t *ProgramTree) observationLocked(programID, observationID string) *observation {
	p, ok := t.byID[programID]
	if !ok {
		p = &program{id: programID, byID: make(map[string]*observation)}
		t.byID[programID] = p
		t.programs = append(t.programs, p)
	}
	o, ok := p.byID[observationID]
	if !ok {
		o = &observation{id: observationID}
		p.byID[observationID] = o
		p.observations = append(p.observations, o)
	}
	return o
}

// QueryStates walks every program and every observation with an execution
// log, collecting datasets whose status is in states.
func (t *ProgramTree) QueryStates(
	ctx context.Context,
	states []transfer.DatasetStatus,
) (transfer.StateSnapshot, error) {
	wanted := make(map[transfer.DatasetStatus]struct{}, len(states))
	for _, s := range states {
		wanted[s] = struct{}{}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := make(transfer.StateSnapshot)
	for _, p := range t.programs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, o := range p.observations {
			for _, e := range o.execLog {
				if _, ok := wanted[e.status]; ok {
					snapshot[e.status] = append(snapshot[e.status], e.dataset)
				}
			}
		}
	}
	return snapshot, nil
}

// UpdateStatus moves ds to next only if its status is still expected.
func (t *ProgramTree) UpdateStatus(
	_ context.Context,
	ds transfer.DatasetFile,
	expected, next transfer.DatasetStatus,
) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.datasets[ds]
	if !ok || e.status != expected {
		return false, nil
	}
	e.status = next
	return true, nil
}

// Status returns the status of ds and whether it has been recorded.
func (t *ProgramTree) Status(ds transfer.DatasetFile) (transfer.DatasetStatus, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.datasets[ds]
	if !ok {
		return "", false
	}
	return e.status, true
}
