package backlog

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process TxStore. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.Mutex
	state memoryState
}

type memoryState struct {
	backlogs map[string]*Backlog
	stories  map[string]*Story
	tasks    map[string]*Task
	// creation order, used to keep listings stable
	order map[string]int
	seq   int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

func newMemoryState() memoryState {
	return memoryState{
		backlogs: make(map[string]*Backlog),
		stories:  make(map[string]*Story),
		tasks:    make(map[string]*Task),
		order:    make(map[string]int),
	}
}

func (s memoryState) clone() memoryState {
	c := newMemoryState()
	for k, v := range s.backlogs {
		b := *v
		c.backlogs[k] = &b
	}
	for k, v := range s.stories {
		st := *v
		c.stories[k] = &st
	}
	for k, v := range s.tasks {
		t := *v
		c.tasks[k] = &t
	}
	for k, v := range s.order {
		c.order[k] = v
	}
	c.seq = s.seq
	return c
}

func (s *memoryState) nextID() string {
	id := uuid.NewString()
	s.seq++
	s.order[id] = s.seq
	return id
}

// AddProject creates a top-level (level 1) backlog in the project and
// returns it. It is the usual way to create an import destination.
func (m *MemoryStore) AddProject(projectID, name string) *Backlog {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := &Backlog{
		ID:        m.state.nextID(),
		ProjectID: projectID,
		Name:      name,
		Level:     1,
		Status:    StatusToDo,
	}
	m.state.backlogs[b.ID] = b
	cp := *b
	return &cp
}

// GetBacklog returns a copy of the backlog with the given ID.
func (m *MemoryStore) GetBacklog(ctx context.Context, id string) (*Backlog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.getBacklog(id)
}

// CreateBacklog stores a copy of b and returns its new ID. A set ParentID
// must name an existing backlog.
func (m *MemoryStore) CreateBacklog(ctx context.Context, b *Backlog) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createBacklog(b)
}

// CreateStory stores a copy of s under an existing backlog.
func (m *MemoryStore) CreateStory(ctx context.Context, s *Story) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createStory(s)
}

// CreateTask stores a copy of t. Its backlog, and its story when set, must exist.
func (m *MemoryStore) CreateTask(ctx context.Context, t *Task) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.createTask(t)
}

// WithinTx runs fn against a private copy of the store. The copy replaces
// the store's contents only if fn returns nil. Transactions are serialized.
func (m *MemoryStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &txStore{state: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

// Backlogs returns the direct child backlogs of parentID ordered by
// priority then creation. An empty parentID lists top-level backlogs.
func (m *MemoryStore) Backlogs(parentID string) []*Backlog {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Backlog
	for _, b := range m.state.backlogs {
		if b.ParentID == parentID {
			cp := *b
			out = append(out, &cp)
		}
	}
	m.sortByPriority(len(out), func(i int) (int, string) { return out[i].Priority, out[i].ID },
		func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Stories returns the stories of a backlog ordered by priority then creation.
func (m *MemoryStore) Stories(backlogID string) []*Story {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Story
	for _, s := range m.state.stories {
		if s.BacklogID == backlogID {
			cp := *s
			out = append(out, &cp)
		}
	}
	m.sortByPriority(len(out), func(i int) (int, string) { return out[i].Priority, out[i].ID },
		func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Tasks returns the tasks of a story, or the tasks attached directly to a
// backlog when storyID is empty.
func (m *MemoryStore) Tasks(backlogID, storyID string) []*Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*Task
	for _, t := range m.state.tasks {
		if t.BacklogID == backlogID && t.StoryID == storyID {
			cp := *t
			out = append(out, &cp)
		}
	}
	m.sortByPriority(len(out), func(i int) (int, string) { return out[i].Priority, out[i].ID },
		func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// Counts returns the number of backlogs, stories and tasks held.
func (m *MemoryStore) Counts() (backlogs, stories, tasks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.backlogs), len(m.state.stories), len(m.state.tasks)
}

// TotalStoryPoints sums the estimated story points of the stories in a
// backlog and, recursively, in all of its descendant backlogs.
func (m *MemoryStore) TotalStoryPoints(backlogID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.state.backlogs[backlogID]; !ok {
		return 0, fmt.Errorf("backlog %s: %w", backlogID, ErrNotFound)
	}
	return m.state.storyPoints(backlogID), nil
}

func (s memoryState) storyPoints(backlogID string) float64 {
	var total float64
	for _, st := range s.stories {
		if st.BacklogID == backlogID {
			total += st.EstimatedStoryPoints
		}
	}
	for _, b := range s.backlogs {
		if b.ParentID == backlogID {
			total += s.storyPoints(b.ID)
		}
	}
	return total
}

func (m *MemoryStore) sortByPriority(n int, key func(int) (int, string), swap func(i, j int)) {
	sort.Sort(&prioritySorter{n: n, key: key, swap: swap, order: m.state.order})
}

type prioritySorter struct {
	n     int
	key   func(int) (int, string)
	swap  func(i, j int)
	order map[string]int
}

func (p *prioritySorter) Len() int      { return p.n }
func (p *prioritySorter) Swap(i, j int) { p.swap(i, j) }
func (p *prioritySorter) Less(i, j int) bool {
	pi, idi := p.key(i)
	pj, idj := p.key(j)
	if pi != pj {
		return pi < pj
	}
	return p.order[idi] < p.order[idj]
}

func (s *memoryState) getBacklog(id string) (*Backlog, error) {
	b, ok := s.backlogs[id]
	if !ok {
		return nil, fmt.Errorf("backlog %s: %w", id, ErrNotFound)
	}
	cp := *b
	return &cp, nil
}

func (s *memoryState) createBacklog(b *Backlog) (string, error) {
	if b.ParentID != "" {
		if _, ok := s.backlogs[b.ParentID]; !ok {
			return "", fmt.Errorf("parent backlog %s: %w", b.ParentID, ErrNotFound)
		}
	}
	cp := *b
	cp.ID = s.nextID()
	s.backlogs[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryState) createStory(st *Story) (string, error) {
	if _, ok := s.backlogs[st.BacklogID]; !ok {
		return "", fmt.Errorf("backlog %s: %w", st.BacklogID, ErrNotFound)
	}
	cp := *st
	cp.ID = s.nextID()
	s.stories[cp.ID] = &cp
	return cp.ID, nil
}

func (s *memoryState) createTask(t *Task) (string, error) {
	if _, ok := s.backlogs[t.BacklogID]; !ok {
		return "", fmt.Errorf("backlog %s: %w", t.BacklogID, ErrNotFound)
	}
	if t.StoryID != "" {
		if _, ok := s.stories[t.StoryID]; !ok {
			return "", fmt.Errorf("story %s: %w", t.StoryID, ErrNotFound)
		}
	}
	cp := *t
	cp.ID = s.nextID()
	s.tasks[cp.ID] = &cp
	return cp.ID, nil
}

// txStore is the Store handed to WithinTx callbacks. The owning
// MemoryStore's lock is held for its whole lifetime.
type txStore struct {
	state memoryState
}

func (t *txStore) GetBacklog(ctx context.Context, id string) (*Backlog, error) {
	return t.state.getBacklog(id)
}

func (t *txStore) CreateBacklog(ctx context.Context, b *Backlog) (string, error) {
	return t.state.createBacklog(b)
}

func (t *txStore) CreateStory(ctx context.Context, s *Story) (string, error) {
	return t.state.createStory(s)
}

func (t *txStore) CreateTask(ctx context.Context, task *Task) (string, error) {
	return t.state.createTask(task)
}
