package domain

import (
	"context"
	"sync"
)

type MockStarLister struct {
	Repos  []RepoDescriptor
	Err    error
	Called int

	Username string
	List     string
}

func (m *MockStarLister) FetchStarred(ctx context.Context, username, listName string) ([]RepoDescriptor, error) {
	m.Called++
	m.Username, m.List = username, listName
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Repos, nil
}

type VCSCall struct {
	Op      string
	URL     string
	Dest    string
	Shallow bool
}

// MockVCS records calls and fails according to a per-destination script: the
// n-th call for a destination returns Script[dest][n], or nil once the script
// runs out.
type MockVCS struct {
	mu     sync.Mutex
	Calls  []VCSCall
	Script map[string][]error

	ConfigureErr error
	// OnCall runs after each call is recorded.
	OnCall func(VCSCall)
	seen   map[string]int
}

func (m *MockVCS) next(dest string) error {
	if m.seen == nil {
		m.seen = make(map[string]int)
	}
	n := m.seen[dest]
	m.seen[dest] = n + 1
	errs := m.Script[dest]
	if n < len(errs) {
		return errs[n]
	}
	return nil
}

func (m *MockVCS) record(c VCSCall) {
	m.Calls = append(m.Calls, c)
	if m.OnCall != nil {
		m.OnCall(c)
	}
}

func (m *MockVCS) Clone(ctx context.Context, url, dest string, shallow bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(VCSCall{Op: "clone", URL: url, Dest: dest, Shallow: shallow})
	return m.next(dest)
}

func (m *MockVCS) Update(ctx context.Context, dest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(VCSCall{Op: "update", Dest: dest})
	return m.next(dest)
}

func (m *MockVCS) ConfigureForLargeRepo(ctx context.Context, dest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record(VCSCall{Op: "configure", Dest: dest})
	return m.ConfigureErr
}

// CallsFor returns the operations issued against dest, in order.
func (m *MockVCS) CallsFor(dest string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ops []string
	for _, c := range m.Calls {
		if c.Dest == dest {
			ops = append(ops, c.Op)
		}
	}
	return ops
}

type MockNotifier struct {
	Messages []string
	Err      error
}

func (n *MockNotifier) Notify(ctx context.Context, title, body, url string) error {
	n.Messages = append(n.Messages, title+"|"+body+"|"+url)
	return n.Err
}

type MockReportStore struct {
	Reports []RunReport
	Err     error
}

func (c *MockReportStore) Write(ctx context.Context, r RunReport) error {
	if c.Err != nil {
		return c.Err
	}
	c.Reports = append(c.Reports, r)
	return nil
}
