package inventory

import "context"

// MockClient is a mock implementation of API. Unset functions return zero values.
type MockClient struct {
	PingFunc           func(ctx context.Context) error
	ListHostsFunc      func(ctx context.Context, query string, pageSize int) ([]Host, error)
	GetHostFunc        func(ctx context.Context, idOrName string) (*Host, error)
	ListHostgroupsFunc func(ctx context.Context, pageSize int, nameFilter string) ([]Hostgroup, error)
	ListReservedFunc   func(ctx context.Context, query string) ([]Host, error)
	ListAvailableFunc  func(ctx context.Context, query string, amount int) ([]Host, error)

	ReserveFunc      func(ctx context.Context, query string, amount int, reason string) ([]Host, error)
	ReleaseFunc      func(ctx context.Context, query string) ([]string, error)
	UpdateReasonFunc func(ctx context.Context, query, reason string) ([]Host, error)
	UpdateHostFunc   func(ctx context.Context, idOrName string, update HostUpdate) (*Host, error)
}

var _ API = (*MockClient)(nil)

// Ping implements API.
func (m *MockClient) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// ListHosts implements API.
func (m *MockClient) ListHosts(ctx context.Context, query string, pageSize int) ([]Host, error) {
	if m.ListHostsFunc != nil {
		return m.ListHostsFunc(ctx, query, pageSize)
	}
	return nil, nil
}

// GetHost implements API.
func (m *MockClient) GetHost(ctx context.Context, idOrName string) (*Host, error) {
	if m.GetHostFunc != nil {
		return m.GetHostFunc(ctx, idOrName)
	}
	return &Host{Name: idOrName}, nil
}

// ListHostgroups implements API.
func (m *MockClient) ListHostgroups(ctx context.Context, pageSize int, nameFilter string) ([]Hostgroup, error) {
	if m.ListHostgroupsFunc != nil {
		return m.ListHostgroupsFunc(ctx, pageSize, nameFilter)
	}
	return nil, nil
}

// ListReserved implements API.
func (m *MockClient) ListReserved(ctx context.Context, query string) ([]Host, error) {
	if m.ListReservedFunc != nil {
		return m.ListReservedFunc(ctx, query)
	}
	return nil, nil
}

// ListAvailable implements API.
func (m *MockClient) ListAvailable(ctx context.Context, query string, amount int) ([]Host, error) {
	if m.ListAvailableFunc != nil {
		return m.ListAvailableFunc(ctx, query, amount)
	}
	return nil, nil
}

// Reserve implements API.
func (m *MockClient) Reserve(ctx context.Context, query string, amount int, reason string) ([]Host, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, query, amount, reason)
	}
	return nil, nil
}

// Release implements API.
func (m *MockClient) Release(ctx context.Context, query string) ([]string, error) {
	if m.ReleaseFunc != nil {
		return m.ReleaseFunc(ctx, query)
	}
	return []string{}, nil
}

// UpdateReason implements API.
func (m *MockClient) UpdateReason(ctx context.Context, query, reason string) ([]Host, error) {
	if m.UpdateReasonFunc != nil {
		return m.UpdateReasonFunc(ctx, query, reason)
	}
	return nil, nil
}

// UpdateHost implements API.
func (m *MockClient) UpdateHost(ctx context.Context, idOrName string, update HostUpdate) (*Host, error) {
	if m.UpdateHostFunc != nil {
		return m.UpdateHostFunc(ctx, idOrName, update)
	}
	return &Host{Name: idOrName}, nil
}
