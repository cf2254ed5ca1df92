package mocks

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/grovetools/wizard/pkg/bus"
)

// MockConn is a mock implementation of bus.Conn for testing
type MockConn struct {
	ObjectFunc    func(dest string, path dbus.ObjectPath) bus.Object
	SubscribeFunc func(path dbus.ObjectPath, iface string) (bus.Feed, error)
	CloseFunc     func() error

	mu     sync.Mutex
	closed bool
}

// Object calls the mock function, or returns an empty MockObject.
func (m *MockConn) Object(dest string, path dbus.ObjectPath) bus.Object {
	if m.ObjectFunc != nil {
		return m.ObjectFunc(dest, path)
	}
	return &MockObject{Dest: dest, ObjectPath: path}
}

// Subscribe calls the mock function
func (m *MockConn) Subscribe(path dbus.ObjectPath, iface string) (bus.Feed, error) {
	if m.SubscribeFunc != nil {
		return m.SubscribeFunc(path, iface)
	}
	return NewFeed(), nil
}

// Close records the close and calls the mock function
func (m *MockConn) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Closed reports whether Close was called.
func (m *MockConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// RecordedCall is one method call seen by a MockObject.
type RecordedCall struct {
	Method string
	Args   []interface{}
}

// MockObject is a mock implementation of bus.Object for testing
type MockObject struct {
	Dest       string
	ObjectPath dbus.ObjectPath

	CallFunc        func(ctx context.Context, method string, args ...interface{}) *dbus.Call
	GetPropertyFunc func(name string) (dbus.Variant, error)

	mu    sync.Mutex
	calls []RecordedCall
}

// CallWithContext records the call and returns the mock's reply. Without a
// CallFunc the call succeeds with an empty body.
func (m *MockObject) CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	m.mu.Lock()
	m.calls = append(m.calls, RecordedCall{Method: method, Args: args})
	m.mu.Unlock()
	if m.CallFunc != nil {
		return m.CallFunc(ctx, method, args...)
	}
	return Reply()
}

// GetProperty calls the mock function
func (m *MockObject) GetProperty(name string) (dbus.Variant, error) {
	if m.GetPropertyFunc != nil {
		return m.GetPropertyFunc(name)
	}
	return dbus.Variant{}, dbus.ErrMsgNoObject
}

// Path returns the object path
func (m *MockObject) Path() dbus.ObjectPath {
	return m.ObjectPath
}

// Destination returns the bus name
func (m *MockObject) Destination() string {
	return m.Dest
}

// Calls returns the recorded calls in order.
func (m *MockObject) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedCall(nil), m.calls...)
}

// Methods returns the names of the recorded calls in order.
func (m *MockObject) Methods() []string {
	var methods []string
	for _, c := range m.Calls() {
		methods = append(methods, c.Method)
	}
	return methods
}

// Reply builds a successful method reply carrying body.
func Reply(body ...interface{}) *dbus.Call {
	return &dbus.Call{Body: body}
}

// Failure builds a failed method reply.
func Failure(err error) *dbus.Call {
	return &dbus.Call{Err: err}
}

// MockFeed is a scripted bus.Feed. Signals are queued with Emit and the
// stream ends with End, like a dropped connection.
type MockFeed struct {
	ch       chan *dbus.Signal
	once     sync.Once
	mu       sync.Mutex
	detached bool
}

// NewFeed returns a feed with room for the signals queued before the
// reader starts.
func NewFeed(signals ...*dbus.Signal) *MockFeed {
	f := &MockFeed{ch: make(chan *dbus.Signal, len(signals)+64)}
	for _, s := range signals {
		f.ch <- s
	}
	return f
}

// Emit queues a signal.
func (f *MockFeed) Emit(s *dbus.Signal) {
	f.ch <- s
}

// End closes the signal channel.
func (f *MockFeed) End() {
	f.once.Do(func() { close(f.ch) })
}

// Signals returns the signal channel
func (f *MockFeed) Signals() <-chan *dbus.Signal {
	return f.ch
}

// Close records that the subscriber detached.
func (f *MockFeed) Close() {
	f.mu.Lock()
	f.detached = true
	f.mu.Unlock()
}

// Detached reports whether Close was called.
func (f *MockFeed) Detached() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detached
}

// Signal builds a signal emitted by path as iface.member.
func Signal(path dbus.ObjectPath, iface, member string, body ...interface{}) *dbus.Signal {
	return &dbus.Signal{
		Path: path,
		Name: iface + "." + member,
		Body: body,
	}
}
