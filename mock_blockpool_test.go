// Hand-written in the style of MockGen output (untyped recorder calls).
// Source: github.com/erigontech/taskscheduler (interfaces: blockPool)

package taskscheduler

import (
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// mockBlockPool is a mock of blockPool interface.
type mockBlockPool struct {
	ctrl     *gomock.Controller
	recorder *mockBlockPoolMockRecorder
}

// mockBlockPoolMockRecorder is the mock recorder for mockBlockPool.
type mockBlockPoolMockRecorder struct {
	mock *mockBlockPool
}

// newMockBlockPool creates a new mock instance.
func newMockBlockPool(ctrl *gomock.Controller) *mockBlockPool {
	mock := &mockBlockPool{ctrl: ctrl}
	mock.recorder = &mockBlockPoolMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *mockBlockPool) EXPECT() *mockBlockPoolMockRecorder {
	return m.recorder
}

// acquire mocks base method.
func (m *mockBlockPool) acquire() uint16 {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "acquire")
	ret0, _ := ret[0].(uint16)
	return ret0
}

// acquire indicates an expected call of acquire.
func (mr *mockBlockPoolMockRecorder) acquire() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "acquire", reflect.TypeOf((*mockBlockPool)(nil).acquire))
}

// release mocks base method.
func (m *mockBlockPool) release(handle uint16) {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "release", handle)
}

// release indicates an expected call of release.
func (mr *mockBlockPoolMockRecorder) release(handle any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "release", reflect.TypeOf((*mockBlockPool)(nil).release), handle)
}

// block mocks base method.
func (m *mockBlockPool) block(handle uint16) *syncBlock {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "block", handle)
	ret0, _ := ret[0].(*syncBlock)
	return ret0
}

// block indicates an expected call of block.
func (mr *mockBlockPoolMockRecorder) block(handle any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "block", reflect.TypeOf((*mockBlockPool)(nil).block), handle)
}
