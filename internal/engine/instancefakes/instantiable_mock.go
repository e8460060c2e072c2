// Hand-written in the shape MockGen emits.
// Source: github.com/arborlang/modlink/internal/engine (interfaces: Instantiable)

// Package instancefakes is a GoMock test double package.
package instancefakes

import (
	"context"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"
)

// MockInstantiable is a mock of the Instantiable interface.
type MockInstantiable struct {
	ctrl     *gomock.Controller
	recorder *MockInstantiableMockRecorder
}

// MockInstantiableMockRecorder is the mock recorder for MockInstantiable.
type MockInstantiableMockRecorder struct {
	mock *MockInstantiable
}

// NewMockInstantiable creates a new mock instance.
func NewMockInstantiable(ctrl *gomock.Controller) *MockInstantiable {
	mock := &MockInstantiable{ctrl: ctrl}
	mock.recorder = &MockInstantiableMockRecorder{mock}

	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockInstantiable) EXPECT() *MockInstantiableMockRecorder {
	return m.recorder
}

// Start mocks base method.
func (m *MockInstantiable) Start(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Start", ctx)
	ret0, _ := ret[0].(error)

	return ret0
}

// Start indicates an expected call of Start.
func (mr *MockInstantiableMockRecorder) Start(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Start", reflect.TypeOf((*MockInstantiable)(nil).Start), ctx)
}

// Stop mocks base method.
func (m *MockInstantiable) Stop(ctx context.Context) error {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Stop", ctx)
	ret0, _ := ret[0].(error)

	return ret0
}

// Stop indicates an expected call of Stop.
func (mr *MockInstantiableMockRecorder) Stop(ctx interface{}) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stop", reflect.TypeOf((*MockInstantiable)(nil).Stop), ctx)
}

// Detach mocks base method.
func (m *MockInstantiable) Detach() {
	m.ctrl.T.Helper()
	m.ctrl.Call(m, "Detach")
}

// Detach indicates an expected call of Detach.
func (mr *MockInstantiableMockRecorder) Detach() *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Detach", reflect.TypeOf((*MockInstantiable)(nil).Detach))
}
