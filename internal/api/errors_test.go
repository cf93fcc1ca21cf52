package api

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	err := NewServiceNotFoundError(MustServiceName("a", "b"))
	assert.Equal(t, "service a.b not found", err.Error())
	assert.True(t, IsNotFound(fmt.Errorf("lookup: %w", err)))
	assert.False(t, IsNotFound(fmt.Errorf("other")))

	custom := &NotFoundError{Message: "nothing here"}
	assert.Equal(t, "nothing here", custom.Error())
}

func TestTypedErrors(t *testing.T) {
	name := MustServiceName("svc")

	dup := fmt.Errorf("register: %w", &DuplicateNameError{Name: name})
	assert.True(t, IsDuplicateName(dup))
	assert.EqualError(t, dup, "register: service svc is already registered")

	state := &IllegalStateError{Name: name, State: StateDown, Operation: "read value of"}
	assert.True(t, IsIllegalState(state))
	assert.Equal(t, "cannot read value of service svc in state DOWN", state.Error())

	cycle := &CycleError{Path: []ServiceName{MustServiceName("a"), MustServiceName("b"), MustServiceName("a")}}
	assert.True(t, IsCycle(fmt.Errorf("%w", cycle)))
	assert.Equal(t, "dependency cycle detected: a -> b -> a", cycle.Error())

	assert.Equal(t, "invalid service definition: service name is empty", (&InvalidDefinitionError{Reason: "service name is empty"}).Error())
	assert.Equal(t, "invalid service definition svc: behavior is nil", (&InvalidDefinitionError{Name: name, Reason: "behavior is nil"}).Error())
}
