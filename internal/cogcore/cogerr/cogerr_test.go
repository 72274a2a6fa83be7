package cogerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_ErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewValidation("title", "must be non-empty")
	assert.Equal(t, "title: must be non-empty", err.Error())

	bare := &ValidationError{Message: "standalone"}
	assert.Equal(t, "standalone", bare.Error())
}

func TestCapacityError_ErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewCapacity("ring_buffer", 100, "dropped %d entries", 3)
	assert.Equal(t, "ring_buffer: capacity 100 exceeded: dropped 3 entries", err.Error())
}

func TestStateMisuseError_ErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewStateMisuse("start_reasoning_pass", "a pass is already in progress")
	assert.Equal(t, "start_reasoning_pass: a pass is already in progress", err.Error())
}

func TestPlanningError_ErrorMessage(t *testing.T) {
	t.Parallel()

	err := NewPlanning("cycle detected involving %q", "action-1")
	assert.Equal(t, `planning: cycle detected involving "action-1"`, err.Error())
}

func TestLearningEngineError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk full")
	err := WrapLearning(cause)

	assert.Equal(t, "learning engine: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestUnexpectedError_UnwrapsCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("nil pointer somewhere")
	err := Wrap(cause)

	assert.Equal(t, "unexpected: nil pointer somewhere", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestErrorsAs_DiscriminatesKinds(t *testing.T) {
	t.Parallel()

	var err error = NewValidation("field", "bad")

	var ve *ValidationError
	assert.True(t, errors.As(err, &ve))

	var ce *CapacityError
	assert.False(t, errors.As(err, &ce))
}
