package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCode(t *testing.T) {
	assert.Equal(t, "", Code(nil))
	assert.Equal(t, CodeValidation, Code(Validation("bad %s", "input")))
	assert.Equal(t, CodeConflict, Code(Conflict("dup")))
	assert.Equal(t, CodeForbidden, Code(Forbidden("nope")))
	assert.Equal(t, CodeUnauthorized, Code(Unauthorized("who")))
	assert.Equal(t, CodeInvalidTransition, Code(InvalidTransition("x")))
	assert.Equal(t, CodeNotFound, Code(ErrInstallationNotFound))
	assert.Equal(t, CodeNotFound, Code(fmt.Errorf("get: %w", ErrTeamNotFound)))
	assert.Equal(t, CodeInternal, Code(errors.New("db down")))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "bad input", Message(Validation("bad %s", "input")))
	assert.Equal(t, "bad input", Message(fmt.Errorf("wrap: %w", Validation("bad input"))))
	assert.Equal(t, "installation not found", Message(ErrInstallationNotFound))
	assert.Equal(t, "internal error", Message(errors.New("pq: connection refused")))
}

func TestEntityNotFoundWrapsKind(t *testing.T) {
	for _, err := range []error{ErrInstallationNotFound, ErrPartnerNotFound, ErrTeamNotFound, ErrTechnicianNotFound, ErrSettingNotFound} {
		assert.True(t, errors.Is(err, ErrNotFound))
	}
	assert.True(t, IsDomain(ErrTeamNotFound))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.False(t, IsDomain(nil))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", ErrPartnerNotFound)))
	assert.False(t, IsNotFound(Validation("x")))
}
