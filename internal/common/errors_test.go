package common

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrCannotFollowSelf_IsValidation(t *testing.T) {
	assert.True(t, errors.Is(ErrCannotFollowSelf, ErrorValidation))
	assert.False(t, errors.Is(ErrCannotFollowSelf, ErrUserAlreadyFollowed))
}

func TestOutcomeKinds_AreDistinct(t *testing.T) {
	kinds := []error{
		ErrDuplicateUsername, ErrDuplicateEmail, ErrUserNotFound,
		ErrUserAlreadyFollowed, ErrUserNotFollowed, ErrorUnauthorized,
		ErrUnknown, ErrPasskeyNotFound, ErrIncorrectPasskey, ErrPasskeyTooOld,
		ErrNotVerified,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			if i != j && errors.Is(a, b) {
				t.Fatalf("%v must not match %v", a, b)
			}
		}
	}
}
