package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   int
		kind   string
	}{
		{nil, http.StatusOK, 0, "ok"},
		{pkgerrors.Wrapf(ErrNotFound, "order %d", 1), http.StatusNotFound, 404, "not_found"},
		{pkgerrors.Wrap(ErrForbidden, "role consumer"), http.StatusForbidden, 403, "forbidden"},
		{pkgerrors.Wrap(ErrInvalidTransition, "x"), http.StatusConflict, CodeInvalidTransition, "invalid_transition"},
		{pkgerrors.Wrap(ErrValidation, "x"), http.StatusBadRequest, 400, "validation"},
		{pkgerrors.Wrap(ErrPreconditionFailed, "x"), http.StatusPreconditionFailed, 412, "precondition_failed"},
		{fmt.Errorf("commit: %w", pkgerrors.Wrap(ErrConflict, "stale")), http.StatusConflict, CodeConflict, "conflict"},
		{errors.New("disk on fire"), http.StatusInternalServerError, 500, "internal"},
	}
	for _, c := range cases {
		status, code := Status(c.err)
		assert.Equal(t, c.status, status, "%v", c.err)
		assert.Equal(t, c.code, code, "%v", c.err)
		assert.Equal(t, c.kind, Kind(c.err))
	}
}

func TestIsDomain(t *testing.T) {
	assert.True(t, IsDomain(pkgerrors.Wrap(ErrConflict, "x")))
	assert.False(t, IsDomain(errors.New("boom")))
	assert.False(t, IsDomain(nil))
}
