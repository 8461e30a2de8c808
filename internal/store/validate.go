package store

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"b2b_workflow/internal/apperr"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// check 校验入参结构体，失败时包装为 ErrValidation 并列出每个字段。
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(apperr.ErrValidation, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: rule '%s=%s', got '%v'", fe.Field(), fe.Tag(), fe.Param(), fe.Value()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: rule '%s'", fe.Field(), fe.Tag()))
	}
	return errors.Wrap(apperr.ErrValidation, strings.Join(msgs, "; "))
}
