// Package apperr 定义引擎对外暴露的错误分类。
// 生产方用 errors.Wrapf 包装哨兵错误，调用方用 errors.Is 判断类别。
package apperr

import (
	stderrors "errors"
	"net/http"

	"github.com/pkg/errors"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrValidation         = errors.New("validation failed")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrConflict           = errors.New("conflict")
)

// 业务码：两类 409 需要前端区分（“操作不可用” vs “请刷新重试”）。
const (
	CodeInvalidTransition = 4091
	CodeConflict          = 4090
)

// Status 将错误映射为 HTTP 状态码与响应体中的 code。
func Status(err error) (httpStatus int, code int) {
	switch {
	case err == nil:
		return http.StatusOK, 0
	case stderrors.Is(err, ErrNotFound):
		return http.StatusNotFound, 404
	case stderrors.Is(err, ErrForbidden):
		return http.StatusForbidden, 403
	case stderrors.Is(err, ErrInvalidTransition):
		return http.StatusConflict, CodeInvalidTransition
	case stderrors.Is(err, ErrValidation):
		return http.StatusBadRequest, 400
	case stderrors.Is(err, ErrPreconditionFailed):
		return http.StatusPreconditionFailed, 412
	case stderrors.Is(err, ErrConflict):
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, 500
	}
}

// Kind 返回错误类别名，用于日志与指标标签。
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case stderrors.Is(err, ErrNotFound):
		return "not_found"
	case stderrors.Is(err, ErrForbidden):
		return "forbidden"
	case stderrors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case stderrors.Is(err, ErrValidation):
		return "validation"
	case stderrors.Is(err, ErrPreconditionFailed):
		return "precondition_failed"
	case stderrors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "internal"
	}
}

// IsDomain 判断是否为业务错误（非基础设施故障）。
func IsDomain(err error) bool {
	k := Kind(err)
	return k != "internal" && k != "ok"
}
