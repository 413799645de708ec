package services

import "errors"

// 服务层错误。handlers 把它们映射成 HTTP 状态码，存储层的错误文本
// 不会透出。
var (
	ErrValidation = errors.New("validation error")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrInternal   = errors.New("internal error")
)
