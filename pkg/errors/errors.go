package errors

import "errors"

// ErrUniqueViolation 唯一约束冲突（由仓储层从数据库错误转换而来）
var ErrUniqueViolation = errors.New("违反唯一约束")
