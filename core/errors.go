package core

import "errors"

// DomainError 是领域层的统一错误类型。
//
// 错误分类（Code）：
//   - INVALID_REQUEST：请求字段缺失或格式错误，调用方问题，不重试
//   - NOT_FOUND：直接查找的游览/用户不在当前快照中
//   - SNAPSHOT_INCOMPATIBLE：快照组件版本互不兼容，加载失败
//   - TRAINING_DATA：离线训练输入缺列或为空
//
// Err 保存底层原因，可通过 errors.Is / errors.As 继续匹配。
type DomainError struct {
	Code    string // 错误代码（机器可读，如 "NOT_FOUND"）
	Message string // 错误消息
	Module  string // 模块名称（如 "store", "serving", "snapshot"）
	Err     error  // 底层原因（可选）
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is 按 Module + Code 比较，便于 errors.Is(err, ErrStoreNotFound)。
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Module == t.Module && e.Code == t.Code
}

// GetDomainError 沿错误链查找 DomainError，找不到返回 nil。
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// NewDomainError 创建新的领域错误
func NewDomainError(module, code, message string) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
	}
}

// WrapDomainError 创建携带底层原因的领域错误
func WrapDomainError(module, code, message string, err error) *DomainError {
	return &DomainError{
		Module:  module,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// 错误代码常量
const (
	ErrorCodeInvalidRequest       = "INVALID_REQUEST"
	ErrorCodeNotFound             = "NOT_FOUND"
	ErrorCodeSnapshotIncompatible = "SNAPSHOT_INCOMPATIBLE"
	ErrorCodeTrainingData         = "TRAINING_DATA"
	ErrorCodeNotSupported         = "NOT_SUPPORTED"
	ErrorCodeUnavailable          = "UNAVAILABLE" // 尚无可用快照
	ErrorCodeInternalError        = "INTERNAL"
)

// 模块名称常量
const (
	ModuleStore    = "store"
	ModuleFeature  = "feature"
	ModuleRecall   = "recall"
	ModuleModel    = "model"
	ModuleSnapshot = "snapshot"
	ModuleServing  = "serving"
	ModuleTrain    = "train"
	ModuleCatalog  = "catalog"
)

// InvalidRequest 创建 INVALID_REQUEST 错误
func InvalidRequest(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeInvalidRequest, message)
}

// NotFound 创建 NOT_FOUND 错误
func NotFound(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeNotFound, message)
}

// SnapshotIncompatible 创建 SNAPSHOT_INCOMPATIBLE 错误
func SnapshotIncompatible(message string) *DomainError {
	return NewDomainError(ModuleSnapshot, ErrorCodeSnapshotIncompatible, message)
}

// TrainingData 创建 TRAINING_DATA 错误
func TrainingData(module, message string) *DomainError {
	return NewDomainError(module, ErrorCodeTrainingData, message)
}

// ErrorCode 返回错误链上的机器可读错误代码；非领域错误返回 INTERNAL。
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code
	}
	return ErrorCodeInternalError
}

func hasCode(err error, code string) bool {
	if err == nil {
		return false
	}
	if domainErr := GetDomainError(err); domainErr != nil {
		return domainErr.Code == code
	}
	return false
}

// IsInvalidRequest 检查错误是否为 INVALID_REQUEST
func IsInvalidRequest(err error) bool { return hasCode(err, ErrorCodeInvalidRequest) }

// IsNotFound 检查错误是否为 NOT_FOUND
func IsNotFound(err error) bool { return hasCode(err, ErrorCodeNotFound) }

// IsSnapshotIncompatible 检查错误是否为 SNAPSHOT_INCOMPATIBLE
func IsSnapshotIncompatible(err error) bool { return hasCode(err, ErrorCodeSnapshotIncompatible) }

// IsTrainingData 检查错误是否为 TRAINING_DATA
func IsTrainingData(err error) bool { return hasCode(err, ErrorCodeTrainingData) }

// IsNotSupported 检查错误是否为 NOT_SUPPORTED
func IsNotSupported(err error) bool { return hasCode(err, ErrorCodeNotSupported) }

// IsUnavailable 检查错误是否为 UNAVAILABLE
func IsUnavailable(err error) bool { return hasCode(err, ErrorCodeUnavailable) }
