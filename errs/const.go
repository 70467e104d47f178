package errs

const (
	ErrCode_OK               = 0
	ErrCode_Unknown          = 1
	ErrCode_Argument         = 2
	ErrCode_CallbackNotFound = 3
	ErrCode_Internal         = 4
	ErrCode_Closed           = 5
	ErrCode_Busy             = 6
)

var (
	Unknown = CreateCodeError(ErrCode_Unknown, "UNKNOWN")
	// Argument 参数描述符与参数值不匹配，定时器不会被创建
	Argument = CreateCodeError(ErrCode_Argument, "ARGUMENT")
	// CallbackNotFound 宿主中找不到回调，定时器生命周期照常推进
	CallbackNotFound = CreateCodeError(ErrCode_CallbackNotFound, "CALLBACK_NOT_FOUND")
	// Internal 内部不变量被破坏，正常运行时不可达
	Internal = CreateCodeError(ErrCode_Internal, "INTERNAL")
	Closed   = CreateCodeError(ErrCode_Closed, "CLOSED")
	Busy     = CreateCodeError(ErrCode_Busy, "BUSY")
)
