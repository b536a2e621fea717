package kernel

import "fmt"

// ResultCode is the 32-bit status value returned to guest code.
//
// Layout: description bits 0-9, module bits 10-17, summary bits 21-26, level bits 27-31.
type ResultCode uint32

type ErrorDescription uint32

const (
	DescSuccess            ErrorDescription = 0
	DescInvalidSection     ErrorDescription = 1000
	DescTooLarge           ErrorDescription = 1001
	DescNotAuthorized      ErrorDescription = 1002
	DescAlreadyDone        ErrorDescription = 1003
	DescInvalidSize        ErrorDescription = 1004
	DescInvalidEnumValue   ErrorDescription = 1005
	DescInvalidCombination ErrorDescription = 1006
	DescNoData             ErrorDescription = 1007
	DescBusy               ErrorDescription = 1008
	DescMisalignedAddress  ErrorDescription = 1009
	DescMisalignedSize     ErrorDescription = 1010
	DescOutOfMemory        ErrorDescription = 1011
	DescNotImplemented     ErrorDescription = 1012
	DescInvalidAddress     ErrorDescription = 1013
	DescInvalidPointer     ErrorDescription = 1014
	DescInvalidHandle      ErrorDescription = 1015
	DescNotInitialized     ErrorDescription = 1016
	DescAlreadyInitialized ErrorDescription = 1017
	DescNotFound           ErrorDescription = 1018
	DescCancelRequested    ErrorDescription = 1019
	DescAlreadyExists      ErrorDescription = 1020
	DescOutOfRange         ErrorDescription = 1021
	DescTimeout            ErrorDescription = 1022
	DescInvalidResultValue ErrorDescription = 1023
)

type ErrorModule uint32

const (
	ModuleCommon ErrorModule = 0
	ModuleKernel ErrorModule = 1
	ModuleUtil   ErrorModule = 2
	ModuleOS     ErrorModule = 6
)

type ErrorSummary uint32

const (
	SummarySuccess         ErrorSummary = 0
	SummaryNothingHappened ErrorSummary = 1
	SummaryWouldBlock      ErrorSummary = 2
	SummaryOutOfResource   ErrorSummary = 3
	SummaryNotFound        ErrorSummary = 4
	SummaryInvalidState    ErrorSummary = 5
	SummaryNotSupported    ErrorSummary = 6
	SummaryInvalidArgument ErrorSummary = 7
	SummaryWrongArgument   ErrorSummary = 8
	SummaryCanceled        ErrorSummary = 9
	SummaryStatusChanged   ErrorSummary = 10
	SummaryInternal        ErrorSummary = 11
)

type ErrorLevel uint32

const (
	LevelSuccess      ErrorLevel = 0
	LevelInfo         ErrorLevel = 1
	LevelStatus       ErrorLevel = 25
	LevelTemporary    ErrorLevel = 26
	LevelPermanent    ErrorLevel = 27
	LevelUsage        ErrorLevel = 28
	LevelReinitialize ErrorLevel = 29
	LevelReset        ErrorLevel = 30
	LevelFatal        ErrorLevel = 31
)

// NewResult packs the four result fields.
func NewResult(desc ErrorDescription, module ErrorModule, summary ErrorSummary, level ErrorLevel) ResultCode {
	return ResultCode(uint32(desc)&0x3FF |
		(uint32(module)&0xFF)<<10 |
		(uint32(summary)&0x3F)<<21 |
		(uint32(level)&0x1F)<<27)
}

const (
	ResultSuccess ResultCode = 0

	// ResultInvalid is returned by blocking calls: the register stays untouched and the
	// resume path (wake-up or timeout) writes the real result.
	ResultInvalid ResultCode = 0xDEADC0DE

	ResultTimeout = ResultCode(uint32(DescTimeout) | uint32(ModuleOS)<<10 |
		uint32(SummaryStatusChanged)<<21 | uint32(LevelInfo)<<27)

	ErrInvalidHandle = ResultCode(uint32(DescInvalidHandle) | uint32(ModuleKernel)<<10 |
		uint32(SummaryInvalidArgument)<<21 | uint32(LevelPermanent)<<27)
	ErrInvalidEnumValue = ResultCode(uint32(DescInvalidEnumValue) | uint32(ModuleKernel)<<10 |
		uint32(SummaryWrongArgument)<<21 | uint32(LevelUsage)<<27)
	ErrInvalidSize = ResultCode(uint32(DescInvalidSize) | uint32(ModuleKernel)<<10 |
		uint32(SummaryInvalidArgument)<<21 | uint32(LevelPermanent)<<27)
	ErrInvalidAddress = ResultCode(uint32(DescInvalidAddress) | uint32(ModuleKernel)<<10 |
		uint32(SummaryInvalidArgument)<<21 | uint32(LevelPermanent)<<27)
	ErrInvalidPointer = ResultCode(uint32(DescInvalidPointer) | uint32(ModuleKernel)<<10 |
		uint32(SummaryInvalidArgument)<<21 | uint32(LevelPermanent)<<27)
	ErrInvalidCombination = ResultCode(uint32(DescInvalidCombination) | uint32(ModuleKernel)<<10 |
		uint32(SummaryWrongArgument)<<21 | uint32(LevelPermanent)<<27)
	ErrOutOfRange = ResultCode(uint32(DescOutOfRange) | uint32(ModuleOS)<<10 |
		uint32(SummaryInvalidArgument)<<21 | uint32(LevelUsage)<<27)
	ErrOutOfRangeKernel = ResultCode(uint32(DescOutOfRange) | uint32(ModuleKernel)<<10 |
		uint32(SummaryInvalidArgument)<<21 | uint32(LevelPermanent)<<27)
	ErrOutOfHandles = ResultCode(uint32(DescOutOfMemory) | uint32(ModuleKernel)<<10 |
		uint32(SummaryOutOfResource)<<21 | uint32(LevelTemporary)<<27)
	ErrNotAuthorized = ResultCode(uint32(DescNotAuthorized) | uint32(ModuleKernel)<<10 |
		uint32(SummaryWrongArgument)<<21 | uint32(LevelPermanent)<<27)
	ErrNotImplemented = ResultCode(uint32(DescNotImplemented) | uint32(ModuleKernel)<<10 |
		uint32(SummaryNotSupported)<<21 | uint32(LevelPermanent)<<27)
)

func (r ResultCode) Description() ErrorDescription { return ErrorDescription(r & 0x3FF) }
func (r ResultCode) Module() ErrorModule           { return ErrorModule(r >> 10 & 0xFF) }
func (r ResultCode) Summary() ErrorSummary         { return ErrorSummary(r >> 21 & 0x3F) }
func (r ResultCode) Level() ErrorLevel             { return ErrorLevel(r >> 27 & 0x1F) }

// IsError reports whether the error bit (31) is set. Informational results such as
// ResultTimeout are not errors.
func (r ResultCode) IsError() bool { return r&(1<<31) != 0 }

func (r ResultCode) IsSuccess() bool { return !r.IsError() }

func (r ResultCode) Error() string { return r.String() }

func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultInvalid:
		return "deferred"
	}
	return fmt.Sprintf("0x%08X (%s, module %d, summary %d, level %d)",
		uint32(r), r.Description(), r.Module(), r.Summary(), r.Level())
}

func (d ErrorDescription) String() string {
	switch d {
	case DescSuccess:
		return "success"
	case DescNotAuthorized:
		return "not authorized"
	case DescInvalidSize:
		return "invalid size"
	case DescInvalidEnumValue:
		return "invalid enum value"
	case DescInvalidCombination:
		return "invalid combination"
	case DescOutOfMemory:
		return "out of memory"
	case DescNotImplemented:
		return "not implemented"
	case DescInvalidAddress:
		return "invalid address"
	case DescInvalidPointer:
		return "invalid pointer"
	case DescInvalidHandle:
		return "invalid handle"
	case DescOutOfRange:
		return "out of range"
	case DescTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("description %d", uint32(d))
	}
}
