// Package errs adapts the module's generic CodeError registry to the fixed
// error taxonomy of the Yogi framework: one stable, negative-leaning integer
// per failure mode, each carrying a human-readable description string.
package errs

import (
	liberr "github.com/yohummus/yogi-framework-sub001/errors"
)

// MinYogi reserves the code range used by this package, following the same
// per-package range convention as the rest of the module.
const MinYogi liberr.CodeError = 10000

// Ok is the sentinel success code. Zero and any positive value mean success;
// every Yogi-specific failure below is registered at MinYogi and above.
const Ok liberr.CodeError = 0

const (
	Unknown liberr.CodeError = MinYogi + iota

	InvalidParam
	InvalidHandle
	WrongObjectType
	ObjectStillUsed
	Busy
	Canceled
	Timeout
	TimerExpired

	OpenSocketFailed
	BindSocketFailed
	ListenSocketFailed
	AcceptSocketFailed
	ConnectSocketFailed
	RwSocketFailed
	SetSocketOptionFailed
	JoinMulticastGroupFailed

	InvalidMagicPrefix
	IncompatibleVersion
	DeserializeMsgFailed
	LoopbackConnection
	PasswordMismatch
	NetNameMismatch
	DuplicateBranchName
	DuplicateBranchPath
	PayloadTooLarge

	InvalidUserMsgpack
	ParsingJsonFailed
	ParsingFileFailed
	ConfigNotValid
	ConfigurationSectionNotFound
	ConfigurationValidationFailed
	UndefinedVariables
	NoVariableSupport
	VariableUsedInKey

	TxQueueFull
	BufferTooSmall
	InvalidOperationId
	OperationNotRunning

	HelpRequested
)

func message(code liberr.CodeError) string {
	switch code {
	case Unknown:
		return "unknown internal error"
	case InvalidParam:
		return "invalid parameter"
	case InvalidHandle:
		return "invalid handle"
	case WrongObjectType:
		return "wrong object type"
	case ObjectStillUsed:
		return "object is still referenced"
	case Busy:
		return "operation already in progress"
	case Canceled:
		return "operation canceled"
	case Timeout:
		return "operation timed out"
	case TimerExpired:
		return "timer is not running"

	case OpenSocketFailed:
		return "could not open socket"
	case BindSocketFailed:
		return "could not bind socket"
	case ListenSocketFailed:
		return "could not listen on socket"
	case AcceptSocketFailed:
		return "could not accept on socket"
	case ConnectSocketFailed:
		return "could not connect socket"
	case RwSocketFailed:
		return "socket read/write failed"
	case SetSocketOptionFailed:
		return "could not set socket option"
	case JoinMulticastGroupFailed:
		return "could not join multicast group"

	case InvalidMagicPrefix:
		return "invalid magic prefix"
	case IncompatibleVersion:
		return "incompatible version"
	case DeserializeMsgFailed:
		return "could not deserialize message"
	case LoopbackConnection:
		return "connection to self rejected"
	case PasswordMismatch:
		return "password mismatch"
	case NetNameMismatch:
		return "network name mismatch"
	case DuplicateBranchName:
		return "duplicate branch name"
	case DuplicateBranchPath:
		return "duplicate branch path"
	case PayloadTooLarge:
		return "payload too large"

	case InvalidUserMsgpack:
		return "invalid MessagePack data"
	case ParsingJsonFailed:
		return "could not parse JSON"
	case ParsingFileFailed:
		return "could not parse file"
	case ConfigNotValid:
		return "configuration not valid"
	case ConfigurationSectionNotFound:
		return "configuration section not found"
	case ConfigurationValidationFailed:
		return "configuration validation failed"
	case UndefinedVariables:
		return "undefined variables"
	case NoVariableSupport:
		return "variable support not enabled"
	case VariableUsedInKey:
		return "variable syntax used in a key"

	case TxQueueFull:
		return "transmit queue full"
	case BufferTooSmall:
		return "buffer too small"
	case InvalidOperationId:
		return "invalid operation id"
	case OperationNotRunning:
		return "operation not running"

	case HelpRequested:
		return "help requested"
	default:
		return liberr.UnknownMessage
	}
}

func init() {
	liberr.RegisterIdFctMessage(MinYogi, message)
}
