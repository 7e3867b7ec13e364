package rpc

import (
	"errors"
	"net/http"

	"patreonix/core"
	"patreonix/core/state"
	"patreonix/crypto"
	"patreonix/native/creator"
)

// registryError maps a failure from the node onto a JSON-RPC error. Registry
// failures keep their stable code; the message is the error name and data
// carries the human readable text.
func registryError(err error) *RPCError {
	if err == nil {
		return nil
	}
	if regErr, ok := creator.AsError(err); ok {
		return newRPCError(statusForClass(regErr), int(regErr.Code), regErr.Name, regErr.Message)
	}
	switch {
	case errors.Is(err, core.ErrQuotaExceeded):
		return newRPCError(http.StatusTooManyRequests, codeQuotaExceeded, "write quota exceeded", err.Error())
	case errors.Is(err, core.ErrPausesFixed):
		return newRPCError(http.StatusConflict, codeServerError, "pause set is fixed", err.Error())
	case errors.Is(err, state.ErrNonceUsed):
		return newRPCError(http.StatusConflict, codeReplayed, "request has already been submitted", nil)
	case errors.Is(err, state.ErrNonceInvalid):
		return newRPCError(http.StatusBadRequest, codeInvalidParams, "invalid nonce", err.Error())
	case errors.Is(err, state.ErrBalanceOverflow), errors.Is(err, state.ErrZeroAmount):
		return newRPCError(http.StatusBadRequest, codeInvalidParams, "invalid amount", err.Error())
	case errors.Is(err, crypto.ErrTooManySeeds), errors.Is(err, crypto.ErrMaxSeedLengthExceeded):
		return newRPCError(http.StatusBadRequest, codeInvalidParams, "invalid seeds", err.Error())
	}
	return newRPCError(http.StatusInternalServerError, codeServerError, "internal error", err.Error())
}

func statusForClass(err *creator.Error) int {
	if err == creator.ErrModulePaused {
		return http.StatusServiceUnavailable
	}
	switch err.Class {
	case creator.ClassAuthorization:
		return http.StatusForbidden
	case creator.ClassArithmetic:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func invalidParams(message string, err error) *RPCError {
	if regErr, ok := creator.AsError(err); ok {
		return registryError(regErr)
	}
	var data interface{}
	if err != nil {
		data = err.Error()
	}
	return newRPCError(http.StatusBadRequest, codeInvalidParams, message, data)
}
