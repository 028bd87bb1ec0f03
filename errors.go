package safe4337

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptySender           = errors.New("sender address is empty")
	ErrNoReceipt             = errors.New("no receipt found for user operation")
	ErrNotDeployed           = errors.New("contract is not deployed")
	ErrMissingSigner         = errors.New("signer is not configured")
	ErrPaymasterDataTooShort = errors.New("paymasterAndData too short")
	ErrInvalidAddress        = errors.New("invalid address")
	ErrInvalidValidity       = errors.New("invalid validity window")
)

// RPCError is an error returned by a bundler or paymaster endpoint.
// Code is zero when the endpoint answered with a bare string.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("rpc error: %s", e.Message)
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// UnmarshalJSON accepts either a plain string or a {code,message} object.
func (e *RPCError) UnmarshalJSON(b []byte) error {
	var errStr string
	if err := json.Unmarshal(b, &errStr); err == nil {
		e.Code = 0
		e.Message = errStr
		return nil
	}

	type alias struct {
		Code    *int    `json:"code"`
		Message *string `json:"message"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	if a.Code != nil {
		e.Code = *a.Code
	}
	if a.Message != nil {
		e.Message = *a.Message
	}
	return nil
}
