// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package query defines the shared error taxonomy and topic naming
// convention every module's query router answers bus.Request calls
// with. Routers live next to the module they query (modules/utxo's
// router, modules/accounts' router, ...) but all speak this common
// vocabulary so a caller one layer up (e.g. a future gRPC/REST facade,
// out of scope here) doesn't need a different error model per module.
package query

import (
	"errors"
	"fmt"
)

// Code classifies a query failure the way a presentation-layer facade
// would need to map it to a transport-specific status.
type Code uint8

const (
	CodeOK Code = iota
	CodeNotFound
	CodeInternal
	CodeStorageDisabled
	CodeInvalidRequest
	CodeNotImplemented
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "ok"
	case CodeNotFound:
		return "not_found"
	case CodeInternal:
		return "internal"
	case CodeStorageDisabled:
		return "storage_disabled"
	case CodeInvalidRequest:
		return "invalid_request"
	case CodeNotImplemented:
		return "not_implemented"
	default:
		return "unknown"
	}
}

// Error is the error type every query router returns; it carries a
// Code so callers can branch on failure category without string
// matching.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("query: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("query: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func Internal(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

func StorageDisabled(msg string) *Error {
	return &Error{Code: CodeStorageDisabled, Message: msg}
}

func InvalidRequest(msg string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: msg}
}

func NotImplemented(msg string) *Error {
	return &Error{Code: CodeNotImplemented, Message: msg}
}

// CodeOf extracts the Code from err if it (or something it wraps) is
// a *Error, defaulting to CodeInternal otherwise.
func CodeOf(err error) Code {
	if err == nil {
		return CodeOK
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code
	}
	return CodeInternal
}

// Topic constants every module's router is registered under via
// bus.Bus.HandleRequests.
const (
	TopicUTxOByAddress   = "query.utxo.by_address"
	TopicUTxOByID        = "query.utxo.by_id"
	TopicAccountState    = "query.accounts.state"
	TopicPoolState       = "query.spo.state"
	TopicDRepState       = "query.drep.state"
	TopicCurrentParams   = "query.parameters.current"
	TopicSPDD            = "query.distribution.spdd"
	TopicDRDD            = "query.distribution.drdd"
	TopicEpochActivity   = "query.epochactivity.current"
)
