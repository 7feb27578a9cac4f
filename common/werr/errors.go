// Licensed to the LF AI & Data foundation under one
// or more contributor license agreements. See the NOTICE file
// distributed with this work for additional information
// regarding copyright ownership. The ASF licenses this file
// to you under the Apache License, Version 2.0 (the
// "License"); you may not use this file except in compliance
// with the License. You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package werr

import (
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

const (
	// Ok means no errors
	Ok = iota
	// UnknownError means unknown error happened
	UnknownError
	// TimeoutError means operation timed out
	TimeoutError
	// CancelError means operation canceled by context
	CancelError
)

const (
	// ConfigError indicates missing or invalid configuration, including credential files.
	ConfigError int32 = 1000 + iota
	// NotRunningOnError indicates the cloud metadata service did not answer, the process
	// is not running on the expected cloud.
	NotRunningOnError
	// InvalidEntityType indicates an entity type without an API mapping.
	InvalidEntityType
)

const (
	// CommunicationError indicates a failed network exchange after startup.
	CommunicationError int32 = 2000 + iota
	// InstanceFetchError indicates the instance description could not be fetched or decoded.
	InstanceFetchError
	// PartialFailure indicates the controller rejected some entities of a batch.
	PartialFailure
)

var (
	ErrUnknownError = newTaggerError("unknown error", UnknownError, false)
	ErrTimeoutError = newTaggerError("operation timed out", TimeoutError, true)
	ErrCancelError  = newTaggerError("operation canceled", CancelError, false)

	// Startup related, fatal to the service
	ErrConfigError       = newTaggerError("config error", ConfigError, false)
	ErrNotRunningOn      = newTaggerError("not running on the expected cloud", NotRunningOnError, false)
	ErrInvalidEntityType = newTaggerError("entity type has no api mapping", InvalidEntityType, false)

	// Cycle related, the next scheduled cycle retries
	ErrCommunication  = newTaggerError("communication error", CommunicationError, true)
	ErrInstanceFetch  = newTaggerError("failed to fetch instance data", InstanceFetchError, true)
	ErrPartialFailure = newTaggerError("controller rejected some entities", PartialFailure, true)
)

// taggerError is a coded error value. Errors derived from the same sentinel share its code,
// and errors.Is matches on the code.
type taggerError struct {
	msg       string // msg is the message of this level of the chain
	errCode   int32  // errCode identifies the error kind
	retryable bool   // retryable reports whether the next cycle may succeed
	cause     error  // cause is the wrapped underlying error, may be nil
}

func newTaggerError(msg string, code int32, retryable bool) taggerError {
	return taggerError{
		msg:       msg,
		errCode:   code,
		retryable: retryable,
	}
}

func (e taggerError) Code() int32 {
	return e.errCode
}

func (e taggerError) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e taggerError) Unwrap() error {
	return e.cause
}

func (e taggerError) IsRetryable() bool {
	return e.retryable
}

func (e taggerError) Is(err error) bool {
	if err == nil {
		return false
	}
	var target taggerError
	if errors.As(err, &target) {
		return e.errCode == target.errCode
	}
	return false
}

// WithCauseErr keeps the code and message of e and chains cause behind it.
func (e taggerError) WithCauseErr(cause error) error {
	return taggerError{
		msg:       e.msg,
		errCode:   e.errCode,
		retryable: e.retryable,
		cause:     cause,
	}
}

// WithCauseErrMsg replaces the message and keeps the code.
func (e taggerError) WithCauseErrMsg(msg string) error {
	return taggerError{
		msg:       msg,
		errCode:   e.errCode,
		retryable: e.retryable,
	}
}

// WithContext prefixes the message with ctxMsg.
func (e taggerError) WithContext(ctxMsg string) error {
	return taggerError{
		msg:       ctxMsg + ": " + e.msg,
		errCode:   e.errCode,
		retryable: e.retryable,
		cause:     e.cause,
	}
}

func IsRetryableErr(err error) bool {
	var tErr taggerError
	if errors.As(err, &tErr) {
		return tErr.retryable
	}
	return false
}

type multiErrors struct {
	errs []error
}

func (e *multiErrors) Unwrap() error {
	if len(e.errs) <= 1 {
		return nil
	}
	if len(e.errs) == 2 {
		return e.errs[1]
	}
	return &multiErrors{
		errs: e.errs[1:],
	}
}

func (e *multiErrors) Error() string {
	final := e.errs[0]
	for i := 1; i < len(e.errs); i++ {
		final = errors.Wrap(e.errs[i], final.Error())
	}
	return final.Error()
}

func (e *multiErrors) Is(err error) bool {
	for _, item := range e.errs {
		if errors.Is(item, err) {
			return true
		}
	}
	return false
}

func Combine(errs ...error) error {
	errs = lo.Filter(errs, func(err error, _ int) bool { return err != nil })
	if len(errs) == 0 {
		return nil
	}
	return &multiErrors{
		errs,
	}
}
