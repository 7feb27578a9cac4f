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
	"context"
	"net"
	"strings"

	"github.com/cockroachdb/errors"
)

func Code(err error) int32 {
	if err == nil {
		return 0
	}

	var tErr taggerError
	if errors.As(err, &tErr) {
		return tErr.Code()
	}

	if errors.Is(err, context.Canceled) {
		return ErrCancelError.Code()
	} else if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeoutError.Code()
	}
	return ErrUnknownError.Code()
}

// IsFatalStartupErr reports whether err must stop the service before any cycle is scheduled.
func IsFatalStartupErr(err error) bool {
	if err == nil {
		return false
	}
	return ErrConfigError.Is(err) || ErrNotRunningOn.Is(err)
}

// IsTimeoutError checks if an error is a timeout error (context deadline exceeded or a
// net.Error reporting a timeout)
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	errMsg := err.Error()
	return strings.Contains(errMsg, "context deadline exceeded") ||
		strings.Contains(errMsg, "Client.Timeout exceeded") ||
		strings.Contains(errMsg, "context canceled")
}
