// Copyright 2025 venslabs
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

// Package errdefs defines the error taxonomy shared by depguard packages.
package errdefs

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestNotFound means no supported manifest exists in the scanned directory.
	ErrManifestNotFound = errors.New("no supported manifest found")

	// ErrManifestMalformed means a manifest exists but cannot be read as its format.
	ErrManifestMalformed = errors.New("malformed manifest")

	// ErrVectorParse means a CVSS vector string is not a valid v3 base vector.
	ErrVectorParse = errors.New("invalid CVSS vector")

	// ErrQuery means the vulnerability database could not answer for a package.
	ErrQuery = errors.New("vulnerability query failed")

	// ErrReportDir means the report directory could not be created.
	ErrReportDir = errors.New("cannot create report directory")

	// ErrReportLocked means another writer holds the report lock.
	ErrReportLocked = errors.New("report is locked by another writer")

	// ErrReportWrite means archiving or writing the report failed.
	ErrReportWrite = errors.New("report write failed")

	// ErrNotification means a notification chunk could not be delivered.
	ErrNotification = errors.New("notification delivery failed")
)

// ManifestError ties a manifest failure to the file it came from.
type ManifestError struct {
	Path  string
	Cause error
}

func (e *ManifestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Cause)
}

func (e *ManifestError) Unwrap() error {
	return e.Cause
}

// Malformed returns a ManifestError wrapping ErrManifestMalformed.
func Malformed(path string, format string, args ...any) error {
	return &ManifestError{
		Path:  path,
		Cause: fmt.Errorf("%w: %s", ErrManifestMalformed, fmt.Sprintf(format, args...)),
	}
}

// IsFatal reports whether err must terminate the run with a non-zero status.
func IsFatal(err error) bool {
	return errors.Is(err, ErrManifestNotFound) ||
		errors.Is(err, ErrManifestMalformed) ||
		errors.Is(err, ErrReportDir)
}

// ExitError asks the command line to exit with Code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process status for err: 0 for nil, the code of an
// ExitError, 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}
