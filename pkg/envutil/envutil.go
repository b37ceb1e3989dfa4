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

package envutil

import (
	"fmt"
	"os"
	"strconv"

	"log/slog"
)

func Bool(envName string, defaultValue bool) bool {
	v, ok := os.LookupEnv(envName)
	if !ok {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		slog.Warn(fmt.Sprintf("Failed to parse %q ($%s) as a boolean: %v", v, envName, err))
		return defaultValue
	}
	return b
}

func Float64(envName string, defaultValue float64) float64 {
	v, ok := os.LookupEnv(envName)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn(fmt.Sprintf("Failed to parse %q ($%s) as a number: %v", v, envName, err))
		return defaultValue
	}
	return f
}

func Int(envName string, defaultValue int) int {
	v, ok := os.LookupEnv(envName)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn(fmt.Sprintf("Failed to parse %q ($%s) as an integer: %v", v, envName, err))
		return defaultValue
	}
	return i
}

// String returns the value of envName, or defaultValue when unset or empty.
func String(envName string, defaultValue string) string {
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}
