// Copyright 2025 Patrick J. Scruggs
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

package slogkafka

import "testing"

// TestDetectRuntimeInfoEnvironment prefers APP_ENV over the other variables.
func TestDetectRuntimeInfoEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", " staging ")
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("GO_ENV", "dev")

	if got := detectRuntimeInfo().Environment; got != "staging" {
		t.Fatalf("Environment = %q, want staging", got)
	}

	t.Setenv("APP_ENV", "")
	if got := detectRuntimeInfo().Environment; got != "prod" {
		t.Fatalf("Environment = %q, want prod", got)
	}
}

// TestFirstNonEmpty returns the first set value.
func TestFirstNonEmpty(t *testing.T) {
	t.Parallel()

	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Fatalf("firstNonEmpty() = %q, want b", got)
	}
	if got := firstNonEmpty(); got != "" {
		t.Fatalf("firstNonEmpty() = %q, want empty", got)
	}
}
