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

import (
	"context"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/compute/metadata"
)

// RuntimeInfo describes the process host.
type RuntimeInfo struct {
	Hostname    string
	Environment string
}

var (
	runtimeInfo     RuntimeInfo
	runtimeInfoOnce sync.Once

	// metadataHostname asks the GCE metadata server for the instance host
	// name. Tests replace it.
	metadataHostname = func(ctx context.Context) (string, error) {
		if !metadata.OnGCE() {
			return "", nil
		}
		return metadata.HostnameWithContext(ctx)
	}
)

// DetectRuntimeInfo inspects the operating system and well-known environment
// variables. Results are cached for reuse.
func DetectRuntimeInfo() RuntimeInfo {
	runtimeInfoOnce.Do(func() {
		runtimeInfo = detectRuntimeInfo()
	})
	return runtimeInfo
}

// detectRuntimeInfo resolves the host name from the OS, falling back to the
// metadata server on Compute Engine, and the environment label from
// APP_ENV, ENVIRONMENT or GO_ENV.
func detectRuntimeInfo() RuntimeInfo {
	info := RuntimeInfo{
		Environment: firstNonEmpty(
			trimmedEnv("APP_ENV"),
			trimmedEnv("ENVIRONMENT"),
			trimmedEnv("GO_ENV"),
		),
	}

	if host, err := os.Hostname(); err == nil {
		info.Hostname = strings.TrimSpace(host)
	}
	if info.Hostname == "" {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if host, err := metadataHostname(ctx); err == nil {
			info.Hostname = strings.TrimSpace(host)
		}
	}
	return info
}

// trimmedEnv returns the environment variable value with whitespace removed.
func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

// firstNonEmpty returns the first argument that is not empty.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
