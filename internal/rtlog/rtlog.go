/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package rtlog centralizes the places this runtime logs instead of
// panicking: a completion whose resource id is in neither the active
// slab nor the cleanup pipeline, and a completion whose op id is outside
// its resource's Operations table. The result of a cancelled operation
// is discarded without logging. The teacher repo logs ad hoc with
// fmt.Printf wherever it needs to (concurrency/gopool,
// connstate/poll.go); this interface keeps that same dependency-free
// style while letting a Builder inject something structured.
package rtlog

import "log"

// Logger is satisfied by *log.Logger; anything with a matching Printf
// works (zap's SugaredLogger, logrus, etc.), without pulling in a
// logging dependency the teacher never used.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Default returns the package-level *log.Logger, matching the
// teacher's unconfigured log.Printf usage.
func Default() Logger {
	return log.Default()
}
