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

package worker

// closingResource tracks a resource whose close was requested while one
// or more of its op slots was still Waiting: its fd cannot be closed
// (and its buffers cannot be released) until the kernel posts the CQE
// for each of those in-flight operations.
type closingResource struct {
	id      uint32
	res     *Resource
	pending int
}

// cleanupPipeline is the direct Go rendition of spec.md §4.5's cleanup
// stream: a resource stays here exactly as long as it has in-flight
// SQEs, and a plain decrement on each routed completion is all that's
// needed to know when it's safe to close the fd — no separate
// poll-driven Stream abstraction, since the worker's own select loop
// already observes every CQE as it lands.
type cleanupPipeline struct {
	entries []closingResource
}

func (p *cleanupPipeline) add(id uint32, res *Resource, pending int) {
	p.entries = append(p.entries, closingResource{id: id, res: res, pending: pending})
}

func (p *cleanupPipeline) len() int {
	return len(p.entries)
}

// complete decrements the pending count for resourceID, if it is in the
// pipeline. found reports whether resourceID was in the pipeline at
// all (false means the worker should log an unknown completion rather
// than panic). done reports whether the pending count reached zero,
// in which case res is the resource the caller should now close.
func (p *cleanupPipeline) complete(resourceID uint32) (res *Resource, found, done bool) {
	for i := range p.entries {
		if p.entries[i].id != resourceID {
			continue
		}
		p.entries[i].pending--
		if p.entries[i].pending <= 0 {
			res = p.entries[i].res
			p.entries = append(p.entries[:i], p.entries[i+1:]...)
			return res, true, true
		}
		return nil, true, false
	}
	return nil, false, false
}

// drain removes and returns every resource still in the pipeline,
// regardless of its remaining pending count. Used only on worker
// shutdown, where further completions will never be observed.
func (p *cleanupPipeline) drain() []*Resource {
	out := make([]*Resource, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e.res)
	}
	p.entries = nil
	return out
}
