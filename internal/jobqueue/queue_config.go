/*
Package jobqueue configuration.

Worker pool sizing trades throughput against LLM provider rate limits:
every concurrent job issues its own stream of completion requests, so
raising the pool size mostly moves the bottleneck to the provider.

Conversion jobs run exactly once (MaxAttempts=1 on insert). Failed jobs
keep their error in the conversion_jobs ledger, not in River's state;
River's job rows are only the dispatch mechanism.
*/
package jobqueue

import (
	"github.com/riverqueue/river"
)

// defaultPoolSize is used when the configured worker pool size is
// missing or invalid.
const defaultPoolSize = 10

// riverQueueConfig converts the pool size to River's queue
// configuration format.
func riverQueueConfig(poolSize int) map[string]river.QueueConfig {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: poolSize,
		},
	}
}
