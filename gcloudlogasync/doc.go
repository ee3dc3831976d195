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

// Package gcloudlogasync adds a queued transport in front of any gcloudlog
// transport. Payloads are queued on a bounded channel and drained by worker
// goroutines, so log calls do not wait on the network even when the inner
// transport writes synchronously.
//
// Importing the package registers the "async" transport, which queues in
// front of the "sync" transport and reads its settings from the
// environment:
//
//	import _ "github.com/zeppos/gcloudlog/gcloudlogasync"
//
//	h, _ := gcloudlog.NewHandler(ctx, "my-project", gcloudlog.WithTransportName("async"))
//
// Explicit configuration:
//
//	h, _ := gcloudlog.NewHandler(ctx, "my-project",
//		gcloudlog.WithTransport(gcloudlogasync.Factory(gcloudlog.NewSyncTransport,
//			gcloudlogasync.WithQueueSize(4096),
//			gcloudlogasync.WithDropMode(gcloudlogasync.DropModeDropNewest),
//		)),
//	)
//
// The following environment variables are recognized when [WithEnv] is
// supplied:
//   - GCLOUDLOG_ASYNC_ENABLED: true/false to toggle the queue
//   - GCLOUDLOG_ASYNC_QUEUE_SIZE: channel capacity (0 makes the queue unbuffered)
//   - GCLOUDLOG_ASYNC_DROP_MODE: block | drop_newest | drop_oldest
//   - GCLOUDLOG_ASYNC_WORKERS: number of worker goroutines
//   - GCLOUDLOG_ASYNC_BATCH_SIZE: payloads drained per worker wake-up
//   - GCLOUDLOG_ASYNC_FLUSH_TIMEOUT: duration string used by Close
package gcloudlogasync
