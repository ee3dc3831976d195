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

package gcloudlog

import (
	"log/slog"
	"maps"
	"time"

	"cloud.google.com/go/logging"
	"cloud.google.com/go/logging/apiv2/loggingpb"
	"github.com/google/uuid"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"
)

// messageKey is the jsonPayload field holding the rendered message.
const messageKey = "message"

// Payload is one fully resolved log event, as handed to a Transport.
type Payload struct {
	Time     time.Time
	Level    slog.Level
	Severity logging.Severity
	Message  string

	// Info is the structured payload: the parsed record body, the standard
	// fields and any caller data.
	Info map[string]any

	Resource *mrpb.MonitoredResource
	// Labels is nil when neither the handler nor the event supplied any.
	Labels       map[string]string
	Trace        string
	SpanID       string
	TraceSampled bool
	HTTPRequest  *logging.HTTPRequest

	SourceLocation *loggingpb.LogEntrySourceLocation
}

// Entry converts p into a Cloud Logging entry. The jsonPayload is Info with
// p.Message under "message", replacing any message key in Info. Info itself is
// not modified.
func (p Payload) Entry() logging.Entry {
	body := make(map[string]any, len(p.Info)+1)
	maps.Copy(body, p.Info)
	body[messageKey] = p.Message

	return logging.Entry{
		Timestamp:      p.Time,
		Severity:       p.Severity,
		Payload:        body,
		Labels:         p.Labels,
		InsertID:       uuid.NewString(),
		HTTPRequest:    p.HTTPRequest,
		Resource:       p.Resource,
		Trace:          p.Trace,
		SpanID:         p.SpanID,
		TraceSampled:   p.TraceSampled,
		SourceLocation: p.SourceLocation,
	}
}
