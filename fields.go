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

	"cloud.google.com/go/logging"
	mrpb "google.golang.org/genproto/googleapis/api/monitoredres"
)

// Attribute keys used when event fields are rendered by handlers other than
// gcloudlog (for example a console handler fed by the same logger).
const (
	DataKey        = "data"
	LabelsKey      = "labels"
	TraceKey       = "trace"
	SpanIDKey      = "span_id"
	ResourceKey    = "resource"
	HTTPRequestKey = "http_request"
	ClientIPKey    = "client_ip"
	HostNameKey    = "host_name"
)

// Fields carries optional per-event attributes. A zero field means "not set";
// the Handler then falls back to its configured default or leaves the value
// absent.
//
// Fields reach the Handler through ContextWithFields or through the typed
// attributes returned by Data, Labels, Trace, SpanID, Resource, HTTPRequest,
// ClientIP and HostName.
type Fields struct {
	// Resource overrides the handler's monitored resource.
	Resource *mrpb.MonitoredResource
	// Labels are merged over the handler's default labels.
	Labels map[string]string
	// Trace is the trace name, passed to Cloud Logging unchanged.
	Trace string
	// SpanID is the span identifier within Trace.
	SpanID string
	// HTTPRequest describes the request being served.
	HTTPRequest *logging.HTTPRequest
	// ClientIP is reported in the client_ip info field.
	ClientIP string
	// HostName is reported in the host_name info field.
	HostName string
	// Data is merged into the info payload last, so its keys win over every
	// other info field. The entry's message key is always the record message.
	Data map[string]any
}

// IsZero reports whether no field is set.
func (f Fields) IsZero() bool {
	return f.Resource == nil && len(f.Labels) == 0 && f.Trace == "" && f.SpanID == "" &&
		f.HTTPRequest == nil && f.ClientIP == "" && f.HostName == "" && len(f.Data) == 0
}

// Merge returns f overlaid with the set fields of o. Labels and Data are
// merged key by key with o winning; neither input map is modified.
func (f Fields) Merge(o Fields) Fields {
	out := f
	if o.Resource != nil {
		out.Resource = o.Resource
	}
	if o.Trace != "" {
		out.Trace = o.Trace
	}
	if o.SpanID != "" {
		out.SpanID = o.SpanID
	}
	if o.HTTPRequest != nil {
		out.HTTPRequest = o.HTTPRequest
	}
	if o.ClientIP != "" {
		out.ClientIP = o.ClientIP
	}
	if o.HostName != "" {
		out.HostName = o.HostName
	}
	if len(o.Labels) > 0 {
		merged := make(map[string]string, len(f.Labels)+len(o.Labels))
		maps.Copy(merged, f.Labels)
		maps.Copy(merged, o.Labels)
		out.Labels = merged
	}
	if len(o.Data) > 0 {
		merged := make(map[string]any, len(f.Data)+len(o.Data))
		maps.Copy(merged, f.Data)
		maps.Copy(merged, o.Data)
		out.Data = merged
	}
	return out
}

// fieldValue is the value type of attributes created by the field helpers.
// The Handler recognises it by type; other handlers see display via LogValue.
type fieldValue struct {
	fields  Fields
	display slog.Value
}

// LogValue implements slog.LogValuer.
func (v fieldValue) LogValue() slog.Value { return v.display }

func fieldAttr(key string, f Fields, display slog.Value) slog.Attr {
	return slog.Any(key, fieldValue{fields: f, display: display})
}

// fieldsFromAttr extracts event fields from a, reporting false for ordinary
// attributes. A *logging.HTTPRequest value is accepted under any key.
func fieldsFromAttr(a slog.Attr) (Fields, bool) {
	switch a.Value.Kind() {
	case slog.KindLogValuer:
		if v, ok := a.Value.LogValuer().(fieldValue); ok {
			return v.fields, true
		}
	case slog.KindAny:
		if v, ok := a.Value.Any().(*logging.HTTPRequest); ok && v != nil {
			return Fields{HTTPRequest: v}, true
		}
	}
	return Fields{}, false
}

// Data attaches structured data to the event. Its keys override every other
// info field on collision, except that the entry's message key always holds
// the record message.
func Data(m map[string]any) slog.Attr {
	attrs := make([]slog.Attr, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, slog.Any(k, v))
	}
	return fieldAttr(DataKey, Fields{Data: maps.Clone(m)}, slog.GroupValue(attrs...))
}

// Labels attaches labels merged over the handler defaults.
func Labels(m map[string]string) slog.Attr {
	attrs := make([]slog.Attr, 0, len(m))
	for k, v := range m {
		attrs = append(attrs, slog.String(k, v))
	}
	return fieldAttr(LabelsKey, Fields{Labels: maps.Clone(m)}, slog.GroupValue(attrs...))
}

// Trace sets the trace name reported with the event.
func Trace(trace string) slog.Attr {
	return fieldAttr(TraceKey, Fields{Trace: trace}, slog.StringValue(trace))
}

// SpanID sets the span identifier reported with the event.
func SpanID(spanID string) slog.Attr {
	return fieldAttr(SpanIDKey, Fields{SpanID: spanID}, slog.StringValue(spanID))
}

// Resource overrides the monitored resource for the event.
func Resource(res *mrpb.MonitoredResource) slog.Attr {
	display := slog.StringValue(res.GetType())
	return fieldAttr(ResourceKey, Fields{Resource: res}, display)
}

// HTTPRequest attaches an HTTP request description to the event.
func HTTPRequest(req *logging.HTTPRequest) slog.Attr {
	display := slog.Value{}
	if req != nil && req.Request != nil {
		var target string
		if req.Request.URL != nil {
			target = req.Request.URL.String()
		}
		display = slog.GroupValue(
			slog.String("method", req.Request.Method),
			slog.String("url", target),
			slog.Int("status", req.Status),
		)
	}
	return fieldAttr(HTTPRequestKey, Fields{HTTPRequest: req}, display)
}

// ClientIP sets the client_ip info field.
func ClientIP(ip string) slog.Attr {
	return fieldAttr(ClientIPKey, Fields{ClientIP: ip}, slog.StringValue(ip))
}

// HostName sets the host_name info field.
func HostName(name string) slog.Attr {
	return fieldAttr(HostNameKey, Fields{HostName: name}, slog.StringValue(name))
}
