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

import "context"

type contextKey int

const (
	fieldsContextKey contextKey = iota
)

// ContextWithFields returns a child context carrying f merged over any fields
// already stored in ctx. Handlers read them on every record logged with the
// context, so request middleware can attach trace and client details once.
func ContextWithFields(ctx context.Context, f Fields) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.IsZero() {
		return ctx
	}
	merged := FieldsFromContext(ctx).Merge(f)
	return context.WithValue(ctx, fieldsContextKey, merged)
}

// FieldsFromContext returns the fields stored by ContextWithFields, or the
// zero Fields.
func FieldsFromContext(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	if f, ok := ctx.Value(fieldsContextKey).(Fields); ok {
		return f
	}
	return Fields{}
}
