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
	"net"
	"net/http"
	"strings"

	"cloud.google.com/go/logging"
)

// HTTPRequestFromRequest describes r in the Cloud Logging httpRequest shape.
// Status, sizes and latency are left for the caller to fill once the response
// is known. The request body is never read.
func HTTPRequestFromRequest(r *http.Request) *logging.HTTPRequest {
	if r == nil {
		return nil
	}
	req := &logging.HTTPRequest{
		Request:  r,
		RemoteIP: ClientIPFromRequest(r, false),
	}
	if r.ContentLength > 0 {
		req.RequestSize = r.ContentLength
	}
	return req
}

// ClientIPFromRequest returns the client address of r without a port. When
// trustProxy is set the first X-Forwarded-For hop wins over RemoteAddr.
func ClientIPFromRequest(r *http.Request, trustProxy bool) string {
	if r == nil {
		return ""
	}
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
	}
	return stripPort(r.RemoteAddr)
}

// HostNameFromRequest returns the requested host without a port.
func HostNameFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	return stripPort(host)
}

func stripPort(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
