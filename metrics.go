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
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// handlerMetrics counts handler outcomes per log name. A nil *handlerMetrics
// records nothing.
type handlerMetrics struct {
	records       prometheus.Counter
	parseFailures prometheus.Counter
	sendErrors    prometheus.Counter
}

func newCounterVecs() []*prometheus.CounterVec {
	return []*prometheus.CounterVec{
		prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcloudlog",
			Name:      "records_total",
			Help:      "Total number of log records handed to the transport",
		}, []string{"log_name"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcloudlog",
			Name:      "parse_failures_total",
			Help:      "Total number of records whose body or data could not be parsed",
		}, []string{"log_name"}),
		prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gcloudlog",
			Name:      "send_errors_total",
			Help:      "Total number of transport send failures",
		}, []string{"log_name"}),
	}
}

// newHandlerMetrics registers the collectors on reg, reusing collectors that
// are already registered. It returns nil when reg is nil.
func newHandlerMetrics(reg prometheus.Registerer, logName string) (*handlerMetrics, error) {
	if reg == nil {
		return nil, nil
	}
	vecs := make([]*prometheus.CounterVec, 0, 3)
	for _, vec := range newCounterVecs() {
		registered, err := registerCounterVec(reg, vec)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, registered)
	}
	return &handlerMetrics{
		records:       vecs[0].WithLabelValues(logName),
		parseFailures: vecs[1].WithLabelValues(logName),
		sendErrors:    vecs[2].WithLabelValues(logName),
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}

func (m *handlerMetrics) recordSent() {
	if m != nil {
		m.records.Inc()
	}
}

func (m *handlerMetrics) recordParseFailure() {
	if m != nil {
		m.parseFailures.Inc()
	}
}

func (m *handlerMetrics) recordSendError() {
	if m != nil {
		m.sendErrors.Inc()
	}
}
