// Copyright 2026 The Promptwire Authors
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

package server

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/promptwire/promptwire/pkg/workflow"
)

// Metrics holds the server's prometheus collectors.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration prometheus.Histogram
	nodesTotal      *prometheus.CounterVec
	nodeDuration    *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptwire",
			Name:      "requests_total",
			Help:      "Completion requests by HTTP status.",
		}, []string{"status"}),

		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "promptwire",
			Name:      "request_duration_seconds",
			Help:      "End-to-end completion request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),

		nodesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "promptwire",
			Name:      "workflow_nodes_total",
			Help:      "Workflow node executions by kind and outcome.",
		}, []string{"kind", "outcome"}),

		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "promptwire",
			Name:      "workflow_node_duration_seconds",
			Help:      "Workflow node execution latency by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}, []string{"kind"}),
	}
}

// observeRequest records one finished HTTP request.
func (m *Metrics) observeRequest(status int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
	m.requestDuration.Observe(elapsed.Seconds())
}

// ExecutorEvents adapts the collectors to the executor's event hooks.
func (m *Metrics) ExecutorEvents() workflow.Events {
	return workflow.Events{
		NodeFinished: func(run *workflow.Run, position int, kind workflow.Kind, err error, elapsed time.Duration) {
			outcome := "success"
			if err != nil {
				outcome = "error"
			}
			m.nodesTotal.WithLabelValues(string(kind), outcome).Inc()
			m.nodeDuration.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
		},
	}
}
