// Package metrics exposes the business-level Prometheus collectors of the
// ticket bridge. HTTP traffic metrics live in the http/middleware package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upstream operation labels.
const (
	OpCreateChannel  = "create_channel"
	OpCreateWebhook  = "create_webhook"
	OpAnnounce       = "announce"
	OpExecuteWebhook = "execute_webhook"
	OpListMessages   = "list_messages"
)

var (
	TicketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_tickets_created_total",
			Help: "Orders that produced a Discord ticket channel and a session.",
		},
	)

	MessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_messages_relayed_total",
			Help: "Customer messages posted to a ticket webhook.",
		},
	)

	// MessagesDelivered counts channel messages returned to customers after
	// echo filtering.
	MessagesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridge_messages_delivered_total",
			Help: "Ticket channel messages delivered to customers.",
		},
	)

	Polls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_polls_total",
			Help: "Message polls by outcome.",
		},
		[]string{"result"}, // "empty", "messages", "error"
	)

	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_upstream_errors_total",
			Help: "Failed Discord API calls by operation.",
		},
		[]string{"op"},
	)

	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridge_stream_subscribers",
			Help: "Currently connected websocket stream subscribers.",
		},
	)
)
