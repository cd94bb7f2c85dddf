package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticketing/internal/models"
)

var (
	ticketsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ticketing_tickets_issued_total",
		Help: "Total number of tickets issued.",
	})

	issuanceRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_issuance_rejections_total",
		Help: "Issuance attempts rejected, by reason.",
	}, []string{"reason"})

	ticketScans = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_ticket_scans_total",
		Help: "Check-in scan attempts, by result.",
	}, []string{"result"})

	paymentTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticketing_payment_transitions_total",
		Help: "Ticket payment state transitions, by kind.",
	}, []string{"kind"})
)

func TicketIssued() {
	ticketsIssued.Inc()
}

func IssuanceRejected(reason string) {
	issuanceRejections.WithLabelValues(reason).Inc()
}

func TicketScanned(result models.ScanResult) {
	ticketScans.WithLabelValues(string(result)).Inc()
}

func PaymentConfirmed() {
	paymentTransitions.WithLabelValues("confirm").Inc()
}

func TicketRefunded() {
	paymentTransitions.WithLabelValues("refund").Inc()
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
