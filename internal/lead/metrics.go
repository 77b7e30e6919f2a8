package lead

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var leadSubmissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "capture_lead_submissions_total",
	Help: "Lead submission attempts that reached the backend, labelled by result.",
}, []string{"result"})
