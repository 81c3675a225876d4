package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Poller holds the change poller counters.
type Poller struct {
	SourcesChecked prometheus.Counter
	ChangesFound   prometheus.Counter
	FetchFailures  prometheus.Counter
	StoreFailures  prometheus.Counter
}

// NewPoller creates and registers the poller counters on reg.
func NewPoller(reg prometheus.Registerer) *Poller {
	f := promauto.With(reg)
	return &Poller{
		SourcesChecked: f.NewCounter(prometheus.CounterOpts{
			Name: "govtrack_poller_sources_checked_total",
			Help: "Sources whose content was fetched and digested",
		}),
		ChangesFound: f.NewCounter(prometheus.CounterOpts{
			Name: "govtrack_poller_changes_detected_total",
			Help: "Source checks whose digest differed from the last one seen",
		}),
		FetchFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "govtrack_poller_fetch_failures_total",
			Help: "Source fetches that failed or returned a non-2xx status",
		}),
		StoreFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "govtrack_poller_store_failures_total",
			Help: "Source check results that could not be persisted",
		}),
	}
}

// Trigger holds the publication trigger counters.
type Trigger struct {
	EventsHandled       *prometheus.CounterVec
	NotificationsSent   prometheus.Counter
	NotificationsFailed prometheus.Counter
}

// NewTrigger creates and registers the trigger counters on reg.
func NewTrigger(reg prometheus.Registerer) *Trigger {
	f := promauto.With(reg)
	return &Trigger{
		EventsHandled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "govtrack_trigger_events_total",
			Help: "Opportunity write events by outcome",
		}, []string{"outcome"}),
		NotificationsSent: f.NewCounter(prometheus.CounterOpts{
			Name: "govtrack_trigger_notifications_sent_total",
			Help: "Notifications handed to the notifier successfully",
		}),
		NotificationsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "govtrack_trigger_notifications_failed_total",
			Help: "Notifications the notifier failed to accept",
		}),
	}
}

// API holds the HTTP surface counters.
type API struct {
	OpportunitiesSaved prometheus.Counter
	Verifications      *prometheus.CounterVec
}

// NewAPI creates and registers the API counters on reg.
func NewAPI(reg prometheus.Registerer) *API {
	f := promauto.With(reg)
	return &API{
		OpportunitiesSaved: f.NewCounter(prometheus.CounterOpts{
			Name: "govtrack_api_opportunities_saved_total",
			Help: "Opportunities created or updated through the admin write path",
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "govtrack_api_verifications_total",
			Help: "Admin verification decisions by resulting status",
		}, []string{"status"}),
	}
}
