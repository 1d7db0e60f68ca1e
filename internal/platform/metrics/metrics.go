package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors shared across modules. Module
// packages take the whole struct and touch only their own fields; nil Metrics
// is valid everywhere so tests skip registration.
type Metrics struct {
	RequestDuration *prometheus.HistogramVec

	OrgsCreated    prometheus.Counter
	OrgsSuspended  prometheus.Counter
	OrgsReinstated prometheus.Counter
	PostsPublished prometheus.Counter
	CommentsAdded  prometheus.Counter
	ReactionsSet   prometheus.Counter
	PollVotesCast  prometheus.Counter
	PollsClosed    prometheus.Counter
	KudosGiven     prometheus.Counter
	LeaveRequested prometheus.Counter
	LeaveDecided   *prometheus.CounterVec
	SurveyResponse prometheus.Counter
	ListingsSold   prometheus.Counter

	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	AuditDropped    prometheus.Counter
	FeedCacheHits   prometheus.Counter
	FeedCacheMisses prometheus.Counter
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crewpulse_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),

		OrgsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_orgs_created_total",
			Help: "Organizations created.",
		}),
		OrgsSuspended: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_orgs_suspended_total",
			Help: "Organizations suspended.",
		}),
		OrgsReinstated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_orgs_reinstated_total",
			Help: "Organizations reinstated.",
		}),
		PostsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_feed_posts_published_total",
			Help: "Feed posts published.",
		}),
		CommentsAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_feed_comments_total",
			Help: "Feed comments added.",
		}),
		ReactionsSet: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_feed_reactions_total",
			Help: "Reactions set or replaced.",
		}),
		PollVotesCast: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_poll_votes_total",
			Help: "Poll ballots accepted.",
		}),
		PollsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_polls_closed_total",
			Help: "Polls closed by the expiry sweep.",
		}),
		KudosGiven: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_kudos_given_total",
			Help: "Kudos recorded.",
		}),
		LeaveRequested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_leave_requested_total",
			Help: "Leave requests submitted.",
		}),
		LeaveDecided: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crewpulse_leave_decided_total",
			Help: "Leave decisions by outcome.",
		}, []string{"outcome"}),
		SurveyResponse: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_survey_responses_total",
			Help: "Survey responses accepted.",
		}),
		ListingsSold: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_listings_sold_total",
			Help: "Marketplace listings sold.",
		}),

		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crewpulse_events_published_total",
			Help: "Domain events published by kind.",
		}, []string{"kind"}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_events_dropped_total",
			Help: "Domain events dropped because the dispatcher inbox was full.",
		}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_audit_dropped_total",
			Help: "Audit events dropped because the publisher buffer was full.",
		}),
		FeedCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_feed_cache_hits_total",
			Help: "Feed first-page cache hits.",
		}),
		FeedCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crewpulse_feed_cache_misses_total",
			Help: "Feed first-page cache misses.",
		}),
	}
}
