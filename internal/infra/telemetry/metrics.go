package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AuthMetrics exposes Prometheus collectors for authentication activity.
type AuthMetrics struct {
	LoginAttempts *prometheus.CounterVec
	Lockouts      prometheus.Counter
	TokensIssued  *prometheus.CounterVec
	TokensRevoked *prometheus.CounterVec
	SweepRevoked  prometheus.Counter
	SweepDeleted  prometheus.Counter
}

// NewAuthMetrics constructs and registers the authentication collectors.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	loginAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts partitioned by result.",
	}, []string{"result"})

	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "lockouts_total",
		Help:      "Total number of client lockouts triggered by repeated failures.",
	})

	tokensIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "tokens_issued_total",
		Help:      "Total number of tokens issued partitioned by token type.",
	}, []string{"type"})

	tokensRevoked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "tokens_revoked_total",
		Help:      "Total number of refresh tokens revoked partitioned by reason.",
	}, []string{"reason"})

	sweepRevoked := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sweep_revoked_total",
		Help:      "Total number of expired refresh tokens flipped to revoked by the sweep.",
	})

	sweepDeleted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "auth",
		Name:      "sweep_deleted_total",
		Help:      "Total number of revoked refresh tokens hard-deleted after retention.",
	})

	collectors := []prometheus.Collector{
		loginAttempts, lockouts, tokensIssued, tokensRevoked, sweepRevoked, sweepDeleted,
	}
	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, fmt.Errorf("register auth collector: %w", err)
			}
		}
	}

	return &AuthMetrics{
		LoginAttempts: loginAttempts,
		Lockouts:      lockouts,
		TokensIssued:  tokensIssued,
		TokensRevoked: tokensRevoked,
		SweepRevoked:  sweepRevoked,
		SweepDeleted:  sweepDeleted,
	}, nil
}
