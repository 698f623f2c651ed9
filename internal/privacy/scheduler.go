package privacy

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// RefreshScheduler periodically calls SecurityContext.RefreshAttestation on a
// cron schedule, replacing the ad hoc NextExecution bookkeeping a hand-rolled
// scheduler would need with a real 5-field cron expression (spec §4.5).
type RefreshScheduler struct {
	cron *cron.Cron
	ctx  *SecurityContext
	log  *logrus.Entry
}

// NewRefreshScheduler constructs a scheduler bound to ctx; the cadence is
// whatever schedule is later passed to Start.
func NewRefreshScheduler(ctx *SecurityContext, log *logrus.Entry) *RefreshScheduler {
	return &RefreshScheduler{cron: cron.New(), ctx: ctx, log: log}
}

// Start registers the refresh job on schedule and begins running it in the
// background. schedule is a standard 5-field cron expression or a
// descriptor such as "@every 1m".
func (s *RefreshScheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		if err := s.ctx.RefreshAttestation(); err != nil && s.log != nil {
			s.log.WithError(err).Warn("attestation refresh failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any in-flight refresh to finish.
func (s *RefreshScheduler) Stop() {
	<-s.cron.Stop().Done()
}
