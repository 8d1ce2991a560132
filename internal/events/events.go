package events

import "context"

const (
	SubjectCallStarted       = "callcoach.call.started"
	SubjectCallEnded         = "callcoach.call.ended"
	SubjectNudgesGenerated   = "callcoach.nudges.generated"
	SubjectLeadScoreAdjusted = "callcoach.leadscore.adjusted"
)

// Publisher fans domain events out to a broker. Publishing is best effort;
// callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                                { return nil }
