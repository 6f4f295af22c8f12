package interfaces

import (
	"context"

	usertypes "github.com/goliatone/go-users/pkg/types"
)

// ActivityRecord is the go-users activity record used for admin log entries.
type ActivityRecord = usertypes.ActivityRecord

// ActivitySink persists admin log entries. Any go-users ActivitySink satisfies it.
type ActivitySink interface {
	Log(ctx context.Context, record ActivityRecord) error
}
