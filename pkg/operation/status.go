package operation

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/walteh/retext/pkg/state"
	"gitlab.com/tozd/go/errors"
)

// Status implements Operator.Status. A nil state with a nil error
// means no run has been recorded for this output tree yet.
func (o *operator) Status(ctx context.Context) (*state.RunState, error) {
	logger := zerolog.Ctx(ctx)

	if o.config.Output == "" {
		return nil, errors.Errorf("output is required")
	}

	run, err := state.Load(ctx, state.LockPath(o.config.Output))
	if err != nil {
		return nil, errors.Errorf("loading lock file: %w", err)
	}
	if run == nil {
		logger.Debug().Str("output", o.config.Output).Msg("no recorded run")
	}

	return run, nil
}
