package broadcast

import (
	"context"
	"errors"
)

// Multi publishes every envelope to each transport in order. One failing
// transport does not stop the others.
type Multi []Transport

func (m Multi) Publish(ctx context.Context, env Envelope) error {
	var errs []error
	for _, t := range m {
		if err := t.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
