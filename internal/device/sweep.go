package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sweep drives axis to its minimum and maximum cycles times, holding each end for dwell, then
// recentres it. Used to check the axis binding in the consuming application.
func Sweep(ctx context.Context, s *Session, axis Axis, cycles int, dwell time.Duration) error {
	r, ok := s.AxisRange(axis)
	if !ok {
		return ErrAxisMissing
	}

	for i := 0; i < cycles; i++ {
		s.log.Debugf("Sweep %s cycle %d", axis, i)
		for _, v := range []int32{r.Min, r.Max} {
			if err := s.WriteAxis(axis, int64(v)); err != nil {
				return err
			}
			if err := wait(ctx, dwell); err != nil {
				// leave the axis centred even when interrupted
				if cerr := s.Center(axis); cerr != nil {
					s.log.Debugf("Sweep %s interrupted, axis left off-centre: %v", axis, cerr)
					return errors.Join(err, fmt.Errorf("recentre %s: %w", axis, cerr))
				}
				return err
			}
		}
	}

	return s.Center(axis)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
