package broker

import (
	"context"

	"go.uber.org/zap"
)

// CloseFunc submits the closing order for a single position.
type CloseFunc func(ctx context.Context, p Position) error

// Sweep closes every position matched by filter, one at a time. A failed
// close is logged and recorded and the sweep moves on to the next position.
func Sweep(ctx context.Context, log *zap.Logger, positions []Position, filter SymbolFilter, closeFn CloseFunc) CloseReport {
	if log == nil {
		log = zap.NewNop()
	}

	var report CloseReport
	for _, p := range positions {
		if !filter.Match(p.Symbol) {
			continue
		}
		report.Matched++

		log.Info("closing position",
			zap.String("position", p.ID),
			zap.String("symbol", p.Symbol),
			zap.String("side", string(p.Side)),
			zap.String("volume", p.Volume.String()),
		)

		err := closeFn(ctx, p)
		report.Record(p.ID, err)
		if err != nil {
			log.Error("close position failed",
				zap.String("op", "close"),
				zap.String("position", p.ID),
				zap.String("symbol", p.Symbol),
				zap.Error(err),
			)
			continue
		}
		log.Info("position closed", zap.String("position", p.ID), zap.String("symbol", p.Symbol))
	}
	return report
}
