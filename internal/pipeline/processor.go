package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/AnyUserName/imgconv-cli/internal/converter"
	"github.com/AnyUserName/imgconv-cli/internal/format"
	"github.com/AnyUserName/imgconv-cli/internal/metrics"
)

// processInput converts a single input and turns the outcome into a Result.
// A non-nil error is only returned for context cancellation.
func processInput(
	ctx context.Context,
	conv *converter.Converter,
	idx int,
	in InputFile,
	target format.Format,
	log *slog.Logger,
	m *metrics.Metrics,
) (Result, error) {
	res := Result{
		Index:      idx,
		SourceName: in.Name,
		SourceSize: in.Size(),
		Format:     target,
	}

	start := time.Now()
	out, err := conv.Convert(ctx, in.Name, in.Data, target)
	elapsed := time.Since(start)

	if err != nil {
		if converter.KindOf(err) == 0 {
			return res, err
		}
		res.Err = err
		m.ObserveConversion(string(target), converter.KindOf(err).String(), elapsed)
		log.Warn("conversion failed", "index", idx, "file", in.Name, "format", target, "err", err)
		return res, nil
	}

	res.OutputName = format.OutputName(in.Name, target)
	res.Data = out.Data
	res.Width = out.Width
	res.Height = out.Height
	m.ObserveConversion(string(target), "success", elapsed)
	log.Debug("converted",
		"index", idx, "file", in.Name, "output", res.OutputName,
		"size", len(out.Data), "elapsed", elapsed.Round(time.Millisecond))
	return res, nil
}
