package main

import (
	"errors"
	"fmt"

	"github.com/crimson-sun/predictor/internal/config"
	"github.com/crimson-sun/predictor/internal/output"
	"github.com/crimson-sun/predictor/internal/output/async"
	"github.com/crimson-sun/predictor/internal/output/csv"
	"github.com/crimson-sun/predictor/internal/output/file"
	"github.com/crimson-sun/predictor/internal/output/multi"
	"github.com/crimson-sun/predictor/internal/output/stdout"
	"github.com/crimson-sun/predictor/internal/output/webhook"
	"github.com/crimson-sun/predictor/internal/store"
)

// buildOutputs creates one target per configured output name. The webhook
// is wrapped in async when asked to, so slow endpoints do not hold up
// the batch. When a store is open it always receives the predictions,
// since /predictions reads the latest run back from it.
func buildOutputs(cfg config.Config, st *store.Store) (*multi.Multi, error) {
	var targets []multi.Target
	fail := func(err error) (*multi.Multi, error) {
		var errs []error
		for _, t := range targets {
			if d, ok := t.Out.(output.Discarder); ok {
				errs = append(errs, d.Discard())
			}
			errs = append(errs, t.Out.Close())
		}
		return nil, errors.Join(append([]error{err}, errs...)...)
	}

	for _, name := range cfg.Output.Targets {
		var out output.Output
		switch name {
		case "csv":
			o, err := csv.New(cfg.Output.ResultsPath)
			if err != nil {
				return fail(err)
			}
			out = o
		case "stdout":
			out = stdout.New(cfg.Output.Pretty)
		case "file":
			var opts []file.Option
			if cfg.Output.FileMaxSize > 0 {
				opts = append(opts, file.WithMaxSize(cfg.Output.FileMaxSize))
			}
			o, err := file.New(cfg.Output.FilePath, opts...)
			if err != nil {
				return fail(err)
			}
			out = o
		case "webhook":
			var w output.Output = webhook.New(cfg.Output.WebhookURL,
				webhook.WithHeaders(cfg.Output.Headers),
				webhook.WithBatchSize(cfg.Output.BatchSize),
			)
			if cfg.Output.Async {
				w = async.New(w, async.WithBufferSize(cfg.Output.BufferSize))
			}
			out = w
		case "postgres":
			if st == nil {
				return fail(fmt.Errorf("postgres output needs a store"))
			}
			out = st.Output()
		default:
			return fail(fmt.Errorf("unknown output %q", name))
		}
		targets = append(targets, multi.Target{Name: name, Out: out})
	}
	if st != nil && !cfg.HasOutput("postgres") {
		targets = append(targets, multi.Target{Name: "postgres", Out: st.Output()})
	}
	return multi.New(targets...), nil
}
