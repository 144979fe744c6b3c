package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/abhisek/satprep/internal/app"
	"github.com/abhisek/satprep/internal/llm"
	"github.com/abhisek/satprep/internal/questionbank"
	"github.com/abhisek/satprep/internal/screen"
	"github.com/abhisek/satprep/internal/session"
	"github.com/abhisek/satprep/internal/stats"
	"github.com/abhisek/satprep/internal/store"
	"github.com/abhisek/satprep/internal/tutor"
)

// runtime holds everything a practice front end drives.
type runtime struct {
	logger    *slog.Logger
	store     *store.Store
	source    questionbank.Source
	persister *session.Persister
	engine    *session.Engine
	tutor     *tutor.Service

	closers []func() error
}

// openRuntime opens the store and builds the engine with its
// collaborators. tui routes logs away from the terminal.
func openRuntime(cmd *cobra.Command, tui bool) (_ *runtime, err error) {
	ctx := cmd.Context()
	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()

	logger, closeLog, err := newLogger(tui)
	if err != nil {
		return nil, err
	}
	rt.logger = logger
	rt.closers = append(rt.closers, closeLog)

	st, err := openStore(cmd)
	if err != nil {
		return nil, err
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)

	src, err := openSource(cmd, logger)
	if err != nil {
		return nil, err
	}
	rt.source = src

	rt.persister = session.NewPersister(st.SessionRepo(), session.PersisterConfig{
		HistoryLimit: cfg.Session.HistoryLimit,
		Debounce:     cfg.Session.SaveDebounce,
		Heartbeat:    cfg.Session.Heartbeat,
	}, logger)
	if err := rt.persister.StartHeartbeat(); err != nil {
		return nil, fmt.Errorf("start session heartbeat: %w", err)
	}

	sink := stats.MultiSink{stats.NewStoreSink(st.StatsRepo())}
	publisher, err := stats.DialAMQP(cfg.Stats.AMQPURL, cfg.Stats.Exchange, cfg.Stats.RoutingKey, logger)
	if err != nil {
		// Publishing is optional; local statistics still work.
		logger.Warn("statistics publisher unavailable", slog.Any("error", err))
	} else if publisher != nil {
		sink = append(sink, publisher)
		rt.closers = append(rt.closers, publisher.Close)
	}

	rt.engine = session.NewEngine(src, rt.persister, sink,
		session.WithLogger(logger),
		session.WithBatchSize(cfg.QuestionBank.BatchSize),
	)

	provider, err := llm.New(ctx, llm.ConfigFromEnv(), st.EventRepo(), logger)
	switch {
	case errors.Is(err, llm.ErrDisabled):
		logger.Info("no LLM provider configured, explanations disabled")
	case err != nil:
		if !tui {
			fmt.Fprintln(os.Stderr, "LLM provider not configured:", err)
		}
		logger.Warn("llm provider", slog.Any("error", err))
	default:
		rt.tutor = tutor.NewService(provider, tutor.DefaultConfig())
	}
	return rt, nil
}

// openSource returns the bank file given by --bank-file, or the online
// question bank.
func openSource(cmd *cobra.Command, logger *slog.Logger) (questionbank.Source, error) {
	path, _ := cmd.Flags().GetString("bank-file")
	if path == "" {
		return questionbank.NewClient(questionbank.ClientConfig{
			BankURL:      cfg.QuestionBank.BankURL,
			DisclosedURL: cfg.QuestionBank.DisclosedURL,
			Timeout:      cfg.QuestionBank.Timeout,
		}, logger), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bank file: %w", err)
	}
	defer f.Close()
	src, err := questionbank.LoadStatic(f)
	if err != nil {
		return nil, fmt.Errorf("load bank file %s: %w", path, err)
	}
	return src, nil
}

// Close flushes the engine and releases resources in reverse order.
func (rt *runtime) Close() {
	if rt.engine != nil {
		rt.engine.Close(context.Background())
	} else if rt.persister != nil {
		rt.persister.Stop()
	}
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && rt.logger != nil {
			rt.logger.Warn("close", slog.Any("error", err))
		}
	}
}

func (rt *runtime) env() screen.Env {
	return screen.Env{
		Engine:    rt.engine,
		Persister: rt.persister,
		Stats:     rt.store.StatsRepo(),
		Tutor:     rt.tutor,
	}
}

// runTUI launches the terminal UI.
func runTUI(cmd *cobra.Command, opts app.Options) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("satprep needs an interactive terminal; use `satprep serve` for other front ends")
	}

	rt, err := openRuntime(cmd, true)
	if err != nil {
		return err
	}
	defer rt.Close()

	opts.Env = rt.env()
	return app.Run(cmd.Context(), opts)
}
