package feed

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Handler consumes parsed ticks. Errors are logged and never stop the feed.
type Handler func(ctx context.Context, tick Tick) error

// Runner keeps a feed subscription alive, reconnecting with a flat backoff
// and fanning every tick into the handler.
type Runner struct {
	Endpoint string
	Pairs    []string
	Handle   Handler
	Log      *zap.Logger
}

func (r *Runner) Run(ctx context.Context) {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	if r.Endpoint == "" {
		log.Info("feed disabled: endpoint is empty")
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		client := NewClient(r.Endpoint)
		if err := client.Connect(ctx); err != nil {
			log.Warn("feed connect failed", zap.Error(err))
			time.Sleep(3 * time.Second)
			continue
		}
		log.Info("feed connected", zap.String("endpoint", r.Endpoint))

		if err := client.Subscribe(r.Pairs); err != nil {
			log.Warn("feed subscribe failed", zap.Error(err))
			client.Close()
			time.Sleep(3 * time.Second)
			continue
		}

		for {
			msg, err := client.Read()
			if err != nil {
				log.Warn("feed read failed", zap.Error(err))
				client.Close()
				break
			}
			tick, ok, err := ParseTick(msg)
			if err != nil {
				log.Warn("feed parse failed", zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			if err := r.Handle(ctx, *tick); err != nil {
				log.Warn("tick handler failed",
					zap.String("pair", tick.Pair.String()),
					zap.Error(err),
				)
			}
		}

		time.Sleep(2 * time.Second)
	}
}
