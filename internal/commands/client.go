package commands

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/balkashynov/tasktime/internal/api"
	"github.com/balkashynov/tasktime/internal/controller"
	"github.com/balkashynov/tasktime/internal/db"
	"github.com/balkashynov/tasktime/internal/timecache"
)

// clientEnv bundles what the client commands need to talk to the server.
type clientEnv struct {
	api   *api.Client
	cache *timecache.Cache
	hints *db.HintStore
	state *gorm.DB
}

func newClientEnv() (*clientEnv, error) {
	if cfg.Client.Token == "" {
		return nil, fmt.Errorf("no token configured; run 'tasktime token <user>' and set client.token or --token")
	}

	state, err := db.OpenClient(cfg.Client.StatePath, db.Options{})
	if err != nil {
		return nil, fmt.Errorf("open client state: %w", err)
	}

	client := api.NewClient(cfg.Client.ServerURL, cfg.Client.Token, cfg.Client.Timeout)
	return &clientEnv{
		api: client,
		cache: timecache.New(client, timecache.Options{
			TTL:       cfg.Client.CacheTTL,
			ChunkSize: cfg.Client.BatchChunk,
		}),
		hints: db.NewHintStore(state),
		state: state,
	}, nil
}

func (e *clientEnv) Close() {
	_ = db.Close(e.state)
}

// loadController returns a controller for taskID that has reconciled with the server.
func (e *clientEnv) loadController(ctx context.Context, taskID string) (*controller.Controller, error) {
	ctrl := controller.New(controller.Options{
		TaskID: taskID,
		API:    e.api,
		Hints:  e.hints,
		Cache:  e.cache,
	})
	if err := ctrl.Load(ctx); err != nil {
		return nil, err
	}
	return ctrl, nil
}

// withClient runs fn with a client environment that is closed afterwards.
func withClient(fn func(*clientEnv) error) error {
	env, err := newClientEnv()
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(env)
}
