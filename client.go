package main

import (
	"context"
	"fmt"

	"github.com/tonimelisma/dashsync/internal/config"
	"github.com/tonimelisma/dashsync/internal/remote"
	"github.com/tonimelisma/dashsync/pkg/syncclient"
)

// openClient builds a sync client from the resolved configuration. The
// caller owns Dispose.
func openClient(ctx context.Context, cc *CLIContext) (*syncclient.Client, error) {
	opts, err := clientOptions(cc.Cfg)
	if err != nil {
		return nil, err
	}

	opts.Logger = cc.Logger

	client, err := syncclient.New(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("opening sync client: %w", err)
	}

	return client, nil
}

// clientOptions maps resolved configuration onto client options.
func clientOptions(cfg *config.Resolved) (syncclient.Options, error) {
	strategy, err := syncclient.ParseStrategy(cfg.Strategy)
	if err != nil {
		return syncclient.Options{}, err
	}

	return syncclient.Options{
		DataDir:             cfg.DataDir,
		UserID:              cfg.UserID,
		Source:              cfg.Source,
		BackupURL:           cfg.BackupURL,
		SessionURL:          cfg.SessionURL,
		NotifyURL:           cfg.NotifyURL,
		HTTPClient:          remote.NewHTTPClient(cfg.APIToken, cfg.RequestTimeout),
		UserAgent:           cfg.UserAgent,
		RequestsPerSecond:   cfg.MaxRequestsPerSecond,
		Strategy:            strategy,
		Debounce:            cfg.Debounce,
		RetryDelay:          cfg.RetryDelay,
		MaxRetries:          cfg.MaxRetries,
		IntervalMultiUser:   cfg.IntervalMultiUser,
		IntervalSingleUser:  cfg.IntervalSingleUser,
		MinSyncInterval:     cfg.MinInterval,
		MaxPayloadBytes:     cfg.MaxPayload,
		MaxQueue:            cfg.MaxQueue,
		LogTrimBytes:        cfg.LogTrimThreshold,
		HeartbeatInterval:   cfg.HeartbeatInterval,
		ActivityInterval:    cfg.CheckInterval,
		InactivityThreshold: cfg.InactivityThreshold,
	}, nil
}
