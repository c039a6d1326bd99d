package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/maskline/numsync/internal/store"
	"github.com/maskline/numsync/pkg/twilio"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "numsync.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initTwilio() (twilio.Client, error) {
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" {
		return nil, eris.New("twilio credentials are required (NUMSYNC_TWILIO_ACCOUNT_SID, NUMSYNC_TWILIO_AUTH_TOKEN)")
	}
	return twilio.NewClient(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken,
		twilio.WithAPIBaseURL(cfg.Twilio.APIBaseURL),
		twilio.WithMessagingBaseURL(cfg.Twilio.MessagingBaseURL),
		twilio.WithRateLimit(cfg.Twilio.RateLimit),
	), nil
}
