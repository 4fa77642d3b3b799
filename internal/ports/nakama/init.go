package nakama

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"time"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quyht-dev/tienlen/internal/app"
	"github.com/quyht-dev/tienlen/internal/config"
)

// InitModule wires the game RPCs and session hooks into the Nakama runtime.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	cfg := config.Default()
	if env, ok := ctx.Value(runtime.RUNTIME_CTX_ENV).(map[string]string); ok {
		if err := cfg.ApplyEnv(env); err != nil {
			logger.Error("Invalid runtime env: %v", err)
			return err
		}
	}

	log := slog.New(newLogHandler(logger, cfg.SlogLevel()))
	voice := app.NewVoiceService(cfg.VivoxSecret, cfg.VivoxIssuer, cfg.VivoxDomain, cfg.VoiceTokenTTL())
	if voice == nil {
		logger.Warn("Vivox credentials missing from env, voice tokens disabled.")
	}
	rooms := app.NewRoomRegistry(rand.New(rand.NewSource(time.Now().UnixNano())))
	d := app.NewDispatcher(app.NewSessions(), rooms, voice, log)

	if err := NewModule(d, nk, log).Register(initializer); err != nil {
		return err
	}
	go rooms.RunReaper(context.Background(), cfg.SweepInterval(), cfg.RoomTTL())

	logger.Info("TienLen Go module loaded.")
	return nil
}
