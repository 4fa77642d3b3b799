// Command nakama builds the game as a Nakama Go runtime plugin:
//
//	go build -buildmode=plugin -trimpath -o tienlen.so ./cmd/nakama
package main

import (
	"context"
	"database/sql"

	"github.com/heroiclabs/nakama-common/runtime"

	"github.com/quyht-dev/tienlen/internal/ports/nakama"
)

// InitModule proxies Nakama initialization to the nakama adapter package.
func InitModule(ctx context.Context, logger runtime.Logger, db *sql.DB, nk runtime.NakamaModule, initializer runtime.Initializer) error {
	return nakama.InitModule(ctx, logger, db, nk, initializer)
}

// main is never called when built with -buildmode=plugin; it only lets
// `go build ./...` link this package.
func main() {}
