// Package cli implements the sharectl REPL: a thin terminal front end over
// secretclient, backed by a local history store so recently created share
// links and their content keys can be re-printed later.
package cli

import (
	"bufio"
	"context"
	"database/sql"
	"log"
	"os"

	"github.com/zerodrop/zerodrop/internal/client/config"
	"github.com/zerodrop/zerodrop/internal/client/history"
	"github.com/zerodrop/zerodrop/internal/client/secretclient"
	"github.com/zerodrop/zerodrop/internal/client/transport"
)

// App owns the wired dependency graph for one CLI run: the HTTP transport,
// the encrypt/decrypt layer over it, the local history store, and the
// REPL's line reader.
type App struct {
	config    *config.Config
	secrets   *secretclient.Client
	history   history.Repository
	historyDB *sql.DB
	reader    *bufio.Reader
}

// NewApp opens the local history database and wires the transport and
// secretclient layers against cfg.ServerBaseURL.
func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	repo, db, err := history.Open(ctx, "sharectl_history.db")
	if err != nil {
		log.Printf("error opening history database: %s", err.Error())
		return nil, err
	}

	t := transport.New(c.ServerBaseURL, c.RequestTimeout)
	secrets := secretclient.New(t)

	return &App{
		config:    c,
		secrets:   secrets,
		history:   repo,
		historyDB: db,
		reader:    bufio.NewReader(os.Stdin),
	}, nil
}

// Run starts the REPL and closes the history database when it exits.
func (a *App) Run(ctx context.Context) {
	defer a.historyDB.Close()
	a.Root(ctx)
}
