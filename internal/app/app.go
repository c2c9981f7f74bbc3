package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/samvad-hq/gotrue-go/internal/config"
	"github.com/samvad-hq/gotrue-go/internal/logger"
	"github.com/samvad-hq/gotrue-go/internal/session"
	"github.com/samvad-hq/gotrue-go/pkg/gotrue"
	"github.com/samvad-hq/gotrue-go/pkg/httpclient"
	"github.com/samvad-hq/gotrue-go/pkg/publishers"
)

// App wires the GoTrue client with the session cache and audit event publishers.
type App struct {
	cfg    *config.Config
	client *gotrue.Client
	store  session.Store
	fanout *publishers.Fanout
	log    logger.Logger
	in     io.Reader
	out    io.Writer
}

// New builds the CLI runtime from config.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := gotrue.New(
		gotrue.Config{BaseURL: cfg.BaseURL, AccessToken: cfg.AccessToken},
		gotrue.WithTransport(httpclient.NewRestyClient(cfg.HTTPTimeout)),
		gotrue.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("init gotrue client: %w", err)
	}

	store, err := session.NewStore(cfg.SessionStore, cfg.SessionPath, session.Options{
		DefaultTTL:      cfg.SessionDefaultTTL,
		CleanupInterval: cfg.SessionCleanupInterval,
		Retention:       cfg.SessionRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("init session store: %w", err)
	}
	log.DebugObj("session store initialized", "session_store", map[string]any{
		"type": cfg.SessionStore,
		"path": cfg.SessionPath,
	})

	fanout, err := buildFanout(ctx, cfg.EventsFile, log)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &App{
		cfg:    cfg,
		client: client,
		store:  store,
		fanout: fanout,
		log:    log,
		in:     os.Stdin,
		out:    os.Stdout,
	}, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	log.DebugObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// SetIO redirects command input and output.
func (a *App) SetIO(in io.Reader, out io.Writer) {
	if in != nil {
		a.in = in
	}
	if out != nil {
		a.out = out
	}
}

// Close releases the session store and publishers.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session store: %w", err))
		}
	}
	if err := a.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	return errors.Join(errs...)
}

// emit publishes an audit event. Delivery failures are logged and never fail the command.
func (a *App) emit(ctx context.Context, typ, email, userID string) {
	if a.fanout.Size() == 0 {
		return
	}
	evt := publishers.NewEvent(typ, a.client.BaseURL(), email, userID)
	delivered, err := a.fanout.Publish(ctx, evt)
	if err != nil {
		a.log.WarnObj("audit event delivery failed", "event_error", map[string]any{
			"type":      typ,
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	a.log.DebugObj("audit event delivered", "event", map[string]any{
		"type":      typ,
		"delivered": delivered,
	})
}

func (a *App) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) printOK() error {
	return a.print(map[string]string{"status": "ok"})
}
