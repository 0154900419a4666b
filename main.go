// Command autotrack serves toy train track sessions.
//
// It supports two modes:
//  1. "serve" (default) runs the HTTP server exposing the REST API, the
//     WebSocket snapshot stream and an /mcp HTTP endpoint
//  2. "stdio-mcp" runs an MCP stdio server, reusing a running API server or
//     starting an internal one
//
// Settings come from defaults, an optional autotrack.{json,yaml,toml} file,
// AUTOTRACK_* environment variables (a .env file is loaded first) and flags,
// in increasing precedence.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/autotrack/api"
	"github.com/wricardo/autotrack/game/config"
	"github.com/wricardo/autotrack/game/service"
	"github.com/wricardo/autotrack/game/session"
	"github.com/wricardo/autotrack/game/settings"
	"github.com/wricardo/autotrack/game/store"
	"github.com/wricardo/autotrack/logging"
	"github.com/wricardo/autotrack/transport/mcp"
	"github.com/wricardo/autotrack/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Auto Track Server"
)

// flagKeys maps flags onto the settings keys they override.
var flagKeys = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"tick-rate":    "sim.tickRate",
	"auto-start":   "sim.autoStart",
	"layouts-dir":  "layouts.dir",
	"sessions-dir": "sessions.dir",
	"store":        "store.type",
	"store-path":   "store.path",
	"log-level":    "log.level",
	"ngrok":        "ngrok.enabled",
	"ngrok-domain": "ngrok.domain",
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "settings file (json, yaml or toml)"},
		&cli.StringFlag{Name: "host", Usage: "HTTP server host"},
		&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP server port"},
		&cli.IntFlag{Name: "tick-rate", Usage: "simulation ticks per second"},
		&cli.BoolFlag{Name: "auto-start", Usage: "start the simulation of new sessions immediately"},
		&cli.StringFlag{Name: "layouts-dir", Usage: "directory containing layout files"},
		&cli.StringFlag{Name: "sessions-dir", Usage: "directory for persisted sessions"},
		&cli.StringFlag{Name: "store", Usage: "saved track backend: file or sqlite"},
		&cli.StringFlag{Name: "store-path", Usage: "saved track file or database path"},
		&cli.StringFlag{Name: "log-level", Usage: "trace, debug, info, warn or error"},
		&cli.BoolFlag{Name: "debug", Usage: "shorthand for --log-level debug"},
		&cli.BoolFlag{Name: "ngrok", Usage: "expose the server through an ngrok tunnel (NGROK_AUTHTOKEN required)"},
		&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain"},
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:           "autotrack",
		Usage:          AppName,
		Version:        Version,
		Flags:          globalFlags(),
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:    "serve",
				Aliases: []string{"server", "http"},
				Usage:   "run the HTTP server with API, WebSocket and MCP endpoint",
				Action:  runServe,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp-stdio", "mcp"},
				Usage:   "run an MCP stdio server",
				Action:  runStdioMCP,
			},
		},
	}
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: error loading .env file: %v\n", err)
	}

	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", AppName, err)
		os.Exit(1)
	}
}

// loadSettings resolves settings and applies explicitly set flags on top.
func loadSettings(cmd *cli.Command) (*settings.Settings, error) {
	v, err := settings.New(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	for flag, key := range flagKeys {
		if cmd.IsSet(flag) {
			v.Set(key, cmd.Value(flag))
		}
	}
	if cmd.Bool("debug") {
		v.Set("log.level", "debug")
	}
	return settings.Decode(v)
}

// app holds the wired services for one process.
type app struct {
	settings *settings.Settings
	logger   zerolog.Logger
	service  service.TrackService
	sessions *session.Manager
	tracks   store.Store
	hub      *websocket.Hub
}

func newApp(st *settings.Settings, logger zerolog.Logger) (*app, error) {
	if err := os.MkdirAll(st.Layouts.Dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create layouts directory: %w", err)
	}
	configs, err := config.NewManager(st.Layouts.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(st.Sessions.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}
	sessions := session.NewManagerWithPersistence(persistence, logger.With().Str("component", "sessions").Logger())
	if err := sessions.LoadPersistedSessions(); err != nil {
		logger.Warn().Err(err).Msg("failed to load persisted sessions")
	}

	if st.Store.Type == store.BackendSQLite && st.Store.Path != "" && st.Store.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(st.Store.Path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create track database directory: %w", err)
		}
	}
	tracks, err := store.Open(st.Store.Type, st.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open track store: %w", err)
	}

	hub := websocket.NewHub(logger.With().Str("component", "hub").Logger())
	svc := service.NewTrackService(sessions, configs, tracks,
		service.WithPublisher(hub),
		service.WithLogger(logger.With().Str("component", "service").Logger()),
		service.WithTickRate(st.Sim.TickRate),
		service.WithAutoStart(st.Sim.AutoStart),
	)

	logger.Info().
		Int("sessions", sessions.Count()).
		Str("layouts", st.Layouts.Dir).
		Str("store", st.Store.Type).
		Int("tick_rate", st.Sim.TickRate).
		Msg("services initialized")

	return &app{
		settings: st,
		logger:   logger,
		service:  svc,
		sessions: sessions,
		tracks:   tracks,
		hub:      hub,
	}, nil
}

// start runs the hub and the session pruning loop until ctx is done.
func (a *app) start(ctx context.Context) {
	go a.hub.Run(ctx)
	go a.pruneLoop(ctx)
}

// pruneLoop periodically removes sessions idle for longer than the
// configured window.
func (a *app) pruneLoop(ctx context.Context) {
	t := time.NewTicker(a.settings.Sessions.PruneEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			removed, err := a.service.PruneSessions(ctx, a.settings.Sessions.MaxIdle)
			if err != nil {
				a.logger.Warn().Err(err).Msg("session pruning failed")
				continue
			}
			if removed > 0 {
				a.logger.Info().Int("removed", removed).Msg("pruned idle sessions")
			}
		}
	}
}

func (a *app) close(ctx context.Context) error {
	err := a.service.Shutdown(ctx)
	if cerr := a.tracks.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// handler combines the API server with an /mcp endpoint proxying to baseURL.
func (a *app) handler(baseURL string) http.Handler {
	apiServer := api.NewServer(a.service, a.hub, a.logger.With().Str("component", "api").Logger())
	mcpClient := mcp.NewClient(baseURL)

	mux := http.NewServeMux()
	mux.Handle("/", apiServer)
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
	return mux
}

// loopbackURL is the address local clients use to reach a listener on addr.
func loopbackURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// runServe starts the HTTP server and, when enabled, an ngrok tunnel, then
// waits for a signal and shuts down gracefully.
func runServe(ctx context.Context, cmd *cli.Command) error {
	st, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger := logging.New(st.Log.Level, st.Log.Pretty)
	logger.Info().Str("version", Version).Msg("starting " + AppName)

	a, err := newApp(st, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	a.start(ctx)

	addr := st.Server.Addr()
	handler := a.handler(loopbackURL(addr))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("api", loopbackURL(addr)+"/api").
			Str("ws", strings.Replace(loopbackURL(addr), "http", "ws", 1)+"/ws?session=<id>").
			Str("mcp", loopbackURL(addr)+"/mcp").
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if st.Ngrok.Enabled {
		go runNgrok(ctx, st.Ngrok, handler, logger)
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-serveErr:
		logger.Error().Err(err).Msg("HTTP server failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
		logger.Warn().Err(serr).Msg("HTTP server shutdown error")
	}
	if cerr := a.close(shutdownCtx); cerr != nil {
		logger.Warn().Err(cerr).Msg("service shutdown error")
	}
	logger.Info().Msg("server stopped")
	return err
}

// ngrokAuthToken reads the token from either spelling of the variable.
func ngrokAuthToken() string {
	if token := os.Getenv("NGROK_AUTHTOKEN"); token != "" {
		return token
	}
	return os.Getenv("NGROK_AUTH_TOKEN")
}

func runNgrok(ctx context.Context, st settings.NgrokSettings, handler http.Handler, logger zerolog.Logger) {
	authToken := ngrokAuthToken()
	if authToken == "" {
		logger.Warn().Msg("ngrok enabled but no auth token provided (set NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	var tunnel ngrokConfig.Tunnel
	if st.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(st.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		logger.Error().Err(err).Msg("failed to start ngrok tunnel")
		return
	}

	logger.Info().Str("url", tun.URL()).Msg("ngrok tunnel established")

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close ngrok tunnel")
		}
	}()
	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		logger.Error().Err(err).Msg("ngrok server error")
	}
	logger.Info().Msg("ngrok tunnel closed")
}

// apiAvailable reports whether an API server answers at baseURL.
func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP serves MCP over stdio. It reuses an API server already
// listening on the configured address; otherwise it starts an internal one
// on a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	st, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol
	logger := logging.New(st.Log.Level, false)

	baseURL := loopbackURL(st.Server.Addr())
	if apiAvailable(baseURL) {
		logger.Info().Str("url", baseURL).Msg("using external API server for MCP")
	} else {
		a, err := newApp(st, logger)
		if err != nil {
			return err
		}
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		a.start(ctx)
		defer a.close(context.Background())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + listener.Addr().String()

		internal := &http.Server{Handler: a.handler(baseURL)}
		go func() {
			if err := internal.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("internal HTTP server error")
			}
		}()
		defer internal.Close()
		logger.Info().Str("url", baseURL).Msg("started internal API server for MCP")
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info().Msg("MCP stdio server ready")
	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
