// Command citiesgame starts the multiplayer Cities word-chain game server.
//
// It supports two modes:
//  1. "server" (default) – runs the TCP game server plus an HTTP listener
//     exposing WebSocket play at /ws and an MCP inspection endpoint at /mcp
//  2. "stdio-mcp" – runs the MCP inspection server over stdin/stdout next to
//     the TCP game server
//
// Flags control host/ports, the default room name, an optional external city
// catalog, debug logging, and optional ngrok tunneling for external access
// during development.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/playcities/citiesgame/api"
	"github.com/playcities/citiesgame/game/catalog"
	"github.com/playcities/citiesgame/game/registry"
	"github.com/playcities/citiesgame/transport/mcp"
	"github.com/playcities/citiesgame/transport/tcpserver"
	"github.com/playcities/citiesgame/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Cities Game Server"
)

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Warning: Error loading .env file: %v", err)
		}
	} else {
		log.Println("Loaded environment variables from .env file")
	}

	cmd := newCommand()
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("%v", err)
	}
}

// newCommand builds the CLI surface: flags, the default server action, and
// the stdio-mcp subcommand.
func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "citiesgame",
		Usage:   "multiplayer city word-chain game server",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "interface to bind",
				Sources: cli.EnvVars("CITIES_HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8888,
				Usage:   "TCP game protocol port",
				Sources: cli.EnvVars("CITIES_PORT"),
			},
			&cli.IntFlag{
				Name:    "ws-port",
				Value:   8889,
				Usage:   "HTTP port for WebSocket play and the MCP endpoint",
				Sources: cli.EnvVars("CITIES_WS_PORT"),
			},
			&cli.StringFlag{
				Name:    "default-room",
				Value:   "Основная",
				Usage:   "name of the room new players join",
				Sources: cli.EnvVars("CITIES_DEFAULT_ROOM"),
			},
			&cli.StringFlag{
				Name:    "cities",
				Usage:   "path to a city catalog JSON file (defaults to the embedded catalog)",
				Sources: cli.EnvVars("CITIES_FILE"),
			},
			&cli.BoolFlag{
				Name:    "debug",
				Usage:   "enable debug logging",
				Sources: cli.EnvVars("CITIES_DEBUG"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "expose the HTTP listener through an ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "run the game server (default)",
				Action: runServer,
			},
			{
				Name:    "stdio-mcp",
				Aliases: []string{"mcp"},
				Usage:   "run the MCP inspection server over stdio alongside the TCP game server",
				Action:  runStdioMCP,
			},
		},
	}
}

// setup builds the city catalog and the room registry from flags.
func setup(cmd *cli.Command) (*catalog.Catalog, *registry.Registry, error) {
	if cmd.Bool("debug") {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	} else {
		log.SetFlags(log.LstdFlags)
	}

	var cat *catalog.Catalog
	if path := cmd.String("cities"); path != "" {
		loaded, err := catalog.Load(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load city catalog: %w", err)
		}
		cat = loaded
		log.Printf("Loaded %d cities from %s", cat.Len(), path)
	} else {
		cat = catalog.Default()
		log.Printf("Using embedded catalog (%d cities)", cat.Len())
	}

	reg := registry.New(cat, cmd.String("default-room"))
	return cat, reg, nil
}

// runServer starts the TCP game server and the HTTP listener carrying the
// WebSocket and MCP endpoints, and blocks until a shutdown signal arrives.
func runServer(ctx context.Context, cmd *cli.Command) error {
	cat, reg, err := setup(cmd)
	if err != nil {
		return err
	}

	log.Printf("Starting %s v%s", AppName, Version)

	tcpAddr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	httpAddr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("ws-port"))

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewHandler(reg))
	mux.Handle("/api/", api.NewServer(reg))

	mcpServer := mcp.NewServer(reg, cat)
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

		response := mcpServer.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	httpServer := &http.Server{
		Addr:        httpAddr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Setup graceful shutdown context
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	tcpSrv := tcpserver.New(tcpAddr, reg)
	if err := tcpSrv.Listen(); err != nil {
		return fmt.Errorf("failed to bind game port: %w", err)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("Game server listening on %s", tcpSrv.Addr())
		if err := tcpSrv.Serve(serveCtx); err != nil {
			log.Printf("Game server error: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Printf("HTTP server listening on %s", httpAddr)
		log.Printf("REST API: http://%s/api", httpAddr)
		log.Printf("WebSocket: ws://%s/ws", httpAddr)
		log.Printf("MCP endpoint: http://%s/mcp", httpAddr)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server failed: %v", err)
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrokTunnel(serveCtx, cmd, mux)
		}()
	}

	// Wait for shutdown signal
	select {
	case sig := <-stop:
		log.Printf("Received signal: %v. Shutting down...", sig)
	case <-serveCtx.Done():
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	wg.Wait()
	log.Println("Server stopped")
	return nil
}

// runNgrokTunnel serves the HTTP mux through an ngrok tunnel until the
// context is cancelled.
func runNgrokTunnel(ctx context.Context, cmd *cli.Command, handler http.Handler) {
	authToken := cmd.String("ngrok-auth")
	if authToken == "" {
		log.Println("WARNING: ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	log.Println("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if domain := cmd.String("ngrok-domain"); domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Printf("Using custom ngrok domain: %s", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Printf("Failed to start ngrok tunnel: %v", err)
		return
	}
	defer func() {
		if err := tun.Close(); err != nil {
			log.Printf("Failed to close ngrok tunnel: %v", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Printf("Ngrok tunnel established: %s", ngrokURL)
	log.Printf("  WebSocket (ngrok): %s/ws", ngrokURL)
	log.Printf("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	if err := http.Serve(tun, handler); err != nil && err != http.ErrServerClosed {
		log.Printf("Ngrok server error: %v", err)
	}
	log.Println("Ngrok tunnel closed")
}

// runStdioMCP serves MCP over stdin/stdout. The TCP game server runs in the
// background so the inspection tools have live state to look at.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cat, reg, err := setup(cmd)
	if err != nil {
		return err
	}

	tcpAddr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	tcpSrv := tcpserver.New(tcpAddr, reg)
	if err := tcpSrv.Listen(); err != nil {
		return fmt.Errorf("failed to bind game port: %w", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		log.Printf("Game server listening on %s", tcpSrv.Addr())
		if err := tcpSrv.Serve(serveCtx); err != nil {
			log.Printf("Game server error: %v", err)
		}
	}()

	log.Println("MCP stdio server ready")
	if err := mcp.NewServer(reg, cat).ServeStdio(); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
