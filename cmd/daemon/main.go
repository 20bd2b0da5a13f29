package main

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dodoproxy/dodo-proxy/internal/daemonconfig"
	"github.com/dodoproxy/dodo-proxy/internal/httpapi"
)

const fixedLoopbackPort = "4718"

func main() {
	_ = godotenv.Load()

	cfg, err := daemonconfig.Load()
	if err != nil {
		log.Fatalf("daemon: failed to load configuration: %v", err)
	}

	srv := httpapi.New(cfg)

	listener, baseURL, err := startListener(cfg.Port, cfg.ReuseExistingProxy)
	if err != nil {
		log.Fatalf("daemon: failed to bind: %v", err)
	}

	httpServer := &http.Server{Handler: srv.Router()}

	log.Printf("dodo-proxy: listening on %s", baseURL)

	go func() {
		if err := httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("dodo-proxy: serve error: %v", err)
		}
	}()

	waitForShutdown(httpServer)
}

// startListener implements spec §5's "Shared resources" handshake: try the
// fixed loopback port first; if another compatible instance already answers
// /health there, reuse it by logging its base URL and exiting instead of
// binding a second listener. Otherwise fall back to an ephemeral port.
func startListener(port string, reuseExisting bool) (net.Listener, string, error) {
	if port == "" {
		port = fixedLoopbackPort
	}
	addr := "127.0.0.1:" + port
	listener, err := net.Listen("tcp", addr)
	if err == nil {
		return listener, "http://" + addr, nil
	}

	if reuseExisting && isHealthyDodoProxy(addr) {
		printBaseURL("http://" + addr)
		os.Exit(0)
	}

	listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", err
	}
	ephemeral := listener.Addr().(*net.TCPAddr)
	baseURL := "http://127.0.0.1:" + strconv.Itoa(ephemeral.Port)
	printBaseURL(baseURL)
	return listener, baseURL, nil
}

func isHealthyDodoProxy(addr string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get("http://" + addr + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false
	}
	ok, _ := body["ok"].(bool)
	return ok
}

func printBaseURL(baseURL string) {
	log.Printf("dodo-proxy: base url %s", baseURL)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops accepting new
// connections and lets in-flight requests drain on their own request
// contexts (spec §5's "Cancellation" already tears down each request's
// upstream subprocess independently).
func waitForShutdown(httpServer *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("dodo-proxy: shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("dodo-proxy: shutdown error: %v", err)
	}
}
