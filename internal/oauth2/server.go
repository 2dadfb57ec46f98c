package oauth2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// CallbackPath is where the provider redirects after consent
const CallbackPath = "/oauth/callback"

const successPage = `<html>
	<head><title>Authentication Successful</title></head>
	<body style="font-family: Arial, sans-serif; text-align: center; padding: 50px;">
		<div style="color: green; font-size: 24px;">Authentication Successful!</div>
		<div>You can now close this window and return to the terminal.</div>
	</body>
</html>`

// WaitForCode serves the OAuth2 callback on addr until an authorization
// code arrives, ctx ends or five minutes pass
func WaitForCode(ctx context.Context, addr string, logger *slog.Logger) (string, error) {
	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("failed to start local server: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			select {
			case errChan <- fmt.Errorf("no code in callback: %s", r.URL.Query().Get("error")):
			default:
			}
			http.Error(w, "No code provided", http.StatusBadRequest)
			return
		}

		select {
		case codeChan <- code:
		default:
		}

		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, successPage)
	})

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	logger.Debug("started local OAuth2 server", "url", "http://"+listener.Addr().String()+CallbackPath)

	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	select {
	case code := <-codeChan:
		return code, nil
	case err := <-errChan:
		return "", err
	case <-timeoutCtx.Done():
		return "", fmt.Errorf("timeout waiting for authorization")
	}
}
