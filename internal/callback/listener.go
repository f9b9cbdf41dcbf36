// Package callback receives the identity provider's redirect on a loopback address.
package callback

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrNotLoopback = errors.New("redirect uri must point at localhost")

var page = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>PostSync</title></head>
<body style="font-family: sans-serif; text-align: center; margin-top: 4em">
{{if .Error}}<h2>Sign-in failed</h2><p>{{.Error}}</p>{{else}}<h2>Sign-in received</h2>{{end}}
<p>You can close this window and return to the terminal.</p>
</body></html>`))

// Listener serves the redirect URI's path once and hands the raw query to the caller.
type Listener struct {
	redirect *url.URL
	server    *http.Server
	listeners []net.Listener
	resultCh chan url.Values
	errorCh  chan error
	once     sync.Once
}

// Listen binds the host and port of redirectURI. Only loopback hosts are accepted.
// "localhost" binds 127.0.0.1 and, when available, ::1 on the same port, since browsers
// may resolve it to either.
func Listen(redirectURI string) (*Listener, error) {
	u, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("parse redirect uri: %w", err)
	}
	if !isLoopback(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrNotLoopback, u.Host)
	}
	port := u.Port()
	if port == "" {
		port = "80"
	}

	listeners, err := bind(u.Hostname(), port)
	if err != nil {
		return nil, err
	}

	l := &Listener{
		redirect:  u,
		listeners: listeners,
		resultCh: make(chan url.Values, 1),
		errorCh:  make(chan error, 1),
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+path, l.handleCallback)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	for _, ln := range listeners {
		go func(ln net.Listener) {
			if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				select {
				case l.errorCh <- err:
				default:
				}
			}
		}(ln)
	}
	return l, nil
}

func bind(host, port string) ([]net.Listener, error) {
	primary := host
	if host == "localhost" {
		primary = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(primary, port))
	if err != nil {
		return nil, fmt.Errorf("failed to start callback listener on %s: %w", net.JoinHostPort(primary, port), err)
	}
	listeners := []net.Listener{ln}
	if host != "localhost" {
		return listeners, nil
	}

	// Port 0 was resolved by the first bind; the second must share it.
	_, bound, _ := net.SplitHostPort(ln.Addr().String())
	ln6, err := net.Listen("tcp", net.JoinHostPort("::1", bound))
	if err != nil {
		log.Debug().Err(err).Msg("ipv6 loopback unavailable, callback listening on 127.0.0.1 only")
		return listeners, nil
	}
	return append(listeners, ln6), nil
}

// Addr is the first bound address, useful when the redirect uri names port 0.
func (l *Listener) Addr() string {
	return l.listeners[0].Addr().String()
}

// Addrs lists every bound address.
func (l *Listener) Addrs() []string {
	addrs := make([]string, 0, len(l.listeners))
	for _, ln := range l.listeners {
		addrs = append(addrs, ln.Addr().String())
	}
	return addrs
}

// Wait blocks until the provider redirects back, the listener fails or ctx ends.
func (l *Listener) Wait(ctx context.Context) (url.Values, error) {
	select {
	case q := <-l.resultCh:
		return q, nil
	case err := <-l.errorCh:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	var handled bool
	l.once.Do(func() {
		handled = true
		l.respond(w, r)
	})
	if !handled {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
	}
}

func (l *Listener) respond(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	query := r.URL.Query()
	data := map[string]string{}
	if e := query.Get("error"); e != "" {
		data["Error"] = e
		if d := query.Get("error_description"); d != "" {
			data["Error"] = d
		}
	}
	if err := page.Execute(w, data); err != nil {
		log.Err(err).Msg("failed to render callback page")
	}

	l.resultCh <- query
}

// Close shuts the listener down. It is safe to call more than once.
func (l *Listener) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.server.Shutdown(ctx)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
