// Package proxy - Relay forwarding servo requests from the tracker host to the device.
package proxy

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/nvr-ai/go-facetrack/actuator"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// maxBodyLog bounds how much of a device reply is buffered for logging.
const maxBodyLog = 4096

// Config configures the relay.
type Config struct {
	// Listen is the address to serve on, e.g. ":3000".
	Listen string `json:"listen" yaml:"listen"`
	// Target is the device base URL, e.g. http://192.168.4.31.
	Target string `json:"target" yaml:"target"`
	// CertFile and KeyFile enable TLS when both are set.
	CertFile string `json:"cert_file" yaml:"cert_file"`
	KeyFile  string `json:"key_file" yaml:"key_file"`
	// ReadTimeout and WriteTimeout bound client connections.
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// NewHandler builds the relay routes.
//
// Requests under /servo are forwarded to the target unchanged apart from the
// Host header, which is rewritten to the target's host. The device reply is
// logged and passed back as-is. If the device cannot be reached the client gets
// 500 "Proxy error". /healthz answers 200 without contacting the device.
//
// Arguments:
//   - target: Device base URL.
//   - logger: Receives device replies and errors.
//
// Returns:
//   - http.Handler: The router.
//   - error: If target is not an absolute URL.
func NewHandler(target string, logger *zap.Logger) (http.Handler, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid relay target %q", target)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("relay target %q must be an absolute URL", target)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("relay")

	rp := &httputil.ReverseProxy{
		Rewrite: func(r *httputil.ProxyRequest) {
			r.SetURL(u)
			r.SetXForwarded()
			logger.Debug("proxying request", zap.String("path", r.Out.URL.RequestURI()))
		},
		ModifyResponse: func(resp *http.Response) error {
			body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
			if err != nil {
				return err
			}
			resp.Body = struct {
				io.Reader
				io.Closer
			}{io.MultiReader(bytes.NewReader(body), resp.Body), resp.Body}
			logger.Info("device response",
				zap.Int("status", resp.StatusCode),
				zap.String("body", string(body)),
			)
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("proxy error", zap.String("path", r.URL.RequestURI()), zap.Error(err))
			http.Error(w, "Proxy error", http.StatusInternalServerError)
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.Handle(actuator.ServoPath, rp)
	r.PathPrefix(actuator.ServoPath + "/").Handler(rp)

	return r, nil
}

// Server runs the relay.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *zap.Logger
}

// NewServer creates a relay server.
func NewServer(cfg Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if (cfg.CertFile == "") != (cfg.KeyFile == "") {
		return nil, errors.New("TLS needs both a certificate and a key")
	}
	h, err := NewHandler(cfg.Target, logger)
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:    cfg,
		logger: logger.Named("relay"),
		srv: &http.Server{
			Handler:      h,
			Addr:         cfg.Listen,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
	}, nil
}

// ListenAndServe listens on the configured address and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return errors.Wrapf(err, "listening on %s", s.cfg.Listen)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx ends, then shuts down gracefully.
//
// Returns:
//   - error: nil after a clean shutdown, otherwise the serve or shutdown error.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("relay listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("target", s.cfg.Target),
			zap.Bool("tls", s.cfg.CertFile != ""),
		)
		var err error
		if s.cfg.CertFile != "" {
			err = s.srv.ServeTLS(ln, s.cfg.CertFile, s.cfg.KeyFile)
		} else {
			err = s.srv.Serve(ln)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
