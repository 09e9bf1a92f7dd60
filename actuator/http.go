package actuator

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ServoPath is the device route that accepts angle updates.
const ServoPath = "/servo"

// maxBodyLog bounds how much of the device reply is logged.
const maxBodyLog = 512

// HTTPConfig configures the HTTP dispatcher.
type HTTPConfig struct {
	// Endpoint is the device or relay base URL, e.g. http://192.168.4.31.
	Endpoint string `json:"endpoint" yaml:"endpoint"`
	// Timeout bounds each request. 0 means no client-side limit beyond ctx.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// HTTP sends commands as GET {endpoint}/servo?angle1={pan}&angle2={tilt}.
type HTTP struct {
	base   *url.URL
	client *http.Client
	logger *zap.Logger
}

var _ Dispatcher = (*HTTP)(nil)

// NewHTTP creates an HTTP dispatcher.
//
// Arguments:
//   - cfg: Endpoint and timeout.
//   - client: HTTP client to use; nil builds one with cfg.Timeout.
//   - logger: Receives the device reply.
//
// Returns:
//   - *HTTP: The dispatcher.
//   - error: If the endpoint is not an absolute http(s) URL.
func NewHTTP(cfg HTTPConfig, client *http.Client, logger *zap.Logger) (*HTTP, error) {
	base, err := url.Parse(strings.TrimRight(cfg.Endpoint, "/"))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid actuator endpoint %q", cfg.Endpoint)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, errors.Errorf("actuator endpoint %q must be an absolute http(s) URL", cfg.Endpoint)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTP{base: base, client: client, logger: logger.Named("http")}, nil
}

// URL returns the request URL for a command.
func (h *HTTP) URL(cmd Command) string {
	u := *h.base
	u.Path = h.base.Path + ServoPath
	q := url.Values{}
	q.Set("angle1", strconv.Itoa(cmd.Pan))
	q.Set("angle2", strconv.Itoa(cmd.Tilt))
	u.RawQuery = q.Encode()
	return u.String()
}

// Dispatch sends the command and logs the device reply.
//
// Returns:
//   - error: ErrOutOfRange, a transport error, or an error for a non-2xx status.
func (h *HTTP) Dispatch(ctx context.Context, cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL(cmd), nil)
	if err != nil {
		return errors.Wrap(err, "building servo request")
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending servo request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyLog))
	if err != nil {
		return errors.Wrap(err, "reading servo response")
	}

	h.logger.Debug("servo response",
		zap.Stringer("command", cmd),
		zap.Int("status", resp.StatusCode),
		zap.String("body", string(body)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.Errorf("servo request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
