package onebot

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	apperrors "qqbridge/internal/errors"
	"qqbridge/internal/retry"
	"qqbridge/internal/status"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// EventSink receives each raw frame read from the socket.
type EventSink func(ctx context.Context, payload []byte)

// Conn is the subset of the websocket connection the transport uses,
// extracted so the reconnect loop is testable without a live server.
type Conn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Ping(ctx context.Context) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc establishes a connection. The *http.Response is consulted on
// failure to distinguish a handshake rejection from a transient error.
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, *http.Response, error)

// TransportConfig configures the persistent WebSocket ingress.
type TransportConfig struct {
	URL         string
	AccessToken string
	Heartbeat   time.Duration
	// MaxAttempts bounds consecutive failed reconnects; zero retries
	// forever.
	MaxAttempts int
	Backoff     retry.BackoffConfig
}

// Transport maintains one long-lived reconnecting connection to the bot
// implementation and feeds every frame to the sink. Connection state
// transitions are recorded in the shared status tracker:
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connecting -> ...
//
// A handshake rejection (HTTP error on upgrade) or an exhausted attempt
// budget moves the state to Disconnected and stops the loop.
type Transport struct {
	cfg     TransportConfig
	logger  *logrus.Logger
	tracker *status.Tracker
	sink    EventSink
	backoff *retry.Backoff

	// injectable for deterministic tests
	dial  DialFunc
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewTransport creates a stopped transport.
func NewTransport(cfg TransportConfig, tracker *status.Tracker, sink EventSink, logger *logrus.Logger) *Transport {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.Backoff.InitialDelay <= 0 {
		cfg.Backoff = retry.DefaultBackoffConfig()
	}
	return &Transport{
		cfg:     cfg,
		logger:  logger,
		tracker: tracker,
		sink:    sink,
		backoff: retry.NewBackoff(cfg.Backoff),
		dial:    defaultDial,
		sleep:   sleepContext,
	}
}

// SetDialFunc overrides connection establishment, for tests.
func (t *Transport) SetDialFunc(dial DialFunc) {
	t.dial = dial
}

// SetSleepFunc overrides the backoff wait, for tests.
func (t *Transport) SetSleepFunc(sleep func(ctx context.Context, d time.Duration) error) {
	t.sleep = sleep
}

func defaultDial(ctx context.Context, url string, header http.Header) (Conn, *http.Response, error) {
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		return nil, resp, err
	}
	return conn, resp, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start launches the background connect/read/reconnect loop.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.URL == "" {
		return apperrors.New(apperrors.ErrCodeInvalidConfig, "websocket URL is empty")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		return apperrors.New(apperrors.ErrCodeTransport, "transport already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})

	go t.run(runCtx)
	return nil
}

// Stop cancels the read loop and any pending backoff wait, then waits
// for the loop to exit.
func (t *Transport) Stop() {
	t.mu.Lock()
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.done)

	header := make(http.Header)
	if t.cfg.AccessToken != "" {
		header.Set("Authorization", "Bearer "+t.cfg.AccessToken)
	}

	failed := 0
	for {
		if ctx.Err() != nil {
			t.tracker.SetDisconnected(nil)
			return
		}

		t.tracker.SetConnecting()
		t.logger.WithField("url", t.cfg.URL).Info("Connecting to OneBot WebSocket")

		conn, resp, err := t.dial(ctx, t.cfg.URL, header)
		if err != nil {
			if ctx.Err() != nil {
				t.tracker.SetDisconnected(nil)
				return
			}
			if rejected, status := handshakeRejected(resp); rejected {
				terminalErr := apperrors.Wrap(err, apperrors.ErrCodeHandshakeRejected,
					fmt.Sprintf("handshake rejected with status %d", status))
				t.logger.WithField("status", status).Error("WebSocket handshake rejected; disable WebSocket mode or fix the address")
				t.tracker.SetDisconnected(terminalErr)
				return
			}

			failed++
			t.tracker.SetReconnecting(apperrors.Wrap(err, apperrors.ErrCodeTransport, "connect failed"))
			if t.exhausted(failed) {
				return
			}
			if !t.wait(ctx, failed) {
				return
			}
			continue
		}

		t.tracker.SetConnected()
		failed = 0
		t.logger.Info("OneBot WebSocket connected")

		readErr := t.session(ctx, conn)
		_ = conn.Close(websocket.StatusNormalClosure, "closing")

		if ctx.Err() != nil {
			t.tracker.SetDisconnected(nil)
			t.logger.Info("OneBot WebSocket stopped")
			return
		}

		failed++
		t.tracker.SetReconnecting(apperrors.Wrap(readErr, apperrors.ErrCodeTransport, "connection dropped"))
		t.logger.WithField("error", fmt.Sprintf("%v", readErr)).Warn("OneBot WebSocket dropped, reconnecting")
		if t.exhausted(failed) {
			return
		}
		if !t.wait(ctx, failed) {
			return
		}
	}
}

// session reads frames until the connection breaks, running the
// heartbeat alongside. A failed ping cancels the read.
func (t *Transport) session(ctx context.Context, conn Conn) error {
	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	pingFailed := make(chan error, 1)
	go func() {
		ticker := time.NewTicker(t.cfg.Heartbeat)
		defer ticker.Stop()
		for {
			select {
			case <-sessionCtx.Done():
				return
			case <-ticker.C:
				if err := conn.Ping(sessionCtx); err != nil {
					select {
					case pingFailed <- err:
					default:
					}
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, payload, err := conn.Read(sessionCtx)
		if err != nil {
			select {
			case pingErr := <-pingFailed:
				return fmt.Errorf("heartbeat failed: %w", pingErr)
			default:
			}
			return err
		}
		t.sink(sessionCtx, payload)
	}
}

func (t *Transport) exhausted(failed int) bool {
	if t.cfg.MaxAttempts <= 0 || failed < t.cfg.MaxAttempts {
		return false
	}
	err := apperrors.New(apperrors.ErrCodeTransport,
		fmt.Sprintf("reconnect attempts exhausted after %d failures", failed))
	t.logger.WithField("attempts", failed).Error("OneBot WebSocket reconnect attempts exhausted")
	t.tracker.SetDisconnected(err)
	return true
}

// wait sleeps for the backoff delay of the given failure count; false
// means the transport is stopping.
func (t *Transport) wait(ctx context.Context, failed int) bool {
	delay := t.backoff.Delay(failed)
	t.logger.WithFields(logrus.Fields{
		"attempt": failed,
		"delay":   delay.String(),
	}).Info("Waiting before reconnect")
	if err := t.sleep(ctx, delay); err != nil {
		t.tracker.SetDisconnected(nil)
		return false
	}
	return true
}

// handshakeRejected reports whether the dial failure came from an HTTP
// response that refused the upgrade, which retrying cannot fix.
func handshakeRejected(resp *http.Response) (bool, int) {
	if resp == nil {
		return false, 0
	}
	if resp.StatusCode == http.StatusSwitchingProtocols {
		return false, resp.StatusCode
	}
	return true, resp.StatusCode
}
