package core

// dispatch.go sends one message per contact row over a single backend session.
//
// A batch moves through these states:
//
//	Idle -> Reading -> Sending -> LoggingOut -> Done
//	           |          |
//	           v          v
//	        Failed    LoggingOut -> Failed
//
// Failures while reading the file never touch the backend, so there is no
// session to close. Once sending has started, every exit path logs the
// session out: after a row failure the logout is best effort and the row's
// error is what the caller sees; after success a logout failure is reported
// as a warning on an otherwise successful result.
//
// Rows are sent strictly in file order and a batch stops at its first
// failure. A batch is not cancelled when the HTTP client goes away; only
// process shutdown interrupts it, and only while it waits between rows.

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/wabatch/internal/logging"
)

// BatchState is a step in a batch's lifecycle.
type BatchState int

const (
	StateIdle BatchState = iota
	StateReading
	StateSending
	StateLoggingOut
	StateDone
	StateFailed
)

func (s BatchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateSending:
		return "sending"
	case StateLoggingOut:
		return "logging_out"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DispatcherConfig holds dispatch settings.
type DispatcherConfig struct {
	// CountryCode is prepended to local-form numbers.
	CountryCode string
	// Pacing is the pause between consecutive rows; zero or negative disables it.
	Pacing time.Duration
}

// BatchRequest is a contacts file plus the content to send to each row.
type BatchRequest struct {
	Filename string
	Data     []byte
	Template string
	Media    *Media
}

// BatchResult summarises a completed batch.
type BatchResult struct {
	BatchID       string `json:"batch_id"`
	RowsProcessed int    `json:"rows_processed"`
	LogoutWarning string `json:"logout_warning,omitempty"`
}

// StateObserver is told about every state transition of a batch.
type StateObserver func(batchID string, from, to BatchState)

// BatchObserver is told how every batch ended. result is nil when err is set.
type BatchObserver func(result *BatchResult, err error)

// Dispatcher runs batches and single sends against a Backend.
type Dispatcher struct {
	backend  Backend
	cfg      DispatcherConfig
	shutdown context.Context
	sleep    func(ctx context.Context, d time.Duration) error
	observer StateObserver
	finished BatchObserver
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithShutdown sets the process-lifetime context that interrupts pacing waits.
func WithShutdown(ctx context.Context) DispatcherOption {
	return func(d *Dispatcher) { d.shutdown = ctx }
}

// WithSleep replaces the pacing wait.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) { d.sleep = fn }
}

// WithStateObserver registers fn for state transitions.
func WithStateObserver(fn StateObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = fn }
}

// WithBatchObserver registers fn for finished batches.
func WithBatchObserver(fn BatchObserver) DispatcherOption {
	return func(d *Dispatcher) { d.finished = fn }
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(backend Backend, cfg DispatcherConfig, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		backend:  backend,
		cfg:      cfg,
		shutdown: context.Background(),
		sleep:    sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type batchRun struct {
	d     *Dispatcher
	id    string
	state BatchState
}

func (r *batchRun) transition(ctx context.Context, to BatchState) {
	from := r.state
	r.state = to
	logging.FromContext(ctx).Debug("batch state", "from", from.String(), "to", to.String())
	if r.d.observer != nil {
		r.d.observer(r.id, from, to)
	}
}

// SendBatch sends the request's content to every contact row in its file.
//
// Read and validation failures are returned as-is. A failure after sending
// began is returned as *BatchError wrapping the row's error; errors that are
// not *Error are classified as BATCH_ROW_FAILED.
func (d *Dispatcher) SendBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	result, err := d.sendBatch(ctx, req)
	if d.finished != nil {
		d.finished(result, err)
	}
	return result, err
}

func (d *Dispatcher) sendBatch(ctx context.Context, req BatchRequest) (*BatchResult, error) {
	run := &batchRun{d: d, id: uuid.NewString(), state: StateIdle}
	ctx = logging.WithBatch(context.WithoutCancel(ctx), run.id)
	logger := logging.FromContext(ctx)

	run.transition(ctx, StateReading)
	rows, err := ParseContacts(ctx, req.Filename, req.Data)
	if err != nil {
		run.transition(ctx, StateFailed)
		return nil, err
	}

	var media *MediaPayload
	if req.Media != nil {
		dataURL, err := req.Media.DataURL()
		if err != nil {
			run.transition(ctx, StateFailed)
			return nil, err
		}
		media = &MediaPayload{Filename: req.Media.Filename, DataURL: dataURL}
	}

	started := []any{"rows", len(rows), "file", req.Filename, "media", media != nil}
	if client, ok := ClientFromContext(ctx); ok {
		started = append(started, "client_ip", client.IP)
	}
	logger.Info("batch started", started...)
	start := time.Now()

	session := BeginBatch(d.backend)
	run.transition(ctx, StateSending)

	for i, row := range rows {
		if err := d.sendRow(ctx, session, row, req.Template, media); err != nil {
			return nil, d.abort(ctx, run, session, row, err)
		}
		logger.Debug("row sent", "line", row.Line)

		if i < len(rows)-1 && d.cfg.Pacing > 0 {
			if err := d.sleep(d.shutdown, d.cfg.Pacing); err != nil {
				return nil, d.abort(ctx, run, session, rows[i+1], ErrShuttingDown.Wrap(err))
			}
		}
	}

	run.transition(ctx, StateLoggingOut)
	result := &BatchResult{BatchID: run.id, RowsProcessed: len(rows)}
	if err := session.EndBatch(ctx); err != nil {
		result.LogoutWarning = err.Error()
		logger.Warn("logout after batch failed", "error", err)
	}
	run.transition(ctx, StateDone)

	logger.Info("batch finished",
		"rows", result.RowsProcessed,
		"logout_ok", result.LogoutWarning == "",
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}

func (d *Dispatcher) sendRow(ctx context.Context, session *BatchSession, row ContactRow, tmpl string, media *MediaPayload) error {
	to, err := NormalizeWhatsAppID(row.Number, d.cfg.CountryCode)
	if err != nil {
		return err
	}

	text, err := RenderMessage(tmpl, row, row.RowRef())
	if err != nil {
		return err
	}
	text = strings.TrimSpace(text)

	if media != nil {
		payload := *media
		payload.Caption = text
		return session.SendMedia(ctx, to, payload)
	}
	if text == "" {
		return ErrEmptyRowMessage.WithDetails(row.RowRef())
	}
	return session.SendText(ctx, to, text)
}

// abort closes the session and builds the returned error. row is the first
// row that was not delivered.
func (d *Dispatcher) abort(ctx context.Context, run *batchRun, session *BatchSession, row ContactRow, cause error) error {
	logger := logging.FromContext(ctx)
	logger.Warn("batch row failed", "line", row.Line, "sent", session.Sent(), "error", cause)

	run.transition(ctx, StateLoggingOut)
	logoutErr := session.EndBatch(ctx)
	if logoutErr != nil {
		logger.Warn("logout after failed batch also failed", "error", logoutErr)
	}
	run.transition(ctx, StateFailed)

	var appErr *Error
	if !errors.As(cause, &appErr) {
		cause = ErrBatchRowFailed.Wrap(cause)
	}
	return &BatchError{
		BatchID:       run.id,
		RowsProcessed: session.Sent(),
		FailedLine:    row.Line,
		LogoutErr:     logoutErr,
		Err:           cause,
	}
}

// SendSingle sends message, or media captioned with message, to one phone
// number. The backend closes its session after the send. It returns the
// normalized identifier.
func (d *Dispatcher) SendSingle(ctx context.Context, phone, message string, media *Media) (string, error) {
	to, err := NormalizeWhatsAppID(phone, d.cfg.CountryCode)
	if err != nil {
		return "", err
	}

	var payload *MediaPayload
	if media != nil {
		dataURL, err := media.DataURL()
		if err != nil {
			return "", err
		}
		payload = &MediaPayload{Filename: media.Filename, Caption: message, DataURL: dataURL}
	} else if strings.TrimSpace(message) == "" {
		return "", ErrMissingContent
	}

	if err := SendOnce(ctx, d.backend, to, message, payload); err != nil {
		return "", err
	}
	logging.FromContext(ctx).Info("single send delivered", "to", to, "media", media != nil)
	return to, nil
}
