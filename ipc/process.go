package ipc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/vpd/fault"
	"github.com/pithecene-io/vpd/log"
	"github.com/pithecene-io/vpd/metrics"
	"github.com/pithecene-io/vpd/types"
)

// DefaultTimeout bounds one parser invocation.
const DefaultTimeout = 30 * time.Second

// maxStderr caps the parser stderr kept for diagnostics.
const maxStderr = 4096

// ProcessConfig configures a ProcessParser.
type ProcessConfig struct {
	// Path is the parser binary (required).
	Path string
	// Args are passed before any request data.
	Args []string
	// Env is appended to the inherited environment.
	Env []string
	// Timeout bounds each invocation (default 30s).
	Timeout time.Duration
	// Logger is optional.
	Logger *log.Logger
	// Collector is optional.
	Collector *metrics.Collector
}

// ProcessParser serves EEPROM reads, writes and full parses by spawning
// the parser binary once per request.
type ProcessParser struct {
	path      string
	args      []string
	env       []string
	timeout   time.Duration
	logger    *log.Logger
	collector *metrics.Collector
	newID     func() string
}

// NewProcessParser validates cfg and applies defaults.
func NewProcessParser(cfg ProcessConfig) (*ProcessParser, error) {
	if cfg.Path == "" {
		return nil, errors.New("ipc: parser path is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	return &ProcessParser{
		path:      cfg.Path,
		args:      cfg.Args,
		env:       cfg.Env,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		collector: cfg.Collector,
		newID:     func() string { return uuid.New().String() },
	}, nil
}

// ReadKeyword returns one keyword from the EEPROM at hwPath.
func (p *ProcessParser) ReadKeyword(ctx context.Context, hwPath types.Path, params types.ReadParams) (types.BinaryVector, error) {
	resp, err := p.call(ctx, &Request{Op: OpRead, Path: hwPath, Record: params.Record, Keyword: params.Keyword})
	if err != nil {
		return nil, fault.ReadFailure(hwPath, err)
	}
	if resp.Error != nil {
		return nil, responseFault(OpRead, hwPath, resp.Error)
	}
	return resp.Value, nil
}

// WriteKeyword stores one keyword on the EEPROM at hwPath and returns the
// number of bytes written.
func (p *ProcessParser) WriteKeyword(ctx context.Context, hwPath types.Path, params types.WriteParams) (int, error) {
	resp, err := p.call(ctx, &Request{
		Op:      OpWrite,
		Path:    hwPath,
		Record:  params.Record,
		Keyword: params.Keyword,
		Value:   params.Value,
	})
	if err != nil {
		return -1, fault.WriteFailure(hwPath, err)
	}
	if resp.Error != nil {
		return -1, responseFault(OpWrite, hwPath, resp.Error)
	}
	return resp.BytesWritten, nil
}

// Parse decodes the whole EEPROM at hwPath.
func (p *ProcessParser) Parse(ctx context.Context, hwPath types.Path) (types.ParsedVPD, error) {
	resp, err := p.call(ctx, &Request{Op: OpCollect, Path: hwPath})
	if err != nil {
		return nil, fault.ReadFailure(hwPath, err)
	}
	if resp.Error != nil {
		return nil, responseFault(OpCollect, hwPath, resp.Error)
	}
	if resp.VPD == nil {
		return types.ParsedVPD{}, nil
	}
	return resp.VPD, nil
}

// call runs the parser for one request.
func (p *ProcessParser) call(ctx context.Context, req *Request) (*Response, error) {
	req.Version = ProtocolVersion
	req.ID = p.newID()

	payload, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.path, p.args...)
	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}

	var stdin bytes.Buffer
	if err := NewFrameEncoder(&stdin).WriteFrame(payload); err != nil {
		return nil, err
	}
	cmd.Stdin = &stdin

	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: maxStderr}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		p.collector.IncParserLaunchFailure()
		p.logger.Error("parser launch failed", map[string]any{
			"parser": p.path,
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("failed to start parser: %w", err)
	}
	p.collector.IncParserLaunchSuccess()

	waitErr := cmd.Wait()
	p.collector.ObserveOperation("parser_"+string(req.Op), time.Since(start))

	if ctx.Err() != nil {
		return nil, fmt.Errorf("parser %s %s: %w", req.Op, req.Path, ctx.Err())
	}
	if waitErr != nil {
		p.logger.Warn("parser exited with error", map[string]any{
			"op":        string(req.Op),
			"path":      req.Path,
			"exit_code": exitCode(waitErr),
			"stderr":    strings.TrimSpace(stderr.String()),
		})
		// A response frame may still explain the failure.
		if stdout.Len() == 0 {
			return nil, fmt.Errorf("parser exited: %w", waitErr)
		}
	}

	frame, err := NewFrameDecoder(&stdout).ReadFrame()
	if err != nil {
		p.collector.IncIPCDecodeErrors()
		if errors.Is(err, io.EOF) {
			return nil, &FrameError{Kind: FrameErrorPartial, Msg: "parser produced no response", Err: err}
		}
		return nil, err
	}
	resp, err := DecodeResponse(frame)
	if err != nil {
		p.collector.IncIPCDecodeErrors()
		return nil, err
	}
	if resp.ID != req.ID {
		p.collector.IncIPCDecodeErrors()
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("response id %q does not match request %q", resp.ID, req.ID),
		}
	}
	return resp, nil
}

// responseFault classifies a parser-reported error.
func responseFault(op Op, path types.Path, re *ResponseError) error {
	var cause error = errors.New(re.Message)
	if re.Errno != 0 {
		cause = fmt.Errorf("%s: %w", re.Message, syscall.Errno(re.Errno))
	}

	switch re.Kind {
	case ErrorKindParse:
		return fault.InvalidEeprom(path, cause)
	case ErrorKindBusy:
		return fault.DeviceBusy(path, cause)
	case ErrorKindNotFound:
		return fault.NotFound(string(op), path)
	case ErrorKindIO:
		if op == OpWrite {
			return fault.WriteFailure(path, cause)
		}
		return fault.ReadFailure(path, cause)
	default:
		return fault.Internal(string(op), path, cause)
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus()
		}
	}
	return -1
}

// limitedBuffer keeps the first max bytes written and discards the rest.
type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	return b.buf.String()
}
