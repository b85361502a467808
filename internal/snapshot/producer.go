package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

// ErrProducerTimeout marks a snapshot that did not complete within the configured budget.
var ErrProducerTimeout = errors.New("snapshot producer timed out")

// runner executes the extraction command and returns its combined output.
type runner func(ctx context.Context, name string, args []string, env []string) ([]byte, error)

// ScriptParams configures a ScriptProducer.
type ScriptParams struct {
	Logger        *logger.Logger
	Name          string
	Command       string
	OutputPath    string
	Env           []string
	Timeout       time.Duration
	RetryAttempts uint64
	RetryBase     time.Duration
	RetryCap      time.Duration
}

// ScriptProducer runs an ERP extraction command and parses the CSV file it writes.
type ScriptProducer struct {
	logg     *logger.Logger
	name     string
	argv     []string
	output   string
	env      []string
	timeout  time.Duration
	attempts uint64
	base     time.Duration
	cap      time.Duration
	run      runner
	readFile func(string) ([]byte, error)
}

// NewScriptProducer validates params and builds a producer.
func NewScriptProducer(params ScriptParams) (*ScriptProducer, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	argv := strings.Fields(params.Command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("command required")
	}
	if strings.TrimSpace(params.OutputPath) == "" {
		return nil, fmt.Errorf("output path required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	base := params.RetryBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	capDur := params.RetryCap
	if capDur <= 0 {
		capDur = 5 * time.Second
	}
	name := params.Name
	if name == "" {
		name = argv[len(argv)-1]
	}
	return &ScriptProducer{
		logg:     params.Logger,
		name:     name,
		argv:     argv,
		output:   params.OutputPath,
		env:      params.Env,
		timeout:  timeout,
		attempts: params.RetryAttempts,
		base:     base,
		cap:      capDur,
		run:      execRunner,
		readFile: os.ReadFile,
	}, nil
}

func execRunner(ctx context.Context, name string, args []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}

func (p *ScriptProducer) backoff() retry.Backoff {
	b := retry.NewExponential(p.base)
	b = retry.WithCappedDuration(p.cap, b)
	return retry.WithMaxRetries(p.attempts, b)
}

// Fetch runs the command under the producer timeout, retrying transient failures with
// capped exponential backoff, and returns the raw output file.
func (p *ScriptProducer) Fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	ctx = p.logg.WithField(ctx, "producer", p.name)
	attempt := 0
	var data []byte
	err := retry.Do(ctx, p.backoff(), func(ctx context.Context) error {
		attempt++
		out, err := p.run(ctx, p.argv[0], p.argv[1:], p.env)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.logg.Warn(p.logg.WithFields(ctx, map[string]any{
				"attempt": attempt,
				"error":   err.Error(),
				"output":  truncate(string(out), 512),
			}), "snapshot command failed")
			return retry.RetryableError(fmt.Errorf("run %s: %w", p.name, err))
		}

		raw, err := p.readFile(p.output)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read %s output: %w", p.name, err))
		}
		data = raw
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %w", ErrProducerTimeout, p.timeout, err)
		}
		return nil, err
	}
	return data, nil
}

// ProduceOrders implements OrderProducer.
func (p *ScriptProducer) ProduceOrders(ctx context.Context) ([]RawOrderLine, error) {
	data, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseOrders(bytes.NewReader(data))
}

// ProduceStock implements StockProducer.
func (p *ScriptProducer) ProduceStock(ctx context.Context) ([]StockLine, error) {
	data, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseStock(bytes.NewReader(data))
}

// ProduceArticles implements ArticleProducer.
func (p *ScriptProducer) ProduceArticles(ctx context.Context) ([]ArticleRow, error) {
	data, err := p.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return ParseArticles(bytes.NewReader(data))
}

// FileProducer replays snapshots from files already on disk.
type FileProducer struct {
	Path string
}

func (f FileProducer) ProduceOrders(ctx context.Context) ([]RawOrderLine, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fh.Close()
	return ParseOrders(fh)
}

func (f FileProducer) ProduceStock(ctx context.Context) ([]StockLine, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", f.Path, err)
	}
	defer fh.Close()
	return ParseStock(fh)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
