package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrorText is shown in place of a response that could not be completed
const ErrorText = "An error occurred while processing your message."

const defaultChunkSize = 4096

// Snapshot is the accumulated response at one point in the stream
type Snapshot struct {
	Content string
	Final   bool
	Failed  bool
}

// Result describes how a stream ended
type Result struct {
	Content string
	Failed  bool
	Err     error
	Chunks  int
}

// Assembler turns an incrementally delivered body into successive
// snapshots of the full response text
type Assembler struct {
	coalesce  time.Duration
	chunkSize int
	now       func() time.Time
	errorText func(error) string
}

type Option func(*Assembler)

// WithCoalesce limits partial snapshots to one per interval. The final
// snapshot is always delivered.
func WithCoalesce(d time.Duration) Option {
	return func(a *Assembler) { a.coalesce = d }
}

func WithChunkSize(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.chunkSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Assembler) { a.now = now }
}

// WithErrorText customises the text of a failed final snapshot
func WithErrorText(fn func(error) string) Option {
	return func(a *Assembler) { a.errorText = fn }
}

func New(opts ...Option) *Assembler {
	a := &Assembler{
		chunkSize: defaultChunkSize,
		now:       time.Now,
		errorText: func(error) string { return ErrorText },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble reads body to the end. emit receives a partial snapshot after
// each chunk and exactly one final snapshot. On a read error or
// cancellation the final snapshot carries the error text and Failed.
func (a *Assembler) Assemble(ctx context.Context, body io.Reader, emit func(Snapshot)) Result {
	if emit == nil {
		emit = func(Snapshot) {}
	}

	var (
		acc      strings.Builder
		dec      decoder
		chunks   int
		lastEmit time.Time
	)
	buf := make([]byte, a.chunkSize)

	fail := func(err error) Result {
		text := a.errorText(err)
		emit(Snapshot{Content: text, Final: true, Failed: true})
		return Result{Content: text, Failed: true, Err: err, Chunks: chunks}
	}

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		n, err := body.Read(buf)
		if n > 0 {
			chunks++
			acc.WriteString(dec.decode(buf[:n]))
			if a.coalesce <= 0 || a.now().Sub(lastEmit) >= a.coalesce {
				emit(Snapshot{Content: acc.String()})
				lastEmit = a.now()
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			return fail(err)
		}
	}
	acc.WriteString(dec.flush())
	content := acc.String()
	emit(Snapshot{Content: content, Final: true})
	return Result{Content: content, Chunks: chunks}
}

// Chunks runs Assemble in a goroutine and delivers snapshots on the
// returned channel, which is closed after the final snapshot. Once ctx is
// cancelled undelivered snapshots are dropped.
func (a *Assembler) Chunks(ctx context.Context, body io.Reader) <-chan Snapshot {
	ch := make(chan Snapshot, 1)
	go func() {
		defer close(ch)
		a.Assemble(ctx, body, func(s Snapshot) {
			select {
			case ch <- s:
			case <-ctx.Done():
			}
		})
	}()
	return ch
}

// decoder converts byte chunks to text, holding back an incomplete
// multi-byte sequence at the end of a chunk until the next one arrives.
// Invalid bytes become U+FFFD.
type decoder struct {
	carry []byte
}

func (d *decoder) decode(chunk []byte) string {
	data := append(d.carry, chunk...)
	d.carry = nil

	cut := len(data)
	// A rune is at most 4 bytes, so only the last 3 can be an unfinished prefix
	for i := len(data) - 1; i >= 0 && i >= len(data)-(utf8.UTFMax-1); i-- {
		if utf8.RuneStart(data[i]) {
			if !utf8.FullRune(data[i:]) {
				cut = i
			}
			break
		}
	}
	if cut < len(data) {
		d.carry = append([]byte(nil), data[cut:]...)
	}
	return strings.ToValidUTF8(string(data[:cut]), "�")
}

func (d *decoder) flush() string {
	if len(d.carry) == 0 {
		return ""
	}
	d.carry = nil
	return "�"
}
