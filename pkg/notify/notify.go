package notify

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync/atomic"
)

// Result is the outcome of a single send. Error is empty on success.
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher delivers a text notification to a phone number.
type Dispatcher interface {
	Send(ctx context.Context, phone, message string) Result
}

var nonDigits = regexp.MustCompile(`\D`)

// NormalizePhone strips formatting and a leading 91 country code from
// 12-digit numbers, leaving the national number.
func NormalizePhone(phone string) string {
	digits := nonDigits.ReplaceAllString(phone, "")
	if len(digits) == 12 && strings.HasPrefix(digits, "91") {
		return digits[2:]
	}
	return digits
}

func failure(format string, args ...interface{}) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Simulator logs messages instead of delivering them.
type Simulator struct {
	counter atomic.Int64
}

func NewSimulator() *Simulator {
	return &Simulator{}
}

func (s *Simulator) Send(_ context.Context, phone, message string) Result {
	n := s.counter.Add(1)
	log.Printf("SMS (simulated) to %s:\n%s", phone, message)
	return Result{Success: true, ID: fmt.Sprintf("simulated-%d", n)}
}

// Fallback tries each dispatcher in turn until one succeeds.
type Fallback struct {
	dispatchers []Dispatcher
}

func NewFallback(dispatchers ...Dispatcher) *Fallback {
	return &Fallback{dispatchers: dispatchers}
}

func (f *Fallback) Send(ctx context.Context, phone, message string) Result {
	var errs []string
	for _, d := range f.dispatchers {
		res := d.Send(ctx, phone, message)
		if res.Success {
			return res
		}
		errs = append(errs, res.Error)
	}
	if len(errs) == 0 {
		return failure("no dispatcher configured")
	}
	return failure("all dispatchers failed: %s", strings.Join(errs, "; "))
}
