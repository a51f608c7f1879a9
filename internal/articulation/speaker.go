package articulation

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// Speaker performs the single outbound speak side effect of a tick.
type Speaker interface {
	Speak(message string) error
}

// SpeakPrefix marks mind-to-user lines on the console.
const SpeakPrefix = "[AI -> User] "

// ConsoleSpeaker prints each message as one bright green line.
type ConsoleSpeaker struct {
	mu    sync.Mutex
	out   io.Writer
	paint *color.Color
}

// NewConsoleSpeaker writes to out, or stdout when out is nil.
func NewConsoleSpeaker(out io.Writer) *ConsoleSpeaker {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSpeaker{out: out, paint: color.New(color.FgHiGreen)}
}

// Speak prints message. Blank messages are dropped.
func (s *ConsoleSpeaker) Speak(message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "\n%s\n\n", s.paint.Sprint(SpeakPrefix+message))
	return err
}
