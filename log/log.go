package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level defines logger severity
type Level uint8

// Logger severity levels
const (
	DebugLvl Level = iota
	InfoLvl
	WarnLvl
	ErrorLvl
)

var levelNames = map[Level]string{
	DebugLvl: "DEBUG",
	InfoLvl:  "INFO",
	WarnLvl:  "WARN",
	ErrorLvl: "ERROR",
}

// SubLogger defines a sub logger for an individual subsystem so output can be
// identified and filtered per concern
type SubLogger struct {
	name  string
	level Level
}

// Predefined subsystem loggers
var (
	Global    = NewSubLogger("GLOBAL")
	ExchSys   = NewSubLogger("EXCHANGE")
	OrderBook = NewSubLogger("ORDERBOOK")
	ConfigSys = NewSubLogger("CONFIG")
	StoreSys  = NewSubLogger("STORE")
	BotSys    = NewSubLogger("BOT")
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stderr
	// clock is swapped out in tests
	clock = time.Now
)

// NewSubLogger returns a sub logger tagged with name. Bots register their own
// instance so run output carries the bot label and config name.
func NewSubLogger(name string) *SubLogger {
	return &SubLogger{name: strings.ToUpper(name)}
}

// SetLevel sets the minimum severity emitted by the sub logger
func (s *SubLogger) SetLevel(l Level) {
	mu.Lock()
	s.level = l
	mu.Unlock()
}

// SetOutput redirects all logger output, primarily for tests and file capture
func SetOutput(w io.Writer) {
	mu.Lock()
	output = w
	mu.Unlock()
}

func write(s *SubLogger, l Level, msg string) {
	mu.Lock()
	defer mu.Unlock()
	if s == nil || l < s.level {
		return
	}
	fmt.Fprintf(output, "%s [%s] %s: %s\n",
		clock().UTC().Format("2006-01-02 15:04:05"),
		levelNames[l],
		s.name,
		msg)
}

// Debugf logs a formatted debug message to the designated sub logger
func Debugf(s *SubLogger, format string, a ...interface{}) {
	write(s, DebugLvl, fmt.Sprintf(format, a...))
}

// Debugln logs a debug message to the designated sub logger
func Debugln(s *SubLogger, a ...interface{}) {
	write(s, DebugLvl, fmt.Sprint(a...))
}

// Infof logs a formatted info message to the designated sub logger
func Infof(s *SubLogger, format string, a ...interface{}) {
	write(s, InfoLvl, fmt.Sprintf(format, a...))
}

// Infoln logs an info message to the designated sub logger
func Infoln(s *SubLogger, a ...interface{}) {
	write(s, InfoLvl, fmt.Sprint(a...))
}

// Warnf logs a formatted warning message to the designated sub logger
func Warnf(s *SubLogger, format string, a ...interface{}) {
	write(s, WarnLvl, fmt.Sprintf(format, a...))
}

// Warnln logs a warning message to the designated sub logger
func Warnln(s *SubLogger, a ...interface{}) {
	write(s, WarnLvl, fmt.Sprint(a...))
}

// Errorf logs a formatted error message to the designated sub logger
func Errorf(s *SubLogger, format string, a ...interface{}) {
	write(s, ErrorLvl, fmt.Sprintf(format, a...))
}

// Errorln logs an error message to the designated sub logger
func Errorln(s *SubLogger, a ...interface{}) {
	write(s, ErrorLvl, fmt.Sprint(a...))
}
