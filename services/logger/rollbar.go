package logsvc

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/trezcool/jarida/core"
	"github.com/trezcool/jarida/core/user"
)

// RollbarLogger reports to Rollbar (when a token is configured, outside debug) and writes structured logs with zerolog.
type RollbarLogger struct {
	zl      zerolog.Logger
	rollbar bool
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger writes to `out`, and to a rotating file when conf.Log.File is set.
func NewRollbarLogger(out io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	enabled := conf.RollbarToken != "" && !conf.Debug
	rollbar.SetEnabled(enabled)

	if conf.Debug {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	writers := []io.Writer{out}
	if conf.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(conf.Log.File), 0o750); err == nil {
			writers = append(writers, &lumberjack.Logger{
				Filename:   conf.Log.File,
				MaxSize:    conf.Log.MaxSizeMB,
				MaxBackups: conf.Log.MaxBackups,
				Compress:   true,
			})
		}
	}

	level, err := zerolog.ParseLevel(conf.Log.Level)
	if err != nil || conf.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Str("app", conf.AppName).
		Str("env", conf.Env).
		Logger()

	return &RollbarLogger{zl: zl, rollbar: enabled}
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.rollbar = enabled
	rollbar.SetEnabled(enabled)
}

// Named returns a logger tagging every entry with the component name.
func (l *RollbarLogger) Named(component string) *RollbarLogger {
	return &RollbarLogger{zl: l.zl.With().Str("component", component).Logger(), rollbar: l.rollbar}
}

// Zerolog exposes the underlying logger (for request logging).
func (l *RollbarLogger) Zerolog() zerolog.Logger { return l.zl }

// expected fmt: msg | error, map[string]interface{}, user.User
func (l *RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		// set logged in User
		if usr, ok := arg.(user.User); ok {
			if !usrSet { // only set one User
				if l.rollbar {
					rollbar.SetPerson(usr.ID, usr.Username, usr.Email)
				}
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet && l.rollbar {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l *RollbarLogger) print(evt *zerolog.Event, msg string, args []interface{}) {
	for i, arg := range args {
		switch v := arg.(type) {
		case error:
			evt = evt.AnErr("error", v).Str("trace", fmt.Sprintf("%+v", v))
		case map[string]interface{}:
			evt = evt.Fields(v)
		case user.User:
			evt = evt.Str("user_id", v.ID)
		default:
			evt = evt.Interface(fmt.Sprintf("arg%d", i), v)
		}
	}
	evt.Msg(msg)
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	if l.rollbar {
		rollbar.Debug(l.prepare(msg, args)...)
	}
	l.print(l.zl.Debug(), msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	if l.rollbar {
		rollbar.Info(l.prepare(msg, args)...)
	}
	l.print(l.zl.Info(), msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	if l.rollbar {
		rollbar.Warning(l.prepare(msg, args)...)
	}
	l.print(l.zl.Warn(), msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	if l.rollbar {
		rollbar.Error(l.prepare(msg, args)...)
	}
	l.print(l.zl.Error(), msg, args)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	if l.rollbar {
		rollbar.Critical(l.prepare(msg, args)...)
		rollbar.Wait()
	}
	l.print(l.zl.Fatal(), msg, args)
}

// Close flushes pending Rollbar reports.
func (l *RollbarLogger) Close() {
	if l.rollbar {
		rollbar.Close()
	}
}
