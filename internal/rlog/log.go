// Package rlog configures the daemon's structured logger. Every log line
// the daemon emits carries an "event" field holding the bracketed category
// tag this system has always used on the console (e.g. "[NOVA ROTA]"),
// kept as the field's value rather than invented anew, so console output
// stays recognizable.
package rlog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Event tags: the console-output categories unchanged, plus EventInit for
// startup lines.
const (
	EventNewRoute       = "[NOVA ROTA]"
	EventRouteImproved  = "[ROTA MELHORADA]"
	EventRouteRemoved   = "[ROTA REMOVIDA]"
	EventFailureFound   = "[FALHA DETECTADA]"
	EventMessageRecv    = "[MENSAGEM RECEBIDA]"
	EventMessageRouted  = "[MENSAGEM ROTEADA]"
	EventAnnounce       = "[ANÚNCIO]"
	EventError          = "[ERRO]"
	EventInit           = "[INIT]"
)

// New builds the daemon's root logger, writing plain-text lines to stdout
// at the given level.
func New(level string) (*logrus.Logger, error) {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l.SetLevel(lvl)
	return l, nil
}

// Event returns a logger entry tagged with the given event category, the
// idiom every daemon component uses to log.
func Event(log logrus.FieldLogger, event string) *logrus.Entry {
	return log.WithField("event", event)
}
