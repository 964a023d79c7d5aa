// Package diag carries the runtime's internal diagnostics logger. Output is
// discarded unless the LIO_DEBUG environment variable is set.
package diag

import (
	"io"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"component", "op"},
	})
	if os.Getenv("LIO_DEBUG") != "" {
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetOutput(io.Discard)
		log.SetLevel(logrus.ErrorLevel)
	}
}

func Debugf(component string, format string, args ...interface{}) {
	log.WithField("component", component).Debugf(format, args...)
}

func Errorf(component string, format string, args ...interface{}) {
	log.WithField("component", component).Errorf(format, args...)
}

// Fatalf writes to the standard error channel unconditionally and is used by
// the fatal error sink right before the process terminates.
func Fatalf(component string, format string, args ...interface{}) {
	out := logrus.New()
	out.SetFormatter(&nested.Formatter{
		HideKeys:    true,
		FieldsOrder: []string{"component", "op"},
	})
	out.SetOutput(os.Stderr)
	out.WithField("component", component).Errorf(format, args...)
}
