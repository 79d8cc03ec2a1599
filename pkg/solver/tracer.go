package solver

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

type SearchPosition interface {
	Variables() []Variable
	Conflicts() []AppliedConstraint
}

type Tracer interface {
	Trace(p SearchPosition)
}

type DefaultTracer struct{}

func (DefaultTracer) Trace(_ SearchPosition) {
}

type LoggingTracer struct {
	Writer io.Writer
}

func (t LoggingTracer) Trace(p SearchPosition) {
	fmt.Fprintf(t.Writer, "---\nVariables:\n")
	for _, i := range p.Variables() {
		fmt.Fprintf(t.Writer, "- %s\n", i.Identifier())
	}
	fmt.Fprintf(t.Writer, "Conflicts:\n")
	for _, a := range p.Conflicts() {
		fmt.Fprintf(t.Writer, "- %s\n", a)
	}
}

// LogrusTracer reports every core reduction at debug level.
type LogrusTracer struct {
	Logger logrus.FieldLogger
}

func (t LogrusTracer) Trace(p SearchPosition) {
	conflicts := p.Conflicts()
	s := make([]string, len(conflicts))
	for i, a := range conflicts {
		s[i] = a.String()
	}
	t.Logger.WithField("size", len(s)).Debugf("core reduced: %v", s)
}
