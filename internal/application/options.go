package application

import (
	"time"

	"bcchrates-service/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type IDGen interface {
	NewID() string
}

type defaultIDGen struct{}

func (defaultIDGen) NewID() string { return uuid.NewString() }

type settings struct {
	clock Clock
	idgen IDGen
	log   *zap.Logger
	rec   Recorder
	loc   *time.Location
}

type Option func(*settings)

func WithClock(c Clock) Option             { return func(s *settings) { s.clock = c } }
func WithIDGen(g IDGen) Option             { return func(s *settings) { s.idgen = g } }
func WithLogger(l *zap.Logger) Option      { return func(s *settings) { s.log = l } }
func WithRecorder(r Recorder) Option       { return func(s *settings) { s.rec = r } }
func WithLocation(l *time.Location) Option { return func(s *settings) { s.loc = l } }

func newSettings(opts []Option) settings {
	s := settings{}
	for _, opt := range opts {
		opt(&s)
	}
	if s.clock == nil {
		s.clock = realClock{}
	}
	if s.idgen == nil {
		s.idgen = defaultIDGen{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.rec == nil {
		s.rec = nopRecorder{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// today is the current calendar date in the configured location.
func (s settings) today() time.Time { return domain.Day(s.clock.Now().In(s.loc)) }
