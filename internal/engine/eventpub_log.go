package engine

import "github.com/rs/zerolog"

// LogPublisher writes engine events to a structured logger at debug level.
type LogPublisher struct{ log zerolog.Logger }

func NewLogPublisher(l zerolog.Logger) LogPublisher { return LogPublisher{log: l} }

func (p LogPublisher) Publish(e Event) {
	z := p.log.Debug().Str("event", e.Name).Str("model_id", e.ModelID)
	for k, v := range e.Fields {
		z = z.Interface(k, v)
	}
	z.Msg("engine event")
}
