package wms

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Verdict is the tri-state answer to "does this URL speak WMS".
type Verdict int

const (
	Confirmed Verdict = iota
	Rejected
	// Inconclusive means the network failed before any answer arrived. It
	// must never be handled like Rejected.
	Inconclusive
)

func (v Verdict) String() string {
	switch v {
	case Confirmed:
		return "confirmed"
	case Rejected:
		return "rejected"
	case Inconclusive:
		return "inconclusive"
	default:
		return fmt.Sprintf("Verdict(%d)", int(v))
	}
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(text []byte) error {
	for _, candidate := range []Verdict{Confirmed, Rejected, Inconclusive} {
		if candidate.String() == string(text) {
			*v = candidate
			return nil
		}
	}

	return fmt.Errorf("unknown verdict %q", text)
}

// Probe checks candidate URLs against WMS servers. It holds no per-call
// state and can be shared between goroutines.
type Probe struct {
	fetcher Fetcher
	parsers []Parser
	logger  *zap.Logger
}

// DefaultParsers is the version preference order: 1.3.0 first, then the
// more widely deployed 1.1.1.
func DefaultParsers() []Parser {
	return []Parser{Parser130{}, Parser111{}}
}

// NewProbe creates a Probe. Without parsers, DefaultParsers is used.
func NewProbe(fetcher Fetcher, logger *zap.Logger, parsers ...Parser) *Probe {
	if len(parsers) == 0 {
		parsers = DefaultParsers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Probe{
		fetcher: fetcher,
		parsers: parsers,
		logger:  logger.With(zap.String("component", "probe")),
	}
}

// IsWMS requests capabilities for each version in preference order. A
// timeout ends the probe as Inconclusive right away. Any other failure moves
// on to the next version; when none is left the URL is Rejected.
func (p *Probe) IsWMS(ctx context.Context, rawURL string) Verdict {
	for _, parser := range p.parsers {
		version := parser.Version()
		outcome := p.fetcher.Fetch(ctx, BuildCapabilitiesURL(rawURL, &version))

		log := p.logger.With(
			zap.String("url", rawURL),
			zap.String("version", version),
			zap.Stringer("fetch", outcome.Kind),
		)

		switch outcome.Kind {
		case FetchTimeout:
			log.Info("capabilities request timed out")
			return Inconclusive
		case FetchSuccess:
			parsed := parser.Parse(outcome.Body)
			if parsed == ValidCapabilities {
				log.Debug("capabilities confirmed")
				return Confirmed
			}
			log.Debug("capabilities rejected", zap.Stringer("parse", parsed))
		default:
			log.Debug("capabilities request failed", zap.Int("status", outcome.Status), zap.Error(outcome.Err))
		}
	}

	return Rejected
}
