// Package publish sends strategy results to NATS
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mpapenbr/racestrategy/log"
	"github.com/mpapenbr/racestrategy/pkg/strategy"
)

const DefaultSubject = "racestrategy.results"

const (
	TypeReport     = "report"
	TypeComparison = "comparison"
)

type (
	// Conn is the part of *nats.Conn used by the publisher
	Conn interface {
		Publish(subj string, data []byte) error
	}
	// KeyValue is the part of jetstream.KeyValue used to keep the latest result per track
	KeyValue interface {
		Put(ctx context.Context, key string, value []byte) (uint64, error)
	}
	Envelope struct {
		Type   string          `json:"type"`
		Track  string          `json:"track"`
		SentAt time.Time       `json:"sentAt"`
		Data   json.RawMessage `json:"data"`
	}
	Option    func(*Publisher)
	Publisher struct {
		conn    Conn
		kv      KeyValue
		subject string
		l       *log.Logger
		now     func() time.Time
	}
)

func WithSubject(subject string) Option {
	return func(p *Publisher) {
		if subject != "" {
			p.subject = subject
		}
	}
}

// WithKeyValue stores the latest report per track in the given bucket
func WithKeyValue(kv KeyValue) Option {
	return func(p *Publisher) {
		p.kv = kv
	}
}

func WithLogger(l *log.Logger) Option {
	return func(p *Publisher) {
		p.l = l
	}
}

func New(conn Conn, opts ...Option) *Publisher {
	ret := &Publisher{
		conn:    conn,
		subject: DefaultSubject,
		l:       log.Default().Named("publish"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Connect opens a NATS connection named after the application
func Connect(url string, opts ...nats.Option) (*nats.Conn, error) {
	opts = append([]nats.Option{
		nats.Name("racestrategy"),
		nats.MaxReconnects(-1),
	}, opts...)
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return conn, nil
}

// Subject returns the subject for results of the given track.
// Characters not allowed in a subject token are replaced.
func Subject(base, track string) string {
	token := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '.', '*', '>', '\t':
			return '_'
		default:
			return r
		}
	}, strings.ToLower(strings.TrimSpace(track)))
	if token == "" {
		token = "unknown"
	}
	return base + "." + token
}

func (p *Publisher) PublishReport(ctx context.Context, r *strategy.Report) error {
	data, err := p.envelope(TypeReport, r.Track.Name, r)
	if err != nil {
		return err
	}
	subject := Subject(p.subject, r.Track.Name)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish report %s: %w", r.ID, err)
	}
	if p.kv != nil {
		key := Subject("report", r.Track.Name)
		if _, err := p.kv.Put(ctx, key, data); err != nil {
			return fmt.Errorf("store report %s: %w", r.ID, err)
		}
	}
	p.l.Debug("report published",
		log.String("subject", subject),
		log.String("id", r.ID),
		log.Int("size", len(data)))
	return nil
}

//nolint:whitespace // editor/linter issue
func (p *Publisher) PublishComparison(
	ctx context.Context,
	track string,
	c *strategy.Comparison,
) error {
	data, err := p.envelope(TypeComparison, track, c)
	if err != nil {
		return err
	}
	subject := Subject(p.subject, track)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish comparison: %w", err)
	}
	p.l.Debug("comparison published", log.String("subject", subject))
	return nil
}

func (p *Publisher) envelope(msgType, track string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Type:   msgType,
		Track:  track,
		SentAt: p.now().UTC(),
		Data:   raw,
	})
}
