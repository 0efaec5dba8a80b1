package notify

import (
	"context"
	"fmt"
	"net/url"
	"pagerduty-tools/internal/assert"
	"pagerduty-tools/internal/components/telemetry"
	"pagerduty-tools/internal/oncall"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("pagerduty-tools/internal/notify")

const report_campfire_set_topic = "campfire.set-topic"

type CampfireOptions struct {
	// Subdomain is the account, as in https://<subdomain>.campfirenow.com
	Subdomain string
	// BaseUrl replaces the url derived from Subdomain when set.
	BaseUrl string
	Token   string
	// Room is the id of the room whose topic Notify sets.
	Room string
}

func (o CampfireOptions) baseUrl() string {
	if o.BaseUrl != "" {
		return o.BaseUrl
	}
	return fmt.Sprintf("https://%s.campfirenow.com", o.Subdomain)
}

// Campfire publishes reports as the topic of a Campfire room.
type Campfire struct {
	http *resty.Client
	room string
	tel  telemetry.API
}

func NewCampfire(opts CampfireOptions, tel telemetry.API) (*Campfire, error) {
	assert.NotNil(tel)

	if opts.BaseUrl == "" && opts.Subdomain == "" {
		return nil, fmt.Errorf("campfire: subdomain is required")
	}
	if opts.Token == "" {
		return nil, fmt.Errorf("campfire: api token is required")
	}
	if opts.Room == "" {
		return nil, fmt.Errorf("campfire: room is required")
	}

	tel = telemetry.NewScopedAPI("campfire", tel)

	client := resty.New()
	client.SetBaseURL(opts.baseUrl())
	// campfire ignores the password of token auth
	client.SetBasicAuth(opts.Token, "X")
	client.SetHeader("content-type", "application/json")
	client.SetTimeout(time.Second * 30)
	telemetry.InstrumentResty(client, tel)

	return &Campfire{
		http: client,
		room: opts.Room,
		tel:  tel,
	}, nil
}

type topicUpdate struct {
	Room struct {
		Topic string `json:"topic"`
	} `json:"room"`
}

// SetTopic replaces the topic of a room.
func (c *Campfire) SetTopic(ctx context.Context, room, text string) error {
	ctx, span := tracer.Start(ctx, "campfire:SetTopic")
	defer span.End()
	span.SetAttributes(attribute.String("campfire.room", room))

	var body topicUpdate
	body.Room.Topic = text

	res, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Put(fmt.Sprintf("/room/%s.json", url.PathEscape(room)))
	if err != nil {
		c.tel.ReportBroken(report_campfire_set_topic, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return fmt.Errorf("campfire: set topic: %w", err)
	}
	if res.IsError() || res.StatusCode() >= 300 {
		err := &NotificationError{Status: res.StatusCode(), Body: res.String()}
		c.tel.ReportBroken(report_campfire_set_topic, err)
		span.SetStatus(codes.Error, "unexpected status")
		return err
	}
	return nil
}

// Notify sets the report as the topic of the configured room.
func (c *Campfire) Notify(ctx context.Context, res oncall.Result) error {
	return c.SetTopic(ctx, c.room, res.Report)
}
