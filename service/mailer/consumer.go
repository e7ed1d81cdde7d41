package mailer

import (
	"encoding/json"

	"TaskFlow/logger"

	"github.com/mitchellh/mapstructure"
	"github.com/nats-io/nats.go"
)

// SendFunc renders and delivers one email job. Returning an error only
// logs it: email is terminal-on-failure, never retried here.
type SendFunc func(Job) error

// Consume subscribes the email worker to the job subject. Payloads are
// decoded leniently (weakly typed) so producers on older schemas keep
// working.
func Consume(nc *nats.Conn, subject string, fn SendFunc) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var raw map[string]any
		if err := json.Unmarshal(msg.Data, &raw); err != nil {
			logger.Warnf("[mailer] bad job payload err=%v", err)
			return
		}
		var job Job
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          "mapstructure",
			Result:           &job,
			WeaklyTypedInput: true,
		})
		if err != nil {
			logger.Errorf("[mailer] decoder err=%v", err)
			return
		}
		if err := dec.Decode(raw); err != nil {
			logger.Warnf("[mailer] decode job err=%v", err)
			return
		}
		if err := fn(job); err != nil {
			logger.Warnf("[mailer] email failed to=%s kind=%s err=%v", job.To, job.Kind, err)
		}
	})
}
