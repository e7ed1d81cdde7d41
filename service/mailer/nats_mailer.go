package mailer

import (
	"encoding/json"
	"sync"
	"time"

	"TaskFlow/logger"
	"TaskFlow/tools/errs"

	"github.com/nats-io/nats.go"
)

// QueueMailer buffers jobs in a bounded channel and publishes them to
// a NATS subject from a single drain goroutine. A full buffer rejects
// the job instead of growing memory under a notification burst; the
// caller logs and moves on.
type QueueMailer struct {
	nc      *nats.Conn
	subject string
	jobs    chan Job

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewQueueMailer(nc *nats.Conn, subject string, buffer int) *QueueMailer {
	if buffer <= 0 {
		buffer = 1024
	}
	m := &QueueMailer{
		nc:      nc,
		subject: subject,
		jobs:    make(chan Job, buffer),
		stopCh:  make(chan struct{}),
	}
	m.wg.Add(1)
	go m.drain()
	return m
}

func (m *QueueMailer) Enqueue(to, kind string, context map[string]any) error {
	job := Job{To: to, Kind: kind, Context: context, EnqueuedAt: time.Now().Unix()}
	select {
	case m.jobs <- job:
		return nil
	default:
		return errs.ErrEmailFailed.WrapMsg("mail queue full, to=" + to)
	}
}

func (m *QueueMailer) drain() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			// flush what is already buffered, then stop
			for {
				select {
				case job := <-m.jobs:
					m.publish(job)
				default:
					return
				}
			}
		case job := <-m.jobs:
			m.publish(job)
		}
	}
}

func (m *QueueMailer) publish(job Job) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("[mailer] publish panic: %v", r)
		}
	}()
	b, err := json.Marshal(job)
	if err != nil {
		logger.Errorf("[mailer] marshal job to=%s err=%v", job.To, err)
		return
	}
	if err := m.nc.Publish(m.subject, b); err != nil {
		logger.Warnf("[mailer] email failed to=%s kind=%s err=%v", job.To, job.Kind, err)
	}
}

func (m *QueueMailer) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}
