package archive

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/Bigdaddy1990/paw-control/internal/activity"
	"github.com/Bigdaddy1990/paw-control/internal/registry"
	"github.com/Bigdaddy1990/paw-control/internal/walk"
)

// Sink subscribes the archive to registry facts. Writes happen on a
// single worker goroutine; Publish never blocks the dispatch path. A
// full queue drops the write and logs it, the live engine stays
// authoritative.
type Sink struct {
	svc  *Service
	jobs chan func(context.Context)

	done chan struct{}
	once sync.Once
}

func NewSink(svc *Service) *Sink {
	s := &Sink{
		svc:  svc,
		jobs: make(chan func(context.Context), 256),
		done: make(chan struct{}),
	}
	go s.worker()
	return s
}

func (s *Sink) Publish(f registry.Fact) {
	switch f.Kind {
	case registry.FactWalkEnded:
		sess, ok := f.Payload.(*walk.Session)
		if !ok {
			return
		}
		copied := *sess
		s.enqueue(func(ctx context.Context) {
			if err := s.svc.SaveSession(ctx, copied); err != nil {
				log.Printf("archive session %s: %v", copied.ID, err)
			}
		})
	case registry.FactActivityLogged:
		ev, ok := f.Payload.(activity.Event)
		if !ok {
			return
		}
		s.enqueue(func(ctx context.Context) {
			if err := s.svc.SaveEvent(ctx, ev); err != nil {
				log.Printf("archive event %s: %v", ev.ID, err)
			}
		})
	}
}

// Close drains queued writes and stops the worker.
func (s *Sink) Close() {
	s.once.Do(func() { close(s.jobs) })
	<-s.done
}

func (s *Sink) enqueue(job func(context.Context)) {
	select {
	case s.jobs <- job:
	default:
		log.Printf("archive queue full, write dropped")
	}
}

func (s *Sink) worker() {
	defer close(s.done)
	for job := range s.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		job(ctx)
		cancel()
	}
}
