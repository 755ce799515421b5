package services

import (
	"context"
	"log"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"achievementsAPI/internal/notification"
)

type PushNotificationProvider interface {
	Send(ctx context.Context, msg *notification.Message) error
}

var pushResults = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "push_notifications_total",
		Help: "Push notifications handled by the dispatcher",
	},
	[]string{"result"},
)

// NotificationDispatcher sends push notifications from a small worker pool so
// request handlers never wait on the push provider.
type NotificationDispatcher struct {
	pushProvider   PushNotificationProvider
	workers        int
	jobQueue       chan *DispatchJob
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
	enqueueTimeout time.Duration
	sendTimeout    time.Duration
}

type DispatchJob struct {
	Message *notification.Message
}

func NewNotificationDispatcher(provider PushNotificationProvider) *NotificationDispatcher {
	dispatcher := &NotificationDispatcher{
		pushProvider:   provider,
		workers:        5,
		jobQueue:       make(chan *DispatchJob, 100),
		stopChan:       make(chan struct{}),
		enqueueTimeout: time.Second,
		sendTimeout:    10 * time.Second,
	}

	dispatcher.startWorkers()

	return dispatcher
}

func (d *NotificationDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

func (d *NotificationDispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(id, job)
		case <-d.stopChan:
			return
		}
	}
}

func (d *NotificationDispatcher) processJob(worker int, job *DispatchJob) {
	defer func() {
		if rec := recover(); rec != nil {
			pushResults.WithLabelValues("panic").Inc()
			log.Printf("Dispatcher worker %d panic: %v\n%s", worker, rec, debug.Stack())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.pushProvider.Send(ctx, job.Message); err != nil {
		pushResults.WithLabelValues("failed").Inc()
		log.Printf("Push to %s failed: %v", job.Message.Topic, err)
		return
	}
	pushResults.WithLabelValues("sent").Inc()
}

// Dispatch queues msg. It gives up after a short wait when the queue is full
// or the dispatcher is stopped, and reports whether msg was queued.
func (d *NotificationDispatcher) Dispatch(msg *notification.Message) bool {
	job := &DispatchJob{Message: msg}

	select {
	case <-d.stopChan:
		return false
	default:
	}

	select {
	case d.jobQueue <- job:
		log.Printf("Notification for %s queued for dispatch", msg.Topic)
		return true
	case <-time.After(d.enqueueTimeout):
		pushResults.WithLabelValues("dropped").Inc()
		log.Printf("Failed to queue notification for %s: queue full", msg.Topic)
		return false
	case <-d.stopChan:
		return false
	}
}

// Stop the dispatcher gracefully
func (d *NotificationDispatcher) Stop() {
	d.stopOnce.Do(func() {
		log.Println("Stopping notification dispatcher...")
		close(d.stopChan)
		d.wg.Wait()
		log.Println("Notification dispatcher stopped")
	})
}
