// Package worker запускает периодические задачи: проведение выплат и автоприёмку заказов.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/gig-escrow/internal/goroutine"
	"github.com/ignatzorin/gig-escrow/internal/logger"
)

// Job - задача, которая выполняется раз в Interval.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Observer interface {
	WorkerRun(job string, err error)
}

type Runner struct {
	jobs     []Job
	observer Observer
	wg       sync.WaitGroup
	log      *logrus.Entry
}

func NewRunner(observer Observer, jobs ...Job) *Runner {
	return &Runner{
		jobs:     jobs,
		observer: observer,
		log:      logger.WithComponent("worker"),
	}
}

// Start запускает каждую задачу в своей горутине. Первый запуск сразу, дальше по тикеру.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		r.wg.Add(1)
		goroutine.SafeGoWithContext(ctx, func(ctx context.Context) {
			defer r.wg.Done()
			r.loop(ctx, job)
		})
	}
}

// Wait ждёт завершения всех циклов после отмены контекста.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	interval := job.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.RunOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx, job)
		}
	}
}

// RunOnce выполняет задачу один раз. Паника задачи превращается в ошибку запуска.
func (r *Runner) RunOnce(ctx context.Context, job Job) error {
	var err error
	started := time.Now()
	if !goroutine.Run(func() { err = job.Run(ctx) }) {
		err = fmt.Errorf("worker: задача %s завершилась паникой", job.Name)
	}

	if r.observer != nil {
		r.observer.WorkerRun(job.Name, err)
	}
	entry := r.log.WithFields(logrus.Fields{"job": job.Name, "duration": time.Since(started)})
	if err != nil && ctx.Err() == nil {
		entry.WithError(err).Warn("worker: запуск завершился ошибкой")
		return err
	}
	entry.Debug("worker: запуск выполнен")
	return err
}
