// Package workers runs the background loops: searching out more articles
// for queued tags and words, and generating tags for new articles. Loops
// block on Redis queues, so each worker holds a dedicated connection.
package workers

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// errorBackoff is how long a worker sits out after a failed iteration, so a
// dead Redis or origin does not spin the loop.
const errorBackoff = time.Second

// Iterate is one worker iteration. conn is the worker's dedicated
// connection for blocking dequeues; shared commands should go through
// whatever client the loop was built with.
type Iterate func(ctx context.Context, conn redis.Cmdable) error

// Pool runs copies of worker loops until the context is cancelled.
type Pool struct {
	client *redis.Client
	wg     sync.WaitGroup
}

func NewPool(client *redis.Client) *Pool {
	return &Pool{client: client}
}

// Run starts count copies of the loop. Errors from iterations are logged
// and the loop continues after a short backoff.
func (p *Pool) Run(ctx context.Context, name string, count int, iterate Iterate) {
	log.Printf("workers: starting %d %s workers", count, name)

	for i := 0; i < count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.runOne(ctx, name, id, iterate)
		}(i)
	}
}

func (p *Pool) runOne(ctx context.Context, name string, id int, iterate Iterate) {
	conn := p.client.Conn()
	defer conn.Close()

	for ctx.Err() == nil {
		err := iterate(ctx, conn)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return
		}

		log.Printf("workers: [%s %d] %v", name, id, err)
		select {
		case <-time.After(errorBackoff):
		case <-ctx.Done():
			return
		}
	}
}

// Wait blocks until every worker started by Run has exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}
