package orchestrator

import (
	"sync"

	"tether/internal/api"
	"tether/internal/services"
	"tether/pkg/logging"
)

// delivery is one transition bound to the listeners attached when it
// happened.
type delivery struct {
	listeners  []services.Listener
	transition api.Transition
}

// dispatcher delivers transitions to listeners in the order they were
// emitted, on a single goroutine that never holds the registry lock.
type dispatcher struct {
	mu sync.Mutex

	// queue holds deliveries in FIFO order
	queue []delivery

	// cond is used for blocking get operations
	cond *sync.Cond

	// shuttingDown indicates the dispatcher is stopping
	shuttingDown bool

	done chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

// add enqueues a delivery. It never blocks.
func (d *dispatcher) add(del delivery) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.shuttingDown {
		return
	}
	d.queue = append(d.queue, del)
	d.cond.Signal()
}

// get retrieves the next delivery, blocking if necessary. It returns false
// once the dispatcher is shut down and the queue is drained.
func (d *dispatcher) get() (delivery, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for len(d.queue) == 0 && !d.shuttingDown {
		d.cond.Wait()
	}
	if len(d.queue) == 0 {
		return delivery{}, false
	}

	del := d.queue[0]
	d.queue[0] = delivery{}
	d.queue = d.queue[1:]
	return del, true
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		del, ok := d.get()
		if !ok {
			return
		}
		for _, l := range del.listeners {
			deliver(l, del.transition)
		}
	}
}

func deliver(l services.Listener, t api.Transition) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("Registry", "Listener for %s panicked on %s: %v", t.Service, t.Kind, r)
		}
	}()
	l(t)
}

// shutdown stops accepting deliveries, drains the queue and waits for the
// dispatcher goroutine to exit.
func (d *dispatcher) shutdown() {
	d.mu.Lock()
	d.shuttingDown = true
	d.cond.Broadcast()
	d.mu.Unlock()
	<-d.done
}
