package metrics

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu         sync.Mutex
	collectors []prometheus.Collector
	registered = map[prometheus.Registerer]bool{}
)

// register queues collectors from each file's init.
func register(cs ...prometheus.Collector) {
	mu.Lock()
	collectors = append(collectors, cs...)
	mu.Unlock()
}

// Register adds every storefront collector to r. Calling it again for the same r is a no-op.
func Register(r prometheus.Registerer) error {
	mu.Lock()
	defer mu.Unlock()
	if registered[r] {
		return nil
	}
	var errs []error
	for _, c := range collectors {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	registered[r] = true
	return nil
}

// MustRegister registers with the default registry and panics on a conflict.
func MustRegister() {
	if err := Register(prometheus.DefaultRegisterer); err != nil {
		panic(err)
	}
}
