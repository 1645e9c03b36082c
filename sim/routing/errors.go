package routing

import (
	"errors"
	"fmt"
	"net/netip"
)

// ErrNoRoute is returned (wrapped in a RoutingFailure) when no policy rule
// matched and no fallback produced a route.
var ErrNoRoute = errors.New("no route to host")

// RoutingFailure is the only error a Router returns. The caller is expected
// to drop the packet.
type RoutingFailure struct {
	Dst netip.Addr
	Err error
}

func (e *RoutingFailure) Error() string {
	return fmt.Sprintf("routing failure for %s: %v", e.Dst, e.Err)
}

func (e *RoutingFailure) Unwrap() error {
	return e.Err
}

func noRoute(dst netip.Addr) error {
	return &RoutingFailure{Dst: dst, Err: ErrNoRoute}
}

// asRoutingFailure passes RoutingFailures through unchanged and wraps any
// other error so that errors.Is(err, ErrNoRoute) holds.
func asRoutingFailure(dst netip.Addr, err error) error {
	var rf *RoutingFailure
	if errors.As(err, &rf) {
		return err
	}
	return &RoutingFailure{Dst: dst, Err: fmt.Errorf("%w: %w", ErrNoRoute, err)}
}
