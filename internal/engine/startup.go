package engine

import (
	"context"
	"fmt"
	"io"
)

// modelLister is implemented by engines that can confirm their model exists.
type modelLister interface {
	HasModel(ctx context.Context) (bool, error)
}

// CheckReady pings the engine and reports whether its model is served,
// writing one status line per check to w. A missing model is a warning, not
// an error: some providers do not list every model they accept.
func CheckReady(ctx context.Context, e Engine, w io.Writer) error {
	if err := e.Ping(ctx); err != nil {
		fmt.Fprintf(w, "backend %s: unreachable\n", e.Backend())
		return err
	}
	fmt.Fprintf(w, "backend %s: reachable\n", e.Backend())

	ml, ok := e.(modelLister)
	if !ok {
		return nil
	}
	found, err := ml.HasModel(ctx)
	switch {
	case err != nil:
		fmt.Fprintf(w, "model %s: unknown (%v)\n", e.Model(), err)
	case found:
		fmt.Fprintf(w, "model %s: ready\n", e.Model())
	default:
		fmt.Fprintf(w, "model %s: not listed by backend\n", e.Model())
	}
	return nil
}
