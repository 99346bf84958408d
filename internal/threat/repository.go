package threat

import (
	"context"
)

// Repository archives alerts for later review. The registry itself is
// in-memory process state; archival is optional and best-effort.
type Repository interface {
	// SaveAlert records a newly raised alert.
	SaveAlert(ctx context.Context, alert Alert) error

	// MarkDismissed records that an alert was dismissed by the user.
	MarkDismissed(ctx context.Context, id string) error
}
