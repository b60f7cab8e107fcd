package observation

import (
	"fmt"

	"github.com/openctemio/observe/pkg/domain/shared"
)

// Domain errors.
var (
	ErrObservationNotFound = fmt.Errorf("%w: observation", shared.ErrNotFound)
)
