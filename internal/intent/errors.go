package intent

import "errors"

// ErrNotInitialized is returned when no catalog has ever been loaded.
var ErrNotInitialized = errors.New("intent: detector not initialized")
