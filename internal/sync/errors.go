package sync

import "errors"

// ErrDebounced means a round for this profile started within the minimum
// interval. The caller should treat it as a no-op, not a failure.
var ErrDebounced = errors.New("sync round debounced")

// ErrCursorDesync marks post-round drift that incremental sync should have
// prevented. It escalates to a deep-repair recommendation and is never acted
// on automatically.
var ErrCursorDesync = errors.New("cursor desync detected")

// ErrUnpushedChanges aborts a deep repair whose push-first guard failed:
// wiping now would silently lose local-only state.
var ErrUnpushedChanges = errors.New("unpushed local changes could not be delivered")
