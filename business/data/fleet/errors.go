package fleet

import "errors"

// ErrNotReady is returned when synthesis is attempted before a schedule.Table has been loaded
var ErrNotReady = errors.New("schedule table not loaded")

// ErrInvalidCrowdLevel is returned when a crowd level outside low, medium and high is supplied
var ErrInvalidCrowdLevel = errors.New("invalid crowd level")
