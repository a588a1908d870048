package config

import "os"

// getenv is indirected through a var so tests can stub the environment
// without mutating the real process environment.
var getenv = os.Getenv
