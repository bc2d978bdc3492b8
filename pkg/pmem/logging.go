package pmem

import "github.com/sirupsen/logrus"

// defaultLogger is the base logger Pool and Registry derive their
// structured per-component loggers from. WithLogger overrides it for
// callers embedding this package in an application with its own
// logging configuration.
var defaultLogger logrus.FieldLogger = logrus.StandardLogger()

// WithLogger overrides the package-level default logger used by
// subsequently created Pools and Registries. It does not affect pools
// or registries already constructed.
func WithLogger(l logrus.FieldLogger) { defaultLogger = l }
