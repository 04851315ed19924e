// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package logging holds the shared logrus logger used by every component.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is used by both text and JSON output
const TimestampFormat = "2006-01-02 15:04:05.000"

// Logger is the process-wide logger
var Logger = logrus.New()

// Setup configures level and output format. Unknown levels fall back to info;
// format is "text" or "json".
func Setup(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Logger.SetLevel(lvl)

	if format == "json" {
		Logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: TimestampFormat,
		})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: TimestampFormat,
		})
	}
}

// SetOutput redirects log output, used by the dashboard to keep logs off the
// terminal it draws on
func SetOutput(w io.Writer) {
	Logger.SetOutput(w)
}

// For returns an entry tagged with a component name
func For(component string) *logrus.Entry {
	return WithLogger(Logger, component)
}

// WithLogger returns an entry on logger tagged with a component name
func WithLogger(logger *logrus.Logger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}
