package graphcache

import (
	"net/url"

	"go.uber.org/zap"
)

// DashboardPath is where a deleted graph sends the user.
const DashboardPath = "/dashboard"

// GraphBuilderPath is the editing view of one graph.
func GraphBuilderPath(graphID string) string {
	return "/graph-builder?graphId=" + url.QueryEscape(graphID)
}

// Navigator performs client-side navigation.
type Navigator interface {
	Navigate(target string)
}

// Notifier shows non-blocking notifications to the user.
type Notifier interface {
	Success(message string)
	Error(message string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(target string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(target string) { f(target) }

type nopNavigator struct{}

func (nopNavigator) Navigate(string) {}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *zap.Logger
}

// Success logs at info level.
func (n LogNotifier) Success(message string) {
	n.logger().Info(message)
}

// Error logs at warn level.
func (n LogNotifier) Error(message string) {
	n.logger().Warn(message)
}

func (n LogNotifier) logger() *zap.Logger {
	if n.Logger == nil {
		return zap.NewNop()
	}
	return n.Logger
}
