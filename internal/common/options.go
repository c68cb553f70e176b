package common

import (
	"go.uber.org/zap"
)

// ServiceOptions defines common options for service constructors
type ServiceOptions struct {
	Logger *zap.Logger
	Env    string
}

// Option defines a service option modifier
type Option func(*ServiceOptions)

func WithLogger(logger *zap.Logger) Option {
	return func(o *ServiceOptions) {
		o.Logger = logger
	}
}

func WithEnv(env string) Option {
	return func(o *ServiceOptions) {
		o.Env = env
	}
}
