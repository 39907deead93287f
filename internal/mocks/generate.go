// Package mocks provides mock implementations for testing the quantjobs
// pipeline.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks
// for the core interfaces. To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
package mocks

// Generate mock for JobStore interface from internal/core package.
// This creates MockJobStore with Create, Get, List, Transition.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=job_store_mock.go github.com/quantlab/quantjobs/internal/core JobStore

// Generate mock for DispatchPublisher interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=dispatch_publisher_mock.go github.com/quantlab/quantjobs/internal/core DispatchPublisher

// Generate mock for DataSource interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=data_source_mock.go github.com/quantlab/quantjobs/internal/core DataSource

// Generate mock for ModelRunner interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=model_runner_mock.go github.com/quantlab/quantjobs/internal/core ModelRunner

// Generate mock for ObjectStore interface from internal/core package.
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=object_store_mock.go github.com/quantlab/quantjobs/internal/core ObjectStore
