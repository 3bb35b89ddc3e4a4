// Package mocks provides mock implementations for testing the session engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	mockRepo := mocks.NewMockProfileRepository(ctrl)
//	mockRepo.EXPECT().FindByUserID(gomock.Any(), "user-1").Return(profile, nil)
package mocks

// Generate mock for ProfileRepository interface from internal/ports package.
// This creates MockProfileRepository with methods for all ProfileRepository interface methods:
// FindByUserID
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=profile_repository_mock.go github.com/bellsbank/bellsbank/internal/ports ProfileRepository

// Generate mock for TokenBackend interface from internal/ports package.
// This creates MockTokenBackend with methods for all TokenBackend interface methods:
// PasswordLogin, Register, Refresh, Revoke
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=token_backend_mock.go github.com/bellsbank/bellsbank/internal/ports TokenBackend
