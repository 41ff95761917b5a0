// Package mocks provides mock implementations of the session ports for testing.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the interfaces in
// internal/ports. The mocks are generated using go:generate directives and provide a fluent API
// for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	api := mocks.NewMockAuthAPI(ctrl)
//	api.EXPECT().IsLogin(gomock.Any()).Return(true, nil)
package mocks

// Generate mock for AuthAPI interface from internal/ports package.
// This creates MockAuthAPI with methods for all AuthAPI interface methods:
// PublicKey, Login, Register, IsLogin, Logout, CanRegister, CurrentUser
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_api_mock.go github.com/glhm/console/internal/ports AuthAPI

// Generate mock for Encryptor interface from internal/ports package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=encryptor_mock.go github.com/glhm/console/internal/ports Encryptor

// Generate mock for CredentialStore interface from internal/ports package.
// This creates MockCredentialStore with methods: Get, Sync, Set, Clear
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=credential_store_mock.go github.com/glhm/console/internal/ports CredentialStore

// Generate mock for Navigator interface from internal/ports package.
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=navigator_mock.go github.com/glhm/console/internal/ports Navigator
