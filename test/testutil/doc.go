// Package testutil provides shared test utilities and fixtures for integration tests.
//
// This package contains common setup code and assertion helpers used across
// the integration and stress suites:
//   - ElectorCluster: several electors sharing one store and one broadcaster
//   - AssertSingleLeader: checks the at-most-one-leader invariant
//   - Fast configurations tuned for sub-second failover
//
// Note: For NATS server setup, use the github.com/arloliu/primary/testing package.
// This package is specifically for integration test scenarios and helper utilities.
package testutil
