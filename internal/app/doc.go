// Package app composes the investment engine: it wires the stores,
// services and lifecycle manager into a running application.
//
//	internal/app/
//	├── application.go   # wiring and lifecycle
//	├── domain/          # pure data models (investment, plan, wallet, ...)
//	├── storage/         # store interfaces, memory and postgres backends
//	├── services/        # confirmation, maturity, referral
//	├── httpapi/         # REST handlers
//	├── notify/          # outbound notification boundary
//	├── metrics/         # prometheus collectors
//	└── system/          # service lifecycle manager
//
// Business rules live in internal/app/services; this package only
// composes them. Domain models carry no behavior beyond pure
// calculations on their own fields.
package app
