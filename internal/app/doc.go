// Package app composes the EduShop backend.
//
// # Package Structure
//
//	internal/app/
//	├── application.go      # Application struct, wiring, and lifecycle
//	├── domain/             # Domain models (pure data structures)
//	├── storage/            # Store interfaces, memory and postgres implementations
//	├── services/           # Business logic, one package per area
//	├── httpapi/            # REST handlers and routing
//	├── runtime/            # Process wiring from configuration (api, worker)
//	├── system/             # Lifecycle manager for long running components
//	└── metrics/            # Prometheus collectors
//
// # Dependency Direction
//
//	cmd/edushop, cmd/worker
//	      │
//	      ▼
//	internal/app/runtime ──► internal/app (composition) ──► internal/app/services
//	      │                                                       │
//	      └──► internal/platform (postgres, redis, migrations)    └──► internal/app/storage
//
// # Adding a New Area
//
//  1. Create domain models in internal/app/domain/<area>/
//  2. Add the store interface to internal/app/storage/interfaces.go
//  3. Implement it in internal/app/storage/postgres/ and memory/
//  4. Create the service in internal/app/services/<area>/
//  5. Wire the service in internal/app/application.go
//  6. Add HTTP handlers in internal/app/httpapi/handler_<area>.go
package app
