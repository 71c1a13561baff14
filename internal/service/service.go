// Package service contains the business logic.
//
// It sits between the handler and repository layers. It receives validated
// data from the handler, performs business operations (running scans,
// managing breakers), and calls repository methods to interact with the
// data.
package service
