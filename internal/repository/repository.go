// Package repository handles all interactions with the database.
//
// It contains raw SQL queries and methods to fetch, persist, or update
// data, abstracting SQL logic away from the service layer. Every failed
// query goes through sqlerr.HandleError so the layers above only ever see
// application errors.
package repository
