// Package models contains the gorm persistence models for invoices, their
// payment ledger and correction log, pending payments and the read-only
// reference tables. Domain types stay free of ORM tags; mappers here convert
// between the two.
package models
