// Package domain holds the entity types shared across handlers, services,
// and repositories: campaigns, contacts, templates, delivery logs, and
// their status enums.
//
// Everything here is a plain value type. The package imports nothing but
// the standard library's time, carries no sql/http/context fields, and
// limits behavior to pure predicate and validation methods on the types.
// Struct tags for JSON and DB column names are fine.
package domain
