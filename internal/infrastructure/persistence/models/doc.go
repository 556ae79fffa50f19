// Package models contains the GORM persistence models behind the payment and
// audit repositories. Domain types stay free of ORM tags; each model converts
// to and from its domain counterpart with ToDomain and a FromDomain constructor.
package models
