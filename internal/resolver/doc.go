// Package resolver decides which installed units can be activated.
//
// Every unit provides its identifier plus the capabilities listed in its
// manifest. Each requirement is wired to one provider; units with an
// unsatisfiable requirement fail, dependents of failed units fail in turn,
// and units on or behind a requirement cycle fail with CycleError. The
// remaining units are returned in dependency order.
package resolver
